package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"captioner/internal/config"
	"captioner/internal/daemon"
	"captioner/internal/inbox"
	"captioner/internal/logging"
)

// journalRetention is how long finished runs stay in the journal.
const journalRetention = 30 * 24 * time.Hour

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the captioner server and blocks until a signal or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.StateDir, "captioner.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	stack, err := Build(signalCtx, cfg, logger, StackOptions{})
	if err != nil {
		logger.Error("build pipeline", logging.Error(err))
		return err
	}
	defer stack.Close()

	if pruned, err := stack.Journal.Prune(signalCtx, journalRetention); err != nil {
		logging.WarnWithContext(logger, "failed to prune run journal", "journal_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "old runs remain in history"),
		)
	} else if pruned > 0 {
		logger.Info("pruned old runs", logging.Int64("count", pruned))
	}

	var watcher *inbox.Watcher
	if cfg.Inbox.Enabled {
		watcher = inbox.New(cfg.Inbox.Dir, stack.Orchestrator, logger)
	}

	d, err := daemon.New(daemon.Options{
		Config:    cfg,
		Runner:    stack.Orchestrator,
		Journal:   stack.Journal,
		Artifacts: stack.Artifacts,
		Events:    stack.Events,
		Gatherer:  stack.Registry,
		Inbox:     watcher,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check bind address, state_dir, and that no other instance is running"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("captioner daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := cfg.FFmpegBinary()
	ffprobe := cfg.FFprobeBinary()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobe)),
		logging.String("ffprobe_binary", ffprobe),
		logging.Bool("probe_input", cfg.Pipeline.ProbeInput),
		logging.String("asr_engine", cfg.ASR.Engine),
		logging.Bool("whisperx_cuda", cfg.ASR.CUDAEnabled),
		logging.Bool("openai_key_present", strings.TrimSpace(cfg.ASR.OpenAIAPIKey) != ""),
		logging.String("store_backend", cfg.Storage.Backend),
		logging.Bool("inbox_enabled", cfg.Inbox.Enabled),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.Server.APIToken) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
