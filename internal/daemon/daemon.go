package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"captioner/internal/api"
	"captioner/internal/artifacts"
	"captioner/internal/config"
	"captioner/internal/deps"
	"captioner/internal/inbox"
	"captioner/internal/logging"
	"captioner/internal/pipeline"
	"captioner/internal/preflight"
	"captioner/internal/runlog"
)

// Runner executes one upload. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, upload pipeline.Upload) (pipeline.Result, error)
}

// Journal is the read side of the run journal plus startup recovery.
// *runlog.Store satisfies it.
type Journal interface {
	Get(ctx context.Context, id string) (*runlog.Run, error)
	List(ctx context.Context, limit int, statuses ...runlog.Status) ([]runlog.Run, error)
	Stats(ctx context.Context) (runlog.Stats, error)
	MarkInterrupted(ctx context.Context) (int64, error)
}

// Options holds the collaborators a Daemon coordinates.
type Options struct {
	Config    *config.Config
	Runner    Runner
	Journal   Journal
	Artifacts *artifacts.Manager
	Events    *pipeline.EventHub
	Gatherer  prometheus.Gatherer
	Inbox     *inbox.Watcher
	Logger    *slog.Logger
}

// Daemon owns the HTTP front door, the optional inbox watcher, and the
// single-instance lock.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	runner    Runner
	journal   Journal
	artifacts *artifacts.Manager
	events    *pipeline.EventHub
	inbox     *inbox.Watcher
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	inboxDone chan struct{}

	stateMu      sync.RWMutex
	startedAt    time.Time
	dependencies []deps.Status
}

// New constructs a daemon from opts.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Runner == nil {
		return nil, errors.New("daemon requires config and runner")
	}
	lockPath := opts.Config.LockPath()
	d := &Daemon{
		cfg:       opts.Config,
		logger:    logging.NewComponentLogger(opts.Logger, "daemon"),
		runner:    opts.Runner,
		journal:   opts.Journal,
		artifacts: opts.Artifacts,
		events:    opts.Events,
		inbox:     opts.Inbox,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(d, opts.Gatherer)
	return d, nil
}

// Handler exposes the HTTP routes without starting a listener.
func (d *Daemon) Handler() http.Handler {
	return d.api.router
}

// Addr reports the bound listener address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Start acquires the lock, recovers from any previous crash, and begins
// serving requests.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another captioner instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.recover(d.ctx)
	dependencies := preflight.CheckSystemDeps(d.cfg)
	if missing := deps.MissingRequired(dependencies); len(missing) > 0 {
		logging.WarnWithContext(d.logger, "required dependencies missing", "dependency_missing",
			logging.Any("missing", missing),
			logging.String(logging.FieldErrorHint, "install the missing tools and restart"),
			logging.String(logging.FieldImpact, "runs fail at the stage needing them"),
		)
	}

	if err := d.api.start(d.ctx); err != nil {
		d.cancel()
		d.ctx, d.cancel = nil, nil
		_ = d.lock.Unlock()
		return err
	}

	if d.inbox != nil {
		done := make(chan struct{})
		d.inboxDone = done
		go func(runCtx context.Context) {
			defer close(done)
			if err := d.inbox.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logging.ErrorWithContext(d.logger, "inbox watcher stopped", "inbox_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check inbox directory permissions"),
				)
			}
		}(d.ctx)
	}

	d.stateMu.Lock()
	d.startedAt = time.Now().UTC()
	d.dependencies = dependencies
	d.stateMu.Unlock()
	d.running.Store(true)
	d.logger.Info("captioner daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
	)
	return nil
}

// recover fails runs left open by a previous process and clears stale
// scratch files.
func (d *Daemon) recover(ctx context.Context) {
	if d.journal != nil {
		count, err := d.journal.MarkInterrupted(ctx)
		switch {
		case err != nil:
			logging.WarnWithContext(d.logger, "failed to close interrupted runs", "journal_recovery_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale runs remain marked running"),
			)
		case count > 0:
			d.logger.Info("marked interrupted runs failed", logging.Int64("count", count))
		}
	}
	if d.artifacts != nil {
		result := d.artifacts.SweepStale(ctx, artifacts.DefaultStaleAge)
		if len(result.Removed) > 0 {
			d.logger.Info("swept stale artifacts", logging.Int("removed", len(result.Removed)))
		}
	}
}

// Stop shuts down the listener, waits for the inbox, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if d.inboxDone != nil {
		<-d.inboxDone
		d.inboxDone = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("captioner daemon stopped")
}

// Close stops the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status reports runtime information for the status endpoint.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		RunsDBPath:   d.cfg.RunsDBPath(),
		WorkDir:      d.cfg.Paths.WorkDir,
		ASREngine:    d.cfg.ASR.Engine,
		StoreBackend: d.cfg.Storage.Backend,
	}
	if d.inbox != nil {
		status.InboxDir = d.inbox.Dir()
	}
	d.stateMu.RLock()
	startedAt := d.startedAt
	dependencies := d.dependencies
	d.stateMu.RUnlock()
	if status.Running && !startedAt.IsZero() {
		status.StartedAt = startedAt.Format(time.RFC3339)
		status.UptimeSeconds = time.Since(startedAt).Seconds()
	}
	if dependencies == nil {
		dependencies = preflight.CheckSystemDeps(d.cfg)
	}
	status.Dependencies = api.FromDependencies(dependencies)
	if d.journal != nil {
		if stats, err := d.journal.Stats(ctx); err == nil {
			status.Runs = api.FromRunStats(stats)
		} else {
			d.logger.Debug("run stats unavailable", logging.Error(err))
		}
	}
	return status
}
