package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"captioner/internal/logging"
	"captioner/internal/pipeline"
	"captioner/internal/runlog"
	"captioner/internal/services"
)

const (
	// DoneDir receives sources whose run succeeded.
	DoneDir = "done"
	// FailedDir receives sources whose run failed.
	FailedDir = "failed"

	defaultSettle = 3 * time.Second
	reportSuffix  = ".result.json"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".m4v":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
	".avi":  {},
}

// Runner executes one upload. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, upload pipeline.Upload) (pipeline.Result, error)
}

// Report is written next to each processed source in done/ or failed/.
type Report struct {
	Source     string    `json:"source"`
	RunID      string    `json:"run_id,omitempty"`
	VideoURL   string    `json:"video_url,omitempty"`
	Segments   int       `json:"segments"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file must stay quiet before it is processed.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// Watcher feeds videos dropped into a directory through a Runner, one at a time.
type Watcher struct {
	dir    string
	runner Runner
	logger *slog.Logger
	settle time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
	queued  map[string]bool
	ready   chan string
}

// New constructs a Watcher for dir.
func New(dir string, runner Runner, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:     dir,
		runner:  runner,
		logger:  logging.NewComponentLogger(logger, "inbox"),
		settle:  defaultSettle,
		pending: make(map[string]time.Time),
		queued:  make(map[string]bool),
		ready:   make(chan string, 64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run watches the inbox until ctx ends. Files already present are picked up first.
func (w *Watcher) Run(ctx context.Context) error {
	if w.runner == nil {
		return errors.New("inbox: runner is required")
	}
	for _, sub := range []string{w.dir, filepath.Join(w.dir, DoneDir), filepath.Join(w.dir, FailedDir)} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("inbox: create %s: %w", sub, err)
		}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}
	w.scanExisting()
	w.logger.Info("watching inbox", logging.String("dir", w.dir))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return w.watch(groupCtx, fsw)
	})
	group.Go(func() error {
		w.work(groupCtx)
		return nil
	})
	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Watcher) watch(ctx context.Context, fsw *fsnotify.Watcher) error {
	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.touch(event.Name)
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.forget(event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "inbox_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "new files may be picked up late"),
			)
		case <-ticker.C:
			w.promote(time.Now())
		}
	}
}

func (w *Watcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.ready:
			w.process(ctx, path)
			w.mu.Lock()
			delete(w.queued, path)
			w.mu.Unlock()
		}
	}
}

func (w *Watcher) tick() time.Duration {
	tick := w.settle / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	return tick
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.touch(filepath.Join(w.dir, entry.Name()))
	}
}

// touch records activity on path if it looks like a video.
func (w *Watcher) touch(path string) {
	if !isCandidate(path) {
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

// promote queues files that have been quiet for the settle period.
func (w *Watcher) promote(now time.Time) {
	w.mu.Lock()
	var settled []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle && !w.queued[path] {
			settled = append(settled, path)
		}
	}
	sort.Strings(settled)
	for _, path := range settled {
		select {
		case w.ready <- path:
			delete(w.pending, path)
			w.queued[path] = true
		default:
		}
	}
	w.mu.Unlock()
}

func (w *Watcher) process(ctx context.Context, path string) {
	name := filepath.Base(path)
	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(w.logger, "inbox file unreadable", "inbox_open_failed",
				logging.String("file", name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check file permissions in the inbox"),
			)
		}
		return
	}
	result, runErr := w.runner.Run(ctx, pipeline.Upload{Body: file, Filename: name, Source: runlog.SourceInbox})
	file.Close()

	if errors.Is(runErr, services.ErrUnavailable) {
		w.mu.Lock()
		w.pending[path] = time.Now()
		w.mu.Unlock()
		w.logger.Info("server saturated; inbox file will be retried", logging.String("file", name))
		return
	}
	if ctx.Err() != nil && runErr != nil {
		// Shutdown interrupted the run; leave the source for the next start.
		return
	}

	report := Report{
		Source:     name,
		RunID:      result.RunID,
		VideoURL:   result.VideoURL,
		Segments:   result.Segments,
		FinishedAt: time.Now().UTC(),
	}
	destDir := DoneDir
	if runErr != nil {
		destDir = FailedDir
		report.Stage = pipeline.FailedStage(runErr)
		report.Error = runErr.Error()
	}
	if err := w.archive(path, filepath.Join(w.dir, destDir), report); err != nil {
		logging.WarnWithContext(w.logger, "inbox archive failed", "inbox_archive_failed",
			logging.String("file", name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the source may be processed again on restart"),
		)
		return
	}
	w.logger.Info("inbox file processed",
		logging.String("file", name),
		logging.String("outcome", destDir),
		logging.String(logging.FieldRunID, result.RunID),
	)
}

func (w *Watcher) archive(src, destDir string, report Report) error {
	dest := filepath.Join(destDir, filepath.Base(src))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		dest = fmt.Sprintf("%s-%s%s", strings.TrimSuffix(dest, ext), time.Now().UTC().Format("20060102T150405"), ext)
	}
	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("move source: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(dest+reportSuffix, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func isCandidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
