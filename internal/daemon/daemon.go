package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dualsub/internal/api"
	"dualsub/internal/config"
	"dualsub/internal/deps"
	"dualsub/internal/history"
	"dualsub/internal/logging"
	"dualsub/internal/services"
	"dualsub/internal/workflow"
)

// Daemon owns the process lifecycle around a workflow manager.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *workflow.Manager
	history *history.Store
	metrics http.Handler
	catalog string

	lockPath string
	lock     *flock.Flock

	api   *apiServer
	inbox *inboxWatcher

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithHistory exposes and prunes the job archive. The daemon closes it.
func WithHistory(store *history.Store) Option {
	return func(d *Daemon) { d.history = store }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(d *Daemon) { d.metrics = h }
}

// WithCatalogName labels the configured catalog in status reports.
func WithCatalogName(name string) Option {
	return func(d *Daemon) { d.catalog = name }
}

// WithLogger sets the daemon logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) { d.logger = logger }
}

// New constructs a daemon around an already wired workflow manager.
func New(cfg *config.Config, manager *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || manager == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	d := &Daemon{cfg: cfg, manager: manager}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "daemon")
	d.lockPath = filepath.Join(cfg.Paths.DataDir, "dualsub.lock")
	d.lock = flock.New(d.lockPath)
	return d, nil
}

// Start acquires the instance lock and launches the API server, the inbox
// watcher and the retention sweep.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dualsub daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.startComponents(runCtx); err != nil {
		cancel()
		d.stopComponents()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	d.wg.Add(1)
	go d.maintenanceLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("dualsub daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.APIAddr()),
		logging.String("inbox", d.cfg.Paths.InboxDir),
	)
	return nil
}

func (d *Daemon) startComponents(ctx context.Context) error {
	if bind := strings.TrimSpace(d.cfg.Paths.APIBind); bind != "" {
		opts := []api.Option{
			api.WithToken(d.cfg.Paths.APIToken),
			api.WithRetention(d.cfg.Retention()),
			api.WithStatus(d.Status),
			api.WithLogger(d.logger),
		}
		if d.history != nil {
			opts = append(opts, api.WithHistory(d.history))
		}
		if d.metrics != nil {
			opts = append(opts, api.WithMetrics(d.metrics))
		}
		d.api = newAPIServer(bind, api.NewServer(d.manager, opts...).Handler(), d.logger)
		if err := d.api.start(ctx); err != nil {
			return err
		}
	}
	if dir := strings.TrimSpace(d.cfg.Paths.InboxDir); dir != "" {
		d.inbox = newInboxWatcher(dir, d.submitFromInbox, d.logger)
		if err := d.inbox.start(ctx); err != nil {
			return fmt.Errorf("start inbox watcher: %w", err)
		}
	}
	return nil
}

func (d *Daemon) stopComponents() {
	if d.inbox != nil {
		d.inbox.stop()
		d.inbox = nil
	}
	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
}

func (d *Daemon) submitFromInbox(ctx context.Context, req workflow.Request) (string, error) {
	job, err := d.manager.Submit(services.WithStage(ctx, "inbox"), req)
	return job.ID, err
}

// Stop shuts down background components and releases the lock. Running
// jobs are left to Close.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.stopComponents()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next daemon start may report a stale instance"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("dualsub daemon stopped")
}

// Close stops the daemon, cancels active jobs and closes the archive.
func (d *Daemon) Close() error {
	d.Stop()
	d.manager.Orchestrator().Close()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// APIAddr reports the listening API address, or "" when the API is off.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status reports runtime state and external dependency availability.
func (d *Daemon) Status(_ context.Context) api.DaemonStatus {
	orch := d.manager.Orchestrator()
	status := api.DaemonStatus{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		LockFilePath:      d.lockPath,
		InboxDir:          d.cfg.Paths.InboxDir,
		Catalog:           d.catalog,
		MaxConcurrentJobs: orch.MaxConcurrentJobs(),
		JobCounts:         api.CountsByName(orch.Counts()),
		Dependencies:      deps.Check(d.cfg),
	}
	if d.history != nil {
		status.HistoryPath = d.history.Path()
	}
	return status
}

func (d *Daemon) maintenanceLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := time.Duration(d.cfg.Jobs.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// Sweep drops expired terminal jobs from the registry and prunes the
// archive. It returns the number of registry jobs and archive rows removed.
func (d *Daemon) Sweep(ctx context.Context) (int, int64) {
	removed := d.manager.Orchestrator().CleanupOldJobs(d.cfg.Retention())
	var pruned int64
	if d.history != nil {
		if retention := d.cfg.HistoryRetention(); retention > 0 {
			n, err := d.history.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				logging.WarnWithContext(d.logger, "history prune failed", "history_prune_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "archive keeps growing until the next sweep"),
					logging.String(logging.FieldErrorHint, "check "+d.history.Path()),
				)
			}
			pruned = n
		}
	}
	if removed > 0 || pruned > 0 {
		d.logger.Debug("retention sweep",
			logging.Int("jobs_removed", removed),
			logging.Int64("history_pruned", pruned),
		)
	}
	return removed, pruned
}
