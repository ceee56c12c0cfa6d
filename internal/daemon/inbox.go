package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dualsub/internal/logging"
	"dualsub/internal/services"
	"dualsub/internal/workflow"
)

const (
	inboxProcessedDir = "processed"
	inboxFailedDir    = "failed"
	// inboxSettle is how long a file must stay quiet before it is read, so a
	// writer that creates then fills the file is not read half way.
	inboxSettle = 500 * time.Millisecond
)

type submitFunc func(ctx context.Context, req workflow.Request) (string, error)

type inboxWatcher struct {
	dir    string
	submit submitFunc
	logger *slog.Logger
	settle time.Duration

	watcher *fsnotify.Watcher
	ctx     context.Context

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

func newInboxWatcher(dir string, submit submitFunc, logger *slog.Logger) *inboxWatcher {
	return &inboxWatcher{
		dir:    filepath.Clean(dir),
		submit: submit,
		logger: logging.NewComponentLogger(logger, "inbox"),
		settle: inboxSettle,
		timers: make(map[string]*time.Timer),
	}
}

func (w *inboxWatcher) start(ctx context.Context) error {
	for _, dir := range []string{w.dir, filepath.Join(w.dir, inboxProcessedDir), filepath.Join(w.dir, inboxFailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure dir %s: %w", dir, err)
		}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = watcher
	w.ctx = ctx

	w.wg.Add(1)
	go w.loop()

	// Requests dropped while the daemon was down.
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan inbox: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.schedule(filepath.Join(w.dir, entry.Name()))
		}
	}
	return nil
}

func (w *inboxWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.schedule(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "inbox_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some inbox requests may be picked up late"),
				logging.String(logging.FieldErrorHint, "restart the daemon if requests stop being processed"),
			)
		}
	}
}

func isRequestFile(dir, path string) bool {
	if filepath.Dir(path) != dir {
		return false
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// schedule (re)arms the settle timer for path.
func (w *inboxWatcher) schedule(path string) {
	if !isRequestFile(w.dir, path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()
		w.process(path)
	})
}

func (w *inboxWatcher) process(path string) {
	if w.ctx.Err() != nil {
		return
	}
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.reject(path, err)
		}
		return
	}
	req, err := workflow.DecodeYAML(data)
	if err != nil {
		w.reject(path, err)
		return
	}
	jobID, err := w.submit(services.WithRequestID(w.ctx, "inbox:"+name), req)
	if err != nil {
		w.reject(path, err)
		return
	}

	ext := filepath.Ext(name)
	target := filepath.Join(w.dir, inboxProcessedDir, strings.TrimSuffix(name, ext)+"."+jobID+ext)
	if err := os.Rename(path, target); err != nil {
		logging.WarnWithContext(w.logger, "inbox request not archived", "inbox_archive_failed",
			logging.String("file", name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "request may be submitted again on the next change or restart"),
			logging.String(logging.FieldErrorHint, "move the file out of the inbox manually"),
		)
	}
	w.logger.Info("inbox request submitted",
		logging.String("file", name),
		logging.String(logging.FieldJobID, jobID),
		logging.String("job_type", string(req.Type)),
	)
}

// reject moves path into failed/ with a sibling .error file.
func (w *inboxWatcher) reject(path string, cause error) {
	name := filepath.Base(path)
	failed := filepath.Join(w.dir, inboxFailedDir, name)
	if err := os.Rename(path, failed); err != nil && !errors.Is(err, fs.ErrNotExist) {
		cause = errors.Join(cause, err)
	}
	_ = os.WriteFile(failed+".error", []byte(cause.Error()+"\n"), 0o644)
	logging.WarnWithContext(w.logger, "inbox request rejected", "inbox_request_rejected",
		logging.String("file", name),
		logging.Error(cause),
		logging.String(logging.FieldImpact, "no job was created for this request"),
		logging.String(logging.FieldErrorHint, services.Hint(cause)),
	)
}

func (w *inboxWatcher) stop() {
	w.mu.Lock()
	w.closed = true
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	w.wg.Wait()
}
