package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dualsub/internal/config"
	"dualsub/internal/daemon"
	"dualsub/internal/logging"
)

// Run starts the dualsub daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "dualsub.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}

	opts := []daemon.Option{
		daemon.WithMetricsHandler(promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{})),
		daemon.WithCatalogName(rt.CatalogName),
		daemon.WithLogger(logger),
	}
	if rt.History != nil {
		opts = append(opts, daemon.WithHistory(rt.History))
	}
	d, err := daemon.New(cfg, rt.Manager, opts...)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind and that no other dualsub daemon is running"),
			logging.String(logging.FieldImpact, "jobs cannot be submitted"),
		)
		return err
	}
	logger.Info("dualsub daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("api_addr", d.APIAddr()),
		logging.String("catalog", rt.CatalogName),
	)

	<-signalCtx.Done()
	logger.Info("dualsub daemon shutting down", logging.String(logging.FieldEventType, "daemon_stopping"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
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
		logging.Bool("sync_enabled", cfg.Sync.Enabled),
		logging.Bool("ffsubsync_available", binaryAvailable(cfg.Sync.FFSubsyncBinary)),
		logging.Bool("plex_token_present", strings.TrimSpace(cfg.Plex.Token) != ""),
		logging.Bool("manifest_configured", strings.TrimSpace(cfg.Plex.ManifestPath) != ""),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("notifications_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
