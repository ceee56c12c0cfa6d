// Package daemonrun wires configuration into a running dualsub daemon.
package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"dualsub/internal/aligner"
	"dualsub/internal/bulk"
	"dualsub/internal/catalog"
	"dualsub/internal/config"
	"dualsub/internal/history"
	"dualsub/internal/jobs"
	"dualsub/internal/language"
	"dualsub/internal/logging"
	"dualsub/internal/media/ffmpeg"
	"dualsub/internal/notifications"
	"dualsub/internal/syncengine"
	"dualsub/internal/workflow"
)

// Runtime is the fully wired job stack behind the daemon.
type Runtime struct {
	Manager     *workflow.Manager
	History     *history.Store
	Registry    *prometheus.Registry
	CatalogName string
}

// Close shuts down the orchestrator and the archive.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Manager.Orchestrator().Close()
	if r.History != nil {
		return r.History.Close()
	}
	return nil
}

// BuildCatalog selects the manifest catalog when plex.manifest_path is set and
// the Plex server otherwise. The returned name labels the choice in status
// output.
func BuildCatalog(cfg *config.Config, logger *slog.Logger) (catalog.Catalog, string, error) {
	if cfg == nil {
		return nil, "", errors.New("config is required")
	}
	scanner := catalog.NewScanner(logger, catalog.FFprobeProber(cfg.FFprobeBinary()))
	if path := strings.TrimSpace(cfg.Plex.ManifestPath); path != "" {
		manifest, err := catalog.LoadManifest(path, scanner)
		if err != nil {
			return nil, "", fmt.Errorf("load catalog manifest: %w", err)
		}
		return manifest, "manifest:" + filepath.Base(path), nil
	}
	plex := catalog.NewPlex(cfg.Plex.URL,
		catalog.WithTimeout(time.Duration(cfg.Plex.TimeoutSeconds)*time.Second),
		catalog.WithScanner(scanner),
	)
	return plex, "plex:" + cfg.Plex.URL, nil
}

// Build wires the aligner, sync engine, extractor, detector, bulk pipeline and
// orchestrator from cfg. Terminal jobs are archived when history is enabled
// and announced through ntfy when a topic is configured.
func Build(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	cat, catalogName, err := BuildCatalog(cfg, logger)
	if err != nil {
		return nil, err
	}

	align := aligner.New(
		aligner.WithBinary(cfg.Sync.FFSubsyncBinary),
		aligner.WithTimeouts(cfg.SyncTimeout(false), cfg.SyncTimeout(true)),
		aligner.WithProbeTimeout(time.Duration(cfg.Sync.ProbeTimeoutSeconds)*time.Second),
		aligner.WithMaxOffset(cfg.Sync.MaxOffsetSeconds),
		aligner.WithLogger(logger),
	)
	engine := syncengine.New(align,
		syncengine.WithEnabled(cfg.Sync.Enabled),
		syncengine.WithTempDir(cfg.Paths.TempDir),
		syncengine.WithLogger(logger),
	)
	extractor := ffmpeg.New(cfg.FFmpegBinary())
	detector := language.NewDetector(logger)

	pipelineOpts := []bulk.Option{
		bulk.WithExtractor(extractor),
		bulk.WithDetector(detector),
		bulk.WithDurationProbe(bulk.FFprobeDuration(cfg.FFprobeBinary())),
		bulk.WithTempDir(cfg.Paths.TempDir),
		bulk.WithLogger(logger),
	}
	if strings.TrimSpace(cfg.Plex.ManifestPath) != "" {
		pipelineOpts = append(pipelineOpts, bulk.WithTokenOptional())
	}
	pipeline := bulk.New(cat, engine, pipelineOpts...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orchOpts := []jobs.Option{
		jobs.WithMaxConcurrentJobs(cfg.Jobs.MaxConcurrentJobs),
		jobs.WithLogger(logger),
		jobs.WithMetrics(jobs.NewMetrics(registry)),
		jobs.WithTerminalHook(notifications.Hook(notifications.NewService(cfg), logger)),
	}

	var store *history.Store
	if cfg.History.Enabled {
		path := cfg.History.Path
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.Paths.DataDir, "history.db")
		}
		store, err = history.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open job history: %w", err)
		}
		orchOpts = append(orchOpts, jobs.WithTerminalHook(store.Hook(logger)))
	}

	manager := workflow.NewManager(jobs.New(orchOpts...), pipeline,
		workflow.WithExtractor(extractor),
		workflow.WithDetector(detector),
		workflow.WithDefaults(workflow.Defaults{
			PrimaryLanguage:   cfg.Subtitles.DefaultPrimaryLanguage,
			SecondaryLanguage: cfg.Subtitles.DefaultSecondaryLanguage,
			Token:             cfg.Plex.Token,
			Options: bulk.Options{
				LanguagePrefix:    cfg.Subtitles.LanguagePrefix,
				SyncEnabled:       cfg.Sync.Enabled,
				LanguageDetection: cfg.Subtitles.LanguageDetection,
			},
		}),
		workflow.WithLogger(logger),
	)

	return &Runtime{
		Manager:     manager,
		History:     store,
		Registry:    registry,
		CatalogName: catalogName,
	}, nil
}
