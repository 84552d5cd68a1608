package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hringest/internal/config"
	"hringest/internal/datasource"
	"hringest/internal/errs"
	"hringest/internal/ingest"
	"hringest/internal/logging"
	"hringest/internal/metrics"
	"hringest/internal/metrics/datadog"
	"hringest/internal/metrics/prompush"
	"hringest/internal/storage"
)

// app is the state shared by subcommands, built once per invocation.
type app struct {
	envFiles []string
	cfg      config.Config
	log      *zap.Logger

	rec         *metrics.Recorder
	promHandler http.Handler
	closers     []func() error
}

// newRootCmd returns the command tree and the app state it fills in. The
// caller must call app.close after Execute, whatever its outcome.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "hringest",
		Short:         "HR CSV ingestion and reporting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "env files to load before reading HRINGEST_* variables")
	f.String("storage", "", "storage backend: postgres, mssql, mysql, sqlite (env HRINGEST_STORAGE_KIND)")
	f.String("dsn", "", "storage DSN (env HRINGEST_DSN)")
	f.String("header-map", "", "header alias YAML (env HRINGEST_HEADER_MAP)")
	f.String("settings", "", "ingest settings YAML (env HRINGEST_SETTINGS)")
	f.String("log-level", "", "debug, info, warn, error (env HRINGEST_LOG_LEVEL)")
	f.Bool("log-json", false, "JSON logs (env HRINGEST_LOG_JSON)")
	f.String("metrics-backend", "", "none, prometheus, pushgateway, datadog (env HRINGEST_METRICS_BACKEND)")
	f.String("pushgateway-url", "", "Pushgateway base URL (env HRINGEST_PUSHGATEWAY_URL)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newIngestCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newReportCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	return cmd, a
}

// init resolves configuration (flags over env over defaults) and builds the
// logger and metrics recorder.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return withCode(exitUsage, err)
	}

	f := cmd.Flags()
	override := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	override("storage", &cfg.StorageKind)
	override("dsn", &cfg.DSN)
	override("header-map", &cfg.HeaderMapPath)
	override("settings", &cfg.SettingsPath)
	override("log-level", &cfg.LogLevel)
	override("metrics-backend", &cfg.MetricsBackend)
	override("pushgateway-url", &cfg.PushgatewayURL)
	if f.Changed("log-json") {
		cfg.LogJSON, _ = f.GetBool("log-json")
	}
	a.cfg = cfg

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if err != nil {
		return withCode(exitUsage, err)
	}
	a.log = log

	return a.initMetrics()
}

func (a *app) initMetrics() error {
	switch kind := metrics.NormalizeKind(a.cfg.MetricsBackend); kind {
	case metrics.KindNone:
		a.rec = metrics.New(nil)

	case metrics.KindPrometheus, metrics.KindPushgateway:
		gw := ""
		if kind == metrics.KindPushgateway {
			gw = a.cfg.PushgatewayURL
			if gw == "" {
				return withCode(exitUsage, errs.Configf("metrics backend pushgateway needs HRINGEST_PUSHGATEWAY_URL"))
			}
		}
		b, err := prompush.NewBackend("hringest", gw)
		if err != nil {
			return err
		}
		a.rec = metrics.New(b)
		a.promHandler = b.Handler()
		a.closers = append(a.closers, a.rec.Flush)
		a.log.Info("metrics enabled", zap.String(logging.FieldBackend, kind), zap.String("pushgateway", gw))

	case metrics.KindDatadog:
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       a.cfg.DatadogAddr,
			Namespace:  "hringest.",
			GlobalTags: []string{"service:hringest"},
		})
		if err != nil {
			return withCode(exitUsage, err)
		}
		a.rec = metrics.New(b)
		a.closers = append(a.closers, b.Close)
		a.log.Info("metrics enabled", zap.String(logging.FieldBackend, kind), zap.String(logging.FieldAddress, a.cfg.DatadogAddr))

	default:
		return withCode(exitUsage, errs.Configf("unknown metrics backend %q", a.cfg.MetricsBackend))
	}
	return nil
}

// close flushes metrics and syncs the logger.
func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("metrics flush failed", zap.Error(err))
		}
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// openRepo opens the configured backend.
func (a *app) openRepo(ctx context.Context) (storage.Repository, error) {
	repo, err := storage.New(ctx, storage.Config{Kind: a.cfg.StorageKind, DSN: a.cfg.DSN, Logger: a.log})
	if err != nil {
		if errs.Kind(err) == errs.KindConfiguration {
			return nil, withCode(exitUsage, err)
		}
		return nil, withCode(exitStorage, err)
	}
	a.log.Debug("storage opened", zap.String(logging.FieldBackend, repo.Kind()))
	return repo, nil
}

// ingestConfig loads the header map and settings files.
func (a *app) ingestConfig() (ingest.Config, error) {
	hm, err := config.LoadHeaderMap(a.cfg.HeaderMapPath)
	if err != nil {
		return ingest.Config{}, withCode(exitUsage, err)
	}
	st, err := config.LoadSettings(a.cfg.SettingsPath)
	if err != nil {
		return ingest.Config{}, withCode(exitUsage, err)
	}
	return ingest.Config{HeaderMap: hm, Settings: st}, nil
}

// newService opens storage and builds the ingest service. The caller closes
// the returned repository.
func (a *app) newService(ctx context.Context) (*ingest.Service, storage.Repository, error) {
	icfg, err := a.ingestConfig()
	if err != nil {
		return nil, nil, err
	}
	repo, err := a.openRepo(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc, err := ingest.NewService(repo, icfg, ingest.Options{
		Logger:  a.log,
		Metrics: a.rec,
		Source:  datasource.NewReader(datasource.Options{Timeout: a.cfg.SourceTimeout, Logger: a.log}),
	})
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	return svc, repo, nil
}
