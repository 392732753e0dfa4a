package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/ledgerq"
	"github.com/hupe1980/ledgerq/codec"
	"github.com/hupe1980/ledgerq/engine"
	"github.com/hupe1980/ledgerq/internal/config"
	"github.com/hupe1980/ledgerq/internal/server"
	"github.com/hupe1980/ledgerq/metrics"
	"github.com/hupe1980/ledgerq/resource"
)

func runServe(ctx context.Context, args []string, _, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	configPath := fs.String("config", "", "path to the YAML config file (default $LEDGERQ_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger := ledgerq.NewLoggerFor(stderr, cfg.Log.Format, cfg.Log.Level)

	e, reg, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			logger.Error("close engine", "error", err)
		}
	}()

	go func() {
		err := e.WaitReady(ctx)
		if ctx.Err() != nil || errors.Is(err, engine.ErrClosed) {
			return
		}
		st := e.Stats()
		logger.LogRecovery(ctx, st.LSN, st.Accounts, err)
	}()

	var opts []server.Option
	opts = append(opts,
		server.WithLogger(logger.WithComponent("server")),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
	)
	if reg != nil {
		opts = append(opts, server.WithGatherer(reg))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      server.New(e, opts...).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.InfoContext(ctx, "serving", "addr", cfg.Server.Listen, "store", cfg.Store.Type, "read_only", cfg.ReadOnly)
	return server.Run(ctx, srv, cfg.Server.ShutdownTimeout)
}

// openEngine opens the engine described by cfg. The returned registry is
// nil when metrics are disabled.
func openEngine(ctx context.Context, cfg *config.Config, logger *ledgerq.Logger) (*engine.Engine, *prometheus.Registry, error) {
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	c, ok := codec.ByName(cfg.Codec)
	if !ok {
		return nil, nil, fmt.Errorf("unknown codec %q", cfg.Codec)
	}

	var policy engine.CompactionPolicy = engine.TombstoneRatioPolicy{
		Ratio:         cfg.Compaction.TombstoneRatio,
		MinTombstones: cfg.Compaction.MinTombstones,
	}
	if cfg.Compaction.Disabled {
		policy = engine.NeverCompact{}
	}

	opts := []engine.Option{
		engine.WithLogger(logger.WithComponent("engine").Logger),
		engine.WithCodec(c),
		engine.WithCacheSize(cfg.Cache.SizeBytes),
		engine.WithCompactionPolicy(policy),
		engine.WithCheckpointEvery(cfg.Checkpoint.Every),
		engine.WithCheckpointInterval(cfg.Checkpoint.Interval),
		engine.WithKeepCheckpoints(cfg.Checkpoint.Keep),
		engine.WithWALOptions(engine.WALOptions{
			Compress:         cfg.WAL.Compress,
			CompressionLevel: cfg.WAL.CompressionLevel,
			Sync:             cfg.WAL.Sync,
		}),
		engine.WithResourceController(resource.NewController(resource.Config{
			MemoryLimitBytes:     cfg.Limits.MemoryLimitBytes,
			MaxConcurrentQueries: int64(cfg.Limits.MaxConcurrentQueries),
			QueriesPerSecond:     cfg.Limits.QueriesPerSecond,
			QueryBurst:           cfg.Limits.QueryBurst,
			MaxBackgroundWorkers: int64(cfg.Limits.MaxBackgroundWorkers),
		})),
		// Serve while recovering; /healthz reports 503 until ready.
		engine.WithAsyncRecovery(),
	}
	if store != nil {
		opts = append(opts, engine.WithBlobStore(store))
	}
	if cfg.Store.Type != config.StoreMemory && cfg.DataDir != "" {
		opts = append(opts, engine.WithDataDir(cfg.DataDir))
	}
	if cfg.ReadOnly {
		opts = append(opts, engine.WithReadOnly())
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, engine.WithMetricsObserver(metrics.NewObserver(reg, cfg.Metrics.Namespace)))
	}

	e, err := engine.Open(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return e, reg, nil
}
