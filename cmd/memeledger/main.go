package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MemeLedger/internal/chain"
	"MemeLedger/internal/config"
	"MemeLedger/internal/core"
	"MemeLedger/internal/ingestion"
	"MemeLedger/internal/observability"
	"MemeLedger/internal/persistence"
	"MemeLedger/internal/query"
	"MemeLedger/internal/server"
	"MemeLedger/internal/state"
	"MemeLedger/internal/store/memory"
	"MemeLedger/internal/store/redis"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", os.Getenv("MEMELEDGER_CONFIG"), "path to TOML config file")
	flag.Parse()

	log := observability.NewLogger("memeledger")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("memeledger stopped")
	}
	log.Info().Msg("memeledger shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("source", cfg.Source).
		Str("store", cfg.Store.Backend).
		Str("transfer_mode", cfg.Reconcile.TransferMode).
		Msg("memeledger starting")

	// --- Observability ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	healthChecker := observability.NewHealthChecker()

	// --- Store backend ---
	stores, closeStores, err := openStores(ctx, cfg, healthChecker, log)
	if err != nil {
		return err
	}
	defer closeStores()

	transferMode, err := core.ParseTransferMode(cfg.Reconcile.TransferMode)
	if err != nil {
		return err
	}
	decimals := cfg.DecimalsTable()
	procCfg := core.ProcessorConfig{
		BaseAddress:  cfg.BaseAddress(),
		Decimals:     decimals,
		LRUSize:      cfg.Idempotency.LRUSize,
		TransferMode: transferMode,
	}

	g, ctx := errgroup.WithContext(ctx)

	// --- Subscriber, processor and ingestion source ---
	var proc *core.Processor
	switch cfg.Source {
	case "rpc":
		client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return err
		}
		defer client.Close()
		healthChecker.AddCheck("rpc", func(ctx context.Context) error {
			_, err := client.BlockNumber(ctx)
			return err
		})

		decoder, err := chain.NewDecoder()
		if err != nil {
			return err
		}
		watcher := chain.NewWatcher(client, decoder, chain.WatcherConfig{
			StartBlock:    cfg.Chain.StartBlock,
			Confirmations: cfg.Chain.Confirmations,
			PollInterval:  cfg.Chain.PollInterval.Duration,
			BatchSize:     cfg.Chain.BatchSize,
			Cursors:       stores.Cursors,
		}, metrics, observability.NewLogger("watcher"))

		// Static contracts; token and curve addresses are added as they are created.
		if err := watcher.Watch(ctx, common.HexToAddress(cfg.Chain.DatabaseAddress), state.WatchTokenFactory); err != nil {
			return err
		}
		if err := watcher.Watch(ctx, common.HexToAddress(cfg.Chain.FactoryAddress), state.WatchPairs, state.WatchDexTrades); err != nil {
			return err
		}

		if err := resubscribe(ctx, stores, watcher, log); err != nil {
			return err
		}

		proc = core.NewProcessor(stores, watcher, procCfg, metrics, observability.NewLogger("processor"))
		g.Go(func() error { return watcher.Run(ctx, proc) })

	case "nats":
		nc, js, err := ingestion.ConnectNATS(cfg.NATS.URL, log)
		if err != nil {
			return err
		}
		defer nc.Close()
		healthChecker.AddCheck("nats", func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		})

		if err := ingestion.EnsureStreams(ctx, js); err != nil {
			return err
		}

		publisher := ingestion.NewWatchPublisher(js, metrics, observability.NewLogger("watch-publisher"))
		if err := resubscribe(ctx, stores, publisher, log); err != nil {
			return err
		}
		proc = core.NewProcessor(stores, publisher, procCfg, metrics, observability.NewLogger("processor"))

		raw := make(chan ingestion.RawEvent)
		sub := ingestion.NewNATSSubscriber(js, raw, observability.NewLogger("nats"))
		if err := sub.Subscribe(ctx, cfg.NATS.Consumer); err != nil {
			return err
		}
		g.Go(func() error {
			defer sub.Stop()
			return ingestion.Pump(ctx, raw, proc, metrics, observability.NewLogger("pump"))
		})

	default:
		return fmt.Errorf("unknown source %q", cfg.Source)
	}

	// --- Read API, admin ingest and gRPC health ---
	srv, err := server.NewGRPCServer(cfg.Server.GRPCAddr, cfg.Server.HTTPAddr, &server.ServerDeps{
		QueryService:  query.NewQueryService(stores, decimals),
		AdminIngest:   ingestion.NewAdminIngestService(proc),
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Log:           observability.NewLogger("server"),
	})
	if err != nil {
		return err
	}
	g.Go(func() error { return srv.StartGRPC(ctx) })
	g.Go(func() error { return srv.StartHTTPGateway(ctx) })
	g.Go(func() error { return serveMetrics(ctx, cfg.Server.MetricsAddr, reg, log) })

	srv.SetServing(true)
	log.Info().Msg("memeledger ready")

	err = g.Wait()
	srv.SetServing(false)
	return err
}

// resubscribe restores the per-token watches of a previous run.
func resubscribe(ctx context.Context, stores state.Stores, sub state.Subscriber, log zerolog.Logger) error {
	n, err := state.ResubscribeTokens(ctx, stores.Tokens, sub)
	if err != nil {
		return fmt.Errorf("resubscribe tokens: %w", err)
	}
	log.Info().Int("tokens", n).Msg("token watches restored")
	return nil
}

// openStores builds the configured backend and registers its health check.
func openStores(
	ctx context.Context,
	cfg *config.Config,
	hc *observability.HealthChecker,
	log zerolog.Logger,
) (state.Stores, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := persistence.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return state.Stores{}, nil, err
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)

		migrator := persistence.NewMigrator(db, cfg.Store.MigrationsDir, observability.NewLogger("migrate"))
		if err := migrator.Up(ctx); err != nil {
			db.Close()
			return state.Stores{}, nil, fmt.Errorf("run migrations: %w", err)
		}
		hc.AddCheck("postgres", db.PingContext)
		log.Info().Msg("Postgres connected")
		return persistence.NewStores(db), closer(db), nil

	case "redis":
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Prefix:   cfg.Store.RedisPrefix,
		})
		if err != nil {
			return state.Stores{}, nil, err
		}
		hc.AddCheck("redis", c.Ping)
		log.Info().Str("addr", cfg.Store.RedisAddr).Msg("Redis connected")
		return redis.NewStores(c), func() { _ = c.Close() }, nil

	default:
		log.Warn().Msg("using in-memory store; state is lost on restart")
		return memory.NewStores(), func() {}, nil
	}
}

func closer(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
