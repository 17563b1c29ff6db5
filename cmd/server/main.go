package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/order-alerts/internal/api"
	"github.com/notifyhub/order-alerts/internal/config"
	"github.com/notifyhub/order-alerts/internal/connectivity"
	"github.com/notifyhub/order-alerts/internal/credential"
	"github.com/notifyhub/order-alerts/internal/db"
	"github.com/notifyhub/order-alerts/internal/metrics"
	"github.com/notifyhub/order-alerts/internal/notifier"
	"github.com/notifyhub/order-alerts/internal/poller"
	"github.com/notifyhub/order-alerts/internal/queue"
	"github.com/notifyhub/order-alerts/internal/ratelimiter"
	"github.com/notifyhub/order-alerts/internal/repository"
	"github.com/notifyhub/order-alerts/internal/service"
	"github.com/notifyhub/order-alerts/internal/sink"
	"github.com/notifyhub/order-alerts/internal/stream"
	"github.com/notifyhub/order-alerts/internal/worker"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	logger := newLogger(os.Getenv("LOG_LEVEL"))
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	// ---- alert store ----
	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open alert store", zap.Error(err))
	}
	defer closeStore()

	// ---- cookie source ----
	cookies, setCookie, jar, err := openCookieSource(cfg)
	if err != nil {
		logger.Fatal("failed to open cookie source", zap.Error(err))
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New(cfg.DispatchQueueSize)
	limiter := ratelimiter.New(cfg.BackendRate)

	sinks, closeSinks, err := buildSinks(cfg, repo, logger)
	if err != nil {
		logger.Fatal("failed to build sinks", zap.Error(err))
	}
	defer closeSinks()

	var gate connectivity.Gate = connectivity.Always{}
	if cfg.ConnectivityCheck {
		probe, err := connectivity.NewProbe(cfg.BackendBaseURL, cfg.ConnectivityTimeout, cfg.ConnectivityTTL)
		if err != nil {
			logger.Fatal("failed to build connectivity probe", zap.Error(err))
		}
		gate = probe
		logger.Info("connectivity probe enabled", zap.String("addr", probe.Addr()))
	}

	n := notifier.New(q, notifier.Options{
		Cooldown:  cfg.Cooldown,
		TargetURL: cfg.AlertTargetURL,
	}, logger.With(zap.String("component", "notifier")), m.NotifierHooks())

	// The poll client may time out; the stream client must not.
	pollClient := &http.Client{Timeout: cfg.RequestTimeout, Jar: jar}
	streamClient := &http.Client{Jar: jar}

	p := poller.New(poller.Options{
		Endpoint: cfg.PollURL(),
		Interval: cfg.PollInterval,
		Gate:     gate,
		Limiter:  limiter,
	}, pollClient, cookies, n, logger.With(zap.String("component", "poller")), m.PollerHooks())

	l := stream.New(stream.Options{
		Endpoint: cfg.StreamURL(),
		Reconnect: stream.ReconnectPolicy{
			Enabled: cfg.SSEReconnect,
			Min:     cfg.SSEReconnectMin,
			Max:     cfg.SSEReconnectMax,
		},
		Gate:    gate,
		Limiter: limiter,
	}, streamClient, cookies, n, logger.With(zap.String("component", "stream")), m.StreamHooks())

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	pool := worker.NewPool(cfg, q, sinks, logger.With(zap.String("component", "dispatch")), m.WorkerHooks())
	pool.Start(workerCtx)

	sampler := worker.NewSampler(5*time.Second, logger,
		worker.Gauge{Read: func() float64 { return float64(q.Depth()) }, Set: m.QueueDepth.Set},
		worker.Gauge{Read: func() float64 { return float64(p.InFlight()) }, Set: m.PollsInFlight.Set},
	)
	go sampler.Run(workerCtx)

	// Channels run on their own context so they stop before the sinks do.
	channelCtx, cancelChannels := context.WithCancel(ctx)
	defer cancelChannels()

	go func() {
		select {
		case <-channelCtx.Done():
			return
		case <-time.After(cfg.StartDelay):
		}
		p.Start(channelCtx)
		l.Connect(channelCtx, "")
	}()

	// ---- HTTP server ----
	svc := service.NewControlService(channelCtx, p, l, n.LastFired, q.Depth, repo, cookies, setCookie,
		logger.With(zap.String("component", "control")))
	router := api.NewRouter(svc, reg, time.Now(), logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("admin server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting admin requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop both alert channels; late responses are discarded.
	p.Stop()
	l.Close()
	cancelChannels()
	p.Wait()
	l.Wait()

	// 3. Stop the dispatch workers; an alert already dequeued still plays
	// out, bounded by worker.DeliverTimeout.
	cancelWorkers()
	pool.Wait()

	logger.Info("stopped cleanly")
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if strings.EqualFold(level, "debug") {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		if lvl, perr := zap.ParseAtomicLevel(strings.ToLower(level)); perr == nil && level != "" {
			cfg.Level = lvl
		}
		logger, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openStore returns a nil repository when no store is configured.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.AlertRepository, func(), error) {
	switch cfg.AlertStore {
	case config.StorePostgres:
		pgPool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			pgPool.Close()
			return nil, nil, err
		}
		logger.Info("postgres alert store ready")
		return repository.NewPgAlertRepository(pgPool), pgPool.Close, nil

	case config.StoreSQLite:
		r, err := repository.NewSQLiteAlertRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite alert store ready", zap.String("path", cfg.SQLitePath))
		return r, func() { _ = r.Close() }, nil

	default:
		return nil, func() {}, nil
	}
}

// openCookieSource returns the source, a setter for the admin API (nil
// when the source is read-only) and the jar to attach to HTTP clients
// (nil unless COOKIE_SOURCE=jar).
func openCookieSource(cfg *config.Config) (credential.Source, func(string) error, http.CookieJar, error) {
	switch cfg.CookieSource {
	case config.CookieFile:
		return credential.NewFileSource(cfg.CookieFile), nil, nil, nil

	case config.CookieJar:
		jar, err := credential.NewJar()
		if err != nil {
			return nil, nil, nil, err
		}
		src, err := credential.NewJarSource(jar, cfg.CookieURL())
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.DriverCookie != "" {
			src.SetCookie(cfg.DriverCookie)
		}
		set := func(c string) error {
			src.SetCookie(c)
			return nil
		}
		return src, set, jar, nil

	case config.CookieKeyring:
		src, err := credential.OpenKeyring(cfg.KeyringDir)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.DriverCookie != "" {
			if err := src.SetCookie(cfg.DriverCookie); err != nil {
				return nil, nil, nil, err
			}
		}
		return src, src.SetCookie, nil, nil

	default:
		src := credential.NewStaticSource(cfg.DriverCookie)
		set := func(c string) error {
			src.SetCookie(c)
			return nil
		}
		return src, set, nil, nil
	}
}

func buildSinks(cfg *config.Config, repo repository.AlertRepository, logger *zap.Logger) (sink.Sink, func(), error) {
	var (
		members sink.Multi
		closers []io.Closer
	)
	for _, name := range cfg.Sinks {
		switch name {
		case "log":
			members = append(members, sink.NewLogSink(logger))
		case "terminal":
			members = append(members, sink.NewTerminalSink(os.Stdout))
		case "webhook":
			members = append(members, sink.NewWebhookSink(cfg.WebhookURL, cfg.WebhookTimeout))
		case "kafka":
			ks := sink.NewKafkaSink(sink.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
			members = append(members, ks)
			closers = append(closers, ks)
		case "store":
			if repo == nil {
				return nil, nil, errors.New("store sink needs an alert store")
			}
			members = append(members, sink.NewStoreSink(repo))
		}
	}
	logger.Info("sinks configured", zap.Strings("sinks", cfg.Sinks))

	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("closing sink", zap.Error(err))
			}
		}
	}
	return members, closeAll, nil
}
