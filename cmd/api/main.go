package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dogsitter/internal/api"
	"dogsitter/internal/auth"
	"dogsitter/internal/config"
	"dogsitter/internal/database"
	"dogsitter/internal/domain"
	"dogsitter/internal/events"
	"dogsitter/internal/google"
	"dogsitter/internal/logging"
	"dogsitter/internal/metrics"
	"dogsitter/internal/models"
	"dogsitter/internal/notify"
	"dogsitter/internal/obs"
	"dogsitter/internal/repository"
	"dogsitter/internal/service"
	"dogsitter/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

const (
	defaultConfigPath   = "configs/config.yaml"
	defaultServicesPath = "configs/services.yaml"
	ledgerCacheRefresh  = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(tctx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, logger)
	defer func() { _ = repository.Close(redisClient) }()

	cache := initCache(redisClient, logger)
	bus := events.NewEventBus()

	if amqpConn := initAMQP(cfg, bus, logger); amqpConn != nil {
		defer func() { _ = amqpConn.Close() }()
	}
	syncWorker := initLedger(ctx, cfg, db, redisClient, logger)
	initTelegram(ctx, cfg, db, bus, logger)

	tokens := auth.NewTokenManager(cfg.Auth)
	bookings := service.NewBookingService(db, db, bus, syncWorker, cache, cfg.Booking, cfg.Exports, logger)
	services := api.Services{
		Users:    service.NewUserService(db, db, db, cache, tokens, cfg.Auth, logger),
		Animals:  service.NewAnimalService(db),
		Sitters:  service.NewSitterService(db, db, db, cache, cfg.Booking.RatingCacheTTL, logger),
		Catalog:  service.NewCatalogService(db),
		Bookings: bookings,
		Reviews:  service.NewReviewService(db, bookings, cache, bus, logger),
	}

	if err := seedCatalog(ctx, cfg, services.Catalog, logger); err != nil {
		return err
	}
	if err := bootstrapAdmin(ctx, services.Users, logger); err != nil {
		return err
	}

	backup := database.NewBackupService(db, cfg.Backup, logger)
	go backup.Start(ctx)

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, cfg, db, services, tokens, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initCache(client *redis.Client, logger *zerolog.Logger) domain.CacheRepository {
	memory := repository.NewMemoryCache()
	if client == nil {
		return memory
	}
	return repository.NewFailoverCache(repository.NewRedisCache(client), memory, logger)
}

func initAMQP(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *events.AMQPConnection {
	if !cfg.AMQP.Enabled {
		return nil
	}

	conn, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq unavailable, events stay in-process")
		return nil
	}
	events.NewAMQPForwarder(conn, cfg.AMQP.Exchange, cfg.AMQP.RoutingPrefix, logger).Attach(bus)
	logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("forwarding events to rabbitmq")
	return conn
}

// initLedger starts the Sheets mirror. It returns nil when the ledger is off
// so bookings skip enqueueing sync tasks.
func initLedger(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if !cfg.Google.Enabled {
		return nil
	}

	ledger, err := google.NewBookingLedger(ctx, cfg.Google, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without ledger")
		return nil
	}
	if err := ledger.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without ledger")
		return nil
	}
	go ledger.StartCacheRefresh(ctx, ledgerCacheRefresh)

	ledgerWorker := worker.NewLedgerWorker(db, ledger, redisClient, cfg.Worker, logger)
	go ledgerWorker.Start(ctx)

	logger.Info().Msg("google sheets ledger connected")
	return ledgerWorker
}

func initTelegram(ctx context.Context, cfg *config.Config, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Telegram.Enabled {
		return
	}

	bot, err := notify.NewBotAPI(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, notifications disabled")
		return
	}
	notifier := notify.NewTelegramNotifier(bot, db, cfg.Telegram.QueueSize, logger)
	notifier.Attach(bus)
	go notifier.Run(ctx)

	reminder, err := notify.NewReminder(bot, db, db, cfg.Telegram.ReminderTime, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("booking reminders disabled")
		return
	}
	go reminder.Run(ctx)
}

func seedCatalog(ctx context.Context, cfg *config.Config, catalog *service.CatalogService, logger *zerolog.Logger) error {
	path := cfg.Catalog.SeedFile
	if path == "" {
		path = defaultServicesPath
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("services_path", path).Msg("no catalog seed file")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("services_path", path).Msg("read services")
		return err
	}

	var seed struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("services_path", path).Msg("parse services")
		return err
	}

	n, err := catalog.Seed(ctx, seed.Services)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info().Int("services", n).Msg("catalog seeded")
	return nil
}

// bootstrapAdmin creates the superuser named by ADMIN_EMAIL and
// ADMIN_PASSWORD on first start.
func bootstrapAdmin(ctx context.Context, users *service.UserService, logger *zerolog.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	_, err := users.CreateAdmin(ctx, service.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Admin",
		LastName:  "Admin",
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		logger.Debug().Msg("admin account already exists")
		return nil
	case err != nil:
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	services api.Services,
	tokens *auth.TokenManager,
	logger *zerolog.Logger,
) error {
	var httpServer *api.HTTPServer
	if cfg.API.HTTP.Enabled {
		router := api.NewRouter(api.NewHandler(services, db, logger), tokens, cfg.API.RateLimit)
		httpServer = api.NewHTTPServer(cfg.API.HTTP, router, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		var err error
		grpcServer, err = api.NewGRPCServer(cfg.API, api.NewSitterDirectory(services.Sitters), logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	logger.Info().
		Bool("http", httpServer != nil).
		Bool("grpc", grpcServer != nil).
		Msg("dogsitter API started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
	}

	logger.Info().Msg("dogsitter API stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
