package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"homeserve/internal/api"
	"homeserve/internal/config"
	"homeserve/internal/database"
	"homeserve/internal/events"
	"homeserve/internal/logging"
	"homeserve/internal/metrics"
	"homeserve/internal/models"
	"homeserve/internal/notify"
	"homeserve/internal/repository"
	"homeserve/internal/service"
	"homeserve/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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
		defer func() { _ = closer.Close() }()
	}

	services, err := loadServices(cfg, &logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, services, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	stateRepo := initStateRepository(redisClient, &logger)

	dispatcher := notify.NewDispatcher(&logger)
	if cfg.Telegram.BotToken != "" {
		sender, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram sender init failed, continuing without telegram")
		} else {
			dispatcher.Register(models.ChannelTelegram, sender)
		}
	}

	retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	notifyWorker := worker.NewNotifyWorker(db, dispatcher, redisClient, retryPolicy, log.Default())
	go notifyWorker.Start(ctx)

	eventBus := events.NewEventBus()

	otpPolicy := service.OtpPolicy{
		Length:        cfg.Booking.OtpLength,
		TTL:           time.Duration(cfg.Booking.OtpTTLMinutes) * time.Minute,
		MaxAttempts:   cfg.Booking.OtpMaxAttempts,
		RequestLimit:  cfg.Booking.OtpRequestLimit,
		RequestWindow: time.Duration(cfg.Booking.OtpRequestWindow) * time.Second,
	}

	lifecycle := service.NewLifecycle(db, stateRepo, notifyWorker, eventBus, otpPolicy, &logger)
	bookingService := service.NewBookingService(db, eventBus, cfg.Booking.TaxRate, cfg.Booking.MaxScheduleDays, &logger)

	httpServer := api.NewHTTPServer(cfg.API, bookingService, lifecycle, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadServices reads the catalog; config-embedded services win over the
// standalone services.yaml so a single file deployment stays possible.
func loadServices(cfg *config.Config, logger *zerolog.Logger) ([]models.Service, error) {
	if len(cfg.Services) > 0 {
		return cfg.Services, nil
	}

	servicesPath := os.Getenv("SERVICES_PATH")
	if servicesPath == "" {
		servicesPath = "configs/services.yaml"
	}
	data, err := os.ReadFile(servicesPath)
	if err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("read services catalog")
		return nil, err
	}

	var catalog struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("parse services catalog")
		return nil, err
	}

	if err := config.ValidateServices(catalog.Services); err != nil {
		logger.Error().Err(err).Msg("services validation failed")
		return nil, err
	}

	return catalog.Services, nil
}

func initDatabase(cfg *config.Config, services []models.Service, logger *zerolog.Logger) (*database.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SyncServices(context.Background(), services); err != nil {
		logger.Error().Err(err).Msg("sync services catalog")
	}
	db.SetServices(services)
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initStateRepository(redisClient *redis.Client, logger *zerolog.Logger) *repository.FailoverStateRepository {
	ttl := time.Duration(models.DefaultContactCacheTTL) * time.Second
	primaryRepo := repository.NewRedisStateRepository(redisClient, ttl)
	fallbackRepo := repository.NewMemoryStateRepository(ttl)
	return repository.NewFailoverStateRepository(primaryRepo, fallbackRepo, logger)
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

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("booking API started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("booking API stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
