package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cafepos/internal/api"
	"cafepos/internal/auth"
	"cafepos/internal/config"
	"cafepos/internal/database"
	"cafepos/internal/events"
	"cafepos/internal/logging"
	"cafepos/internal/menu"
	"cafepos/internal/menuimport"
	"cafepos/internal/models"
	"cafepos/internal/monitoring"
	"cafepos/internal/outbox"
	"cafepos/internal/pos"
	"cafepos/internal/realtime"
)

var (
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	seedOutlet  = flag.String("seed", "", "Seed a demo menu, inventory and floor for this outlet and exit")
	mintToken   = flag.String("mint-token", "", "Print a token for user:role:outlet[,outlet] and exit")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Server.MetricsPort = *metricsPort
	}

	logger := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	log := logging.Component(logger, "main")

	if *mintToken != "" {
		token, err := issueToken(cfg, *mintToken)
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		fmt.Println(token)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.Open(database.Options{
		Dialect:      cfg.Database.Dialect,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		LogSQL:       cfg.Database.LogSQL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	store := database.NewStore(db)
	defer store.Close()

	if *seedOutlet != "" {
		settings, err := cfg.DefaultSettings(*seedOutlet)
		if err != nil {
			log.Fatalf("Invalid default settings: %v", err)
		}
		if err := database.Seed(ctx, store, *seedOutlet, settings); err != nil {
			log.Fatalf("Failed to seed outlet %s: %v", *seedOutlet, err)
		}
		log.WithField("outlet_id", *seedOutlet).Info("Seeded demo data")
		return
	}

	// Initialize metrics collector
	metrics := monitoring.NewMetrics()

	tracker := outbox.NewTracker(outbox.Options{
		BatchSize:     cfg.Sync.BatchSize,
		FlushInterval: cfg.Sync.FlushInterval,
	}, metrics, logging.Component(logger, "outbox"))
	tracker.Start(ctx)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logging.Component(logger, "events"))
		log.WithField("topic", cfg.Kafka.Topic).Info("Publishing domain events to Kafka")
	}

	hub := realtime.NewHub(64)
	registry := pos.NewRegistry(pos.Dependencies{
		Repo:     store,
		Menu:     menu.NewCatalog(store, cfg.MenuCacheTTL, logging.Component(logger, "menu")),
		Tracker:  tracker,
		Events:   publisher,
		Hub:      hub,
		Metrics:  metrics,
		Defaults: cfg.DefaultSettings,
		Log:      logging.Component(logger, "pos"),
	})
	restoreOutlets(ctx, store, registry, log)

	importer, err := initializeImporter(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize menu import: %v", err)
	}

	// Initialize API server
	server := api.NewServer(api.Options{
		Registry:  registry,
		Importer:  importer,
		Hub:       hub,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    logger,
	})

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	metricsServer := startMetricsServer(cfg.Server.MetricsPort, metrics, log)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("API server shutdown error: %v", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Metrics server shutdown error: %v", err)
		}
		cancel()
	}()

	log.Infof("Starting API server on port %d", cfg.Server.Port)
	if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("API server error: %v", err)
	}

	// Stop flushes what is still queued before the database closes
	tracker.Stop()
	if n := tracker.Pending(); n > 0 {
		log.Warnf("%d writes were not persisted before shutdown", n)
	}
	if err := publisher.Close(); err != nil {
		log.Errorf("Failed to close event publisher: %v", err)
	}
}

// loadConfig reads the config file, falling back to defaults when it does not exist
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default()
		if secret := os.Getenv("CAFEPOS_JWT_SECRET"); secret != "" {
			cfg.Auth.JWTSecret = secret
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("no config at %s and defaults are incomplete: %w", path, err)
		}
		return cfg, nil
	}
	return config.Load(path)
}

// restoreOutlets brings every known outlet back with its open orders
func restoreOutlets(ctx context.Context, store *database.Store, registry *pos.Registry, log *logrus.Entry) {
	outlets, err := store.ListOutlets(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to list outlets; they will load on first use")
		return
	}
	for _, o := range outlets {
		if _, err := registry.Service(ctx, o.ID); err != nil {
			log.WithError(err).WithField("outlet_id", o.ID).Error("Failed to restore outlet")
		}
	}
}

func initializeImporter(cfg *config.Config, logger *logrus.Logger) (*menuimport.Importer, error) {
	model, err := menuimport.NewModel(menuimport.Options{
		Provider:  cfg.MenuImport.Provider,
		Model:     cfg.MenuImport.Model,
		BaseURL:   cfg.MenuImport.BaseURL,
		APIKeyEnv: cfg.MenuImport.APIKeyEnv,
	})
	if errors.Is(err, menuimport.ErrDisabled) {
		return menuimport.NewImporter(nil, logging.Component(logger, "menuimport")), nil
	}
	if err != nil {
		return nil, err
	}
	return menuimport.NewImporter(model, logging.Component(logger, "menuimport")), nil
}

// issueToken parses user:role:outlet[,outlet] and signs a token for it
func issueToken(cfg *config.Config, arg string) (string, error) {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("expected user:role:outlet, got %q", arg)
	}
	id := models.Identity{
		UserID:  parts[0],
		Name:    parts[0],
		Role:    models.Role(parts[1]),
		Outlets: strings.Split(parts[2], ","),
	}
	return auth.Issue(cfg.Auth.JWTSecret, id, cfg.Auth.TokenTTL)
}

func startMetricsServer(port int, metrics *monitoring.Metrics, log *logrus.Entry) *http.Server {
	metricsRouter := gin.New()
	metricsRouter.Use(gin.Recovery())
	metricsRouter.GET("/metrics", gin.WrapH(metrics.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	go func() {
		log.Infof("Starting metrics server on port %d", port)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server error: %v", err)
		}
	}()
	return metricsServer
}
