// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tadamon/internal/adapter/linkresolve"
	"tadamon/internal/adapter/realtime"
	"tadamon/internal/adapter/storage"
	"tadamon/internal/config"
	"tadamon/internal/server"
	conversationService "tadamon/internal/service/conversation"
	geoService "tadamon/internal/service/geo"
	listingService "tadamon/internal/service/listing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	db, err := initDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	natsConn, err := initNATS(cfg.NATS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer natsConn.Close()

	// Initialize adapters
	sessionStore := storage.NewSessionStore(db)
	listingStore := storage.NewListingStore(db, cfg.Geo.NeighborLimit)
	bus := realtime.NewBus(natsConn)
	links := linkresolve.New(linkresolve.Config{
		Timeout:      cfg.Geo.LinkTimeout,
		MaxRedirects: cfg.Geo.LinkMaxRedirects,
	})

	cities, err := initCities(cfg.Geo.CityFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load cities")
	}

	// Initialize services. Positions come from the viewer's device with each
	// request, so the shared resolver has no positioner of its own.
	resolver := geoService.NewResolver(nil, links, cities)
	trackers := geoService.NewTrackerRegistry()

	feed := listingService.NewFeed(listingStore, listingService.FeedConfig{
		DefaultRadiusKm: cfg.Geo.DefaultRadius,
		MinRadiusKm:     cfg.Geo.MinRadius,
		MaxRadiusKm:     cfg.Geo.MaxRadius,
	})

	manager := conversationService.NewManager(
		sessionStore,
		bus,
		bus,
		conversationService.ManagerConfig{
			DirectTitle:   cfg.Conversation.DirectTitle,
			MaxTextLength: cfg.Conversation.MaxMessageLength,
			CreateTimeout: cfg.Conversation.CreateTimeout,
		},
	)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, server.Dependencies{
		Resolver:   resolver,
		Trackers:   trackers,
		Cities:     cities,
		Feed:       feed,
		Manager:    manager,
		Subscriber: bus,
	})

	// Start HTTP server
	go func() {
		log.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	log.Info().Msg("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Drop realtime subscriptions before the NATS connection closes
	manager.Close()

	log.Info().Msg("Shutdown complete")
}

// setupLogger configures the global zerolog logger
func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("tadamon-api"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}

// Initialize the city registry, with extra cities from file when configured
func initCities(path string) (*geoService.CityRegistry, error) {
	if path == "" {
		return geoService.NewCityRegistry(), nil
	}

	extra, err := geoService.LoadCityFile(path)
	if err != nil {
		return nil, err
	}

	log.Info().Int("count", len(extra)).Str("file", path).Msg("Loaded extra cities")
	return geoService.NewCityRegistry(extra...), nil
}
