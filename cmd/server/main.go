package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"carpool/internal/app"
	"carpool/internal/cache"
	"carpool/internal/config"
	"carpool/internal/handler"
	"carpool/internal/realtime"
	internalRedis "carpool/internal/redis"
	"carpool/internal/repository/postgres"
	"carpool/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so the database and Redis clients can be
	// instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	server, cleanup, err := wireServer(runCtx, db, redisClient, nrApp, cfg)
	if err != nil {
		log.Fatalf("failed to start ride sync: %v", err)
	}
	defer cleanup()

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies, starts the sync engine, and returns
// the HTTP server along with a cleanup func releasing the broadcast
// connection and pending publish timers.
func wireServer(ctx context.Context, db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, func(), error) {
	// Persistence gateway repositories.
	userRepo := postgres.NewUserRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	memberRepo := postgres.NewMembershipRepository(db)

	// Broadcast bus and the explicit realtime connection for this process.
	bus := internalRedis.NewBus(redisClient)
	identity := cfg.Broadcast.Identity
	if identity == "" {
		identity, _ = os.Hostname()
	}
	rt := realtime.Open(identity, cfg.Broadcast.Topic, bus)

	// Local cache and the sync engine around it.
	store := cache.NewStore()
	reconciler := service.NewReconciler(rideRepo, memberRepo, store)
	publisher := service.NewPublisher(rt, nil)
	matching := service.NewMatchingService(store)
	lockStore := internalRedis.NewLockStore(redisClient)

	rideService := service.NewRideService(rideRepo, memberRepo, store, reconciler, publisher, matching, lockStore)
	if err := rideService.Start(ctx, rt); err != nil {
		rt.Close()
		_ = bus.Close()
		return nil, nil, err
	}

	// Handlers and router.
	userHandler := handler.NewUserHandler(userRepo)
	rideHandler := handler.NewRideHandler(rideService)

	router := app.NewRouter(app.RouterDeps{
		UserHandler: userHandler,
		RideHandler: rideHandler,
		RedisClient: redisClient,
		NewRelicApp: nrApp,
	})

	cleanup := func() {
		rideService.Close()
		rt.Close()
		_ = bus.Close()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server, cleanup, nil
}
