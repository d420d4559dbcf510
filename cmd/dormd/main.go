package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"dorm-booking-backend/config"
	"dorm-booking-backend/internal/api"
	"dorm-booking-backend/internal/availability"
	"dorm-booking-backend/internal/booking"
	"dorm-booking-backend/internal/custody"
	"dorm-booking-backend/internal/db"
	"dorm-booking-backend/internal/directory"
	"dorm-booking-backend/internal/notification"
	"dorm-booking-backend/internal/store"
	"dorm-booking-backend/internal/sweep"
)

func main() {
	logger := log.New(os.Stdout, "dorm-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	loc := time.Local
	if cfg.Booking.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Booking.Timezone)
		if err != nil {
			logger.Fatalf("invalid booking timezone %q: %v", cfg.Booking.Timezone, err)
		}
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB, time.Duration(cfg.Database.QueryTimeoutSeconds)*time.Second)
	logger.Println("data store initialized")

	var users directory.Directory
	if cfg.Directory.BaseURL != "" {
		users = directory.NewClient(&cfg.Directory)
	} else {
		logger.Println("no user directory configured; skipping user existence checks")
	}

	availIndex := availability.New(appStore, loc)
	custodyEngine := custody.NewEngine(appStore)
	bookingEngine := booking.NewEngine(appStore, availIndex, custodyEngine, users, &cfg.Booking, loc)

	// Notification worker pool for overdue events
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)

	// Overdue sweeper in the background
	if cfg.Sweeper.Enabled {
		sweeper := sweep.New(appStore, workerPool, cfg.Sweeper.Interval, cfg.Booking.NoShowGrace)
		go sweeper.Run(ctx)
	} else {
		logger.Println("overdue sweeper is disabled")
	}

	// Initialize router
	router := api.NewRouter(&cfg.Server, appStore, bookingEngine, custodyEngine, &webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
