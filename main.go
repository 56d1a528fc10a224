package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/kimtee92/PropMan/approval"
	"github.com/kimtee92/PropMan/audit"
	"github.com/kimtee92/PropMan/blob"
	"github.com/kimtee92/PropMan/config"
	"github.com/kimtee92/PropMan/database"
	"github.com/kimtee92/PropMan/handlers"
	"github.com/kimtee92/PropMan/middleware"
	"github.com/kimtee92/PropMan/ratelimit"
	"github.com/kimtee92/PropMan/reconcile"
	"github.com/kimtee92/PropMan/routes"
	"github.com/kimtee92/PropMan/store"
	"github.com/kimtee92/PropMan/websocket"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it")
	}

	config.LoadConfig()

	// Database connection
	if err := database.Connect(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}

	st := store.NewMongo(database.DB())
	blobs := blob.NewClient(config.BlobAPIURL, config.BlobSecret)

	hub := websocket.NewHub()
	go hub.Run()

	recorder := audit.NewRecorder(st.Audits(), hub)
	engine := approval.NewEngine(st, blobs, recorder)
	handlers.Init(st, blobs, engine, recorder, hub)

	var counters ratelimit.Store
	if config.RedisAddr != "" {
		counters = ratelimit.NewRedisStore(config.RedisAddr)
	} else {
		counters = ratelimit.NewMemory()
	}
	limiter := ratelimit.NewLimiter(counters, int64(config.RateLimit), config.RateWindow)

	scanner := reconcile.NewScanner(st, recorder)
	if err := scanner.Start(config.ReconcileSchedule); err != nil {
		log.Fatalf("Failed to start reconcile scanner: %v", err)
	}

	// Router setup
	router := mux.NewRouter()
	routes.RegisterRoutes(router, st, limiter)

	// Global middlewares (order matters!)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.CorsMiddleware)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("PropMan API running on http://localhost:%s", config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scanner.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	database.Disconnect()
	log.Println("Server stopped gracefully")
}
