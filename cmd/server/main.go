package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/futbolpi/harmonic-realm-sub000/config"
	"github.com/futbolpi/harmonic-realm-sub000/internal/cache"
	"github.com/futbolpi/harmonic-realm-sub000/internal/repository"
	"github.com/futbolpi/harmonic-realm-sub000/internal/service"
	"github.com/futbolpi/harmonic-realm-sub000/internal/transport/rest"
	"github.com/futbolpi/harmonic-realm-sub000/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	cfg := config.Load()
	log.Printf("Geofence radius: %.0fm, sample freshness window: %s", cfg.AllowedDistanceM, cfg.MaxSampleAge)

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	// Ping MongoDB
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDatabase)

	// Redis connection
	redisAddr := cfg.RedisAddr
	if len(redisAddr) > 8 && redisAddr[:8] == "redis://" {
		redisAddr = redisAddr[8:]
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer rdb.Close()

	// Ping Redis
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize repositories
	nodeRepo := repository.NewNodeRepo(db)
	sessionRepo := repository.NewSessionRepo(db)

	// The partial unique index is what enforces one ACTIVE session per
	// (user, node) across devices; refuse to run without it.
	if err := sessionRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create session indexes:", err)
	}

	// Initialize caches
	nodeCache := cache.NewNodeCache(rdb)
	sessionCache := cache.NewSessionCache(rdb)
	occupancyCache := cache.NewOccupancyCache(rdb)
	leaderboard := cache.NewLeaderboardCache(rdb)
	echoCache := cache.NewEchoCache(rdb)

	// Initialize services
	authSvc := service.NewAuthService()
	chamberClient := service.NewChamberClient()
	nodeSvc := service.NewNodeService(nodeRepo, sessionRepo, nodeCache, occupancyCache)
	sessionSvc := service.NewSessionService(
		nodeSvc, sessionRepo, sessionCache, echoCache, leaderboard, occupancyCache,
		chamberClient, cfg.AllowedDistanceM, cfg.MaxSampleAge,
	)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	nodeSvc.SetBroadcaster(wsHub)
	sessionSvc.SetBroadcaster(wsHub)

	// Create router with container
	container := &rest.Container{
		AuthService:    authSvc,
		NodeService:    nodeSvc,
		SessionService: sessionSvc,
		Leaderboard:    leaderboard,
		WSHub:          wsHub,
	}

	router := rest.NewRouter(container)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/login")
		log.Println("  POST /v1/auth/join")
		log.Println("  GET  /v1/nodes")
		log.Println("  GET  /v1/nodes/{id}")
		log.Println("  GET  /v1/nodes/{id}/state")
		log.Println("  POST /v1/nodes/{id}/sessions")
		log.Println("  GET/POST /v1/sessions/{id}[/complete|/cancel]")
		log.Println("  GET  /v1/leaderboard")
		log.Println("  WS   /v1/ws/sessions/{id}")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
