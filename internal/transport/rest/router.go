package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/futbolpi/harmonic-realm-sub000/internal/cache"
	"github.com/futbolpi/harmonic-realm-sub000/internal/service"
	"github.com/futbolpi/harmonic-realm-sub000/internal/transport/rest/handler"
	"github.com/futbolpi/harmonic-realm-sub000/internal/transport/rest/middleware"
	"github.com/futbolpi/harmonic-realm-sub000/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService    *service.AuthService
	NodeService    *service.NodeService
	SessionService *service.SessionService
	Leaderboard    cache.LeaderboardCache
	WSHub          *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	nodeHandler := handler.NewNodeHandler(c.NodeService, c.SessionService)
	sessionHandler := handler.NewSessionHandler(c.SessionService, c.Leaderboard)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.SessionService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/auth/join", authHandler.Join).Methods("POST", "OPTIONS")

	// WebSocket route (token in query param)
	v1.HandleFunc("/ws/sessions/{id}", wsHandler.SessionWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Miner routes (require miner auth)
	minerRoutes := v1.NewRoute().Subrouter()
	minerRoutes.Use(authMW.RequireMiner)

	minerRoutes.HandleFunc("/nodes", nodeHandler.List).Methods("GET", "OPTIONS")
	minerRoutes.HandleFunc("/nodes/{id}", nodeHandler.Get).Methods("GET", "OPTIONS")
	minerRoutes.HandleFunc("/nodes/{id}/state", nodeHandler.State).Methods("GET", "OPTIONS")
	minerRoutes.HandleFunc("/nodes/{id}/sessions", sessionHandler.Start).Methods("POST", "OPTIONS")
	minerRoutes.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET", "OPTIONS")
	minerRoutes.HandleFunc("/sessions/{id}/complete", sessionHandler.Complete).Methods("POST", "OPTIONS")
	minerRoutes.HandleFunc("/sessions/{id}/cancel", sessionHandler.Cancel).Methods("POST", "OPTIONS")
	minerRoutes.HandleFunc("/leaderboard", sessionHandler.Leaderboard).Methods("GET", "OPTIONS")

	// Admin routes (require admin auth)
	adminRoutes := v1.NewRoute().Subrouter()
	adminRoutes.Use(authMW.RequireAdmin)

	adminRoutes.HandleFunc("/nodes", nodeHandler.Create).Methods("POST", "OPTIONS")
	adminRoutes.HandleFunc("/nodes/{id}", nodeHandler.SetOpen).Methods("PATCH", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
