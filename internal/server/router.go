package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sat-prep/backend/internal/auth"
	"github.com/sat-prep/backend/internal/cache"
	"github.com/sat-prep/backend/internal/config"
	"github.com/sat-prep/backend/internal/middleware"
	"github.com/sat-prep/backend/internal/questions"
)

// NewRouter wires handlers, middleware and CORS into one http.Handler.
func NewRouter(cfg *config.Config, db *sql.DB, filterCache cache.Cache) http.Handler {
	tokens := middleware.NewAuth(cfg.JWTSecret)

	authHandler := auth.NewHandler(db, tokens)
	questionService := questions.NewService(questions.NewStore(db), filterCache, cfg.FiltersCacheTTL)
	questionHandler := questions.NewHandler(questionService)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Anonymous-friendly routes: identity is attached when a token is present
	public := api.PathPrefix("").Subrouter()
	public.Use(tokens.OptionalAuth)
	questionHandler.RegisterPublicRoutes(public)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(tokens.RequireAuth)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")
	questionHandler.RegisterProtectedRoutes(protected)

	// Health check
	r.HandleFunc("/health", healthHandler(db)).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(ctx); err != nil {
			log.Printf("[server] health check failed: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
