package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/studshare-be/internal/api/handlers"
	"github.com/isdelr/studshare-be/internal/auth"
	"github.com/isdelr/studshare-be/internal/metrics"
	"github.com/isdelr/studshare-be/internal/services"
	"github.com/isdelr/studshare-be/internal/websocket"
)

// Dependencies are the services the router wires into its handlers.
type Dependencies struct {
	DB               *sql.DB
	Hub              *websocket.Hub
	UserService      services.UserServiceProvider
	ListingService   services.ListingServiceProvider
	FavoriteService  services.FavoriteServiceProvider
	TokenService     services.TokenServiceProvider
	Tokens           *auth.TokenManager
	Metrics          *metrics.Manager // Optional
	AllowedOrigins   []string
	ProductionCookie bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteErrorMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Initialize handlers
	userHandler := handlers.NewUserHandler(deps.UserService, deps.TokenService, deps.Tokens, deps.ProductionCookie, deps.Metrics)
	listingHandler := handlers.NewListingHandler(deps.ListingService, deps.Metrics)
	favoriteHandler := handlers.NewFavoriteHandler(deps.FavoriteService, deps.Metrics)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	requireAuth := auth.RequireAuth(deps.Tokens)

	r.Get("/", healthHandler.Index)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		if deps.Hub != nil {
			wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigins)
			r.Get("/ws", wsHandler.Serve)
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)
			r.Post("/logout", userHandler.Logout)
			r.With(requireAuth).Get("/me", userHandler.GetMe)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", listingHandler.GetAll)
			r.Get("/filter", listingHandler.Filter)
			r.Get("/{id}", listingHandler.Get)

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/mine", listingHandler.Mine)
				r.Post("/", listingHandler.Create)
				r.Put("/{id}", listingHandler.Update)
				r.Delete("/{id}", listingHandler.Delete)
			})
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", favoriteHandler.GetAll)
			r.Post("/{listingId}", favoriteHandler.Add)
			r.Delete("/{listingId}", favoriteHandler.Remove)
		})
	})

	return r
}
