package rest

import (
	"log/slog"
	"net/http"

	_ "voiceswap/docs"
	"voiceswap/internal/service"
	"voiceswap/internal/transport/rest/handler"
	"voiceswap/internal/transport/rest/middleware"
	"voiceswap/internal/transport/ws"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/swaggo/swag"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService *service.AuthService
	Coordinator *service.Coordinator
	WSHub       *ws.Hub
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	sessionHandler := handler.NewSessionHandler(c.Coordinator)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.Coordinator)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	r.Use(middleware.RequestLogger(c.Logger))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/guest", authHandler.Guest).Methods("POST")
	v1.HandleFunc("/docs/doc.json", serveDoc).Methods("GET")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/sessions/{id}", wsHandler.SessionWS).Methods("GET")

	// Participant routes (require a bearer token)
	user := v1.NewRoute().Subrouter()
	user.Use(authMW.RequireUser)

	user.HandleFunc("/codes", sessionHandler.NewCode).Methods("GET")
	user.HandleFunc("/sessions", sessionHandler.Create).Methods("POST")
	user.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET")
	user.HandleFunc("/sessions/{id}/join", sessionHandler.Join).Methods("POST")
	user.HandleFunc("/sessions/{id}/roles", sessionHandler.AssignRoles).Methods("POST")
	user.HandleFunc("/sessions/{id}/persona/activate", sessionHandler.Activate).Methods("POST")
	user.HandleFunc("/sessions/{id}/persona/deactivate", sessionHandler.Deactivate).Methods("POST")
	user.HandleFunc("/sessions/{id}/guess", sessionHandler.Guess).Methods("POST")
	user.HandleFunc("/sessions/{id}/end", sessionHandler.End).Methods("POST")
	user.HandleFunc("/sessions/{id}/intro", sessionHandler.Intro).Methods("POST")
	user.HandleFunc("/sessions/{id}/expire", sessionHandler.Expire).Methods("POST")
	user.HandleFunc("/sessions/{id}/events", sessionHandler.Events).Methods("GET")

	origins := c.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(r)
}

func serveDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		http.Error(w, "docs unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}
