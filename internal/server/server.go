package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/dukerupert/shoplist/internal/config"
	"github.com/dukerupert/shoplist/internal/middleware"
	"github.com/dukerupert/shoplist/internal/render"
	"github.com/dukerupert/shoplist/internal/session"
	"github.com/dukerupert/shoplist/internal/shopping"
	"github.com/dukerupert/shoplist/internal/store"
	ws "github.com/dukerupert/shoplist/internal/websocket"
)

const pageTitle = "Shopping list"

type Server struct {
	db       *sql.DB
	hub      *ws.Hub
	service  *shopping.Service
	renderer *render.Renderer
	limiter  *middleware.ConnectLimiter
	proxies  middleware.TrustedProxies
	cfg      config.ServerConfig
	logger   *slog.Logger
}

// New wires the stores, the shopping service and the websocket hub together.
// sessions may be nil to disable session recovery.
func New(db *sql.DB, sessions session.Store, cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	renderer, err := render.New()
	if err != nil {
		return nil, err
	}
	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(sessions, logger.With("component", "websocket"))
	service := shopping.NewService(
		store.NewMarketStore(db),
		store.NewCategoryStore(db),
		store.NewItemStore(db),
		renderer,
		hub,
		logger.With("component", "shopping"),
	)

	return &Server{
		db:       db,
		hub:      hub,
		service:  service,
		renderer: renderer,
		limiter:  middleware.NewConnectLimiter(cfg.ConnectLimit, cfg.ConnectWindow),
		proxies:  proxies,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ConnectLimiter returns the websocket connect limiter for cleanup tasks.
func (s *Server) ConnectLimiter() *middleware.ConnectLimiter {
	return s.limiter
}

// Drain waits for open websocket clients to finish the intents they started.
// Call it after the listener is shut down and before the database is closed.
func (s *Server) Drain(ctx context.Context) error {
	return s.hub.Drain(ctx)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(s.logger.With("component", "http")))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", s.indexHandler)
	r.Get("/health", s.healthHandler)
	wsLogger := s.logger.With("component", "websocket")
	r.With(middleware.LimitByIP(s.limiter, s.proxies, s.logger.With("component", "http"))).
		Get("/ws", ws.HandleWebSocket(s.hub, intentRouter{service: s.service, logger: wsLogger}, wsLogger))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))

	return r
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Index(w, render.NewPage(pageTitle)); err != nil {
		s.logger.Error("render index", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check database", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"clients": s.hub.ClientCount(),
	})
}
