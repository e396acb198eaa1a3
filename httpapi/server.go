package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chim "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/modelfolio/authcore"
	"github.com/modelfolio/authcore/middleware"
	"go.uber.org/zap"
)

// Server is the HTTP surface over one Engine.
type Server struct {
	engine *authcore.Engine
	logger *zap.Logger
	router chi.Router
}

// publicPaths extends the gate defaults with the two endpoints that must
// run without it: logout always clears the cookie, and me never errors.
var publicPaths = append([]string{
	"/api/auth/logout",
	"/api/auth/me",
}, middleware.DefaultPublicPaths...)

func NewServer(engine *authcore.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: engine,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(chim.RealIP)
	r.Use(chim.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Gate(middleware.Config{
		Engine:      engine,
		PublicPaths: publicPaths,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/send-code", s.handleSendCode)
		r.Post("/verify-code", s.handleVerifyCode)
		r.Post("/logout", s.handleLogout)
		r.Get("/me", s.handleMe)
	})

	r.Route("/api/admin/audit-logs", func(r chi.Router) {
		r.Get("/", s.handleQueryAuditLogs)
		r.Post("/", s.handleAppendAuditLog)
		r.Get("/stats", s.handleAuditStats)
	})

	s.router = r
	return s
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
