package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zhouzirui/z-companion/backend/internal/handler/health"
	"github.com/zhouzirui/z-companion/backend/internal/handler/persona"
	"github.com/zhouzirui/z-companion/backend/internal/handler/realtime"
	"github.com/zhouzirui/z-companion/backend/internal/handler/user"
	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/middleware"
	personaModel "github.com/zhouzirui/z-companion/backend/internal/model/persona"
	userService "github.com/zhouzirui/z-companion/backend/internal/service/user"
	"github.com/zhouzirui/z-companion/backend/internal/session"
)

// Dependencies 汇总路由层需要的服务实例。
type Dependencies struct {
	Personas       personaModel.Store
	Users          *userService.Service
	Sessions       *session.Manager
	Processor      realtime.Processor
	AIEnabled      bool
	AllowedOrigins []string
	Log            *logger.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health.New(deps.AIEnabled).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas).RegisterRoutes(api)
		user.New(deps.Users, deps.Sessions, log).RegisterRoutes(api)
	})

	realtime.NewWebSocketHandler(deps.Processor, deps.Sessions, log).RegisterRoutes(r)

	return r
}
