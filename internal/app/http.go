package app

import (
	"github.com/yungbote/neurobridge-player/internal/http"
	httpH "github.com/yungbote/neurobridge-player/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-player/internal/http/middleware"
	"github.com/yungbote/neurobridge-player/internal/observability"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
	"github.com/yungbote/neurobridge-player/internal/realtime"
)

type Middleware struct {
	Session *httpMW.SessionMiddleware
}

type Handlers struct {
	Health *httpH.HealthHandler
	Player *httpH.PlayerHandler
}

func wireHandlers(log *logger.Logger, services Services, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(services.Players.Len),
		Player: httpH.NewPlayerHandler(log, services.Players, sseHub),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Session: httpMW.NewSessionMiddleware(log, cfg.Session.JWTSecret, cfg.Session.CookieName),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(":"+cfg.Port, http.RouterConfig{
		ServiceName:       serviceName,
		Log:               log,
		Metrics:           metrics,
		CORSOrigins:       cfg.CORSOrigins,
		SessionMiddleware: middleware.Session,
		PlayerHandler:     handlers.Player,
		HealthHandler:     handlers.Health,
	})
}
