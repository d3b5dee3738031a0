package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-player/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-player/internal/http/middleware"
	"github.com/yungbote/neurobridge-player/internal/observability"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

type RouterConfig struct {
	ServiceName string
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string

	SessionMiddleware *httpMW.SessionMiddleware
	PlayerHandler     *httpH.PlayerHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	protected := r.Group("/api")
	{
		if cfg.SessionMiddleware != nil {
			protected.Use(cfg.SessionMiddleware.RequireSession())
		}

		// Player sessions
		if cfg.PlayerHandler != nil {
			ph := cfg.PlayerHandler
			protected.POST("/player/sessions", ph.Mount)
			protected.GET("/player/sessions/:id", ph.GetState)
			protected.DELETE("/player/sessions/:id", ph.Unmount)
			protected.POST("/player/sessions/:id/select", ph.Select)
			protected.POST("/player/sessions/:id/next", ph.Next)
			protected.POST("/player/sessions/:id/prev", ph.Prev)
			protected.POST("/player/sessions/:id/done", ph.ToggleDone)
			protected.POST("/player/sessions/:id/exam", ph.StartExam)
			protected.POST("/player/sessions/:id/exam/result", ph.RecordExamResult)
			protected.GET("/player/sessions/:id/events", ph.Events)
		}
	}

	return r
}
