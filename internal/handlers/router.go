package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"videoserver/internal/config"
	"videoserver/internal/middleware"
	"videoserver/internal/service"
)

// NewRouter wires all routes. Health and metrics stay outside auth.
func NewRouter(svc *service.Service, cfg *config.Config, log *logrus.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	r.GET("/health", HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	projects := NewProjectsHandler(svc, log)
	thumbnails := NewThumbnailsHandler(svc, log)
	raw := NewRawHandler(svc, log)

	api := r.Group("/projects", middleware.Auth(cfg.JWTSecret))
	{
		api.POST("", projects.Upload)
		api.GET("", projects.List)
		api.GET("/:id", projects.Get)
		api.PUT("/:id", projects.Edit)
		api.DELETE("/:id", projects.Delete)
		api.POST("/:id/duplicates", projects.Duplicate)

		api.GET("/:id/thumbnails", thumbnails.Request)
		api.POST("/:id/thumbnails", thumbnails.UploadPreview)

		api.GET("/:id/raw", raw.Video)
		api.GET("/:id/raw/preview", raw.Preview)
		api.GET("/:id/raw/timeline/:index", raw.Timeline)
	}

	return r
}
