package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/tutorstore/internal/api/handlers"
	"github.com/andresuchdata/tutorstore/internal/api/middleware"
	"github.com/andresuchdata/tutorstore/internal/archive"
	"github.com/andresuchdata/tutorstore/internal/gateway"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Gateway        *gateway.Gateway
	Archive        *archive.Streamer
	Metrics        prometheus.Gatherer
	MaxUploadBytes int64
	DefaultFolder  string
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	// Keys arrive percent-encoded in a single path segment.
	router.UseRawPath = true
	router.UnescapePathValues = true
	if services != nil && services.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = services.MaxUploadBytes
	}

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:5173"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", archive.FailedKeysTrailer},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Backend is running"})
	})

	if services == nil {
		return router
	}

	if services.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(services.Metrics, promhttp.HandlerOpts{})))
	}

	apiGroup := router.Group("/api")

	if services.Gateway != nil {
		uploadHandler := handlers.NewUploadHandler(services.Gateway, services.MaxUploadBytes, services.DefaultFolder)
		uploadGroup := apiGroup.Group("/upload")
		{
			uploadGroup.POST("/presigned-url", uploadHandler.IssueGrant)
			uploadGroup.POST("/file", uploadHandler.UploadFile)
			uploadGroup.DELETE("/*key", uploadHandler.Delete)
			uploadGroup.GET("/url/*key", uploadHandler.CanonicalURL)
		}

		if services.Archive != nil {
			downloadHandler := handlers.NewDownloadHandler(services.Gateway, services.Archive)
			downloadGroup := apiGroup.Group("/download")
			{
				downloadGroup.POST("/folder", downloadHandler.Folder)
				downloadGroup.GET("/*key", downloadHandler.IssueGrant)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
