package routes

import (
	"net/http"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/controllers"
	"github.com/ahsanj/local-log-analyzer/internal/middleware"
	"github.com/ahsanj/local-log-analyzer/internal/services"
	"github.com/ahsanj/local-log-analyzer/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

// Deps holds everything the HTTP layer needs
type Deps struct {
	Store       storage.Store
	Files       *services.FileService
	Analyzer    *services.LogAnalyzer
	Queue       *services.AnalysisQueue
	MaxFileSize int64
	CORSOrigins []string
	JWTSecret   string
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(gin.Recovery())

	r.GET("/health", healthHandler(d.Store))
	SetupRoutes(r, d)
	return r
}

// SetupRoutes configures the API routes
func SetupRoutes(r *gin.Engine, d Deps) {
	fileController := controllers.NewFileController(d.Files, d.Analyzer, d.Queue, d.MaxFileSize)
	analysisController := controllers.NewAnalysisController(d.Analyzer)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(d.JWTSecret))
	{
		files := api.Group("/files")
		{
			files.POST("/upload", fileController.UploadLogFile)
			files.POST("/paste", fileController.PasteLogContent)
			files.GET("", fileController.GetLogFiles)
			files.GET("/:id", fileController.GetLogFile)
			files.DELETE("/:id", fileController.DeleteLogFile)
		}

		analysis := api.Group("/analysis")
		{
			analysis.POST("/:id", analysisController.AnalyzeLogFile)
			analysis.GET("/:id", analysisController.GetAnalysis)
			analysis.GET("/:id/patterns", analysisController.GetPatterns)
			analysis.GET("/:id/stats", analysisController.GetStats)
			analysis.GET("/:id/entries", analysisController.GetEntries)
			analysis.GET("/:id/timeline", analysisController.GetTimeline)
			analysis.GET("/:id/context", analysisController.GetChatContext)
		}

		api.GET("/jobs/:jobId", fileController.GetJob)
	}
}

func healthHandler(store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "ok"
		var dbError string
		if err := store.Ping(c.Request.Context()); err != nil {
			dbStatus = "error"
			dbError = err.Error()
		}

		status, code := "ok", http.StatusOK
		if dbStatus != "ok" {
			status, code = "error", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   Version,
			"services": gin.H{
				"database": gin.H{
					"status": dbStatus,
					"error":  dbError,
				},
			},
		})
	}
}
