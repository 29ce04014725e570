// router.go - Route table and middleware

package api

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds the transport-level settings.
type RouterConfig struct {
	AllowedOrigins  string
	OutputDir       string
	OutputURLPrefix string
	MaxFileSize     int64
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), corsMiddleware(cfg.AllowedOrigins))
	if cfg.MaxFileSize > 0 {
		router.MaxMultipartMemory = cfg.MaxFileSize
	}

	// Root endpoint for SSL verification
	router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})
	router.GET("/health", h.Health)

	apiGroup := router.Group("/api")
	apiGroup.POST("/ocr", h.SubmitOCR)
	apiGroup.GET("/tasks", h.ListTasks)
	apiGroup.GET("/tasks/:task_id", h.GetTask)

	router.POST("/upload", h.UploadImage)
	router.POST("/binary_ocr", h.BinaryOCR)
	router.POST("/upload_pdf", h.UploadPDF)

	// Artifacts are served locally unless the prefix points at another host.
	prefix := strings.TrimRight(cfg.OutputURLPrefix, "/")
	if cfg.OutputDir != "" && strings.HasPrefix(prefix, "/") {
		router.Static(prefix, cfg.OutputDir)
	}
	return router
}

func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
