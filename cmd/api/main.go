// main.go - The entry point: configuration, wiring and graceful shutdown.

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bosocmputer/deepseek_ocr_service/configs"
	"github.com/bosocmputer/deepseek_ocr_service/internal/ai"
	"github.com/bosocmputer/deepseek_ocr_service/internal/api"
	"github.com/bosocmputer/deepseek_ocr_service/internal/common"
	"github.com/bosocmputer/deepseek_ocr_service/internal/ratelimit"
	"github.com/bosocmputer/deepseek_ocr_service/internal/storage"
	"github.com/bosocmputer/deepseek_ocr_service/internal/task"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()
	common.SetupLogging(configs.LOG_LEVEL, configs.LOG_FORMAT)

	// Step 0.5: Set production mode
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Step 1: Storage roots for uploads and artifacts
	uploads, err := storage.NewLocalStore(configs.UPLOAD_DIR)
	if err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}
	outputs, err := storage.NewLocalStore(configs.OUTPUT_DIR)
	if err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// Step 1.5: Optional MongoDB task archive
	registry := task.NewRegistry(configs.TaskRetention())
	var archive task.Archiver
	if configs.MONGO_URI != "" {
		taskArchive, err := storage.ConnectTaskArchive(ctx, configs.MONGO_URI, configs.MONGO_DB_NAME)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer taskArchive.Close(context.Background())
		writer := task.NewArchiveWriter(taskArchive)
		defer writer.Close()
		registry.Observe(writer.Observe)
		archive = taskArchive
	} else {
		log.Info("MONGO_URI not set, finished tasks are kept in memory only")
	}
	registry.StartJanitor(ctx, configs.TaskSweepInterval())

	// Step 2: Inference engine
	engine, err := ai.CreateEngine(ctx)
	if err != nil {
		log.Fatalf("Failed to create inference engine: %v", err)
	}
	if closer, ok := engine.(io.Closer); ok {
		defer closer.Close()
	}
	if err := engine.Health(ctx); err != nil {
		log.WithError(err).Warn("⚠️  Inference engine not ready yet, /health will report 503")
	}

	// Step 3: Executor behind the admission limit
	admission := ratelimit.NewAdmission(configs.MAX_CONCURRENT_OCR_TASKS)
	executor := task.NewExecutor(task.Options{
		Registry:        registry,
		Admission:       admission,
		Engine:          engine,
		Uploads:         uploads,
		Outputs:         outputs,
		Archive:         archive,
		OutputURLPrefix: configs.OUTPUT_URL_PREFIX,
		EngineTimeout:   configs.EngineTimeout(),
	})
	log.WithFields(log.Fields{
		"capacity": admission.Capacity(),
		"engine":   engine.Name(),
	}).Info("OCR task admission configured")

	// Step 4: Router and HTTP server
	handler := api.NewHandler(executor, configs.MAX_FILE_SIZE, configs.PDF_DPI)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins:  configs.ALLOWED_ORIGINS,
		OutputDir:       configs.OUTPUT_DIR,
		OutputURLPrefix: configs.OUTPUT_URL_PREFIX,
		MaxFileSize:     configs.MAX_FILE_SIZE,
	})

	srv := &http.Server{
		Addr:              ":" + configs.PORT,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Starting server on :%s", configs.PORT)
		log.Info("API Endpoints:")
		log.Info("  GET  /health")
		log.Info("  POST /api/ocr")
		log.Info("  GET  /api/tasks, /api/tasks/:task_id")
		log.Info("  POST /upload, /binary_ocr, /upload_pdf")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	if err := executor.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Unfinished tasks were canceled")
	}
	stop()

	log.Info("Server exited")
}
