// handlers.go - HTTP handlers for task submission, polling and synchronous OCR

package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bosocmputer/deepseek_ocr_service/internal/ai"
	"github.com/bosocmputer/deepseek_ocr_service/internal/processor"
	"github.com/bosocmputer/deepseek_ocr_service/internal/task"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Form defaults
const (
	defaultTaskType   = "markdown"
	defaultResolution = ai.DefaultProfileName
	serviceVersion    = "1.0.0"
)

var errFileTooLarge = errors.New("file too large")

// Handler serves the OCR endpoints on top of a task executor.
type Handler struct {
	exec        *task.Executor
	maxFileSize int64
	pdfDPI      int
}

// NewHandler creates the handler set. maxFileSize bounds every upload in bytes.
func NewHandler(exec *task.Executor, maxFileSize int64, pdfDPI int) *Handler {
	return &Handler{exec: exec, maxFileSize: maxFileSize, pdfDPI: pdfDPI}
}

// Health answers 503 until the engine can take calls.
func (h *Handler) Health(c *gin.Context) {
	if err := h.exec.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"engine":  h.exec.EngineName(),
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"engine":  h.exec.EngineName(),
		"version": serviceVersion,
	})
}

// SubmitOCR handles POST /api/ocr. It returns as soon as the task is queued.
func (h *Handler) SubmitOCR(c *gin.Context) {
	// Step 1: Read form fields
	visualize, err := strconv.ParseBool(c.DefaultPostForm("include_visualization", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid include_visualization",
			"details": err.Error(),
		})
		return
	}

	// Step 2: Read the upload
	filename, data, err := h.readUpload(c, "file")
	if err != nil {
		h.uploadError(c, err)
		return
	}

	// Step 3: Queue the task
	t, err := h.exec.Submit(task.Submission{
		Filename:      filename,
		Data:          data,
		Resolution:    c.DefaultPostForm("resolution", defaultResolution),
		TaskType:      c.DefaultPostForm("task_type", defaultTaskType),
		ReferenceText: c.PostForm("reference_text"),
		Visualize:     visualize,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id": t.ID,
		"status":  t.Status,
	})
}

// GetTask handles GET /api/tasks/:task_id.
func (h *Handler) GetTask(c *gin.Context) {
	t, err := h.exec.Status(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// ListTasks handles GET /api/tasks.
func (h *Handler) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.exec.List())
}

// UploadImage handles POST /upload: one image, processed synchronously.
func (h *Handler) UploadImage(c *gin.Context) {
	_, data, err := h.readUpload(c, "file")
	if err != nil {
		h.uploadError(c, err)
		return
	}

	start := time.Now()
	img, err := processor.DecodeImage(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid image",
			"details": err.Error(),
		})
		return
	}

	doc, err := h.exec.RunSync(c.Request.Context(), img,
		c.DefaultPostForm("task_type", defaultTaskType),
		c.DefaultPostForm("resolution", defaultResolution))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, syncResponse(doc, time.Since(start)))
}

// BinaryOCR handles POST /binary_ocr: raw RGB bytes plus width and height.
func (h *Handler) BinaryOCR(c *gin.Context) {
	width, errW := strconv.Atoi(c.PostForm("width"))
	height, errH := strconv.Atoi(c.PostForm("height"))
	if errW != nil || errH != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "width and height are required integers",
		})
		return
	}

	_, data, err := h.readUpload(c, "image_data")
	if err != nil {
		h.uploadError(c, err)
		return
	}

	start := time.Now()
	img, err := processor.ImageFromRGB(data, width, height)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid RGB payload",
			"details": err.Error(),
		})
		return
	}

	doc, err := h.exec.RunSync(c.Request.Context(), img,
		c.DefaultPostForm("task_type", defaultTaskType),
		c.DefaultPostForm("resolution", defaultResolution))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, syncResponse(doc, time.Since(start)))
}

// UploadPDF handles POST /upload_pdf: every page is rendered and processed in order.
func (h *Handler) UploadPDF(c *gin.Context) {
	_, data, err := h.readUpload(c, "file")
	if err != nil {
		h.uploadError(c, err)
		return
	}

	ctx := c.Request.Context()
	pages, err := processor.RenderPDFPages(ctx, data, h.pdfDPI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to render PDF",
			"details": err.Error(),
		})
		return
	}

	taskType := c.DefaultPostForm("task_type", defaultTaskType)
	resolution := c.DefaultPostForm("resolution", defaultResolution)

	results := make([]gin.H, 0, len(pages))
	for i, page := range pages {
		start := time.Now()
		doc, err := h.exec.RunSync(ctx, page, taskType, resolution)
		if err != nil {
			log.WithError(err).WithField("page", i+1).Error("❌ PDF page failed")
			respondError(c, fmt.Errorf("page %d: %w", i+1, err))
			return
		}
		w, ht := page.Bounds().Dx(), page.Bounds().Dy()
		results = append(results, gin.H{
			"page":            i + 1,
			"index":           0,
			"result":          doc.Results,
			"bbox_image":      []int{0, 0, w, ht},
			"processing_time": seconds(time.Since(start)),
			"image_size":      doc.ImageSize,
			"text":            doc.Text,
			"processed_text":  doc.Markdown,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
	})
}

// readUpload returns the named multipart file, enforcing the size limit.
func (h *Handler) readUpload(c *gin.Context, field string) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("missing %s: %w", field, err)
	}
	if h.maxFileSize > 0 && fh.Size > h.maxFileSize {
		return "", nil, fmt.Errorf("%w: %d bytes (max %d)", errFileTooLarge, fh.Size, h.maxFileSize)
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

func (h *Handler) uploadError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errFileTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	c.JSON(status, gin.H{
		"error":   "Invalid upload",
		"details": err.Error(),
	})
}

// respondError maps executor errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Processing failed"
	switch {
	case task.IsValidationError(err):
		status, msg = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, task.ErrNotFound):
		status, msg = http.StatusNotFound, "Task not found"
	case errors.Is(err, ai.ErrEngineUnavailable):
		status, msg = http.StatusServiceUnavailable, "Inference engine unavailable"
	}
	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

func syncResponse(doc *processor.ParsedDocument, elapsed time.Duration) gin.H {
	return gin.H{
		"success":         true,
		"results":         doc.Results,
		"processing_time": seconds(elapsed),
		"image_size":      doc.ImageSize,
		"text":            doc.Text,
		"processed_text":  doc.Markdown,
	}
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1e4) / 1e4
}
