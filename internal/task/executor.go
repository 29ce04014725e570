// executor.go - Runs submitted tasks through inference and parsing under the admission limit

package task

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bosocmputer/deepseek_ocr_service/internal/ai"
	"github.com/bosocmputer/deepseek_ocr_service/internal/common"
	"github.com/bosocmputer/deepseek_ocr_service/internal/processor"
	"github.com/bosocmputer/deepseek_ocr_service/internal/ratelimit"
	"github.com/bosocmputer/deepseek_ocr_service/internal/storage"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Options wires an Executor. Archive may be nil.
type Options struct {
	Registry  *Registry
	Admission *ratelimit.Admission
	Engine    ai.Engine
	Uploads   storage.Store
	Outputs   storage.Store
	Archive   Archiver

	// OutputURLPrefix is prepended to artifact paths in results.
	OutputURLPrefix string
	// EngineTimeout bounds one inference call; zero means no bound.
	EngineTimeout time.Duration
}

// Executor owns the background goroutines that process tasks.
type Executor struct {
	registry      *Registry
	admission     *ratelimit.Admission
	engine        ai.Engine
	uploads       storage.Store
	outputs       storage.Store
	archive       Archiver
	urlPrefix     string
	engineTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExecutor creates an executor. Its tasks are canceled by Shutdown.
func NewExecutor(opts Options) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		registry:      opts.Registry,
		admission:     opts.Admission,
		engine:        opts.Engine,
		uploads:       opts.Uploads,
		outputs:       opts.Outputs,
		archive:       opts.Archive,
		urlPrefix:     strings.TrimRight(opts.OutputURLPrefix, "/"),
		engineTimeout: opts.EngineTimeout,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Submission is one asynchronous OCR request.
type Submission struct {
	Filename      string
	Data          []byte
	Resolution    string
	TaskType      string
	ReferenceText string
	Visualize     bool
}

// Submit validates the request, stores the upload and registers a pending task.
// Processing starts in the background; Submit never waits for a permit.
func (e *Executor) Submit(sub Submission) (Task, error) {
	if !processor.IsAllowedExtension(sub.Filename) {
		return Task{}, &ValidationError{
			Field:  "file",
			Value:  sub.Filename,
			Reason: "supported formats: " + strings.Join(processor.AllowedExtensions, ", "),
		}
	}
	profile, taskType, err := resolve(sub.Resolution, sub.TaskType, sub.ReferenceText)
	if err != nil {
		return Task{}, err
	}

	id := uuid.NewString()
	uploadPath := id + strings.ToLower(filepath.Ext(sub.Filename))
	if err := e.uploads.Save(uploadPath, sub.Data); err != nil {
		return Task{}, fmt.Errorf("failed to save upload: %w", err)
	}

	t, err := e.registry.Create(id, Params{
		Filename:      sub.Filename,
		ImagePath:     uploadPath,
		Resolution:    profile.Name,
		TaskType:      taskType.String(),
		ReferenceText: taskType.ReferenceText,
		Visualize:     sub.Visualize,
	})
	if err != nil {
		return Task{}, err
	}

	log.WithFields(log.Fields{
		"task_id":    id,
		"resolution": profile.Name,
		"task_type":  taskType.Kind,
		"waiting":    e.admission.Waiting(),
	}).Info("📥 Task queued")

	e.wg.Add(1)
	go e.run(t, profile, taskType)
	return t, nil
}

// Status returns the task from the registry, falling back to the archive for
// tasks that were already evicted.
func (e *Executor) Status(ctx context.Context, id string) (Task, error) {
	t, err := e.registry.Get(id)
	if err == nil || !errors.Is(err, ErrNotFound) || e.archive == nil {
		return t, err
	}

	var archived Task
	if aerr := e.archive.Find(ctx, id, &archived); aerr != nil {
		if errors.Is(aerr, storage.ErrNotFound) {
			return Task{}, err
		}
		return Task{}, aerr
	}
	return archived, nil
}

// List returns all tasks still in the registry, in submission order.
func (e *Executor) List() []Task {
	return e.registry.List()
}

// RunSync runs one image straight through inference and parsing, bypassing the
// registry and the admission limit. No artifacts are written.
func (e *Executor) RunSync(ctx context.Context, img image.Image, taskType, resolution string) (*processor.ParsedDocument, error) {
	if img == nil {
		return nil, &ValidationError{Field: "image", Reason: "no image data"}
	}
	profile, tt, err := resolve(resolution, taskType, "")
	if err != nil {
		return nil, err
	}
	return e.recognize(ctx, img, profile, tt)
}

// Ready reports whether the engine can take calls.
func (e *Executor) Ready(ctx context.Context) error {
	return e.engine.Health(ctx)
}

// EngineName returns the name of the configured engine.
func (e *Executor) EngineName() string {
	return e.engine.Name()
}

// Wait blocks until every submitted task has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Shutdown waits for running tasks until ctx is done, then cancels whatever is
// left. Canceled tasks end as failed.
func (e *Executor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	}
}

func resolve(resolution, taskType, referenceText string) (ai.ResolutionProfile, ai.TaskType, error) {
	if resolution == "" {
		resolution = ai.DefaultProfileName
	}
	profile, ok := ai.LookupProfile(resolution)
	if !ok {
		return ai.ResolutionProfile{}, ai.TaskType{}, &ValidationError{
			Field:  "resolution",
			Value:  resolution,
			Reason: "supported: " + strings.Join(ai.ProfileNames(), ", "),
		}
	}

	if taskType == "" {
		taskType = string(ai.KindMarkdown)
	}
	tt, err := ai.ParseTaskType(taskType, referenceText)
	if err != nil {
		return ai.ResolutionProfile{}, ai.TaskType{}, &ValidationError{
			Field:  "task_type",
			Value:  taskType,
			Reason: err.Error(),
		}
	}
	return profile, tt, nil
}

func (e *Executor) run(t Task, profile ai.ResolutionProfile, taskType ai.TaskType) {
	defer e.wg.Done()
	tc := common.NewTaskContext(t.ID)

	tc.StartStep("admission")
	if err := e.admission.Acquire(e.ctx); err != nil {
		tc.EndStep("failed", err)
		e.finish(tc, nil, fmt.Errorf("task canceled before start: %w", err))
		return
	}
	defer e.admission.Release()
	tc.EndStep("success", nil)

	if _, err := e.registry.MarkProcessing(t.ID); err != nil {
		tc.LogError("Cannot start task: %v", err)
		return
	}
	tc.Logger().WithFields(log.Fields{
		"in_flight": e.admission.InFlight(),
		"capacity":  e.admission.Capacity(),
		"waiting":   e.admission.Waiting(),
	}).Info("🚀 Processing task")

	result, err := e.process(tc, t, profile, taskType)
	e.finish(tc, result, err)
}

func (e *Executor) finish(tc *common.TaskContext, result *Result, err error) {
	if err != nil {
		if _, ferr := e.registry.Fail(tc.TaskID, err.Error()); ferr != nil {
			tc.LogError("Cannot record failure: %v", ferr)
		}
		tc.Logger().WithFields(tc.Summary()).WithError(err).Error("❌ Task failed")
		return
	}
	if _, cerr := e.registry.Complete(tc.TaskID, result); cerr != nil {
		tc.LogError("Cannot record result: %v", cerr)
		return
	}
	tc.Logger().WithFields(tc.Summary()).Info("✅ Task completed")
}

// process runs every step after admission. Panics end the task, never the process.
func (e *Executor) process(tc *common.TaskContext, t Task, profile ai.ResolutionProfile, taskType ai.TaskType) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			tc.EndStep("failed", fmt.Errorf("panic: %v", r))
			tc.Logger().WithField("stack", string(debug.Stack())).Error("❌ Recovered panic in task")
			result, err = nil, fmt.Errorf("internal error while processing: %v", r)
		}
	}()

	// Step 1: load upload
	tc.StartStep("load_image")
	data, err := e.uploads.Load(t.Params.ImagePath)
	if err != nil {
		tc.EndStep("failed", err)
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	img, err := processor.DecodeImage(data)
	if err != nil {
		tc.EndStep("failed", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	tc.EndStep("success", nil)
	tc.Logger().WithFields(log.Fields{
		"width":   img.Bounds().Dx(),
		"height":  img.Bounds().Dy(),
		"quality": fmt.Sprintf("%.1f", processor.AnalyzeQuality(img)),
	}).Debug("Image loaded")

	// Step 2: inference and parsing
	tc.StartStep("inference")
	doc, err := e.recognize(e.ctx, img, profile, taskType)
	if err != nil {
		tc.EndStep("failed", err)
		return nil, err
	}
	tc.EndStep("success", nil)

	result = &Result{
		Text:       doc.Text,
		Prompt:     taskType.Prompt(),
		Resolution: profile.Name,
		TaskType:   taskType.String(),
		ImagePath:  t.Params.ImagePath,
		Document:   doc,
	}

	// Step 3: artifacts, only when the prompt saw the image
	if !t.Params.Visualize {
		return result, nil
	}
	if !taskType.UsesImage() {
		tc.LogWarning("Visualization skipped: prompt %q does not reference the image", taskType.Prompt())
		return result, nil
	}
	tc.StartStep("artifacts")
	arts, err := processor.WriteArtifacts(e.outputs, t.ID, img, doc, tc.Logger())
	if err != nil {
		tc.EndStep("failed", err)
		return nil, err
	}
	tc.EndStep("success", nil)

	result.RawPath = e.outputURL(arts.Raw)
	result.MarkdownPath = e.outputURL(arts.Markdown)
	result.HTMLPath = e.outputURL(arts.HTML)
	if arts.Visualization != "" {
		result.VisualizationPath = e.outputURL(arts.Visualization)
	}
	for _, p := range arts.Images {
		result.ImagePaths = append(result.ImagePaths, e.outputURL(p))
	}
	tc.LogInfo("Artifacts written under %s (%d regions, %d crops)", t.ID, len(doc.Regions), len(arts.Images))
	return result, nil
}

// recognize calls the engine with the resolved prompt and parses its text.
func (e *Executor) recognize(ctx context.Context, img image.Image, profile ai.ResolutionProfile, taskType ai.TaskType) (*processor.ParsedDocument, error) {
	if e.engineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.engineTimeout)
		defer cancel()
	}

	req := ai.Request{Prompt: taskType.Prompt(), Profile: profile}
	width, height := 0, 0
	if taskType.UsesImage() && img != nil {
		req.Image = img
		width, height = img.Bounds().Dx(), img.Bounds().Dy()
	}

	raw, err := ai.Infer(ctx, e.engine, req)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return processor.BuildDocument(raw, width, height), nil
}

func (e *Executor) outputURL(p string) string {
	return e.urlPrefix + "/" + p
}
