// task_context.go - Per-task step tracking and logging

package common

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// TaskContext tracks one task's processing steps with timing.
// It is owned by a single goroutine and is not safe for concurrent use.
type TaskContext struct {
	TaskID           string
	StartTime        time.Time
	Steps            []StepLog
	CurrentStep      string
	CurrentStepStart time.Time

	logger *log.Entry
}

// StepLog represents a single processing step
type StepLog struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Duration  int64     `json:"duration_ms"`
	Status    string    `json:"status"` // "success", "failed", "skipped"
	Error     string    `json:"error,omitempty"`
}

// NewTaskContext creates a tracking context for the given task id.
func NewTaskContext(taskID string) *TaskContext {
	return &TaskContext{
		TaskID:    taskID,
		StartTime: time.Now(),
		logger:    log.WithField("task_id", taskID),
	}
}

// Logger returns the task-scoped logrus entry.
func (tc *TaskContext) Logger() *log.Entry {
	return tc.logger
}

// StartStep begins tracking a new processing step
func (tc *TaskContext) StartStep(stepName string) {
	tc.CurrentStep = stepName
	tc.CurrentStepStart = time.Now()
	tc.logger.WithField("step", stepName).Debug("┌── step started")
}

// EndStep completes the current step and records timing
func (tc *TaskContext) EndStep(status string, err error) {
	if tc.CurrentStep == "" {
		return
	}
	duration := time.Since(tc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      tc.CurrentStep,
		StartTime: tc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
	}

	entry := tc.logger.WithFields(log.Fields{
		"step":        tc.CurrentStep,
		"status":      status,
		"duration_ms": duration,
	})
	if err != nil {
		stepLog.Error = err.Error()
		entry.WithError(err).Error("❌ step failed")
	} else {
		entry.Debug("└── ✅ step done")
	}

	tc.Steps = append(tc.Steps, stepLog)
	tc.CurrentStep = ""
}

// Elapsed returns the time since the context was created.
func (tc *TaskContext) Elapsed() time.Duration {
	return time.Since(tc.StartTime)
}

// Summary returns a compact per-step breakdown for the final log line.
func (tc *TaskContext) Summary() map[string]interface{} {
	breakdown := make(map[string]int64, len(tc.Steps))
	for _, step := range tc.Steps {
		breakdown[step.Name] = step.Duration
	}
	return map[string]interface{}{
		"task_id":           tc.TaskID,
		"total_duration_ms": tc.Elapsed().Milliseconds(),
		"step_breakdown":    breakdown,
		"total_steps":       len(tc.Steps),
	}
}

// LogInfo logs info-level message with task ID field
func (tc *TaskContext) LogInfo(format string, args ...interface{}) {
	tc.logger.Info(fmt.Sprintf(format, args...))
}

// LogWarning logs warning-level message with task ID field
func (tc *TaskContext) LogWarning(format string, args ...interface{}) {
	tc.logger.Warn("⚠️  " + fmt.Sprintf(format, args...))
}

// LogError logs error-level message with task ID field
func (tc *TaskContext) LogError(format string, args ...interface{}) {
	tc.logger.Error("❌ " + fmt.Sprintf(format, args...))
}
