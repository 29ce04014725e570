// task.go - Task model and lifecycle state machine

package task

import (
	"time"

	"github.com/bosocmputer/deepseek_ocr_service/internal/processor"
)

// Status is a task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// pending -> processing -> completed|failed. A pending task may also fail
// directly when it is abandoned before getting a permit.
func isAllowedTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Params are the submitted parameters of a task.
type Params struct {
	Filename      string `json:"filename" bson:"filename"`
	ImagePath     string `json:"image_path" bson:"image_path"`
	Resolution    string `json:"resolution" bson:"resolution"`
	TaskType      string `json:"task_type" bson:"task_type"`
	ReferenceText string `json:"reference_text,omitempty" bson:"reference_text,omitempty"`
	Visualize     bool   `json:"include_visualization" bson:"include_visualization"`
}

// Result is the payload of a completed task. Artifact paths are only set when
// visualization ran.
type Result struct {
	Text              string                    `json:"text" bson:"text"`
	Prompt            string                    `json:"prompt" bson:"prompt"`
	Resolution        string                    `json:"resolution" bson:"resolution"`
	TaskType          string                    `json:"task_type" bson:"task_type"`
	ImagePath         string                    `json:"image_path" bson:"image_path"`
	Document          *processor.ParsedDocument `json:"document" bson:"document"`
	VisualizationPath string                    `json:"visualization_path,omitempty" bson:"visualization_path,omitempty"`
	MarkdownPath      string                    `json:"markdown_path,omitempty" bson:"markdown_path,omitempty"`
	RawPath           string                    `json:"raw_path,omitempty" bson:"raw_path,omitempty"`
	HTMLPath          string                    `json:"html_path,omitempty" bson:"html_path,omitempty"`
	ImagePaths        []string                  `json:"image_paths,omitempty" bson:"image_paths,omitempty"`
}

// Task is one submission tracked by the Registry. Values handed out by the
// Registry are snapshots; mutating them has no effect on the registry.
type Task struct {
	ID          string     `json:"task_id" bson:"task_id"`
	Status      Status     `json:"status" bson:"status"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Result      *Result    `json:"result,omitempty" bson:"result,omitempty"`
	Error       string     `json:"error,omitempty" bson:"error,omitempty"`
	Params      Params     `json:"params" bson:"params"`
}
