// prompts.go - Task types and the prompt templates they resolve to

package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ImagePlaceholder marks a prompt that carries an image payload.
const ImagePlaceholder = "<image>"

// TaskKind names one of the supported task types.
type TaskKind string

const (
	KindFreeOCR      TaskKind = "free_ocr"
	KindMarkdown     TaskKind = "markdown"
	KindParseChart   TaskKind = "parse_chart"
	KindLocateObject TaskKind = "locate_object"
	KindCustom       TaskKind = "custom"
)

var promptTemplates = map[TaskKind]string{
	KindFreeOCR:      "<image>\nFree OCR.",
	KindMarkdown:     "<image>\n<|grounding|>Convert the document to markdown.",
	KindParseChart:   "<image>\nParse the figure.",
	KindLocateObject: "<image>\nLocate <|ref|>%s<|/ref|> in the image.",
}

var (
	ErrUnknownTaskType  = errors.New("unknown task type")
	ErrMissingReference = errors.New("locate_object requires reference text")
)

// TaskType is a tagged variant: one of the fixed templates, a locate request with
// its reference text, or a caller-supplied templated prompt.
type TaskType struct {
	Kind          TaskKind `json:"kind" bson:"kind"`
	ReferenceText string   `json:"reference_text,omitempty" bson:"reference_text,omitempty"`
	CustomPrompt  string   `json:"custom_prompt,omitempty" bson:"custom_prompt,omitempty"`
}

// Constructors for each task kind.
func FreeOCR() TaskType    { return TaskType{Kind: KindFreeOCR} }
func Markdown() TaskType   { return TaskType{Kind: KindMarkdown} }
func ParseChart() TaskType { return TaskType{Kind: KindParseChart} }

func LocateObject(reference string) TaskType {
	return TaskType{Kind: KindLocateObject, ReferenceText: reference}
}

func CustomPrompt(prompt string) TaskType {
	return TaskType{Kind: KindCustom, CustomPrompt: prompt}
}

// ParseTaskType resolves a submitted task-type string. Strings that are not a
// known name are accepted only when they look like a templated prompt (start with "<").
func ParseTaskType(name, referenceText string) (TaskType, error) {
	kind := TaskKind(name)
	switch kind {
	case KindFreeOCR:
		return FreeOCR(), nil
	case KindMarkdown:
		return Markdown(), nil
	case KindParseChart:
		return ParseChart(), nil
	case KindLocateObject:
		ref := strings.TrimSpace(referenceText)
		if ref == "" {
			return TaskType{}, ErrMissingReference
		}
		return LocateObject(ref), nil
	}
	if strings.HasPrefix(name, "<") {
		return CustomPrompt(name), nil
	}
	return TaskType{}, fmt.Errorf("%w: %q", ErrUnknownTaskType, name)
}

// Prompt returns the prompt string sent to the engine.
func (t TaskType) Prompt() string {
	switch t.Kind {
	case KindLocateObject:
		return fmt.Sprintf(promptTemplates[KindLocateObject], t.ReferenceText)
	case KindCustom:
		return t.CustomPrompt
	default:
		return promptTemplates[t.Kind]
	}
}

// UsesImage reports whether the prompt references the image payload.
func (t TaskType) UsesImage() bool {
	return strings.Contains(t.Prompt(), ImagePlaceholder)
}

// String returns the name the task type was submitted under.
func (t TaskType) String() string {
	if t.Kind == KindCustom {
		return t.CustomPrompt
	}
	return string(t.Kind)
}
