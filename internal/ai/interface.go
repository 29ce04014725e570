// interface.go - Inference engine interface shared by all providers

package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
)

// ErrEngineUnavailable is returned when the model behind an engine is not loaded or unreachable.
var ErrEngineUnavailable = errors.New("inference engine unavailable")

// Request is one inference call. The profile travels with the call and is never
// stored on the engine.
type Request struct {
	Prompt  string
	Image   image.Image // nil when the prompt does not reference an image
	Profile ResolutionProfile
}

// Stream yields decoded text chunks. Recv returns io.EOF once the engine is done.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Engine defines the interface that all inference providers must implement
type Engine interface {
	// Name returns the provider name (e.g., "http", "gemini")
	Name() string

	// Health reports whether the engine can serve calls; ErrEngineUnavailable when it cannot.
	Health(ctx context.Context) error

	// Stream starts an inference call and returns its chunk stream.
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Infer runs one call and consumes the stream to completion, returning the accumulated text.
func Infer(ctx context.Context, engine Engine, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("prompt is empty")
	}
	if !strings.Contains(req.Prompt, ImagePlaceholder) {
		req.Image = nil
	}

	stream, err := engine.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var text strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%s stream failed after %d chars: %w", engine.Name(), text.Len(), err)
		}
		text.WriteString(chunk)
	}
	return text.String(), nil
}

// sliceStream replays fixed chunks; used for non-streaming responses.
type sliceStream struct {
	chunks []string
}

func (s *sliceStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		return "", io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *sliceStream) Close() error { return nil }

// NewStaticStream returns a Stream that yields the given chunks in order.
func NewStaticStream(chunks ...string) Stream {
	return &sliceStream{chunks: chunks}
}
