// gemini.go - Gemini streaming engine used as a hosted alternative to the local model

package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bosocmputer/deepseek_ocr_service/internal/ratelimit"
	"github.com/disintegration/imaging"
	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// maxOutputTokens matches the local model's decoding limit.
const maxOutputTokens = 8192

// GeminiEngine implements Engine on top of the Gemini streaming API.
type GeminiEngine struct {
	client    *genai.Client
	modelName string
	limiter   *ratelimit.RateLimiter
	retry     RetryConfig
}

// NewGeminiEngine creates the Gemini client once; Close releases it.
func NewGeminiEngine(ctx context.Context, apiKey, modelName string, limiter *ratelimit.RateLimiter) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrEngineUnavailable)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEngine{
		client:    client,
		modelName: modelName,
		limiter:   limiter,
		retry:     DefaultRetryConfig,
	}, nil
}

// Name returns "gemini"
func (g *GeminiEngine) Name() string {
	return "gemini"
}

// Health reports whether the client was created.
func (g *GeminiEngine) Health(ctx context.Context) error {
	if g == nil || g.client == nil {
		return ErrEngineUnavailable
	}
	return nil
}

// Close releases the underlying client.
func (g *GeminiEngine) Close() error {
	return g.client.Close()
}

// Stream opens a content stream. Retries only cover opening the stream: once the
// first chunk arrived, a failure ends the call.
func (g *GeminiEngine) Stream(ctx context.Context, req Request) (Stream, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0)
	model.SetMaxOutputTokens(maxOutputTokens)

	// The hosted model has no special image token; the image goes as its own part.
	prompt := strings.TrimSpace(strings.ReplaceAll(req.Prompt, ImagePlaceholder, ""))
	parts := []genai.Part{genai.Text(prompt)}

	if req.Image != nil {
		data, err := encodeForProfile(req)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.ImageData("jpeg", data))
	}

	return withRetry(ctx, g.retry, func() (Stream, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		iter := model.GenerateContentStream(ctx, parts...)
		first, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return NewStaticStream(), nil
		}
		if err != nil {
			return nil, err
		}
		return &geminiStream{iter: iter, pending: responseText(first)}, nil
	})
}

// encodeForProfile scales the image so its longer side fits the profile's base size.
func encodeForProfile(req Request) ([]byte, error) {
	img := req.Image
	if size := req.Profile.BaseSize; size > 0 {
		img = imaging.Fit(img, size, size, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	log.WithFields(log.Fields{
		"profile": req.Profile.Name,
		"width":   img.Bounds().Dx(),
		"height":  img.Bounds().Dy(),
		"bytes":   buf.Len(),
	}).Debug("Prepared Gemini image part")
	return buf.Bytes(), nil
}

type geminiStream struct {
	iter    *genai.GenerateContentResponseIterator
	pending string
	sent    bool
}

func (s *geminiStream) Recv() (string, error) {
	if !s.sent {
		s.sent = true
		return s.pending, nil
	}
	resp, err := s.iter.Next()
	if errors.Is(err, iterator.Done) {
		return "", io.EOF
	}
	if err != nil {
		return "", categorizeGeminiError(err)
	}
	return responseText(resp), nil
}

func (s *geminiStream) Close() error { return nil }

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
