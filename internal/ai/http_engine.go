// http_engine.go - Client for a self-hosted inference server (prompt + image in, text stream out)

package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
)

const ndjsonContentType = "application/x-ndjson"

// HTTPEngine talks to an inference server that accepts a JSON request and answers
// either with a single JSON body or with newline-delimited JSON chunks.
type HTTPEngine struct {
	inferURL  string
	healthURL string
	authToken string
	client    *http.Client
}

// NewHTTPEngine creates an HTTP inference client. The client has no overall timeout;
// per-call bounds come from the caller's context.
func NewHTTPEngine(inferURL, healthURL, authToken string, maxConns int) *HTTPEngine {
	if maxConns <= 0 {
		maxConns = 2
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     max(maxConns, 4),
		MaxIdleConnsPerHost: max(maxConns, 4),
		MaxIdleConns:        max(maxConns*2, 32),
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPEngine{
		inferURL:  inferURL,
		healthURL: healthURL,
		authToken: authToken,
		client:    &http.Client{Transport: transport},
	}
}

// Name returns "http"
func (h *HTTPEngine) Name() string {
	return "http"
}

type inferenceRequest struct {
	Prompt    string `json:"prompt"`
	ImageB64  string `json:"image_base64,omitempty"`
	BaseSize  int    `json:"base_size"`
	ImageSize int    `json:"image_size"`
	CropMode  bool   `json:"crop_mode"`
	Stream    bool   `json:"stream"`
}

type inferenceChunk struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Health probes the server's health endpoint.
func (h *HTTPEngine) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.healthURL, nil)
	if err != nil {
		return err
	}
	h.setAuth(req)
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrEngineUnavailable, resp.StatusCode)
	}
	return nil
}

// Stream posts the request and returns the response as a chunk stream.
func (h *HTTPEngine) Stream(ctx context.Context, req Request) (Stream, error) {
	payload := inferenceRequest{
		Prompt:    req.Prompt,
		BaseSize:  req.Profile.BaseSize,
		ImageSize: req.Profile.ImageSize,
		CropMode:  req.Profile.CropMode,
		Stream:    true,
	}
	if req.Image != nil {
		encoded, err := encodeImageBase64(req.Image)
		if err != nil {
			return nil, err
		}
		payload.ImageB64 = encoded
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.inferURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", ndjsonContentType+", application/json")
	h.setAuth(httpReq)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, string(data))
		}
		return nil, fmt.Errorf("inference failed: status %d: %s", resp.StatusCode, string(data))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), ndjsonContentType) {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
		return &ndjsonStream{body: resp.Body, scanner: scanner}, nil
	}

	defer resp.Body.Close()
	var parsed inferenceChunk
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("inference failed: %s", parsed.Error)
	}
	return NewStaticStream(parsed.Text), nil
}

func (h *HTTPEngine) setAuth(req *http.Request) {
	if h.authToken != "" {
		req.Header.Set("X-Internal-Token", h.authToken)
	}
}

// ndjsonStream reads one JSON chunk per line; each chunk carries new text only.
type ndjsonStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *ndjsonStream) Recv() (string, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk inferenceChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("malformed stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return "", errors.New(chunk.Error)
		}
		return chunk.Text, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *ndjsonStream) Close() error {
	return s.body.Close()
}

func encodeImageBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	log.WithField("bytes", buf.Len()).Debug("Encoded image payload")
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
