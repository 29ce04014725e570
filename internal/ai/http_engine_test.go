package ai

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
)

func TestHTTPEngineStreamsNDJSON(t *testing.T) {
	var got inferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Internal-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"text":"Hello"}`+"\n\n"+`{"text":", world"}`+"\n")
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, srv.URL+"/health", "secret", 2)
	text, err := Infer(context.Background(), engine, Request{
		Prompt:  "<image>\nFree OCR.",
		Image:   imaging.New(10, 10, color.White),
		Profile: ResolutionProfile{Name: "tiny", BaseSize: 512, ImageSize: 512},
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if text != "Hello, world" {
		t.Fatalf("unexpected text %q", text)
	}
	if got.BaseSize != 512 || got.ImageB64 == "" || !got.Stream {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestHTTPEngineSingleJSONAndNoImage(t *testing.T) {
	var got inferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"done"}`)
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, srv.URL, "", 1)
	text, err := Infer(context.Background(), engine, Request{
		Prompt: "<|grounding|>Describe.",
		Image:  imaging.New(4, 4, color.White),
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if text != "done" {
		t.Fatalf("unexpected text %q", text)
	}
	if got.ImageB64 != "" {
		t.Fatalf("image sent for a prompt without the placeholder")
	}
}

func TestHTTPEngineErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/stream-error") {
			w.Header().Set("Content-Type", "application/x-ndjson")
			io.WriteString(w, `{"text":"par"}`+"\n"+`{"error":"CUDA out of memory"}`+"\n")
			return
		}
		w.WriteHeader(int(status.Load()))
		io.WriteString(w, "model loading")
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL+"/infer", srv.URL+"/health", "", 1)
	req := Request{Prompt: "<image>\nFree OCR."}

	if _, err := Infer(context.Background(), engine, req); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable for 503, got %v", err)
	}
	if err := engine.Health(context.Background()); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected unhealthy engine, got %v", err)
	}

	status.Store(http.StatusInternalServerError)
	if _, err := Infer(context.Background(), engine, req); err == nil || errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected plain failure for 500, got %v", err)
	}

	streamErr := NewHTTPEngine(srv.URL+"/stream-error", "", "", 1)
	if _, err := Infer(context.Background(), streamErr, req); err == nil || !strings.Contains(err.Error(), "CUDA") {
		t.Fatalf("expected mid-stream error, got %v", err)
	}
}

func TestHTTPEngineUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	engine := NewHTTPEngine(url, url, "", 1)
	if _, err := Infer(context.Background(), engine, Request{Prompt: "x"}); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestInferRejectsEmptyPrompt(t *testing.T) {
	if _, err := Infer(context.Background(), nil, Request{Prompt: "  "}); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}
