package processor

import (
	"strings"
	"sync"
	"testing"
)

type memSaver struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memSaver) Save(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func TestBuildDocument(t *testing.T) {
	raw := "<|ref|>text<|/ref|><|det|>[[0,0,999,499]]<|/det|>\nHello\n<|ref|>sub_title<|/ref|><|det|>[[0,500,999,999]]<|/det|>"
	doc := BuildDocument(raw, 1000, 2000)

	if doc.Text != raw {
		t.Fatalf("raw text not kept")
	}
	if len(doc.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(doc.Results))
	}
	if doc.Results[0].Text != "Hello" || doc.Results[0].Confidence != FullConfidence {
		t.Fatalf("unexpected first result %+v", doc.Results[0])
	}
	if doc.Results[1].Text != "sub_title" {
		t.Fatalf("expected label fallback, got %q", doc.Results[1].Text)
	}
	if doc.ImageSize != (Size{Width: 1000, Height: 2000}) {
		t.Fatalf("unexpected size %+v", doc.ImageSize)
	}
}

func TestBuildDocumentWithoutImage(t *testing.T) {
	doc := BuildDocument("<ref>text</ref><det>[[0,0,1,1]]</det>x", 0, 0)
	if len(doc.Regions) != 1 || len(doc.Results) != 0 {
		t.Fatalf("expected regions without pixel results: %+v", doc)
	}
}

func TestWriteArtifacts(t *testing.T) {
	raw := "<|ref|>image<|/ref|><|det|>[[0,0,499,499]]<|/det|>\n<|ref|>text<|/ref|><|det|>[[500,500,999,999]]<|/det|>\nBody"
	doc := BuildDocument(raw, 40, 40)
	store := &memSaver{}

	arts, err := WriteArtifacts(store, "task-1", testImage(40, 40), doc, nil)
	if err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}

	for _, p := range []string{"task-1/result_ori.mmd", "task-1/result.mmd", "task-1/result.html", "task-1/result_with_boxes.jpg", "task-1/images/0.jpg"} {
		if _, ok := store.files[p]; !ok {
			t.Fatalf("missing artifact %s (have %v)", p, keys(store.files))
		}
	}
	if arts.Visualization != "task-1/result_with_boxes.jpg" {
		t.Fatalf("unexpected visualization path %q", arts.Visualization)
	}
	if len(arts.Images) != 1 || arts.Images[0] != "task-1/images/0.jpg" {
		t.Fatalf("unexpected image paths %v", arts.Images)
	}
	if !strings.Contains(string(store.files["task-1/result.mmd"]), "![](images/0.jpg)") {
		t.Fatalf("markdown missing image reference")
	}
}

func TestWriteArtifactsWithoutRegions(t *testing.T) {
	store := &memSaver{}
	arts, err := WriteArtifacts(store, "t", testImage(10, 10), BuildDocument("just text", 10, 10), nil)
	if err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}
	if arts.Visualization != "" {
		t.Fatalf("expected no visualization, got %q", arts.Visualization)
	}
	if _, ok := store.files["t/result_with_boxes.jpg"]; ok {
		t.Fatalf("visualization written without regions")
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
