package ai

import (
	"errors"
	"testing"
)

func TestParseTaskType(t *testing.T) {
	cases := []struct {
		name, ref  string
		wantKind   TaskKind
		wantPrompt string
	}{
		{"free_ocr", "", KindFreeOCR, "<image>\nFree OCR."},
		{"markdown", "", KindMarkdown, "<image>\n<|grounding|>Convert the document to markdown."},
		{"parse_chart", "", KindParseChart, "<image>\nParse the figure."},
		{"locate_object", " the red stamp ", KindLocateObject, "<image>\nLocate <|ref|>the red stamp<|/ref|> in the image."},
		{"<image>\nDescribe this image.", "", KindCustom, "<image>\nDescribe this image."},
	}
	for _, tc := range cases {
		tt, err := ParseTaskType(tc.name, tc.ref)
		if err != nil {
			t.Fatalf("%q: %v", tc.name, err)
		}
		if tt.Kind != tc.wantKind || tt.Prompt() != tc.wantPrompt {
			t.Fatalf("%q: got %s %q", tc.name, tt.Kind, tt.Prompt())
		}
	}
}

func TestParseTaskTypeRejects(t *testing.T) {
	if _, err := ParseTaskType("translate", ""); !errors.Is(err, ErrUnknownTaskType) {
		t.Fatalf("expected ErrUnknownTaskType, got %v", err)
	}
	if _, err := ParseTaskType("locate_object", "  "); !errors.Is(err, ErrMissingReference) {
		t.Fatalf("expected ErrMissingReference, got %v", err)
	}
}

func TestTaskTypeUsesImage(t *testing.T) {
	if !Markdown().UsesImage() {
		t.Fatalf("markdown prompt carries the image")
	}
	if CustomPrompt("<|grounding|>Just text").UsesImage() {
		t.Fatalf("custom prompt without <image> must not use the image")
	}
	if got := CustomPrompt("<x>").String(); got != "<x>" {
		t.Fatalf("unexpected String %q", got)
	}
}

func TestProfiles(t *testing.T) {
	p, ok := LookupProfile("gundam")
	if !ok || p.BaseSize != 1024 || p.ImageSize != 640 || !p.CropMode {
		t.Fatalf("unexpected gundam profile %+v", p)
	}
	if _, ok := LookupProfile("huge"); ok {
		t.Fatalf("unknown profile resolved")
	}
	names := ProfileNames()
	if len(names) != 5 || names[0] != "base" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestParseTaskTypeMatchesConstructors(t *testing.T) {
	for name, want := range map[string]TaskType{
		"free_ocr":    FreeOCR(),
		"markdown":    Markdown(),
		"parse_chart": ParseChart(),
	} {
		got, err := ParseTaskType(name, "ignored")
		if err != nil {
			t.Fatalf("ParseTaskType(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseTaskType(%q) = %+v, want %+v", name, got, want)
		}
	}
}
