package processor

import (
	"strings"
	"testing"
)

func TestReconstructMarkdown(t *testing.T) {
	raw := "<|ref|>title<|/ref|><|det|>[[1,1,500,50]]<|/det|>\n# Title\n" +
		"<|ref|>image<|/ref|><|det|>[[1,60,500,300]]<|/det|>\n" +
		"<|ref|>text<|/ref|><|det|>[[1,310,500,400]]<|/det|>\nLet $x \\coloneqq 1$ and $1 \\eqqcolon y$.\n" +
		"<|ref|>image<|/ref|><|det|>[[1,410,500,600]]<|/det|>\n"

	md := ReconstructMarkdown(raw, ParseRegions(raw))

	want := "\n# Title\n![](images/0.jpg)\n\n\nLet $x := 1$ and $1 =: y$.\n![](images/1.jpg)\n\n"
	if md != want {
		t.Fatalf("unexpected markdown:\n%q\nwant:\n%q", md, want)
	}
}

func TestReconstructMarkdownReparseHasNoRegions(t *testing.T) {
	raw := "<ref>image</ref><det>[[0,0,10,10]]</det>caption <|ref|>text<|/ref|><|det|>bad<|/det|>body"
	md := ReconstructMarkdown(raw, ParseRegions(raw))
	if regions := ParseRegions(md); len(regions) != 0 {
		t.Fatalf("expected no regions after reconstruction, got %+v", regions)
	}
}

func TestReconstructMarkdownStripsSplicedTags(t *testing.T) {
	raw := "<|ref|>x<|/ref|>" + "<ref>a</ref><det>[[0,0,10,10]]</det>" + "<|det|>[[1,1,2,2]]<|/det|>tail"
	regions := ParseRegions(raw)
	if len(regions) != 1 || regions[0].Label != "a" {
		t.Fatalf("expected only the plain-form region, got %+v", regions)
	}

	md := ReconstructMarkdown(raw, regions)
	if md != "tail" {
		t.Fatalf("unexpected markdown %q", md)
	}
	if again := ParseRegions(md); len(again) != 0 {
		t.Fatalf("expected no regions after reconstruction, got %+v", again)
	}
}

func TestReconstructMarkdownWithoutRegions(t *testing.T) {
	raw := "plain text \\coloneqq"
	if got := ReconstructMarkdown(raw, nil); got != "plain text :=" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# Title\n\n![](images/0.jpg)\n\n<script>alert(1)</script>\n")
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	out := string(html)
	if !strings.Contains(out, "<h1>Title</h1>") {
		t.Fatalf("missing heading: %s", out)
	}
	if !strings.Contains(out, `src="images/0.jpg"`) {
		t.Fatalf("missing image reference: %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html passed through: %s", out)
	}
}
