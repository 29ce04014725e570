// markdown.go - Rebuilds document text from the raw output and its parsed spans

package processor

import (
	"bytes"
	"fmt"
	"strings"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var symbolReplacer = strings.NewReplacer(
	`\coloneqq`, ":=",
	`\eqqcolon`, "=:",
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		treeblood.MathML(),
	),
)

// ImageRef is the markdown reference written in place of the n-th image region.
func ImageRef(n int) string {
	return fmt.Sprintf("![](%s/%s.jpg)", ImagesDir, CropName(n, 0))
}

// ReconstructMarkdown replaces image regions with numbered image references and
// drops every other tagged span. It walks the spans captured by ParseRegions, so
// earlier substitutions can never shift or re-match later ones.
func ReconstructMarkdown(raw string, regions []Region) string {
	var b strings.Builder
	b.Grow(len(raw))

	cursor, imageIndex := 0, 0
	for _, r := range regions {
		if r.Span.Start < cursor || r.Span.End > len(raw) {
			continue
		}
		b.WriteString(raw[cursor:r.Span.Start])
		if r.IsImage() {
			b.WriteString(ImageRef(imageIndex))
			b.WriteString("\n")
			imageIndex++
		}
		cursor = r.Span.End
	}
	b.WriteString(raw[cursor:])

	// Removing a span can join stray tag fragments on either side into a new match.
	out := b.String()
	for regionPattern.MatchString(out) {
		out = regionPattern.ReplaceAllString(out, "")
	}
	return symbolReplacer.Replace(out)
}

// RenderHTML converts reconstructed markdown to HTML, rendering LaTeX as MathML.
// Raw HTML in the markdown is not passed through.
func RenderHTML(markdown string) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.Bytes(), nil
}
