// regions.go - Region parser for the model's tagged output

package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ImageLabel is the label of regions that hold a picture rather than text.
const ImageLabel = "image"

// TitleLabel gets a heavier outline in visualizations.
const TitleLabel = "title"

// The model emits <|ref|>..<|/ref|><|det|>..<|/det|>; the bare <ref>/<det> form is accepted too.
var regionPattern = regexp.MustCompile(
	`(?s)<\|ref\|>(.*?)<\|/ref\|><\|det\|>(.*?)<\|/det\|>` +
		`|<ref>(.*?)</ref><det>(.*?)</det>`)

// ErrMalformedPolygon is returned for detection text that is not a list of in-range integer quads.
var ErrMalformedPolygon = errors.New("malformed polygon list")

// Quad is an axis-aligned box [x1, y1, x2, y2] in normalized 0-999 space.
type Quad [4]int

// Span is a byte range [Start, End) in the raw engine text.
type Span struct {
	Start int `json:"start" bson:"start"`
	End   int `json:"end" bson:"end"`
}

// Region is one tagged span of engine output.
type Region struct {
	Label   string `json:"label" bson:"label"`
	Polygon []Quad `json:"polygon" bson:"polygon"`
	Content string `json:"content" bson:"content"`
	Span    Span   `json:"span" bson:"span"`
}

// IsImage reports whether the region marks a picture.
func (r Region) IsImage() bool {
	return r.Label == ImageLabel
}

// ParseRegions finds every ref/det pair in raw, in order of appearance. It never
// fails as a whole: a region with a malformed polygon keeps its label and content
// and gets an empty polygon.
func ParseRegions(raw string) []Region {
	locs := regionPattern.FindAllStringSubmatchIndex(raw, -1)
	regions := make([]Region, 0, len(locs))

	for i, loc := range locs {
		var label, det string
		if loc[2] >= 0 {
			label, det = raw[loc[2]:loc[3]], raw[loc[4]:loc[5]]
		} else {
			label, det = raw[loc[6]:loc[7]], raw[loc[8]:loc[9]]
		}

		polygon, err := ParsePolygon(det)
		if err != nil {
			log.WithFields(log.Fields{
				"label":  strings.TrimSpace(label),
				"offset": loc[0],
			}).WithError(err).Warn("Skipping region geometry")
			polygon = []Quad{}
		}

		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}

		regions = append(regions, Region{
			Label:   strings.TrimSpace(label),
			Polygon: polygon,
			Content: firstNonBlankLine(raw[loc[1]:end]),
			Span:    Span{Start: loc[0], End: loc[1]},
		})
	}
	return regions
}

// SplitImageRegions separates image-labelled regions from the rest, keeping order.
func SplitImageRegions(regions []Region) (images, others []Region) {
	for _, r := range regions {
		if r.IsImage() {
			images = append(images, r)
		} else {
			others = append(others, r)
		}
	}
	return images, others
}

// ParsePolygon accepts only a JSON list of integer quads ("[[x1,y1,x2,y2], ...]")
// or a single bare quad, with every coordinate in [0, 999].
func ParsePolygon(text string) ([]Quad, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	dec.UseNumber()

	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolygon, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedPolygon)
	}
	if len(items) == 0 {
		return []Quad{}, nil
	}

	if _, flat := items[0].(json.Number); flat {
		q, err := toQuad(items)
		if err != nil {
			return nil, err
		}
		return []Quad{q}, nil
	}

	quads := make([]Quad, 0, len(items))
	for i, item := range items {
		values, ok := item.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is not a list", ErrMalformedPolygon, i)
		}
		q, err := toQuad(values)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		quads = append(quads, q)
	}
	return quads, nil
}

func toQuad(values []any) (Quad, error) {
	var q Quad
	if len(values) != 4 {
		return q, fmt.Errorf("%w: want 4 coordinates, got %d", ErrMalformedPolygon, len(values))
	}
	for i, v := range values {
		num, ok := v.(json.Number)
		if !ok {
			return q, fmt.Errorf("%w: coordinate %d is not a number", ErrMalformedPolygon, i)
		}
		n, err := num.Int64()
		if err != nil {
			return q, fmt.Errorf("%w: coordinate %q is not an integer", ErrMalformedPolygon, num)
		}
		if n < 0 || n > NormalizedMax {
			return q, fmt.Errorf("%w: coordinate %d out of range", ErrMalformedPolygon, n)
		}
		q[i] = int(n)
	}
	return q, nil
}

func firstNonBlankLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
