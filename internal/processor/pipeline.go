// pipeline.go - Turns raw engine text into a ParsedDocument and writes its artifacts

package processor

import (
	"fmt"
	"image"
	"path"

	log "github.com/sirupsen/logrus"
)

// Artifact file names inside a task directory.
const (
	RawFile           = "result_ori.mmd"
	MarkdownFile      = "result.mmd"
	HTMLFile          = "result.html"
	VisualizationFile = "result_with_boxes.jpg"
	ImagesDir         = "images"
)

// FullConfidence is reported for every region; the model gives no per-region score.
const FullConfidence = 1.0

// OCRResult is one region mapped to pixel space.
type OCRResult struct {
	Label      string  `json:"label" bson:"label"`
	Text       string  `json:"text" bson:"text"`
	Confidence float64 `json:"confidence" bson:"confidence"`
	BBox       Box     `json:"bbox" bson:"bbox"`
}

// Size is an image size in pixels.
type Size struct {
	Width  int `json:"width" bson:"width"`
	Height int `json:"height" bson:"height"`
}

// ParsedDocument is the structured form of one engine result.
type ParsedDocument struct {
	Text      string      `json:"text" bson:"text"`
	Regions   []Region    `json:"regions" bson:"regions"`
	Markdown  string      `json:"processed_text" bson:"processed_text"`
	Results   []OCRResult `json:"results" bson:"results"`
	ImageSize Size        `json:"image_size" bson:"image_size"`
}

// BuildDocument parses raw and maps every region polygon onto a width x height
// image. With no image (zero size) the document carries no pixel results.
func BuildDocument(raw string, width, height int) *ParsedDocument {
	regions := ParseRegions(raw)
	doc := &ParsedDocument{
		Text:      raw,
		Regions:   regions,
		Markdown:  ReconstructMarkdown(raw, regions),
		Results:   []OCRResult{},
		ImageSize: Size{Width: width, Height: height},
	}
	if width > 0 && height > 0 {
		doc.Results = PixelResults(regions, width, height)
	}
	return doc
}

// PixelResults flattens regions into one OCRResult per polygon.
func PixelResults(regions []Region, width, height int) []OCRResult {
	results := make([]OCRResult, 0, len(regions))
	for _, r := range regions {
		text := r.Content
		if text == "" {
			text = r.Label
		}
		for _, q := range r.Polygon {
			results = append(results, OCRResult{
				Label:      r.Label,
				Text:       text,
				Confidence: FullConfidence,
				BBox:       MapQuad(q, width, height),
			})
		}
	}
	return results
}

// Saver persists bytes under a storage-relative path.
type Saver interface {
	Save(path string, data []byte) error
}

// Artifacts lists the storage-relative paths written for one document.
type Artifacts struct {
	Raw           string
	Markdown      string
	HTML          string
	Visualization string // empty when no region was parsed
	Images        []string
}

// WriteArtifacts stores the raw text, the markdown and its HTML rendering, the
// annotated image and every image crop under dir.
func WriteArtifacts(store Saver, dir string, img image.Image, doc *ParsedDocument, logger log.FieldLogger) (*Artifacts, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	out := &Artifacts{
		Raw:      path.Join(dir, RawFile),
		Markdown: path.Join(dir, MarkdownFile),
		HTML:     path.Join(dir, HTMLFile),
		Images:   []string{},
	}

	if err := store.Save(out.Raw, []byte(doc.Text)); err != nil {
		return nil, fmt.Errorf("failed to save raw result: %w", err)
	}
	if err := store.Save(out.Markdown, []byte(doc.Markdown)); err != nil {
		return nil, fmt.Errorf("failed to save markdown: %w", err)
	}

	html, err := RenderHTML(doc.Markdown)
	if err != nil {
		return nil, err
	}
	if err := store.Save(out.HTML, html); err != nil {
		return nil, fmt.Errorf("failed to save html: %w", err)
	}

	if len(doc.Regions) == 0 || img == nil {
		return out, nil
	}

	vis := RenderVisualization(img, doc.Regions, func(name string, crop image.Image) error {
		data, err := EncodeJPEG(crop)
		if err != nil {
			return err
		}
		p := path.Join(dir, ImagesDir, name+".jpg")
		if err := store.Save(p, data); err != nil {
			return err
		}
		out.Images = append(out.Images, p)
		return nil
	}, logger)

	data, err := EncodeJPEG(vis.Image)
	if err != nil {
		return nil, err
	}
	out.Visualization = path.Join(dir, VisualizationFile)
	if err := store.Save(out.Visualization, data); err != nil {
		return nil, fmt.Errorf("failed to save visualization: %w", err)
	}

	logger.WithFields(log.Fields{
		"regions":  len(doc.Regions),
		"crops":    vis.Crops,
		"failures": vis.Failures,
	}).Info("🖼️  Visualization saved")
	return out, nil
}
