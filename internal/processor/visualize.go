// visualize.go - Draws detected regions over the source image and extracts image crops

package processor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
	"strconv"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	overlayAlpha      = 20
	labelOffset       = 15
	outlineWidth      = 2
	titleOutlineWidth = 4
)

// CropSink receives one image crop under the name given by CropName.
type CropSink func(name string, crop image.Image) error

// CropName names the crop of the part-th polygon of the n-th image region.
// The first polygon takes the bare ordinal so ImageRef(n) always points at it.
func CropName(n, part int) string {
	if part == 0 {
		return strconv.Itoa(n)
	}
	return fmt.Sprintf("%d_%d", n, part)
}

// Visualization is the annotated image plus per-region bookkeeping.
type Visualization struct {
	Image    *image.NRGBA
	Crops    int
	Failures int
}

// regionColor picks a random outline color per region.
var regionColor = func() color.NRGBA {
	return color.NRGBA{
		R: uint8(rand.IntN(200)),
		G: uint8(rand.IntN(200)),
		B: uint8(rand.IntN(255)),
		A: 0xff,
	}
}

// RenderVisualization outlines every region polygon on a copy of src, adds a
// translucent fill and its label, and hands image-region crops to sink (which
// may be nil). A region that fails to draw is logged and skipped.
func RenderVisualization(src image.Image, regions []Region, sink CropSink, logger log.FieldLogger) *Visualization {
	if logger == nil {
		logger = log.StandardLogger()
	}

	base := imaging.Clone(src)
	canvas := imaging.Clone(src)
	overlay := image.NewNRGBA(canvas.Bounds())
	width, height := base.Bounds().Dx(), base.Bounds().Dy()

	vis := &Visualization{Image: canvas}
	imageIndex := 0

	for _, region := range regions {
		n := imageIndex
		if region.IsImage() {
			imageIndex++
		}
		err := drawRegion(canvas, overlay, base, region, width, height, func(part int, crop image.Image) error {
			if sink == nil {
				return nil
			}
			if err := sink(CropName(n, part), crop); err != nil {
				return err
			}
			vis.Crops++
			return nil
		})
		if err != nil {
			vis.Failures++
			logger.WithError(err).WithField("label", region.Label).Warn("⚠️  Failed to draw region")
		}
	}

	vis.Image = imaging.Overlay(canvas, overlay, image.Pt(0, 0), 1.0)
	return vis
}

func drawRegion(canvas, overlay, base *image.NRGBA, region Region, width, height int, crop func(part int, img image.Image) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while drawing: %v", r)
		}
	}()

	col := regionColor()
	fill := color.NRGBA{R: col.R, G: col.G, B: col.B, A: overlayAlpha}
	thickness := outlineWidth
	if region.Label == TitleLabel {
		thickness = titleOutlineWidth
	}

	for part, q := range region.Polygon {
		rect := MapQuad(q, width, height).Rect()

		if region.IsImage() {
			clipped := rect.Intersect(base.Bounds())
			if clipped.Empty() {
				return fmt.Errorf("image region %v is empty", rect)
			}
			if err := crop(part, imaging.Crop(base, clipped)); err != nil {
				return fmt.Errorf("failed to save crop: %w", err)
			}
		}

		strokeRect(canvas, rect, thickness, col)
		draw.Draw(overlay, rect, image.NewUniform(fill), image.Point{}, draw.Src)
		drawLabel(canvas, region.Label, rect.Min.X, max(0, rect.Min.Y-labelOffset), col)
	}
	return nil
}

func strokeRect(dst draw.Image, r image.Rectangle, thickness int, col color.Color) {
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

func drawLabel(dst draw.Image, label string, x, y int, col color.Color) {
	if label == "" {
		return
	}
	face := basicfont.Face7x13
	metrics := face.Metrics()
	w := font.MeasureString(face, label).Ceil()
	h := metrics.Height.Ceil()

	swatch := image.NewUniform(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xc8})
	draw.Draw(dst, image.Rect(x, y, x+w, y+h), swatch, image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y+metrics.Ascent.Ceil()),
	}
	d.DrawString(label)
}
