// image.go - Image decoding, encoding and quality scoring

package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is used for every JPEG the service writes.
const JPEGQuality = 95

// AllowedExtensions lists the upload extensions accepted for image OCR.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".webp"}

// ErrUnsupportedImage is returned for data that no registered decoder understands.
var ErrUnsupportedImage = errors.New("unsupported image data")

// IsAllowedExtension reports whether filename carries one of AllowedExtensions.
func IsAllowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// DecodeImage decodes an uploaded image, applies its EXIF orientation and
// flattens any transparency onto white so the result is plain RGB.
func DecodeImage(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return flatten(img), nil
}

// ImageFromRGB builds an image from tightly packed 8-bit RGB triples.
func ImageFromRGB(data []byte, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if want := width * height * 3; len(data) != want {
		return nil, fmt.Errorf("expected %d bytes for %dx%d RGB, got %d", want, width, height, len(data))
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(data); i, j = i+3, j+4 {
		img.Pix[j] = data[i]
		img.Pix[j+1] = data[i+1]
		img.Pix[j+2] = data[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

// EncodeJPEG encodes img at JPEGQuality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// AnalyzeQuality returns a rough 0-100 score from sampled brightness and
// contrast. It is logged with each task to help explain poor recognitions.
func AnalyzeQuality(img image.Image) float64 {
	bounds := img.Bounds()

	var total float64
	minB, maxB := 255.0, 0.0
	count := 0

	// every 10th pixel on both axes
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			brightness := (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3.0

			total += brightness
			minB = math.Min(minB, brightness)
			maxB = math.Max(maxB, brightness)
			count++
		}
	}
	if count == 0 {
		return 0
	}

	avg := total / float64(count)
	brightnessScore := 100.0 - math.Abs(avg-128.0)/1.28
	contrastScore := math.Min((maxB-minB)/2.0, 100.0)

	// 40% brightness, 60% contrast
	return brightnessScore*0.4 + contrastScore*0.6
}
