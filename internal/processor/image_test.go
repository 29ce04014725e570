package processor

import (
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

func TestIsAllowedExtension(t *testing.T) {
	for _, name := range []string{"a.jpg", "B.JPEG", "scan.png", "x.bmp", "y.tiff", "z.webp"} {
		if !IsAllowedExtension(name) {
			t.Fatalf("%s should be allowed", name)
		}
	}
	for _, name := range []string{"a.gif", "doc.pdf", "noext", "a.jpg.exe"} {
		if IsAllowedExtension(name) {
			t.Fatalf("%s should be rejected", name)
		}
	}
}

func TestDecodeImageRoundTrip(t *testing.T) {
	data, err := EncodeJPEG(imaging.New(30, 20, color.NRGBA{R: 10, G: 200, B: 30, A: 0xff}))
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	img, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}

	if _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestImageFromRGB(t *testing.T) {
	img, err := ImageFromRGB([]byte{255, 0, 0, 0, 255, 0}, 2, 1)
	if err != nil {
		t.Fatalf("ImageFromRGB: %v", err)
	}
	if c := img.NRGBAAt(1, 0); c != (color.NRGBA{G: 255, A: 255}) {
		t.Fatalf("unexpected pixel %v", c)
	}
	if _, err := ImageFromRGB([]byte{1, 2}, 2, 1); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func TestAnalyzeQuality(t *testing.T) {
	flat := AnalyzeQuality(imaging.New(50, 50, color.Gray{Y: 128}))
	if flat < 39 || flat > 41 {
		t.Fatalf("expected ~40 for flat mid-gray, got %f", flat)
	}
}
