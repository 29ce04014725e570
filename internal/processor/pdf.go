// pdf.go - Rasterizes PDF uploads into page images with pdftoppm

package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultPDFDPI is used when no positive DPI is configured.
const DefaultPDFDPI = 144

// ErrNoPages is returned when pdftoppm produced no page images.
var ErrNoPages = errors.New("no rendered pages found")

// RenderPDFPages writes data to a scratch directory, rasterizes every page and
// returns the decoded pages in page order.
func RenderPDFPages(ctx context.Context, data []byte, dpi int) ([]*image.NRGBA, error) {
	if dpi <= 0 {
		dpi = DefaultPDFDPI
	}

	workDir, err := os.MkdirTemp("", "ocr-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pdfPath := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}

	prefix := filepath.Join(workDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-jpeg", "-r", strconv.Itoa(dpi), pdfPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	matches, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoPages
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageIndexFromName(matches[i]) < pageIndexFromName(matches[j])
	})

	pages := make([]*image.NRGBA, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range matches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := imaging.Open(path)
			if err != nil {
				return fmt.Errorf("failed to decode page %d: %w", i+1, err)
			}
			pages[i] = imaging.Clone(img)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"pages": len(pages), "dpi": dpi}).Info("📄 PDF rasterized")
	return pages, nil
}

// pageIndexFromName maps "page-03.jpg" to 2.
func pageIndexFromName(path string) int {
	base := filepath.Base(path)
	if idx := strings.LastIndex(base, "-"); idx >= 0 {
		number := strings.TrimSuffix(base[idx+1:], ".jpg")
		if v, err := strconv.Atoi(number); err == nil {
			return v - 1
		}
	}
	return 0
}
