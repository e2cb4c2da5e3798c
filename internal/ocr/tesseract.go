// Package ocr provides an optional text-recognition fallback for pages
// without an extractable text layer.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"pdf-layout-server/internal/domain"
)

// Runner lets us stub the external command in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// Tesseract recognizes text by invoking the tesseract binary with TSV
// output, which carries word-level bounding boxes.
type Tesseract struct {
	command string
	runner  Runner
	logger  domain.Logger
}

// NewTesseract creates the OCR provider. command is the tesseract binary
// path or name.
func NewTesseract(command string, logger domain.Logger) *Tesseract {
	return &Tesseract{command: command, runner: execRunner{}, logger: logger}
}

// Recognize runs OCR over a rasterized page and returns word spans in the
// order tesseract reads them. Fails with OcrUnavailable when the binary is
// missing or exits abnormally.
func (t *Tesseract) Recognize(ctx context.Context, png []byte) ([]domain.TextSpan, error) {
	tmpDir, err := os.MkdirTemp("", "page-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOCRUnavailable, err)
	}
	defer os.RemoveAll(tmpDir)

	imagePath := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(imagePath, png, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOCRUnavailable, err)
	}

	stdout, stderr, err := t.runner.Run(ctx, t.command, imagePath, "stdout", "tsv")
	if err != nil {
		t.logger.Warn("tesseract invocation failed", "error", err, "stderr", truncate(string(stderr), 2048))
		return nil, fmt.Errorf("%w: %v", domain.ErrOCRUnavailable, err)
	}

	return parseTSV(stdout), nil
}

// TSV columns emitted by tesseract.
const (
	colLevel  = 0
	colLeft   = 6
	colTop    = 7
	colWidth  = 8
	colHeight = 9
	colConf   = 10
	colText   = 11
)

// wordLevel marks word rows in tesseract's TSV hierarchy.
const wordLevel = 5

// parseTSV converts tesseract TSV output into word spans. Rows that are not
// words, carry no text, or have negative confidence (layout artifacts) are
// skipped.
func parseTSV(tsv []byte) []domain.TextSpan {
	var spans []domain.TextSpan
	lines := strings.Split(string(tsv), "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header
		}
		cols := strings.Split(line, "\t")
		if len(cols) <= colText {
			continue
		}
		if level, err := strconv.Atoi(cols[colLevel]); err != nil || level != wordLevel {
			continue
		}
		conf, err := strconv.ParseFloat(cols[colConf], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(cols[colText])
		if text == "" {
			continue
		}
		left, err1 := strconv.ParseFloat(cols[colLeft], 64)
		top, err2 := strconv.ParseFloat(cols[colTop], 64)
		width, err3 := strconv.ParseFloat(cols[colWidth], 64)
		height, err4 := strconv.ParseFloat(cols[colHeight], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || width < 0 || height < 0 {
			continue
		}
		spans = append(spans, domain.TextSpan{
			Text: text,
			Seq:  len(spans),
			Box: domain.BoundingBox{
				MinX: left,
				MinY: top,
				MaxX: left + width,
				MaxY: top + height,
			},
		})
	}
	return spans
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
