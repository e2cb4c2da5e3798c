package ocr

import (
	"context"
	"errors"
	"testing"

	"pdf-layout-server/internal/domain"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t612\t792\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t84\t69\t200\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t84\t69\t80\t20\t96.5\tHello\n" +
	"5\t1\t1\t1\t1\t2\t170\t69\t90\t20\t91.2\tworld\n" +
	"5\t1\t1\t1\t1\t3\t270\t69\t10\t20\t95.0\t \n"

func TestParseTSV(t *testing.T) {
	spans := parseTSV([]byte(sampleTSV))
	if len(spans) != 2 {
		t.Fatalf("expected 2 word spans, got %d", len(spans))
	}

	if spans[0].Text != "Hello" || spans[1].Text != "world" {
		t.Errorf("unexpected texts: %q, %q", spans[0].Text, spans[1].Text)
	}
	want := domain.BoundingBox{MinX: 84, MinY: 69, MaxX: 164, MaxY: 89}
	if spans[0].Box != want {
		t.Errorf("span 0 box = %+v, want %+v", spans[0].Box, want)
	}
	if spans[0].Seq != 0 || spans[1].Seq != 1 {
		t.Errorf("sequence not in reading order: %d, %d", spans[0].Seq, spans[1].Seq)
	}
}

func TestParseTSVEmptyAndGarbage(t *testing.T) {
	if spans := parseTSV(nil); len(spans) != 0 {
		t.Errorf("expected no spans from empty output, got %d", len(spans))
	}
	if spans := parseTSV([]byte("not\ttsv\nat all")); len(spans) != 0 {
		t.Errorf("expected no spans from garbage, got %d", len(spans))
	}
}

type stubRunner struct {
	stdout []byte
	err    error
}

func (s stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return s.stdout, nil, s.err
}

func TestRecognize(t *testing.T) {
	tess := NewTesseract("tesseract", nopLogger{})
	tess.runner = stubRunner{stdout: []byte(sampleTSV)}

	spans, err := tess.Recognize(context.Background(), []byte("fake png"))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if len(spans) != 2 {
		t.Errorf("expected 2 spans, got %d", len(spans))
	}
}

func TestRecognizeCommandFailure(t *testing.T) {
	tess := NewTesseract("tesseract", nopLogger{})
	tess.runner = stubRunner{err: errors.New("executable not found")}

	_, err := tess.Recognize(context.Background(), []byte("fake png"))
	if !errors.Is(err, domain.ErrOCRUnavailable) {
		t.Errorf("expected ErrOCRUnavailable, got %v", err)
	}
}

type nopLogger struct{}

func (nopLogger) Info(msg string, fields ...interface{})             {}
func (nopLogger) Error(msg string, err error, fields ...interface{}) {}
func (nopLogger) Debug(msg string, fields ...interface{})            {}
func (nopLogger) Warn(msg string, fields ...interface{})             {}
