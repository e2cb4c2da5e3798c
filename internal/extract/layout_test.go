package extract

import (
	"math"
	"testing"

	"pdf-layout-server/internal/domain"
)

const samplePageHTML = `
<html><body>
<div id="page0" style="position:relative;width:612.0pt;height:792.0pt">
<p style="position:absolute;white-space:pre;margin:0;padding:0;top:69.6pt;left:84.0pt">
<span style="font-family:serif;font-size:18.0pt">Chapter One</span></p>
<p style="position:absolute;white-space:pre;margin:0;padding:0;top:120.0pt;left:84.0pt">
<span style="font-family:serif;font-size:12.0pt">It was a dark and stormy night.</span></p>
<p style="position:absolute;white-space:pre;margin:0;padding:0;top:140.4pt;left:84.0pt">
<span style="font-family:serif;font-size:12.0pt">The rain fell in torrents.</span></p>
</div>
</body></html>`

func TestParseLayout(t *testing.T) {
	spans := ParseLayout([]byte(samplePageHTML))
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	if spans[0].Text != "Chapter One" {
		t.Errorf("span 0 text = %q", spans[0].Text)
	}
	if spans[0].Box.MinX != 84 || spans[0].Box.MinY != 69.6 {
		t.Errorf("span 0 position = (%v,%v), want (84,69.6)", spans[0].Box.MinX, spans[0].Box.MinY)
	}
	// Heading box derives its height from the declared 18pt font.
	if got, want := spans[0].Box.MaxY-spans[0].Box.MinY, 18.0*lineHeightFactor; math.Abs(got-want) > 1e-9 {
		t.Errorf("span 0 height = %v, want %v", got, want)
	}

	// Document order defines the sequence.
	for i, s := range spans {
		if s.Seq != i {
			t.Errorf("span %d has seq %d", i, s.Seq)
		}
		if !s.Box.Valid() {
			t.Errorf("span %d has invalid box %+v", i, s.Box)
		}
	}
	if spans[1].Box.MinY >= spans[2].Box.MinY {
		t.Errorf("body spans out of order: %v >= %v", spans[1].Box.MinY, spans[2].Box.MinY)
	}
}

func TestParseLayoutIgnoresUnpositionedContent(t *testing.T) {
	src := `<html><body><p>plain paragraph with no geometry</p></body></html>`
	if spans := ParseLayout([]byte(src)); len(spans) != 0 {
		t.Errorf("expected no spans, got %d", len(spans))
	}
}

func TestParseLayoutEmptyInput(t *testing.T) {
	if spans := ParseLayout(nil); len(spans) != 0 {
		t.Errorf("expected no spans from empty input, got %d", len(spans))
	}
}

func TestSynthesizeLineSpans(t *testing.T) {
	spans := synthesizeLineSpans("first line\n\nsecond line\n")
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Text != "first line" || spans[1].Text != "second line" {
		t.Errorf("unexpected texts: %q, %q", spans[0].Text, spans[1].Text)
	}
	if spans[1].Box.MinY <= spans[0].Box.MinY {
		t.Error("lines should stack top to bottom")
	}
	for _, s := range spans {
		if !s.Box.Valid() || s.Box.Area() <= 0 {
			t.Errorf("span %d has degenerate box %+v", s.Seq, s.Box)
		}
	}
}

func TestDefaultTextLayerPredicate(t *testing.T) {
	e := NewEngine(testLogger{})
	if e.hasTextLayer("   \n\t ") {
		t.Error("whitespace-only page should have no text layer")
	}
	if !e.hasTextLayer("some words") {
		t.Error("page with words should have a text layer")
	}

	custom := NewEngine(testLogger{}, WithTextLayerPredicate(func(s string) bool { return len(s) > 100 }))
	if custom.hasTextLayer("short") {
		t.Error("custom predicate should be honored")
	}
}

func TestStyleLength(t *testing.T) {
	tests := []struct {
		style    string
		property string
		want     float64
		ok       bool
	}{
		{"top:69.6pt;left:84.0pt", "top", 69.6, true},
		{"top:69.6pt;left:84.0pt", "left", 84, true},
		{"font-size:10.5px", "font-size", 10.5, true},
		{"position:absolute", "top", 0, false},
		{"top:bogus", "top", 0, false},
	}
	for _, tt := range tests {
		got, ok := styleLength(tt.style, tt.property)
		if got != tt.want || ok != tt.ok {
			t.Errorf("styleLength(%q,%q) = (%v,%v), want (%v,%v)", tt.style, tt.property, got, ok, tt.want, tt.ok)
		}
	}
}

type testLogger struct{}

func (testLogger) Info(msg string, fields ...interface{})             {}
func (testLogger) Error(msg string, err error, fields ...interface{}) {}
func (testLogger) Debug(msg string, fields ...interface{})            {}
func (testLogger) Warn(msg string, fields ...interface{})             {}

var _ domain.Logger = testLogger{}
