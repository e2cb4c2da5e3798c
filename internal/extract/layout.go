package extract

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"pdf-layout-server/internal/domain"

	"golang.org/x/net/html"
)

// Geometry estimation for spans whose styled export lacks explicit extents:
// MuPDF's HTML export positions blocks with top/left and carries font sizes,
// but not widths, so box extents are derived from the font size.
const (
	defaultFontSize  = 12.0
	lineHeightFactor = 1.2
	charWidthFactor  = 0.5
)

// ParseLayout recovers positioned text spans from MuPDF's styled HTML page
// export. Span sequence follows document order, which matches the content
// stream's reading order.
func ParseLayout(src []byte) []domain.TextSpan {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil || doc == nil {
		return nil
	}

	var spans []domain.TextSpan
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode {
			style := attrValue(n, "style")
			top, topOK := styleLength(style, "top")
			left, leftOK := styleLength(style, "left")
			if topOK && leftOK {
				text := collapseSpaces(collectText(n))
				if text != "" {
					size := subtreeFontSize(n)
					box := domain.BoundingBox{
						MinX: left,
						MinY: top,
						MaxX: left + charWidthFactor*size*float64(utf8.RuneCountInString(text)),
						MaxY: top + lineHeightFactor*size,
					}
					spans = append(spans, domain.TextSpan{Text: text, Box: box, Seq: len(spans)})
				}
				// Positioned blocks hold inline content only; no nested
				// positioned blocks to descend into.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return spans
}

// synthesizeLineSpans builds estimated per-line spans from plain page text,
// laid out top-to-bottom at a standard margin.
func synthesizeLineSpans(text string) []domain.TextSpan {
	const margin = 72.0
	lineHeight := lineHeightFactor * defaultFontSize

	var spans []domain.TextSpan
	for _, line := range strings.Split(text, "\n") {
		line = collapseSpaces(line)
		if line == "" {
			continue
		}
		top := margin + float64(len(spans))*lineHeight
		spans = append(spans, domain.TextSpan{
			Text: line,
			Seq:  len(spans),
			Box: domain.BoundingBox{
				MinX: margin,
				MinY: top,
				MaxX: margin + charWidthFactor*defaultFontSize*float64(utf8.RuneCountInString(line)),
				MaxY: top + lineHeight,
			},
		})
	}
	return spans
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// styleLength extracts a CSS length property (pt or px) from an inline
// style declaration.
func styleLength(style, property string) (float64, bool) {
	for _, decl := range strings.Split(style, ";") {
		key, value, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(key) != property {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.TrimSuffix(value, "pt")
		value = strings.TrimSuffix(value, "px")
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// subtreeFontSize returns the first font-size declared on the node or its
// descendants, falling back to a standard body size.
func subtreeFontSize(n *html.Node) float64 {
	if n.Type == html.ElementNode {
		if size, ok := styleLength(attrValue(n, "style"), "font-size"); ok && size > 0 {
			return size
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if size := subtreeFontSize(c); size != defaultFontSize {
			return size
		}
	}
	return defaultFontSize
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
