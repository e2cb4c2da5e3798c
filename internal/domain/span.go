package domain

import "math"

// BoundingBox is an axis-aligned rectangle in page-coordinate units
// (PDF points, origin at the top-left of the rendered page).
type BoundingBox struct {
	MinX float64 `json:"x_min"`
	MinY float64 `json:"y_min"`
	MaxX float64 `json:"x_max"`
	MaxY float64 `json:"y_max"`
}

// Valid reports whether the box is well formed (min <= max on both axes).
func (b BoundingBox) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Area returns the box area.
func (b BoundingBox) Area() float64 {
	return (b.MaxX - b.MinX) * (b.MaxY - b.MinY)
}

// Centroid returns the center point of the box.
func (b BoundingBox) Centroid() (float64, float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// DistanceTo returns the Euclidean distance from the point to the nearest
// edge of the box. Zero when the point is inside.
func (b BoundingBox) DistanceTo(x, y float64) float64 {
	dx := math.Max(math.Max(b.MinX-x, 0), x-b.MaxX)
	dy := math.Max(math.Max(b.MinY-y, 0), y-b.MaxY)
	return math.Hypot(dx, dy)
}

// Union returns the smallest box covering both boxes.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// TextSpan is a contiguous run of text with its bounding box on one page.
// Seq is the span's position in reading order as produced by the source
// layout; it is unique within a page and breaks geometric ties.
type TextSpan struct {
	Text string      `json:"text"`
	Box  BoundingBox `json:"box"`
	Seq  int         `json:"seq"`
}

// SpanMatch is the result of a coordinate query.
type SpanMatch struct {
	DocumentID string      `json:"document_id"`
	PageIndex  int         `json:"page_index"`
	Text       string      `json:"text"`
	Box        BoundingBox `json:"box"`
	Seq        int         `json:"seq"`
}
