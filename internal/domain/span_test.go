package domain

import (
	"math"
	"testing"
)

func TestBoundingBoxContains(t *testing.T) {
	b := BoundingBox{MinX: 100, MinY: 380, MaxX: 200, MaxY: 420}

	tests := []struct {
		name string
		x, y float64
		want bool
	}{
		{"inside", 150, 400, true},
		{"on edge", 100, 380, true},
		{"on opposite corner", 200, 420, true},
		{"left of box", 99, 400, false},
		{"below box", 150, 421, false},
		{"far outside", 1000, 1000, false},
	}
	for _, tt := range tests {
		if got := b.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("%s: Contains(%v,%v) = %v, want %v", tt.name, tt.x, tt.y, got, tt.want)
		}
	}
}

func TestBoundingBoxDistanceTo(t *testing.T) {
	b := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	if d := b.DistanceTo(5, 5); d != 0 {
		t.Errorf("inside point distance = %v, want 0", d)
	}
	if d := b.DistanceTo(20, 5); d != 10 {
		t.Errorf("horizontal distance = %v, want 10", d)
	}
	if d := b.DistanceTo(13, 14); math.Abs(d-5) > 1e-9 {
		t.Errorf("diagonal distance = %v, want 5", d)
	}
}

func TestBoundingBoxValid(t *testing.T) {
	if !(BoundingBox{MinX: 0, MinY: 0, MaxX: 0, MaxY: 0}).Valid() {
		t.Error("zero-size box should be valid")
	}
	if (BoundingBox{MinX: 10, MinY: 0, MaxX: 5, MaxY: 2}).Valid() {
		t.Error("inverted box should be invalid")
	}
}

func TestBoundingBoxUnion(t *testing.T) {
	a := BoundingBox{MinX: 0, MinY: 5, MaxX: 10, MaxY: 15}
	b := BoundingBox{MinX: -3, MinY: 8, MaxX: 7, MaxY: 30}
	got := a.Union(b)
	want := BoundingBox{MinX: -3, MinY: 5, MaxX: 10, MaxY: 30}
	if got != want {
		t.Errorf("Union = %+v, want %+v", got, want)
	}
}
