package alg

import "errors"

var ErrEmptyRectSet = errors.New("cannot merge an empty set of rectangles")

// Rect is an axis-aligned rectangle in page space (PDF points, top-left origin).
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// MergeRects returns the smallest rectangle enclosing every rect in rects.
func MergeRects(rects []Rect) (Rect, error) {
	if len(rects) == 0 {
		return Rect{}, ErrEmptyRectSet
	}

	merged := rects[0]
	for _, r := range rects[1:] {
		merged.X0 = min(merged.X0, r.X0)
		merged.Y0 = min(merged.Y0, r.Y0)
		merged.X1 = max(merged.X1, r.X1)
		merged.Y1 = max(merged.Y1, r.Y1)
	}
	return merged, nil
}
