// Package geom holds the planar shapes produced by primitive reconstruction
// and consumed by the boolean kernel and the path extractor.
package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"gonum.org/v1/gonum/floats"
)

// Eps is the distance below which two points are treated as the same vertex.
const Eps = 1e-9

// Ring is a closed sequence of points. The closing edge from the last point
// back to the first is implicit.
type Ring []v2.Vec

// Shape is either a closed polygon with optional holes or, when Open is set,
// a polyline stored in Exterior.
type Shape struct {
	Exterior Ring
	Holes    []Ring
	Open     bool
}

// Polyline returns an open shape through pts.
func Polyline(pts ...v2.Vec) Shape {
	return Shape{Exterior: Ring(pts), Open: true}
}

// Polygon returns a closed shape.
func Polygon(exterior Ring, holes ...Ring) Shape {
	return Shape{Exterior: exterior, Holes: holes}
}

// SignedArea is positive for counterclockwise rings.
func (r Ring) SignedArea() float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	var a float64
	for i := 0; i < n; i++ {
		p, q := r[i], r[(i+1)%n]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// Area is the unsigned enclosed area.
func (r Ring) Area() float64 {
	return math.Abs(r.SignedArea())
}

// Bounds returns the extent of the ring. An empty ring has a zero box.
func (r Ring) Bounds() sdf.Box2 {
	if len(r) == 0 {
		return sdf.Box2{}
	}
	b := sdf.Box2{Min: r[0], Max: r[0]}
	for _, p := range r[1:] {
		b = b.Include(p)
	}
	return b
}

// Reverse returns the ring in the opposite winding.
func (r Ring) Reverse() Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

// CCW returns the ring wound counterclockwise.
func (r Ring) CCW() Ring {
	if r.SignedArea() < 0 {
		return r.Reverse()
	}
	return r
}

// CW returns the ring wound clockwise.
func (r Ring) CW() Ring {
	if r.SignedArea() > 0 {
		return r.Reverse()
	}
	return r
}

// Clean drops consecutive duplicate points, including a repeated closing
// point.
func (r Ring) Clean() Ring {
	out := make(Ring, 0, len(r))
	for _, p := range r {
		if len(out) > 0 && p.Equals(out[len(out)-1], Eps) {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0].Equals(out[len(out)-1], Eps) {
		out = out[:len(out)-1]
	}
	return out
}

// Contains reports whether p lies inside the ring (even-odd rule).
func (r Ring) Contains(p v2.Vec) bool {
	in := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

// SelfIntersects reports whether any two non-adjacent edges of the ring
// cross or touch.
func (r Ring) SelfIntersects() bool {
	n := len(r)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := r[i], r[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b1, b2 := r[j], r[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// Distance returns the distance from p to the nearest edge of the ring.
func (r Ring) Distance(p v2.Vec) float64 {
	d := math.Inf(1)
	n := len(r)
	for i := range r {
		d = math.Min(d, SegmentDistance(p, r[i], r[(i+1)%n]))
	}
	return d
}

// SegmentDistance returns the distance from p to the segment ab.
func SegmentDistance(p, a, b v2.Vec) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Sub(a).Length()
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Sub(a.Add(ab.MulScalar(t))).Length()
}

func cross(o, a, b v2.Vec) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func onSegment(p, q, r v2.Vec) bool {
	return math.Min(p.X, r.X)-Eps <= q.X && q.X <= math.Max(p.X, r.X)+Eps &&
		math.Min(p.Y, r.Y)-Eps <= q.Y && q.Y <= math.Max(p.Y, r.Y)+Eps
}

func segmentsIntersect(p1, p2, q1, q2 v2.Vec) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > Eps && d2 < -Eps) || (d1 < -Eps && d2 > Eps)) &&
		((d3 > Eps && d4 < -Eps) || (d3 < -Eps && d4 > Eps)) {
		return true
	}
	switch {
	case math.Abs(d1) <= Eps && onSegment(q1, p1, q2):
		return true
	case math.Abs(d2) <= Eps && onSegment(q1, p2, q2):
		return true
	case math.Abs(d3) <= Eps && onSegment(p1, q1, p2):
		return true
	case math.Abs(d4) <= Eps && onSegment(p1, q2, p2):
		return true
	}
	return false
}

// Area is the exterior area minus the hole areas. Open shapes have none.
func (s Shape) Area() float64 {
	if s.Open {
		return 0
	}
	a := s.Exterior.Area()
	for _, h := range s.Holes {
		a -= h.Area()
	}
	return a
}

// Bounds returns the extent of the exterior.
func (s Shape) Bounds() sdf.Box2 {
	return s.Exterior.Bounds()
}

// Contains reports whether p is inside the exterior and outside every hole.
func (s Shape) Contains(p v2.Vec) bool {
	if s.Open || !s.Exterior.Contains(p) {
		return false
	}
	for _, h := range s.Holes {
		if h.Contains(p) {
			return false
		}
	}
	return true
}

// Validation failures.
var (
	ErrTooFewPoints   = errors.New("ring has fewer than 3 distinct points")
	ErrZeroArea       = errors.New("ring encloses no area")
	ErrSelfIntersects = errors.New("ring intersects itself")
)

// Validate checks that a closed shape is usable by boolean operations.
// checkCrossing enables the quadratic self-intersection test, which
// generated shapes do not need.
func (s Shape) Validate(checkCrossing bool) error {
	if s.Open {
		if len(s.Exterior) < 2 {
			return fmt.Errorf("polyline: %w", ErrTooFewPoints)
		}
		return nil
	}
	rings := append([]Ring{s.Exterior}, s.Holes...)
	for i, r := range rings {
		name := "exterior"
		if i > 0 {
			name = fmt.Sprintf("hole %d", i-1)
		}
		if len(r) < 3 {
			return fmt.Errorf("%s: %w", name, ErrTooFewPoints)
		}
		// A symmetric bowtie cancels to zero area; report the crossing.
		if checkCrossing && r.SelfIntersects() {
			return fmt.Errorf("%s: %w", name, ErrSelfIntersects)
		}
		if r.Area() <= Eps {
			return fmt.Errorf("%s: %w", name, ErrZeroArea)
		}
	}
	return nil
}

// Angles returns n evenly spaced angles from start to start+sweep inclusive.
func Angles(start, sweep float64, n int) []float64 {
	if n < 2 {
		n = 2
	}
	return floats.Span(make([]float64, n), start, start+sweep)
}

// ArcPoints samples n points of the circle (c, r) from start sweeping by
// sweep radians, both ends included.
func ArcPoints(c v2.Vec, r, start, sweep float64, n int) []v2.Vec {
	ts := Angles(start, sweep, n)
	pts := make([]v2.Vec, len(ts))
	for i, t := range ts {
		pts[i] = v2.Vec{X: c.X + r*math.Cos(t), Y: c.Y + r*math.Sin(t)}
	}
	return pts
}

// Circle returns an n-gon inscribed in the circle (c, r), counterclockwise,
// starting at angle 0. When n is a multiple of 4 the four axis extremes are
// vertices.
func Circle(c v2.Vec, r float64, n int) Ring {
	return EllipseRing(c, r, r, n)
}

// EllipseRing returns an n-gon inscribed in the axis-aligned ellipse with
// semi-axes rx and ry.
func EllipseRing(c v2.Vec, rx, ry float64, n int) Ring {
	if n < 3 {
		n = 3
	}
	pts := make(Ring, n)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = v2.Vec{X: c.X + rx*math.Cos(t), Y: c.Y + ry*math.Sin(t)}
	}
	return pts
}

// Box returns the counterclockwise rectangle between min and max.
func Box(min, max v2.Vec) Ring {
	return Ring{
		{X: min.X, Y: min.Y},
		{X: max.X, Y: min.Y},
		{X: max.X, Y: max.Y},
		{X: min.X, Y: max.Y},
	}
}
