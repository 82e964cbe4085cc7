// Package polyclip implements the kernel.Kernel interface using the
// github.com/akavel/polyclip-go polygon clipping library.
package polyclip

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	clip "github.com/akavel/polyclip-go"
	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/ambadran/PCB-CAM/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Compile-time interface check.
var _ kernel.Kernel = (*PolyclipKernel)(nil)

// polyRegion wraps a clip.Polygon to implement kernel.Region. Contours carry
// no orientation; holes are the contours nested at odd depth. A region whose
// construction failed carries err, which spreads through every operation it
// takes part in and is reported by Components.
type polyRegion struct {
	p   clip.Polygon
	err error

	once   sync.Once
	rings  []geom.Ring
	depths []int
	area   float64
}

// layout converts the contours once and caches their nesting.
func (r *polyRegion) layout() ([]geom.Ring, []int) {
	r.once.Do(func() {
		r.rings = toRings(r.p)
		r.depths = nesting(r.rings)
		for i, ring := range r.rings {
			if r.depths[i]%2 == 0 {
				r.area += ring.Area()
			} else {
				r.area -= ring.Area()
			}
		}
	})
	return r.rings, r.depths
}

func (r *polyRegion) Bounds() sdf.Box2 {
	var box sdf.Box2
	first := true
	for _, c := range r.p {
		for _, pt := range c {
			v := v2.Vec{X: pt.X, Y: pt.Y}
			if first {
				box = sdf.Box2{Min: v, Max: v}
				first = false
				continue
			}
			box = box.Include(v)
		}
	}
	return box
}

func (r *polyRegion) Area() float64 {
	r.layout()
	return r.area
}

func (r *polyRegion) Empty() bool {
	return r.err == nil && len(r.p) == 0
}

// PolyclipKernel implements kernel.Kernel using polyclip-go.
type PolyclipKernel struct{}

// New returns a new PolyclipKernel.
func New() *PolyclipKernel {
	return &PolyclipKernel{}
}

// unwrap extracts the underlying region.
func unwrap(r kernel.Region) *polyRegion {
	return r.(*polyRegion)
}

// wrap creates a kernel.Region from a polygon.
func wrap(p clip.Polygon) *polyRegion {
	return &polyRegion{p: p}
}

// FromShape converts a closed shape. Holes are cut out of the exterior with
// a difference so the result does not depend on contour orientation.
func (k *PolyclipKernel) FromShape(s geom.Shape) (kernel.Region, error) {
	if s.Open {
		return nil, fmt.Errorf("polyclip: open polyline has no area")
	}
	ext := s.Exterior.Clean()
	if len(ext) < 3 {
		return nil, fmt.Errorf("polyclip: exterior has %d points", len(ext))
	}
	outer := wrap(clip.Polygon{toContour(ext)})
	if len(s.Holes) == 0 {
		return outer, nil
	}
	var holes clip.Polygon
	for _, h := range s.Holes {
		h = h.Clean()
		if len(h) < 3 {
			continue
		}
		holes = append(holes, toContour(h))
	}
	if len(holes) == 0 {
		return outer, nil
	}
	r := construct(clip.DIFFERENCE, outer, wrap(holes))
	if r.err != nil {
		return nil, r.err
	}
	return r, nil
}

// Empty returns the empty region.
func (k *PolyclipKernel) Empty() kernel.Region {
	return wrap(nil)
}

// Union returns a ∪ b.
func (k *PolyclipKernel) Union(a, b kernel.Region) kernel.Region {
	ra, rb := unwrap(a), unwrap(b)
	if err := errOf(ra, rb); err != nil {
		return &polyRegion{err: err}
	}
	switch {
	case len(ra.p) == 0:
		return wrap(clonePolygon(rb.p))
	case len(rb.p) == 0, samePolygon(ra.p, rb.p):
		return wrap(clonePolygon(ra.p))
	}
	return construct(clip.UNION, ra, rb)
}

// Difference returns a − b.
func (k *PolyclipKernel) Difference(a, b kernel.Region) kernel.Region {
	ra, rb := unwrap(a), unwrap(b)
	if err := errOf(ra, rb); err != nil {
		return &polyRegion{err: err}
	}
	switch {
	case len(ra.p) == 0 || len(rb.p) == 0:
		return wrap(clonePolygon(ra.p))
	case samePolygon(ra.p, rb.p):
		return wrap(nil)
	}
	return construct(clip.DIFFERENCE, ra, rb)
}

// Intersection returns a ∩ b.
func (k *PolyclipKernel) Intersection(a, b kernel.Region) kernel.Region {
	ra, rb := unwrap(a), unwrap(b)
	if err := errOf(ra, rb); err != nil {
		return &polyRegion{err: err}
	}
	switch {
	case len(ra.p) == 0 || len(rb.p) == 0:
		return wrap(nil)
	case samePolygon(ra.p, rb.p):
		return wrap(clonePolygon(ra.p))
	}
	return construct(clip.INTERSECTION, ra, rb)
}

// Contains applies the even-odd rule across all contours.
func (k *PolyclipKernel) Contains(r kernel.Region, p v2.Vec) bool {
	in := false
	rings, _ := unwrap(r).layout()
	for _, ring := range rings {
		if ring.Contains(p) {
			in = !in
		}
	}
	return in
}

// Components groups the contours of r into shapes: every contour at even
// nesting depth is an exterior, and every odd-depth contour becomes a hole of
// the smallest exterior directly enclosing it. Exteriors are returned
// counterclockwise, holes clockwise, ordered by their lower-left corner.
func (k *PolyclipKernel) Components(r kernel.Region) ([]geom.Shape, error) {
	pr := unwrap(r)
	if pr.err != nil {
		return nil, pr.err
	}
	// The cached rings stay private; callers get copies.
	rings, depths := pr.layout()

	index := make(map[int]int) // ring index -> output position
	var out []geom.Shape
	for i, ring := range rings {
		if depths[i]%2 != 0 {
			continue
		}
		index[i] = len(out)
		out = append(out, geom.Shape{Exterior: slices.Clone(ring.CCW())})
	}
	for i, ring := range rings {
		if depths[i]%2 == 0 {
			continue
		}
		parent := -1
		parentArea := math.Inf(1)
		for j, cand := range rings {
			if j == i || depths[j] != depths[i]-1 {
				continue
			}
			if !encloses(cand, ring) {
				continue
			}
			if a := cand.Area(); a < parentArea {
				parent, parentArea = j, a
			}
		}
		if parent < 0 {
			return nil, fmt.Errorf("polyclip: hole contour %d has no enclosing exterior", i)
		}
		s := &out[index[parent]]
		s.Holes = append(s.Holes, slices.Clone(ring.CW()))
	}

	sort.SliceStable(out, func(a, b int) bool {
		ba, bb := out[a].Bounds(), out[b].Bounds()
		if ba.Min.X != bb.Min.X {
			return ba.Min.X < bb.Min.X
		}
		return ba.Min.Y < bb.Min.Y
	})
	return out, nil
}

func errOf(rs ...*polyRegion) error {
	for _, r := range rs {
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

func samePolygon(a, b clip.Polygon) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if !a[i][j].Equals(b[i][j]) {
				return false
			}
		}
	}
	return true
}

func clonePolygon(p clip.Polygon) clip.Polygon {
	out := make(clip.Polygon, len(p))
	for i, c := range p {
		out[i] = append(clip.Contour(nil), c...)
	}
	return out
}

func toContour(r geom.Ring) clip.Contour {
	c := make(clip.Contour, len(r))
	for i, p := range r {
		c[i] = clip.Point{X: p.X, Y: p.Y}
	}
	return c
}

// toRings converts contours, dropping slivers the clipper can leave behind.
func toRings(p clip.Polygon) []geom.Ring {
	rings := make([]geom.Ring, 0, len(p))
	for _, c := range p {
		ring := make(geom.Ring, len(c))
		for i, pt := range c {
			ring[i] = v2.Vec{X: pt.X, Y: pt.Y}
		}
		ring = ring.Clean()
		if len(ring) < 3 || ring.Area() <= geom.Eps {
			continue
		}
		rings = append(rings, ring)
	}
	return rings
}

// nesting returns, for every ring, how many other rings enclose it.
func nesting(rings []geom.Ring) []int {
	depths := make([]int, len(rings))
	for i, inner := range rings {
		for j, outer := range rings {
			if i != j && encloses(outer, inner) {
				depths[i]++
			}
		}
	}
	return depths
}

// encloses reports whether inner lies inside outer. Contours returned by the
// clipper never cross, so one vertex of inner that is not on outer's
// boundary decides it.
func encloses(outer, inner geom.Ring) bool {
	ob, ib := outer.Bounds(), inner.Bounds()
	if ib.Min.X < ob.Min.X-geom.Eps || ib.Min.Y < ob.Min.Y-geom.Eps ||
		ib.Max.X > ob.Max.X+geom.Eps || ib.Max.Y > ob.Max.Y+geom.Eps {
		return false
	}
	if outer.Area() <= inner.Area() {
		return false
	}
	for _, p := range inner {
		if onBoundary(outer, p) {
			continue
		}
		return outer.Contains(p)
	}
	// Every vertex touches outer: decide on the centroid of the first edge.
	mid := inner[0].Add(inner[1]).MulScalar(0.5)
	return outer.Contains(mid)
}

func onBoundary(r geom.Ring, p v2.Vec) bool {
	n := len(r)
	for i := 0; i < n; i++ {
		a, b := r[i], r[(i+1)%n]
		if geom.SegmentDistance(p, a, b) <= 1e-7 {
			return true
		}
	}
	return false
}
