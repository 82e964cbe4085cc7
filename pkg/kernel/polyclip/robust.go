package polyclip

import (
	"errors"
	"fmt"
	"math"

	clip "github.com/akavel/polyclip-go"
	"github.com/ambadran/PCB-CAM/pkg/geom"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ErrInconsistent is reported when the clipper keeps returning a result
// whose area contradicts its operands.
var ErrInconsistent = errors.New("polyclip: inconsistent boolean result")

const (
	// touchTol is how close a vertex may come to the other operand's
	// boundary before the pair is treated as touching.
	touchTol = geom.Eps
	// growStep is the outward offset of the second operand on the first
	// retry; each further retry grows it by growFactor. The clipper merges
	// lines closer than about 1e-4, so small offsets may not be enough.
	growStep   = 1e-7
	growFactor = 8
	retries    = 5
	// areaTol is the relative slack of the inclusion-exclusion check.
	areaTol = 1e-7

	goldenAngle = 2.399963229728653
)

var opNames = map[clip.Op]string{
	clip.UNION:        "union",
	clip.INTERSECTION: "intersection",
	clip.DIFFERENCE:   "difference",
}

// construct computes a <op> b. The sweep mishandles vertices lying on the
// other polygon's boundary, so touching operands are retried with b grown
// outward and nudged off its grid; every result must satisfy
// |a|+|b| = |a∪b|+|a∩b| for the operands actually clipped.
func construct(op clip.Op, a, b *polyRegion) *polyRegion {
	d := growStep
	for i := 0; i <= retries; i++ {
		ob := b
		if i > 0 {
			if i > 1 {
				d *= growFactor
			}
			shift := v2.Vec{X: math.Cos(float64(i) * goldenAngle), Y: math.Sin(float64(i) * goldenAngle)}
			ob = wrap(grow(b, d, shift.MulScalar(d/4)))
		}
		if i < retries && touching(a.p, ob.p, touchTol) {
			continue
		}
		res := wrap(a.p.Construct(op, ob.p))
		if consistent(op, a, ob, res) {
			return res
		}
	}
	return &polyRegion{err: fmt.Errorf("%w: %s of %d and %d contours after %d retries",
		ErrInconsistent, opNames[op], len(a.p), len(b.p), retries)}
}

// consistent checks res against the inclusion-exclusion identity, using the
// complementary operation on the same operands.
func consistent(op clip.Op, a, b, res *polyRegion) bool {
	aa, ab, ar := a.Area(), b.Area(), res.Area()
	tol := areaTol * math.Max(1, aa+ab)
	switch op {
	case clip.UNION:
		ai := wrap(a.p.Construct(clip.INTERSECTION, b.p)).Area()
		return ar >= math.Max(aa, ab)-tol && math.Abs(aa+ab-ar-ai) <= tol
	case clip.DIFFERENCE:
		ai := wrap(a.p.Construct(clip.INTERSECTION, b.p)).Area()
		return ar <= aa+tol && math.Abs(aa-ar-ai) <= tol
	case clip.INTERSECTION:
		au := wrap(a.p.Construct(clip.UNION, b.p)).Area()
		return ar <= math.Min(aa, ab)+tol && math.Abs(aa+ab-au-ar) <= tol
	}
	return true
}

// touching reports whether a vertex of either polygon lies within tol of an
// edge of the other. Collinear overlapping edges always have such a vertex.
func touching(a, b clip.Polygon, tol float64) bool {
	return vertexOnEdge(a, b, tol) || vertexOnEdge(b, a, tol)
}

func vertexOnEdge(pts, edges clip.Polygon, tol float64) bool {
	for _, ce := range edges {
		box := ce.BoundingBox()
		box.Min.X, box.Min.Y = box.Min.X-tol, box.Min.Y-tol
		box.Max.X, box.Max.Y = box.Max.X+tol, box.Max.Y+tol
		for _, cp := range pts {
			if !box.Overlaps(cp.BoundingBox()) {
				continue
			}
			for _, p := range cp {
				if p.X < box.Min.X || p.X > box.Max.X || p.Y < box.Min.Y || p.Y > box.Max.Y {
					continue
				}
				v := v2.Vec{X: p.X, Y: p.Y}
				for i := range ce {
					s, e := ce[i], ce[(i+1)%len(ce)]
					if geom.SegmentDistance(v, v2.Vec{X: s.X, Y: s.Y}, v2.Vec{X: e.X, Y: e.Y}) <= tol {
						return true
					}
				}
			}
		}
	}
	return false
}

// grow offsets every contour of r outward by d and translates it by shift.
// Exteriors are turned counterclockwise and holes clockwise so the right-hand
// normal of each edge points away from the material. |shift| < d keeps the
// grown region a superset of the original, so touching operands overlap.
func grow(r *polyRegion, d float64, shift v2.Vec) clip.Polygon {
	rings, depths := r.layout()
	out := make(clip.Polygon, 0, len(rings))
	for i, ring := range rings {
		if depths[i]%2 == 0 {
			ring = ring.CCW()
		} else {
			ring = ring.CW()
		}
		moved := offset(ring, d)
		for j := range moved {
			moved[j] = moved[j].Add(shift)
		}
		out = append(out, toContour(moved))
	}
	return out
}

// offset moves each vertex along the miter of its two edge normals. Miters
// of near reversals are capped at 4d.
func offset(r geom.Ring, d float64) geom.Ring {
	n := len(r)
	out := make(geom.Ring, n)
	for i, cur := range r {
		n1 := rightNormal(r[(i+n-1)%n], cur)
		n2 := rightNormal(cur, r[(i+1)%n])
		m := n1.Add(n2)
		k := 1 + n1.Dot(n2)
		if k < 1.0/8 {
			if m.Length() < geom.Eps {
				m = n1
			}
			out[i] = cur.Add(m.Normalize().MulScalar(4 * d))
			continue
		}
		out[i] = cur.Add(m.MulScalar(d / k))
	}
	return out
}

func rightNormal(a, b v2.Vec) v2.Vec {
	e := b.Sub(a)
	l := e.Length()
	return v2.Vec{X: e.Y / l, Y: -e.X / l}
}
