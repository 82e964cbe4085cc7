// Package sdfx implements the kernel.Kernel interface using the 2D signed
// distance functions of github.com/deadsy/sdfx. Regions are implicit, so
// membership is exact but area is estimated by sampling and components
// cannot be recovered.
package sdfx

import (
	"fmt"

	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/ambadran/PCB-CAM/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// defaultSamples is the grid resolution per axis used to estimate area.
const defaultSamples = 256

// sdfxRegion wraps an sdf.SDF2 to implement kernel.Region. A nil SDF is the
// empty region.
type sdfxRegion struct {
	s       sdf.SDF2
	samples int
}

// Bounds returns the axis-aligned bounding box.
func (r *sdfxRegion) Bounds() sdf.Box2 {
	if r.s == nil {
		return sdf.Box2{}
	}
	return r.s.BoundingBox()
}

// Area counts the sample cells whose centers fall inside the region.
func (r *sdfxRegion) Area() float64 {
	if r.s == nil {
		return 0
	}
	bb := r.s.BoundingBox()
	size := bb.Size()
	if size.X <= 0 || size.Y <= 0 {
		return 0
	}
	n := r.samples
	dx, dy := size.X/float64(n), size.Y/float64(n)
	inside := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p := v2.Vec{X: bb.Min.X + (float64(i)+0.5)*dx, Y: bb.Min.Y + (float64(j)+0.5)*dy}
			if r.s.Evaluate(p) < 0 {
				inside++
			}
		}
	}
	return float64(inside) * dx * dy
}

func (r *sdfxRegion) Empty() bool {
	return r.s == nil
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	// Samples is the per-axis grid resolution for Area.
	Samples int
}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{Samples: defaultSamples}
}

// unwrap extracts the underlying sdf.SDF2 from a kernel.Region.
func unwrap(r kernel.Region) sdf.SDF2 {
	return r.(*sdfxRegion).s
}

// wrap creates a kernel.Region from an sdf.SDF2.
func (k *SdfxKernel) wrap(s sdf.SDF2) kernel.Region {
	n := k.Samples
	if n <= 0 {
		n = defaultSamples
	}
	return &sdfxRegion{s: s, samples: n}
}

// FromShape builds a polygon SDF for the exterior and subtracts one per hole.
func (k *SdfxKernel) FromShape(s geom.Shape) (kernel.Region, error) {
	if s.Open {
		return nil, fmt.Errorf("sdfx: open polyline has no area")
	}
	ext, err := sdf.Polygon2D(s.Exterior.Clean())
	if err != nil {
		return nil, fmt.Errorf("sdfx: exterior: %w", err)
	}
	for i, h := range s.Holes {
		hole, err := sdf.Polygon2D(h.Clean())
		if err != nil {
			return nil, fmt.Errorf("sdfx: hole %d: %w", i, err)
		}
		ext = sdf.Difference2D(ext, hole)
	}
	return k.wrap(ext), nil
}

// Empty returns the empty region.
func (k *SdfxKernel) Empty() kernel.Region {
	return k.wrap(nil)
}

// Union returns the union of two regions.
func (k *SdfxKernel) Union(a, b kernel.Region) kernel.Region {
	sa, sb := unwrap(a), unwrap(b)
	switch {
	case sa == nil:
		return k.wrap(sb)
	case sb == nil:
		return k.wrap(sa)
	}
	return k.wrap(sdf.Union2D(sa, sb))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Region) kernel.Region {
	sa, sb := unwrap(a), unwrap(b)
	if sa == nil || sb == nil {
		return k.wrap(sa)
	}
	return k.wrap(sdf.Difference2D(sa, sb))
}

// Intersection returns the intersection of two regions.
func (k *SdfxKernel) Intersection(a, b kernel.Region) kernel.Region {
	sa, sb := unwrap(a), unwrap(b)
	if sa == nil || sb == nil {
		return k.wrap(nil)
	}
	return k.wrap(sdf.Intersect2D(sa, sb))
}

// Contains reports whether the distance at p is negative.
func (k *SdfxKernel) Contains(r kernel.Region, p v2.Vec) bool {
	s := unwrap(r)
	return s != nil && s.Evaluate(p) < 0
}

// Components is not available for implicit regions.
func (k *SdfxKernel) Components(r kernel.Region) ([]geom.Shape, error) {
	return nil, fmt.Errorf("sdfx: components: %w", kernel.ErrUnsupported)
}
