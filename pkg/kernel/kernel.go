// Package kernel defines the abstract planar boolean kernel.
// Implementations (polyclip, sdfx) provide set operations on filled regions
// behind this interface, so reconstruction and composition do not depend on
// a particular clipping library.
package kernel

import (
	"errors"

	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ErrUnsupported is returned by kernels that cannot perform an operation.
var ErrUnsupported = errors.New("kernel: operation not supported by this backend")

// Region is an opaque handle to a filled planar point set.
// Implementations wrap their internal representation.
type Region interface {
	// Bounds returns the axis-aligned bounding box.
	Bounds() sdf.Box2
	// Area returns the enclosed area, holes excluded.
	Area() float64
	// Empty reports whether the region covers nothing.
	Empty() bool
}

// Kernel is the abstract boolean kernel interface.
type Kernel interface {
	// Construction
	FromShape(s geom.Shape) (Region, error)
	Empty() Region

	// Boolean operations
	Union(a, b Region) Region
	Difference(a, b Region) Region
	Intersection(a, b Region) Region

	// Queries
	Contains(r Region, p v2.Vec) bool

	// Components splits r into its maximal connected pieces, each one
	// exterior ring with its holes.
	Components(r Region) ([]geom.Shape, error)
}

// UnionAll folds Union over rs, left to right.
func UnionAll(k Kernel, rs []Region) Region {
	acc := k.Empty()
	for _, r := range rs {
		acc = k.Union(acc, r)
	}
	return acc
}

// FromShapes converts and unions every closed shape in ss. Open polylines
// have no area and are skipped.
func FromShapes(k Kernel, ss []geom.Shape) (Region, error) {
	acc := k.Empty()
	for _, s := range ss {
		if s.Open {
			continue
		}
		r, err := k.FromShape(s)
		if err != nil {
			return nil, err
		}
		acc = k.Union(acc, r)
	}
	return acc, nil
}
