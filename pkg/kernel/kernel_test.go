package kernel

import (
	"testing"

	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// --- Compile-time interface check with a stub kernel ---

// stubRegion tracks which shapes went into it by area only.
type stubRegion struct {
	area float64
	box  sdf.Box2
}

func (r *stubRegion) Bounds() sdf.Box2 { return r.box }
func (r *stubRegion) Area() float64    { return r.area }
func (r *stubRegion) Empty() bool      { return r.area == 0 }

// stubKernel is a minimal Kernel that proves the interface is satisfiable.
// Union adds areas, which is exact only for disjoint inputs.
type stubKernel struct {
	unions int
}

func (k *stubKernel) FromShape(s geom.Shape) (Region, error) {
	return &stubRegion{area: s.Area(), box: s.Bounds()}, nil
}
func (k *stubKernel) Empty() Region { return &stubRegion{} }
func (k *stubKernel) Union(a, b Region) Region {
	k.unions++
	return &stubRegion{area: a.Area() + b.Area(), box: b.Bounds()}
}
func (k *stubKernel) Difference(a, b Region) Region {
	return &stubRegion{area: a.Area() - b.Area(), box: a.Bounds()}
}
func (k *stubKernel) Intersection(a, b Region) Region  { return k.Empty() }
func (k *stubKernel) Contains(r Region, p v2.Vec) bool { return false }
func (k *stubKernel) Components(r Region) ([]geom.Shape, error) {
	return nil, ErrUnsupported
}

var _ Kernel = (*stubKernel)(nil)

func TestUnionAll(t *testing.T) {
	k := &stubKernel{}
	rs := []Region{
		&stubRegion{area: 1},
		&stubRegion{area: 2},
		&stubRegion{area: 3},
	}
	got := UnionAll(k, rs)
	if got.Area() != 6 {
		t.Errorf("UnionAll area = %v, want 6", got.Area())
	}
	if k.unions != 3 {
		t.Errorf("expected 3 unions, got %d", k.unions)
	}
}

func TestUnionAllEmpty(t *testing.T) {
	k := &stubKernel{}
	if got := UnionAll(k, nil); !got.Empty() {
		t.Errorf("UnionAll(nil) should be empty, area %v", got.Area())
	}
}

func TestFromShapesSkipsPolylines(t *testing.T) {
	k := &stubKernel{}
	shapes := []geom.Shape{
		geom.Polygon(geom.Box(v2.Vec{}, v2.Vec{X: 2, Y: 2})),
		geom.Polyline(v2.Vec{}, v2.Vec{X: 5}),
		geom.Polygon(geom.Box(v2.Vec{X: 5}, v2.Vec{X: 6, Y: 1})),
	}
	r, err := FromShapes(k, shapes)
	if err != nil {
		t.Fatalf("FromShapes: %v", err)
	}
	if r.Area() != 5 {
		t.Errorf("area = %v, want 5", r.Area())
	}
	if k.unions != 2 {
		t.Errorf("expected polyline to be skipped, got %d unions", k.unions)
	}
}
