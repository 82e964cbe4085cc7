package reconstruct

import (
	"math"
	"strings"

	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/ambadran/PCB-CAM/pkg/gerber"
	"github.com/ambadran/PCB-CAM/pkg/kernel"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// macro reconstructs an aperture-macro flash. Rounded rectangles get an
// exact ring; everything else is the kernel union of the sub-primitives.
func (r *Reconstructor) macro(m gerber.MacroGroup) ([]geom.Shape, error) {
	if strings.Contains(strings.ToLower(m.Name), "roundrect") {
		if s, ok := r.roundRect(m); ok {
			return []geom.Shape{s}, nil
		}
		logging.Logger().Warn("rounded rectangle not recognised, using generic macro union",
			"macro", m.Name, "center", m.Center)
	}
	return r.macroUnion(m)
}

// macroUnion applies the sub-primitives in order: dark ones are added and
// clear ones cut. Zero-width strokes have no area.
func (r *Reconstructor) macroUnion(m gerber.MacroGroup) ([]geom.Shape, error) {
	acc := r.k.Empty()
	filled := false
	for i, sub := range m.Primitives {
		shapes, err := r.Reconstruct(sub)
		if err != nil {
			return nil, gerber.Nested(err, gerber.KindMacroGroup, i)
		}
		region, err := kernel.FromShapes(r.k, shapes)
		if err != nil {
			return nil, gerber.NewError(op, gerber.KindMacroGroup, gerber.ErrDegenerateShape,
				"sub-primitive %d: %v", i, err)
		}
		if region.Empty() {
			continue
		}
		if gerber.PolarityOf(sub) == gerber.Clear {
			acc = r.k.Difference(acc, region)
			continue
		}
		acc = r.k.Union(acc, region)
		filled = true
	}
	if !filled || acc.Empty() {
		return nil, gerber.NewError(op, gerber.KindMacroGroup, gerber.ErrDegenerateShape,
			"macro %q has no filled sub-primitives", m.Name)
	}
	shapes, err := r.k.Components(acc)
	if err != nil {
		return nil, gerber.NewError(op, gerber.KindMacroGroup, gerber.ErrNotImplemented,
			"macro %q: %v", m.Name, err)
	}
	return shapes, nil
}

// roundRect measures a rounded-rectangle macro made of outlines and corner
// circles. It reports false on any structural mismatch.
func (r *Reconstructor) roundRect(m gerber.MacroGroup) (geom.Shape, bool) {
	var width, height float64
	diameter := -1.0
	for _, sub := range m.Primitives {
		switch v := sub.(type) {
		case gerber.Outline:
			for _, seg := range v.Segments {
				l, ok := seg.(gerber.Line)
				if !ok || l.Width != 0 {
					return geom.Shape{}, false
				}
				dx, dy := math.Abs(l.End.X-l.Start.X), math.Abs(l.End.Y-l.Start.Y)
				vertical := dx <= geom.Eps
				horizontal := dy <= geom.Eps
				switch {
				case vertical && !horizontal:
					height = math.Max(height, dy)
				case horizontal && !vertical:
					width = math.Max(width, dx)
				}
			}
		case gerber.Circle:
			diameter = v.Diameter
		default:
			return geom.Shape{}, false
		}
	}
	if diameter <= 0 || width <= 0 || height <= 0 {
		return geom.Shape{}, false
	}

	rad := math.Min(diameter/2, math.Min(width/2, height/2))
	c := m.Center
	hx, hy := width/2-rad, height/2-rad
	n := r.opts.CornerSamples

	// Corners clockwise from top-left, each arc traversed clockwise, so the
	// ring starts at the left end of the top-left arc.
	corners := []struct {
		center v2.Vec
		from   float64
	}{
		{v2.Vec{X: c.X - hx, Y: c.Y + hy}, math.Pi},
		{v2.Vec{X: c.X + hx, Y: c.Y + hy}, math.Pi / 2},
		{v2.Vec{X: c.X + hx, Y: c.Y - hy}, 0},
		{v2.Vec{X: c.X - hx, Y: c.Y - hy}, -math.Pi / 2},
	}
	ring := make(geom.Ring, 0, 4*n)
	for _, k := range corners {
		ring = append(ring, geom.ArcPoints(k.center, rad, k.from, -math.Pi/2, n)...)
	}
	s := geom.Polygon(ring.Clean())
	if s.Validate(false) != nil {
		return geom.Shape{}, false
	}
	return s, true
}
