// Package reconstruct turns decoded Gerber primitives into planar shapes.
//
// Every primitive kind maps to exactly one shape, except a macro group whose
// pieces do not touch, which yields one shape per connected piece. Kinds
// without a planar form are rejected with gerber.ErrUnsupportedKind.
package reconstruct

import (
	"math"

	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/ambadran/PCB-CAM/pkg/gerber"
	"github.com/ambadran/PCB-CAM/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"gonum.org/v1/gonum/floats/scalar"
)

const op = "reconstruct"

// Options tunes tessellation.
type Options struct {
	// CircleSegments is the vertex count of a full circle. It is rounded up
	// to a multiple of 4 so the axis extremes are vertices.
	CircleSegments int `mapstructure:"circle_segments" yaml:"circle_segments"`
	// ArcSamples is the number of samples along each edge of an arc stroke.
	ArcSamples int `mapstructure:"arc_samples" yaml:"arc_samples"`
	// CornerSamples is the number of samples per rounded-rectangle corner.
	CornerSamples int `mapstructure:"corner_samples" yaml:"corner_samples"`
}

// DefaultOptions returns the standard tessellation settings.
func DefaultOptions() Options {
	return Options{CircleSegments: 64, ArcSamples: 50, CornerSamples: 10}
}

// Reconstructor converts primitives using a boolean kernel for macro groups.
// It holds no per-call state and may be shared.
type Reconstructor struct {
	k    kernel.Kernel
	opts Options
}

// New returns a Reconstructor. Zero option fields take their defaults.
func New(k kernel.Kernel, opts Options) *Reconstructor {
	def := DefaultOptions()
	if opts.CircleSegments <= 0 {
		opts.CircleSegments = def.CircleSegments
	}
	if opts.CircleSegments < 8 {
		opts.CircleSegments = 8
	}
	if rem := opts.CircleSegments % 4; rem != 0 {
		opts.CircleSegments += 4 - rem
	}
	if opts.ArcSamples < 2 {
		opts.ArcSamples = def.ArcSamples
	}
	if opts.CornerSamples < 2 {
		opts.CornerSamples = def.CornerSamples
	}
	return &Reconstructor{k: k, opts: opts}
}

// Options returns the effective options.
func (r *Reconstructor) Options() Options { return r.opts }

// Reconstruct returns the planar shapes of p.
func (r *Reconstructor) Reconstruct(p gerber.Primitive) ([]geom.Shape, error) {
	switch v := p.(type) {
	case gerber.Line:
		return single(r.line(v))
	case gerber.Arc:
		return single(r.arc(v))
	case gerber.Circle:
		return single(r.circle(v))
	case gerber.Rectangle:
		return single(r.rectangle(v))
	case gerber.Obround:
		return single(r.obround(v))
	case gerber.Polygon:
		return single(r.polygon(v))
	case gerber.Ellipse:
		return single(r.ellipse(v))
	case gerber.Outline:
		return single(r.outline(v))
	case gerber.Region:
		return single(r.region(v))
	case gerber.MacroGroup:
		return r.macro(v)
	case gerber.Flash:
		return nil, gerber.NewError(op, v.Shape, gerber.ErrUnsupportedKind,
			"%s has no planar reconstruction", v.Shape)
	}
	return nil, gerber.NewError(op, p.Kind(), gerber.ErrUnsupportedKind, "unexpected type %T", p)
}

func single(s geom.Shape, err error) ([]geom.Shape, error) {
	if err != nil {
		return nil, err
	}
	return []geom.Shape{s}, nil
}

// checked validates a generated closed shape.
func checked(k gerber.Kind, s geom.Shape, crossing bool) (geom.Shape, error) {
	if err := s.Validate(crossing); err != nil {
		return geom.Shape{}, gerber.NewError(op, k, gerber.ErrDegenerateShape, "%v", err)
	}
	return s, nil
}

func degenerate(k gerber.Kind, format string, args ...any) (geom.Shape, error) {
	return geom.Shape{}, gerber.NewError(op, k, gerber.ErrDegenerateShape, format, args...)
}

// line builds the capsule swept by the stroke.
func (r *Reconstructor) line(l gerber.Line) (geom.Shape, error) {
	switch {
	case l.Width < 0:
		return degenerate(gerber.KindLine, "negative width %g", l.Width)
	case l.Width == 0:
		return geom.Polyline(l.Start, l.End), nil
	}
	rad := l.Width / 2
	d := l.End.Sub(l.Start)
	if d.Length() <= geom.Eps {
		return checked(gerber.KindLine, geom.Polygon(geom.Circle(l.Start, rad, r.opts.CircleSegments)), false)
	}
	theta := math.Atan2(d.Y, d.X)
	n := r.opts.CircleSegments/2 + 1
	ring := geom.Ring(geom.ArcPoints(l.End, rad, theta-math.Pi/2, math.Pi, n))
	ring = append(ring, geom.ArcPoints(l.Start, rad, theta+math.Pi/2, math.Pi, n)...)
	return checked(gerber.KindLine, geom.Polygon(ring), false)
}

// arc samples both edges of the stroke. Equal angles give an annulus.
func (r *Reconstructor) arc(a gerber.Arc) (geom.Shape, error) {
	if a.Direction == gerber.Clockwise && a.StartAngle > a.EndAngle {
		return geom.Shape{}, gerber.NewError(op, gerber.KindArc, gerber.ErrNotImplemented,
			"clockwise arc with start angle %g > end angle %g", a.StartAngle, a.EndAngle)
	}
	if a.Radius <= 0 {
		return degenerate(gerber.KindArc, "radius %g", a.Radius)
	}
	if a.Width < 0 {
		return degenerate(gerber.KindArc, "negative width %g", a.Width)
	}
	sweep := a.Sweep()
	n := r.opts.ArcSamples
	if a.Width == 0 {
		return geom.Polyline(geom.ArcPoints(a.Center, a.Radius, a.StartAngle, sweep, n)...), nil
	}

	outer := a.Radius + a.Width/2
	inner := a.Radius - a.Width/2
	if math.Abs(sweep) >= 2*math.Pi-1e-12 {
		ext := geom.Circle(a.Center, outer, r.opts.CircleSegments)
		if inner <= geom.Eps {
			return checked(gerber.KindArc, geom.Polygon(ext), false)
		}
		hole := geom.Circle(a.Center, inner, r.opts.CircleSegments).CW()
		return checked(gerber.KindArc, geom.Polygon(ext, hole), false)
	}

	ring := geom.Ring(geom.ArcPoints(a.Center, outer, a.StartAngle, sweep, n))
	if inner <= geom.Eps {
		ring = append(ring, a.Center)
	} else {
		ring = append(ring, geom.Ring(geom.ArcPoints(a.Center, inner, a.StartAngle, sweep, n)).Reverse()...)
	}
	return checked(gerber.KindArc, geom.Polygon(ring.CCW()), false)
}

func (r *Reconstructor) circle(c gerber.Circle) (geom.Shape, error) {
	if c.Diameter <= 0 {
		return degenerate(gerber.KindCircle, "diameter %g", c.Diameter)
	}
	return geom.Polygon(geom.Circle(c.Center, c.Diameter/2, r.opts.CircleSegments)), nil
}

func (r *Reconstructor) rectangle(rc gerber.Rectangle) (geom.Shape, error) {
	if rc.Width <= 0 || rc.Height <= 0 {
		return degenerate(gerber.KindRectangle, "size %gx%g", rc.Width, rc.Height)
	}
	return geom.Polygon(geom.Box(rc.LowerLeft(), rc.UpperRight())), nil
}

// obround splits a disk of the short dimension into quadrants and pushes
// them apart along the long axis. The ring runs clockwise from the top of
// the disk: top-right, bottom-right, bottom-left, then top-left quadrant.
func (r *Reconstructor) obround(o gerber.Obround) (geom.Shape, error) {
	if o.Width <= 0 || o.Height <= 0 {
		return degenerate(gerber.KindObround, "size %gx%g", o.Width, o.Height)
	}
	short := math.Min(o.Width, o.Height)
	disk := geom.Circle(o.Center, short/2, r.opts.CircleSegments)
	n := len(disk)
	q := n / 4

	var shift v2.Vec
	if o.Width > o.Height {
		shift.X = (o.Width - o.Height) / 2
	} else {
		shift.Y = (o.Height - o.Width) / 2
	}
	signs := [4]v2.Vec{{X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: -1}, {X: -1, Y: 1}}

	ring := make(geom.Ring, 0, n+4)
	for i, s := range signs {
		off := v2.Vec{X: shift.X * s.X, Y: shift.Y * s.Y}
		// disk[q] is the top; stepping down the index walks clockwise.
		for j := i * q; j <= (i+1)*q; j++ {
			ring = append(ring, disk[((q-j)%n+n)%n].Add(off))
		}
	}
	return geom.Polygon(ring.Clean()), nil
}

func (r *Reconstructor) polygon(p gerber.Polygon) (geom.Shape, error) {
	if p.Sides < 3 || p.Diameter <= 0 {
		return degenerate(gerber.KindPolygon, "%d sides, diameter %g", p.Sides, p.Diameter)
	}
	return geom.Polygon(geom.Ring(p.Vertices())), nil
}

func (r *Reconstructor) ellipse(e gerber.Ellipse) (geom.Shape, error) {
	if e.Width <= 0 || e.Height <= 0 {
		return degenerate(gerber.KindEllipse, "size %gx%g", e.Width, e.Height)
	}
	return geom.Polygon(geom.EllipseRing(e.Center, e.Width/2, e.Height/2, r.opts.CircleSegments)), nil
}

// outline joins the endpoints of zero-width lines into a ring.
func (r *Reconstructor) outline(o gerber.Outline) (geom.Shape, error) {
	if len(o.Segments) == 0 {
		return geom.Shape{}, gerber.NewError(op, gerber.KindOutline, gerber.ErrMalformedOutline, "no segments")
	}
	ring := make(geom.Ring, 0, len(o.Segments)+1)
	for i, seg := range o.Segments {
		l, ok := seg.(gerber.Line)
		if !ok {
			return geom.Shape{}, gerber.NewError(op, gerber.KindOutline, gerber.ErrMalformedOutline,
				"segment %d is a %s", i, seg.Kind())
		}
		if l.Width != 0 {
			return geom.Shape{}, gerber.NewError(op, gerber.KindOutline, gerber.ErrMalformedOutline,
				"segment %d has width %g", i, l.Width)
		}
		if i == 0 {
			ring = append(ring, l.Start)
		}
		ring = append(ring, l.End)
	}
	return checked(gerber.KindOutline, geom.Polygon(ring.Clean()), true)
}

// region checks that consecutive lines join and builds the ring from their
// start points.
func (r *Reconstructor) region(rg gerber.Region) (geom.Shape, error) {
	lines := make([]gerber.Line, len(rg.Segments))
	for i, seg := range rg.Segments {
		l, ok := seg.(gerber.Line)
		if !ok {
			return geom.Shape{}, gerber.NewError(op, gerber.KindRegion, gerber.ErrUnsupportedKind,
				"segment %d is a %s", i, seg.Kind())
		}
		lines[i] = l
	}
	for i := 0; i+1 < len(lines); i++ {
		end, next := lines[i].End, lines[i+1].Start
		if !samePoint(end, next) {
			d := next.Sub(end)
			return geom.Shape{}, gerber.NewError(op, gerber.KindRegion, gerber.ErrDiscontinuousRegion,
				"segment %d ends at (%g, %g) but segment %d starts at (%g, %g), delta (%g, %g)",
				i, end.X, end.Y, i+1, next.X, next.Y, d.X, d.Y)
		}
	}
	ring := make(geom.Ring, len(lines))
	for i, l := range lines {
		ring[i] = l.Start
	}
	return checked(gerber.KindRegion, geom.Polygon(ring.Clean()), true)
}

// samePoint compares coordinates within a relative tolerance of 1e-5.
func samePoint(a, b v2.Vec) bool {
	return scalar.EqualWithinAbsOrRel(a.X, b.X, 1e-9, 1e-5) &&
		scalar.EqualWithinAbsOrRel(a.Y, b.Y, 1e-9, 1e-5)
}
