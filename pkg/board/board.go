// Package board holds a decoded board and the whole-board transforms applied
// before toolpath planning: recentering, mirroring and quarter-turn rotation.
//
// Every transform returns a new Board; the receiver is never modified.
package board

import (
	"fmt"
	"math"

	"github.com/ambadran/PCB-CAM/pkg/gerber"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"gonum.org/v1/gonum/floats/scalar"
)

// Axis selects the coordinate negated by Mirror.
type Axis int

const (
	// AxisX negates x coordinates.
	AxisX Axis = iota
	// AxisY negates y coordinates.
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

// rotatePrecision is the number of decimals kept after a rotation.
const rotatePrecision = 5

// Board is an ordered list of primitives.
type Board struct {
	primitives []gerber.Primitive
}

// New returns a board holding ps.
func New(ps ...gerber.Primitive) *Board {
	return &Board{primitives: append([]gerber.Primitive(nil), ps...)}
}

// Primitives returns a copy of the primitive list.
func (b *Board) Primitives() []gerber.Primitive {
	return append([]gerber.Primitive(nil), b.primitives...)
}

// Len returns the number of primitives.
func (b *Board) Len() int { return len(b.primitives) }

// Bounds returns the extent of the board including stroke widths.
func (b *Board) Bounds() (sdf.Box2, error) {
	box, err := gerber.BoundsAll(b.primitives)
	if err != nil {
		return sdf.Box2{}, fmt.Errorf("board: bounds: %w", err)
	}
	return box, nil
}

// Recenter translates the board so its minimum corner lands on (x, y).
func (b *Board) Recenter(x, y float64) (*Board, error) {
	box, err := b.Bounds()
	if err != nil {
		return nil, err
	}
	d := v2.Vec{X: x - box.Min.X, Y: y - box.Min.Y}
	out, err := b.apply(translation("recenter", d))
	if err != nil {
		return nil, err
	}
	logging.Logger().Debug("recentered board", "from", box.Min, "to", v2.Vec{X: x, Y: y})
	return out, nil
}

// Mirror negates the coordinate selected by axis and moves the board back to
// its original minimum corner.
func (b *Board) Mirror(axis Axis) (*Board, error) {
	box, err := b.Bounds()
	if err != nil {
		return nil, err
	}
	m := mapping{op: "mirror", flip: true, prec: -1}
	if axis == AxisY {
		m.m = sdf.Scale2d(v2.Vec{X: 1, Y: -1})
		m.angle = func(a float64) float64 { return -a }
	} else {
		m.m = sdf.Scale2d(v2.Vec{X: -1, Y: 1})
		m.angle = func(a float64) float64 { return math.Pi - a }
	}
	out, err := b.apply(m)
	if err != nil {
		return nil, err
	}
	logging.Logger().Debug("mirrored board", "axis", axis)
	return out.Recenter(box.Min.X, box.Min.Y)
}

// Rotate90 turns the board a quarter turn counterclockwise about the origin,
// rounding coordinates to 5 decimals, and moves it back to its original
// minimum corner. Width and height of sized primitives are exchanged.
func (b *Board) Rotate90() (*Board, error) {
	box, err := b.Bounds()
	if err != nil {
		return nil, err
	}
	m := mapping{
		op:    "rotate90",
		m:     sdf.Rotate2d(math.Pi / 2),
		angle: func(a float64) float64 { return a + math.Pi/2 },
		swap:  true,
		prec:  rotatePrecision,
	}
	out, err := b.apply(m)
	if err != nil {
		return nil, err
	}
	logging.Logger().Debug("rotated board", "degrees", 90)
	return out.Recenter(box.Min.X, box.Min.Y)
}

func (b *Board) apply(m mapping) (*Board, error) {
	out := make([]gerber.Primitive, len(b.primitives))
	for i, p := range b.primitives {
		q, err := m.primitive(p)
		if err != nil {
			return nil, gerber.AtIndex(err, i)
		}
		out[i] = q
	}
	return &Board{primitives: out}, nil
}

// mapping is an affine map of the plane together with its effect on the
// non-positional attributes of primitives.
type mapping struct {
	op    string
	m     sdf.M33
	angle func(float64) float64
	// flip marks orientation-reversing maps.
	flip bool
	// swap exchanges width and height.
	swap bool
	// prec is the rounding precision for points, or -1 for none.
	prec int
}

func translation(op string, d v2.Vec) mapping {
	return mapping{
		op:    op,
		m:     sdf.Translate2d(d),
		angle: func(a float64) float64 { return a },
		prec:  -1,
	}
}

func (m mapping) point(p v2.Vec) v2.Vec {
	q := m.m.MulPosition(p)
	if m.prec >= 0 {
		q = v2.Vec{X: scalar.RoundEven(q.X, m.prec), Y: scalar.RoundEven(q.Y, m.prec)}
	}
	return q
}

func (m mapping) size(w, h float64) (float64, float64) {
	if m.swap {
		return h, w
	}
	return w, h
}

func (m mapping) primitive(p gerber.Primitive) (gerber.Primitive, error) {
	switch v := p.(type) {
	case gerber.Line:
		v.Start, v.End = m.point(v.Start), m.point(v.End)
		return v, nil
	case gerber.Arc:
		v.Center = m.point(v.Center)
		start, end := m.angle(v.StartAngle), m.angle(v.EndAngle)
		if m.flip {
			// A reflected arc runs the other way round. Swapping the end
			// points keeps it counterclockwise over the same points.
			if v.Direction == gerber.Clockwise {
				v.Direction = gerber.CounterClockwise
			} else {
				start, end = end, start
			}
		}
		v.StartAngle, v.EndAngle = start, end
		return v, nil
	case gerber.Circle:
		v.Center = m.point(v.Center)
		return v, nil
	case gerber.Rectangle:
		v.Center = m.point(v.Center)
		v.Width, v.Height = m.size(v.Width, v.Height)
		return v, nil
	case gerber.Obround:
		v.Center = m.point(v.Center)
		v.Width, v.Height = m.size(v.Width, v.Height)
		return v, nil
	case gerber.Ellipse:
		v.Center = m.point(v.Center)
		v.Width, v.Height = m.size(v.Width, v.Height)
		return v, nil
	case gerber.Polygon:
		v.Center = m.point(v.Center)
		v.Rotation = m.angle(v.Rotation)
		return v, nil
	case gerber.Outline:
		segs, err := m.all(gerber.KindOutline, v.Segments)
		if err != nil {
			return nil, err
		}
		v.Segments = segs
		return v, nil
	case gerber.Region:
		segs, err := m.all(gerber.KindRegion, v.Segments)
		if err != nil {
			return nil, err
		}
		v.Segments = segs
		return v, nil
	case gerber.MacroGroup:
		subs, err := m.all(gerber.KindMacroGroup, v.Primitives)
		if err != nil {
			return nil, err
		}
		v.Center = m.point(v.Center)
		v.Primitives = subs
		return v, nil
	case gerber.Flash:
		return nil, gerber.NewError(m.op, v.Shape, gerber.ErrUnhandledInTransform, "no %s rule for %s", m.op, v.Shape)
	}
	return nil, gerber.NewError(m.op, p.Kind(), gerber.ErrUnhandledInTransform, "unexpected type %T", p)
}

func (m mapping) all(parent gerber.Kind, ps []gerber.Primitive) ([]gerber.Primitive, error) {
	out := make([]gerber.Primitive, len(ps))
	for i, p := range ps {
		q, err := m.primitive(p)
		if err != nil {
			return nil, gerber.Nested(err, parent, i)
		}
		out[i] = q
	}
	return out, nil
}
