package gerber

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Attr holds the attributes shared by every primitive. Embedding it is what
// makes a type a Primitive.
type Attr struct {
	Polarity Polarity
}

func (a Attr) attr() Attr { return a }

// Primitive is one decoded drawing instruction. The set of implementations is
// closed: Line, Arc, Circle, Rectangle, Obround, Polygon, Ellipse, Outline,
// Region, MacroGroup and Flash.
type Primitive interface {
	Kind() Kind
	// Position is the nominal location of the primitive, used for drill
	// points and diagnostics.
	Position() v2.Vec
	attr() Attr
}

// PolarityOf returns the polarity of p.
func PolarityOf(p Primitive) Polarity {
	return p.attr().Polarity
}

// Line is a straight stroke. A zero Width is a hairline with no area.
type Line struct {
	Attr
	Start, End v2.Vec
	Width      float64
}

func (Line) Kind() Kind         { return KindLine }
func (l Line) Position() v2.Vec { return l.Start }

// Arc is a circular stroke around Center from StartAngle to EndAngle.
type Arc struct {
	Attr
	Center     v2.Vec
	Radius     float64
	StartAngle float64
	EndAngle   float64
	Direction  Direction
	Width      float64
}

func (Arc) Kind() Kind         { return KindArc }
func (a Arc) Position() v2.Vec { return a.Center }

// StartPoint returns the point at StartAngle.
func (a Arc) StartPoint() v2.Vec { return a.pointAt(a.StartAngle) }

// EndPoint returns the point at EndAngle.
func (a Arc) EndPoint() v2.Vec { return a.pointAt(a.EndAngle) }

func (a Arc) pointAt(t float64) v2.Vec {
	return v2.Vec{X: a.Center.X + a.Radius*math.Cos(t), Y: a.Center.Y + a.Radius*math.Sin(t)}
}

// Sweep returns the signed angle travelled from StartAngle to EndAngle in the
// arc's direction: positive counterclockwise, negative clockwise. Equal
// angles sweep a full turn.
func (a Arc) Sweep() float64 {
	var d float64
	if a.Direction == Clockwise {
		d = -positiveMod(a.StartAngle - a.EndAngle)
	} else {
		d = positiveMod(a.EndAngle - a.StartAngle)
	}
	if d == 0 {
		if a.Direction == Clockwise {
			return -2 * math.Pi
		}
		return 2 * math.Pi
	}
	return d
}

func positiveMod(x float64) float64 {
	m := math.Mod(x, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}
	if 2*math.Pi-m < 1e-12 {
		return 0
	}
	return m
}

// Circle is a flashed round pad.
type Circle struct {
	Attr
	Center   v2.Vec
	Diameter float64
}

func (Circle) Kind() Kind         { return KindCircle }
func (c Circle) Position() v2.Vec { return c.Center }

// Rectangle is an axis-aligned flashed pad.
type Rectangle struct {
	Attr
	Center        v2.Vec
	Width, Height float64
}

// RectangleFromCorners builds a Rectangle from its lower-left and upper-right
// corners.
func RectangleFromCorners(lowerLeft, upperRight v2.Vec) Rectangle {
	return Rectangle{
		Center: v2.Vec{X: (lowerLeft.X + upperRight.X) / 2, Y: (lowerLeft.Y + upperRight.Y) / 2},
		Width:  upperRight.X - lowerLeft.X,
		Height: upperRight.Y - lowerLeft.Y,
	}
}

func (Rectangle) Kind() Kind         { return KindRectangle }
func (r Rectangle) Position() v2.Vec { return r.Center }

// LowerLeft returns the minimum corner.
func (r Rectangle) LowerLeft() v2.Vec {
	return v2.Vec{X: r.Center.X - r.Width/2, Y: r.Center.Y - r.Height/2}
}

// UpperRight returns the maximum corner.
func (r Rectangle) UpperRight() v2.Vec {
	return v2.Vec{X: r.Center.X + r.Width/2, Y: r.Center.Y + r.Height/2}
}

// Obround is a stadium: a rectangle whose short sides are semicircles.
type Obround struct {
	Attr
	Center        v2.Vec
	Width, Height float64
}

func (Obround) Kind() Kind         { return KindObround }
func (o Obround) Position() v2.Vec { return o.Center }

// Polygon is a regular polygon flash. Rotation is the angle of the first
// vertex.
type Polygon struct {
	Attr
	Center   v2.Vec
	Diameter float64
	Sides    int
	Rotation float64
}

func (Polygon) Kind() Kind         { return KindPolygon }
func (p Polygon) Position() v2.Vec { return p.Center }

// Vertices returns the polygon corners counterclockwise.
func (p Polygon) Vertices() []v2.Vec {
	if p.Sides <= 0 {
		return nil
	}
	r := p.Diameter / 2
	pts := make([]v2.Vec, p.Sides)
	for i := range pts {
		t := p.Rotation + 2*math.Pi*float64(i)/float64(p.Sides)
		pts[i] = v2.Vec{X: p.Center.X + r*math.Cos(t), Y: p.Center.Y + r*math.Sin(t)}
	}
	return pts
}

// Ellipse is an axis-aligned elliptical flash.
type Ellipse struct {
	Attr
	Center        v2.Vec
	Width, Height float64
}

func (Ellipse) Kind() Kind         { return KindEllipse }
func (e Ellipse) Position() v2.Vec { return e.Center }

// Outline is a closed polyline made of zero-width Line segments, as produced
// by the aperture-macro outline primitive.
type Outline struct {
	Attr
	Segments []Primitive
}

func (Outline) Kind() Kind { return KindOutline }

func (o Outline) Position() v2.Vec {
	if len(o.Segments) == 0 {
		return v2.Vec{}
	}
	b, err := BoundsAll(o.Segments)
	if err != nil {
		return v2.Vec{}
	}
	return b.Center()
}

// Region is a filled contour (G36/G37) made of consecutive Line segments.
type Region struct {
	Attr
	Segments []Primitive
}

func (Region) Kind() Kind { return KindRegion }

func (r Region) Position() v2.Vec {
	if len(r.Segments) == 0 {
		return v2.Vec{}
	}
	return r.Segments[0].Position()
}

// MacroGroup is a flashed aperture-macro instance. Primitives are in board
// coordinates, already placed at Center.
type MacroGroup struct {
	Attr
	Name       string
	Center     v2.Vec
	Primitives []Primitive
}

func (MacroGroup) Kind() Kind         { return KindMacroGroup }
func (m MacroGroup) Position() v2.Vec { return m.Center }

// Flash is a flashed aperture of a kind that has no planar reconstruction.
// It keeps the location and nominal size so the board can be measured and
// the error raised by later stages can name it.
type Flash struct {
	Attr
	Shape         Kind
	Center        v2.Vec
	Width, Height float64
}

func (f Flash) Kind() Kind       { return f.Shape }
func (f Flash) Position() v2.Vec { return f.Center }
