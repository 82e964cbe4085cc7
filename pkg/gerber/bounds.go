package gerber

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Bounds returns the axis-aligned extent of p including stroke widths.
func Bounds(p Primitive) (sdf.Box2, error) {
	switch v := p.(type) {
	case Line:
		return grow(pointBox(v.Start).Include(v.End), v.Width/2), nil
	case Arc:
		return grow(arcBox(v), v.Width/2), nil
	case Circle:
		return centered(v.Center, v.Diameter, v.Diameter), nil
	case Rectangle:
		return centered(v.Center, v.Width, v.Height), nil
	case Obround:
		return centered(v.Center, v.Width, v.Height), nil
	case Ellipse:
		return centered(v.Center, v.Width, v.Height), nil
	case Flash:
		return centered(v.Center, v.Width, v.Height), nil
	case Polygon:
		b := pointBox(v.Center)
		for i, q := range v.Vertices() {
			if i == 0 {
				b = pointBox(q)
				continue
			}
			b = b.Include(q)
		}
		return b, nil
	case Outline:
		return boundsOf(v.Segments, v.Position)
	case Region:
		return boundsOf(v.Segments, v.Position)
	case MacroGroup:
		if len(v.Primitives) == 0 {
			return pointBox(v.Center), nil
		}
		return boundsOf(v.Primitives, nil)
	}
	return sdf.Box2{}, fmt.Errorf("gerber: no bounds rule for %T", p)
}

// BoundsAll returns the union of the bounds of ps.
func BoundsAll(ps []Primitive) (sdf.Box2, error) {
	return boundsOf(ps, nil)
}

func boundsOf(ps []Primitive, fallback func() v2.Vec) (sdf.Box2, error) {
	if len(ps) == 0 {
		if fallback != nil {
			return pointBox(fallback()), nil
		}
		return sdf.Box2{}, ErrEmptyBoard
	}
	var box sdf.Box2
	for i, p := range ps {
		b, err := Bounds(p)
		if err != nil {
			return sdf.Box2{}, err
		}
		if i == 0 {
			box = b
			continue
		}
		box = box.Extend(b)
	}
	return box, nil
}

// arcBox covers the end points plus every axis extreme inside the sweep.
func arcBox(a Arc) sdf.Box2 {
	b := pointBox(a.StartPoint()).Include(a.EndPoint())
	sweep := a.Sweep()
	lo, hi := a.StartAngle, a.StartAngle+sweep
	if sweep < 0 {
		lo, hi = hi, lo
	}
	first := math.Ceil(lo / (math.Pi / 2))
	for k := first; k*math.Pi/2 <= hi; k++ {
		b = b.Include(a.pointAt(k * math.Pi / 2))
	}
	return b
}

func pointBox(p v2.Vec) sdf.Box2 {
	return sdf.Box2{Min: p, Max: p}
}

func centered(c v2.Vec, w, h float64) sdf.Box2 {
	half := v2.Vec{X: w / 2, Y: h / 2}
	return sdf.Box2{Min: c.Sub(half), Max: c.Add(half)}
}

func grow(b sdf.Box2, r float64) sdf.Box2 {
	d := v2.Vec{X: r, Y: r}
	return sdf.Box2{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}
