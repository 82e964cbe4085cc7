// Package toolpath extracts ordered point loops from composed shapes and
// drill points from board primitives.
package toolpath

import (
	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/ambadran/PCB-CAM/pkg/gerber"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats/scalar"
)

// DefaultResolution is the number of decimal places kept in loop points.
const DefaultResolution = 5

// LoopKind tags what a loop traces.
type LoopKind int

const (
	Exterior LoopKind = iota
	Hole
	Drill
)

func (k LoopKind) String() string {
	switch k {
	case Exterior:
		return "exterior"
	case Hole:
		return "hole"
	case Drill:
		return "drill"
	}
	return "unknown"
}

// Loop is an ordered point sequence. A closed loop returns to its first
// point implicitly.
type Loop struct {
	Kind   LoopKind
	Closed bool
	Points []v2.Vec
}

// Options controls extraction.
type Options struct {
	// Resolution is the number of decimal places kept.
	Resolution int
	// IncludeEdgeCuts is accepted for compatibility with the machine
	// settings and currently has no effect.
	IncludeEdgeCuts bool
}

// DefaultOptions returns the standard extraction settings.
func DefaultOptions() Options {
	return Options{Resolution: DefaultResolution, IncludeEdgeCuts: true}
}

// ExtractPaths returns one Exterior loop per exterior ring or polyline,
// followed by one Hole loop per hole ring, with points rounded to opts.Resolution.
func ExtractPaths(shapes []geom.Shape, opts Options) []Loop {
	if opts.IncludeEdgeCuts {
		logging.Logger().Debug("include_edge_cuts has no effect on extraction")
	}
	exteriors := lo.Map(shapes, func(s geom.Shape, _ int) Loop {
		return Loop{Kind: Exterior, Closed: !s.Open, Points: round(s.Exterior, opts.Resolution)}
	})
	holes := lo.FlatMap(shapes, func(s geom.Shape, _ int) []Loop {
		return lo.Map(s.Holes, func(h geom.Ring, _ int) Loop {
			return Loop{Kind: Hole, Closed: true, Points: round(h, opts.Resolution)}
		})
	})
	return append(exteriors, holes...)
}

// ExtractDrillPoints returns a single-point Drill loop at the position of
// every primitive that is not a trace. Lines and regions are traces; every
// other kind is treated as a component pad.
func ExtractDrillPoints(ps []gerber.Primitive, opts Options) []Loop {
	pads := lo.Filter(ps, func(p gerber.Primitive, _ int) bool {
		k := p.Kind()
		return k != gerber.KindLine && k != gerber.KindRegion
	})
	return lo.Map(pads, func(p gerber.Primitive, _ int) Loop {
		return Loop{Kind: Drill, Points: round([]v2.Vec{p.Position()}, opts.Resolution)}
	})
}

// Round rounds x half to even at prec decimal places.
func Round(x float64, prec int) float64 {
	return scalar.RoundEven(x, prec)
}

func round(pts []v2.Vec, prec int) []v2.Vec {
	out := make([]v2.Vec, len(pts))
	for i, p := range pts {
		out[i] = v2.Vec{X: Round(p.X, prec), Y: Round(p.Y, prec)}
	}
	return out
}

// Points returns the position of every drill loop.
func Points(loops []Loop) []v2.Vec {
	drills := lo.Filter(loops, func(l Loop, _ int) bool { return l.Kind == Drill && len(l.Points) > 0 })
	return lo.Map(drills, func(l Loop, _ int) v2.Vec { return l.Points[0] })
}
