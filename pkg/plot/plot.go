// Package plot writes debug drawings of planned toolpaths.
//
// SVG output works in micrometres because the canvas takes integer
// coordinates; the viewBox keeps the drawing in millimetres.
package plot

import (
	"fmt"
	"io"
	"math"

	"github.com/ajstarks/svgo"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	"github.com/ambadran/PCB-CAM/pkg/toolpath"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/samber/lo"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
	"github.com/yofu/dxf/table"
)

// scale converts millimetres to SVG units.
const scale = 1000

// margin is added around the board bounds, in millimetres.
const margin = 1.0

// DrillRadius is the marker radius for drill points, in millimetres.
const DrillRadius = 0.4

const (
	styleExterior = "fill:none;stroke:black;stroke-width:50"
	styleHole     = "fill:none;stroke:red;stroke-width:50"
	styleOpen     = "fill:none;stroke:blue;stroke-width:50;stroke-dasharray:200,100"
	styleDrill    = "fill:green;stroke:none"
)

// SVG draws loops over bounds. Y is flipped so the drawing reads like the
// board seen from above.
func SVG(w io.Writer, loops []toolpath.Loop, bounds sdf.Box2) error {
	origin := bounds.Min.Sub(v2.Vec{X: margin, Y: margin})
	hi := bounds.Max.Add(v2.Vec{X: margin, Y: margin})
	size := hi.Sub(origin)
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("plot: empty bounds %v", bounds)
	}
	px := func(p v2.Vec) (int, int) {
		return units(p.X - origin.X), units(hi.Y - p.Y)
	}

	canvas := svg.New(w)
	wu, hu := units(size.X), units(size.Y)
	canvas.StartviewUnit(int(math.Ceil(size.X)), int(math.Ceil(size.Y)), "mm", 0, 0, wu, hu)
	canvas.Title("pcbcam toolpaths")
	for _, l := range loops {
		if len(l.Points) == 0 {
			continue
		}
		if l.Kind == toolpath.Drill {
			x, y := px(l.Points[0])
			canvas.Circle(x, y, units(DrillRadius), styleDrill)
			continue
		}
		xs := lo.Map(l.Points, func(p v2.Vec, _ int) int { x, _ := px(p); return x })
		ys := lo.Map(l.Points, func(p v2.Vec, _ int) int { _, y := px(p); return y })
		switch {
		case !l.Closed:
			canvas.Polyline(xs, ys, styleOpen)
		case l.Kind == toolpath.Hole:
			canvas.Polygon(xs, ys, styleHole)
		default:
			canvas.Polygon(xs, ys, styleExterior)
		}
	}
	canvas.End()

	logging.Logger().Debug("svg plot", "loops", len(loops))
	return nil
}

func units(mm float64) int { return int(math.Round(mm * scale)) }

// Layer names used in DXF output.
const (
	LayerTraces = "TRACES"
	LayerHoles  = "HOLES"
	LayerDrills = "DRILLS"
)

// DXF writes loops to path: one LINE per loop edge, closing edges included
// for closed loops, and one CIRCLE per drill point.
func DXF(path string, loops []toolpath.Loop) error {
	d := dxf.NewDrawing()
	layers := []struct {
		name string
		cl   color.ColorNumber
	}{
		{LayerTraces, color.White},
		{LayerHoles, color.Red},
		{LayerDrills, color.Green},
	}
	for _, l := range layers {
		if _, err := d.AddLayer(l.name, l.cl, table.LT_CONTINUOUS, false); err != nil {
			return fmt.Errorf("plot: dxf layer %s: %w", l.name, err)
		}
	}

	for _, l := range loops {
		if len(l.Points) == 0 {
			continue
		}
		if err := d.ChangeLayer(layerOf(l.Kind)); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		if l.Kind == toolpath.Drill {
			p := l.Points[0]
			if _, err := d.Circle(p.X, p.Y, 0, DrillRadius); err != nil {
				return fmt.Errorf("plot: drill at %v: %w", p, err)
			}
			continue
		}
		for _, e := range edges(l) {
			if _, err := d.Line(e[0].X, e[0].Y, 0, e[1].X, e[1].Y, 0); err != nil {
				return fmt.Errorf("plot: edge %v: %w", e, err)
			}
		}
	}
	if err := d.SaveAs(path); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	logging.Logger().Debug("dxf plot", "path", path, "loops", len(loops))
	return nil
}

func layerOf(k toolpath.LoopKind) string {
	switch k {
	case toolpath.Hole:
		return LayerHoles
	case toolpath.Drill:
		return LayerDrills
	}
	return LayerTraces
}

// edges pairs consecutive points, wrapping around for closed loops.
func edges(l toolpath.Loop) [][2]v2.Vec {
	n := len(l.Points)
	if n < 2 {
		return nil
	}
	out := make([][2]v2.Vec, 0, n)
	for i := 1; i < n; i++ {
		out = append(out, [2]v2.Vec{l.Points[i-1], l.Points[i]})
	}
	if l.Closed && l.Points[0] != l.Points[n-1] {
		out = append(out, [2]v2.Vec{l.Points[n-1], l.Points[0]})
	}
	return out
}
