package toolpath

import (
	"testing"

	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/ambadran/PCB-CAM/pkg/gerber"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(x, y float64) v2.Vec { return v2.Vec{X: x, Y: y} }

func TestExtractPaths(t *testing.T) {
	shapes := []geom.Shape{
		geom.Polygon(geom.Box(pt(0, 0), pt(10, 10)), geom.Box(pt(4, 4), pt(6, 6)).CW()),
		geom.Polygon(geom.Box(pt(20, 0), pt(21, 1))),
		geom.Polyline(pt(0, 20), pt(5, 20)),
	}
	loops := ExtractPaths(shapes, DefaultOptions())
	require.Len(t, loops, 4)

	assert.Equal(t, Exterior, loops[0].Kind)
	assert.True(t, loops[0].Closed)
	assert.Equal(t, Exterior, loops[1].Kind)
	assert.Equal(t, Exterior, loops[2].Kind)
	assert.False(t, loops[2].Closed)
	assert.Equal(t, Hole, loops[3].Kind)
	assert.True(t, loops[3].Closed)
	assert.Len(t, loops[3].Points, 4)
}

func TestExtractPathsRounds(t *testing.T) {
	ring := geom.Ring{pt(0.123456789, 0), pt(1, 0.000004), pt(1, 1.0000051)}
	loops := ExtractPaths([]geom.Shape{geom.Polygon(ring)}, Options{Resolution: 5})
	require.Len(t, loops, 1)
	assert.Equal(t, []v2.Vec{pt(0.12346, 0), pt(1, 0), pt(1, 1.00001)}, loops[0].Points)

	loops = ExtractPaths([]geom.Shape{geom.Polygon(ring)}, Options{Resolution: 1})
	assert.Equal(t, pt(0.1, 0), loops[0].Points[0])
}

func TestExtractDrillPoints(t *testing.T) {
	ps := []gerber.Primitive{
		gerber.Line{Start: pt(0, 0), End: pt(1, 1), Width: 0.2},
		gerber.Circle{Center: pt(2.123456, 3), Diameter: 1},
		gerber.Region{Segments: []gerber.Primitive{gerber.Line{Start: pt(9, 9)}}},
		gerber.Arc{Center: pt(4, 4), Radius: 1},
		gerber.Flash{Shape: gerber.KindSlot, Center: pt(7, 7)},
		gerber.MacroGroup{Name: "M", Center: pt(8, 1)},
	}
	loops := ExtractDrillPoints(ps, Options{Resolution: 3})
	require.Len(t, loops, 4)
	for _, l := range loops {
		assert.Equal(t, Drill, l.Kind)
		assert.False(t, l.Closed)
		assert.Len(t, l.Points, 1)
	}
	assert.Equal(t, []v2.Vec{pt(2.123, 3), pt(4, 4), pt(7, 7), pt(8, 1)}, Points(loops))
}

func TestLoopKindString(t *testing.T) {
	assert.Equal(t, "exterior", Exterior.String())
	assert.Equal(t, "hole", Hole.String())
	assert.Equal(t, "drill", Drill.String())
	assert.Equal(t, "unknown", LoopKind(9).String())
}
