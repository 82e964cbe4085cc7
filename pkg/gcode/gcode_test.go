package gcode

import (
	"strings"
	"testing"

	"github.com/ambadran/PCB-CAM/pkg/config"
	"github.com/ambadran/PCB-CAM/pkg/toolpath"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNum(t *testing.T) {
	tests := map[float64]string{
		12:        "12",
		1.23456:   "1.235",
		-0.0001:   "0",
		10.5:      "10.5",
		-3.25:     "-3.25",
		0.1 + 0.2: "0.3",
	}
	for in, want := range tests {
		assert.Equal(t, want, Num(in), "Num(%v)", in)
	}
}

func TestMove(t *testing.T) {
	assert.Equal(t, "G01X1Y2\n", Move(Absolute, XY(1, 2), MoveOptions{}))
	assert.Equal(t, "G00Z5F100 ; up\n", Move(Absolute, Z(5), MoveOptions{Rapid: true, Feed: 100, Comment: "up"}))
	assert.Equal(t, "G21G91G01X1\nG21G90\n", Move(Incremental, X(1), MoveOptions{}))
	assert.Equal(t, "G00X0Y0Z0\n", Move(Absolute, XYZ(0, 0, 0), MoveOptions{Rapid: true}))
}

func TestInitDeinit(t *testing.T) {
	setup := Init()
	for _, want := range []string{"G21 ;", "G90 ;", "G94 ;", "M5 ;", "C0 ;", "B1 ;", "$H ;", "G10 P0 L20 X0Y0Z0 ;"} {
		assert.Contains(t, setup, want)
	}
	assert.Less(t, strings.Index(setup, "$H"), strings.Index(setup, "G10"))

	deinit := Deinit()
	assert.Contains(t, deinit, "G00X0Y0Z0\nB0 ;")
}

func newChanger(t *testing.T) *Changer {
	t.Helper()
	c, err := NewChanger(config.Default().Changer)
	require.NoError(t, err)
	return c
}

func TestChangerSelect(t *testing.T) {
	out, err := newChanger(t).Select(Laser)
	require.NoError(t, err)
	assert.Contains(t, out, "G00X165Y0Z10.5 ; Go to Tool-1 Home Pos\n")
	assert.Contains(t, out, "G00X188 ; Enter Female Kinematic Mount Home Pos\n")
	assert.Contains(t, out, "A1 ;")
	assert.Contains(t, out, "G4 P5 ;")
	assert.Contains(t, out, "G00X92 ; Exit Female Kinematic Mount Home Pos\n")
	assert.Contains(t, out, "C1 ;")
	assert.Less(t, strings.Index(out, "A1"), strings.Index(out, "C1 ;"))
}

func TestChangerDeselect(t *testing.T) {
	out, err := newChanger(t).Deselect(Pen)
	require.NoError(t, err)
	assert.Contains(t, out, "C0 ;")
	assert.Contains(t, out, "G00X165Y185.5Z12 ; Go to Tool-3 Home Pos\n")
	assert.Contains(t, out, "G00X92 ; Enter Female Kinematic Mount Home Pos\n")
	assert.Contains(t, out, "A0 ;")
	assert.Contains(t, out, "G00X188 ; Exit Female Kinematic Mount Home Pos\n")
	assert.Less(t, strings.Index(out, "C0 ;"), strings.Index(out, "A0"))
}

func TestChangerRejects(t *testing.T) {
	c := newChanger(t)
	_, err := c.Select(Empty)
	assert.Error(t, err)
	_, err = c.Deselect(Tool(7))
	assert.Error(t, err)

	cfg := config.Default().Changer
	cfg.Offsets.Pen = config.Point3{X: 1}
	_, err = NewChanger(cfg)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestHoles(t *testing.T) {
	r := config.Default().Router
	drills := []v2.Vec{{X: 1, Y: 2}, {X: 3.5, Y: 4}}
	out, err := Holes(newChanger(t), r, drills)
	require.NoError(t, err)
	assert.Contains(t, out, "S230 ;")
	assert.Contains(t, out, "M3 ;")
	assert.Contains(t, out, "G01X1Y2F600\n")
	assert.Contains(t, out, "G01X3.5Y4F600\n")
	assert.Equal(t, 2, strings.Count(out, "G01Z13F1\n"))
	assert.Less(t, strings.Index(out, "C2 ;"), strings.Index(out, "M3 ;"))

	r.SpindleSpeed = 300
	_, err = Holes(newChanger(t), r, drills)
	assert.Error(t, err)
}

func TestTrace(t *testing.T) {
	l := config.Default().Laser
	l.Passes = 2
	loops := []toolpath.Loop{
		{Kind: toolpath.Exterior, Closed: true, Points: []v2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}},
		{Kind: toolpath.Exterior, Points: []v2.Vec{{X: 5, Y: 5}, {X: 6, Y: 5}}},
		{Kind: toolpath.Drill, Points: []v2.Vec{{X: 9, Y: 9}}},
		{Kind: toolpath.Hole, Closed: true},
	}
	out, err := Trace(newChanger(t), l, loops)
	require.NoError(t, err)
	assert.Contains(t, out, "G01X0Y0\nM3\nG01X1Y0\nG01X0Y1\nG01X0Y0\nM5\n")
	assert.Contains(t, out, "G01X5Y5\nM3\nG01X6Y5\nM5\n")
	assert.NotContains(t, out, "X9Y9")
	assert.Equal(t, 4, strings.Count(out, "M3\n"))
	assert.Contains(t, out, "; Pass number: 2\n")
	assert.Contains(t, out, "S200 ; Setting Laser Power")
	assert.Contains(t, out, "G00Z16 ;")

	l.Passes = 0
	_, err = Trace(newChanger(t), l, loops)
	assert.Error(t, err)
}

func TestPlanRaster(t *testing.T) {
	r, err := PlanRaster(sdf.Box2{Min: v2.Vec{}, Max: v2.Vec{X: 20, Y: 10}}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Rows)
	assert.InDelta(t, 1.67, r.Overlap, 1e-9)
	assert.InDelta(t, 0.33, r.XStart, 1e-9)
	assert.InDelta(t, 19.67, r.XEnd, 1e-9)
	assert.InDelta(t, 0.33, r.YStart, 1e-9)
	assert.InDelta(t, 2.33, r.Step, 1e-9)

	_, err = PlanRaster(sdf.Box2{Max: v2.Vec{X: 20, Y: 0.5}}, 4)
	assert.Error(t, err)
	_, err = PlanRaster(sdf.Box2{Max: v2.Vec{X: 20, Y: 10}}, 1)
	assert.Error(t, err)
}

func TestInk(t *testing.T) {
	bounds := sdf.Box2{Min: v2.Vec{}, Max: v2.Vec{X: 20, Y: 10}}
	out, err := Ink(newChanger(t), config.Default().Pen, bounds)
	require.NoError(t, err)
	assert.Contains(t, out, "F100 ; setting default feedrate for ink laying")
	assert.Contains(t, out, "G00X0.33Y0.33Z10 ; Go to ink laying starting position\n")
	assert.Equal(t, 2, strings.Count(out, "G01X19.67\n"))
	assert.Equal(t, 2, strings.Count(out, "G01X0.33\n"))
	assert.Equal(t, 4, strings.Count(out, "G01Y"))
	assert.Contains(t, out, "G01Y9.65\n")
	assert.Contains(t, out, "C3 ;")
}
