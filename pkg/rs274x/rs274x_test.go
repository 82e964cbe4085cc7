package rs274x

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ambadran/PCB-CAM/pkg/gerber"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kicadLike = `G04 #@! TF.GenerationSoftware,KiCad*
%FSLAX46Y46*%
G04 Gerber Fmt 4.6, Leading zero omitted, Abs format (unit mm)*
%MOMM*%
%LPD*%
G01*
%ADD10C,0.250000*%
%ADD11R,1.000000X2.000000*%
%ADD12O,1.000000X2.000000*%
%AMRoundRect*
0 Rectangle with rounded corners*
0 $1 Rounding radius*
0 $2 $3 $4 $5 $6 $7 $8 $9 X,Y pos of 4 corners*
0 Add a 4 corners polygon primitive as pad body*
4,1,4,$2,$3,$4,$5,$6,$7,$8,$9,$2,$3,0*
0 Add four circle primitives for the rounded corners*
1,1,$1+$1,$2,$3*
1,1,$1+$1,$4,$5*
1,1,$1+$1,$6,$7*
1,1,$1+$1,$8,$9*
0 Add four rect primitives between the rounded corners*
20,1,$1+$1,$2,$3,$4,$5,0*
20,1,$1+$1,$4,$5,$6,$7,0*
20,1,$1+$1,$6,$7,$8,$9,0*
20,1,$1+$1,$8,$9,$2,$3,0*%
%ADD13RoundRect,0.250000X-0.600000X-0.550000X0.600000X-0.550000X0.600000X0.550000X-0.600000X0.550000X0*%
%TA.AperFunction,Conductor*%
D10*
X1000000Y2000000D02*
X5000000Y2000000D01*
%TD*%
D11*
X10000000Y10000000D03*
D13*
X20000000Y5000000D03*
G36*
X0Y0D02*
G01*
X1000000Y0D01*
X1000000Y1000000D01*
X0Y1000000D01*
X0Y0D01*
G37*
%LPC*%
D10*
X500000Y500000D03*
M02*
`

func decode(t *testing.T, src string) []gerber.Primitive {
	t.Helper()
	ps, err := Decode(strings.NewReader(src), DefaultOptions())
	require.NoError(t, err)
	return ps
}

func assertVec(t *testing.T, want, got v2.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
}

func TestDecodeKiCadLike(t *testing.T) {
	ps := decode(t, kicadLike)
	require.Len(t, ps, 5)

	line, ok := ps[0].(gerber.Line)
	require.True(t, ok, "got %T", ps[0])
	assertVec(t, v2.Vec{X: 1, Y: 2}, line.Start)
	assertVec(t, v2.Vec{X: 5, Y: 2}, line.End)
	assert.InDelta(t, 0.25, line.Width, 1e-12)

	rect, ok := ps[1].(gerber.Rectangle)
	require.True(t, ok, "got %T", ps[1])
	assertVec(t, v2.Vec{X: 10, Y: 10}, rect.Center)
	assert.Equal(t, 1.0, rect.Width)
	assert.Equal(t, 2.0, rect.Height)

	m, ok := ps[2].(gerber.MacroGroup)
	require.True(t, ok, "got %T", ps[2])
	assert.Equal(t, "RoundRect", m.Name)
	require.Len(t, m.Primitives, 9)
	body, ok := m.Primitives[0].(gerber.Outline)
	require.True(t, ok)
	require.Len(t, body.Segments, 4)
	assertVec(t, v2.Vec{X: 19.4, Y: 4.45}, body.Segments[0].(gerber.Line).Start)
	corner := m.Primitives[1].(gerber.Circle)
	assert.InDelta(t, 0.5, corner.Diameter, 1e-12)
	assertVec(t, v2.Vec{X: 19.4, Y: 4.45}, corner.Center)

	region, ok := ps[3].(gerber.Region)
	require.True(t, ok, "got %T", ps[3])
	assert.Len(t, region.Segments, 4)
	assert.Equal(t, gerber.Dark, gerber.PolarityOf(region))

	hole, ok := ps[4].(gerber.Circle)
	require.True(t, ok, "got %T", ps[4])
	assert.Equal(t, gerber.Clear, gerber.PolarityOf(hole))
	assertVec(t, v2.Vec{X: 0.5, Y: 0.5}, hole.Center)
}

func TestDecodeInches(t *testing.T) {
	ps := decode(t, "%FSLAX24Y24*%%MOIN*%%ADD10C,0.01*%D10*X10000Y0D03*M02*")
	require.Len(t, ps, 1)
	c := ps[0].(gerber.Circle)
	assertVec(t, v2.Vec{X: 25.4}, c.Center)
	assert.InDelta(t, 0.254, c.Diameter, 1e-12)
}

func TestDecodeTrailingZeros(t *testing.T) {
	ps := decode(t, "%FSTAX23Y23*%%MOMM*%%ADD10C,1*%D10*X15Y-25D03*M02*")
	require.Len(t, ps, 1)
	assertVec(t, v2.Vec{X: 15, Y: -25}, ps[0].Position())
}

func TestDecodeArcs(t *testing.T) {
	src := `%FSLAX46Y46*%%MOMM*%%ADD10C,0.2*%D10*G75*
X1000000Y0D02*
G03X0Y1000000I-1000000J0D01*
G02X1000000Y0I0J-1000000D01*
M02*`
	ps := decode(t, src)
	require.Len(t, ps, 2)
	for _, p := range ps {
		a, ok := p.(gerber.Arc)
		require.True(t, ok, "got %T", p)
		assertVec(t, v2.Vec{}, a.Center)
		assert.InDelta(t, 1, a.Radius, 1e-12)
		assert.Equal(t, gerber.CounterClockwise, a.Direction)
		assert.InDelta(t, 0, a.StartAngle, 1e-12)
		assert.InDelta(t, math.Pi/2, a.EndAngle, 1e-12)
		assert.InDelta(t, 0.2, a.Width, 1e-12)
	}
}

func TestDecodeSingleQuadrant(t *testing.T) {
	src := `%FSLAX46Y46*%%MOMM*%%ADD10C,0.2*%D10*G74*
X1000000Y0D02*
G02X0Y-1000000I1000000J0D01*
M02*`
	ps := decode(t, src)
	require.Len(t, ps, 1)
	a := ps[0].(gerber.Arc)
	assertVec(t, v2.Vec{}, a.Center)
	assert.InDelta(t, math.Pi/2, math.Abs(a.Sweep()), 1e-9)
}

func TestDecodeRegionArc(t *testing.T) {
	src := `%FSLAX46Y46*%%MOMM*%G75*
G36*
X0Y0D02*
G01X2000000Y0D01*
G03X0Y2000000I-2000000J0D01*
G01X0Y0D01*
G37*
M02*`
	ps, err := Decode(strings.NewReader(src), Options{ArcSegments: 16})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	r := ps[0].(gerber.Region)
	// One line, a quarter circle in 4 pieces, one closing line.
	require.Len(t, r.Segments, 6)
	for i := 0; i+1 < len(r.Segments); i++ {
		assert.Equal(t, r.Segments[i].(gerber.Line).End, r.Segments[i+1].(gerber.Line).Start)
	}
	assertVec(t, v2.Vec{X: 2}, r.Segments[1].(gerber.Line).Start)
	assertVec(t, v2.Vec{Y: 2}, r.Segments[4].(gerber.Line).End)
}

func TestDecodeObroundAndPolygon(t *testing.T) {
	ps := decode(t, "%FSLAX46Y46*%%MOMM*%%ADD10O,1X2*%%ADD11P,2X6X90*%D10*X0Y0D03*D11*X1000000Y0D03*M02*")
	require.Len(t, ps, 2)
	assert.IsType(t, gerber.Obround{}, ps[0])
	p := ps[1].(gerber.Polygon)
	assert.Equal(t, 6, p.Sides)
	assert.InDelta(t, math.Pi/2, p.Rotation, 1e-12)
}

func TestDecodeErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
		msg  string
		line int
	}{
		{"rect stroke", "%FSLAX46Y46*%\n%ADD11R,1X1*%\nD11*\nX0Y0D02*\nX1000000Y0D01*\n", "non-circular aperture D11", 5},
		{"step repeat", "%FSLAX46Y46*%\n%SRX2Y1I5J0*%\n", "step and repeat", 2},
		{"block aperture", "%FSLAX46Y46*%\n%ABD12*%\n", "block apertures", 2},
		{"thermal", "%AMT*7,0,0,1,0.8,0.1,0*%\n", "primitive 7", 1},
		{"undefined aperture", "%FSLAX46Y46*%\nD42*\n", "D42 is not defined", 2},
		{"undefined macro", "%ADD10FOO,1*%\n", "undefined macro", 1},
		{"open region", "%FSLAX46Y46*%\nG36*\nX0Y0D02*\n", "unterminated region", 3},
		{"flash without aperture", "X0Y0D03*\n", "flash without an aperture", 1},
		{"bad polarity", "%LPX*%\n", "unknown polarity", 1},
		{"unterminated word", "X0Y0D03", "not terminated", 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.src), DefaultOptions())
			require.Error(t, err)
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "got %T: %v", err, err)
			assert.Contains(t, se.Message, tc.msg)
			assert.Equal(t, tc.line, se.Line)
		})
	}
}

func TestEvalExpr(t *testing.T) {
	vars := map[int]float64{1: 0.25, 2: -3}
	for _, tc := range []struct {
		expr string
		want float64
	}{
		{"$1+$1", 0.5},
		{"2x(3-1)/4", 1},
		{"-$2", 3},
		{"1.5X2", 3},
		{"$9", 0},
		{"1-2-3", -4},
		{"8/2/2", 2},
	} {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := evalExpr(tc.expr, vars)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
	for _, bad := range []string{"", "(1", "1/0", "2*3", "$"} {
		_, err := evalExpr(bad, vars)
		assert.Error(t, err, bad)
	}
}

func TestMacroAssignmentAndRotation(t *testing.T) {
	src := `%FSLAX46Y46*%%MOMM*%
%AMROT*
$3=$1x2*
21,1,$3,$2,0,0,90*%
%ADD10ROT,1X0.5*%
D10*X0Y0D03*M02*`
	ps := decode(t, src)
	m := ps[0].(gerber.MacroGroup)
	require.Len(t, m.Primitives, 1)
	o := m.Primitives[0].(gerber.Outline)
	b, err := gerber.Bounds(o)
	require.NoError(t, err)
	// A 2 x 0.5 rectangle turned a quarter turn.
	assert.InDelta(t, 0.5, b.Size().X, 1e-9)
	assert.InDelta(t, 2, b.Size().Y, 1e-9)
}
