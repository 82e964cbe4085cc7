package gerber

import (
	"errors"
	"math"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "Slot", KindSlot.String())
	assert.Equal(t, "MacroGroup", KindMacroGroup.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"slot":               KindSlot,
		"square-round-donut": KindSquareRoundDonut,
		"Round_Butterfly":    KindRoundButterfly,
		"Line":               KindLine,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("hexagram")
	assert.Error(t, err)
}

func TestReconstructable(t *testing.T) {
	assert.True(t, KindRegion.Reconstructable())
	assert.True(t, KindMacroGroup.Reconstructable())
	assert.False(t, KindDiamond.Reconstructable())
	assert.False(t, KindTestRecord.Reconstructable())
}

func TestParsePolarity(t *testing.T) {
	p, err := ParsePolarity("C")
	require.NoError(t, err)
	assert.Equal(t, Clear, p)

	p, err = ParsePolarity("dark")
	require.NoError(t, err)
	assert.Equal(t, Dark, p)

	_, err = ParsePolarity("grey")
	assert.ErrorIs(t, err, ErrUnknownPolarity)

	assert.False(t, Polarity(5).Valid())
	assert.Equal(t, Dark, PolarityOf(Line{}))
	assert.Equal(t, Clear, PolarityOf(Circle{Attr: Attr{Polarity: Clear}}))
}

func TestArcSweep(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		dir        Direction
		want       float64
	}{
		{"ccw simple", 0, math.Pi / 2, CounterClockwise, math.Pi / 2},
		{"ccw wraps", 3 * math.Pi / 2, math.Pi / 2, CounterClockwise, math.Pi},
		{"cw simple", math.Pi / 2, 0, Clockwise, -math.Pi / 2},
		{"cw wraps", 0, math.Pi / 2, Clockwise, -3 * math.Pi / 2},
		{"full turn", 1, 1, CounterClockwise, 2 * math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Arc{Radius: 1, StartAngle: tt.start, EndAngle: tt.end, Direction: tt.dir}
			assert.InDelta(t, tt.want, a.Sweep(), 1e-9)
		})
	}
}

func TestBoundsArcIncludesExtremes(t *testing.T) {
	// Quarter arc from 0 to pi/2 stays in the first quadrant.
	a := Arc{Center: v2.Vec{}, Radius: 2, StartAngle: 0, EndAngle: math.Pi / 2}
	b, err := Bounds(a)
	require.NoError(t, err)
	assert.InDelta(t, 0, b.Min.X, 1e-9)
	assert.InDelta(t, 2, b.Max.Y, 1e-9)

	// Half arc from pi/2 ccw to 3pi/2 passes through the leftmost point.
	a = Arc{Radius: 2, StartAngle: math.Pi / 2, EndAngle: 3 * math.Pi / 2, Width: 1}
	b, err = Bounds(a)
	require.NoError(t, err)
	assert.InDelta(t, -2.5, b.Min.X, 1e-9)
	assert.InDelta(t, 0.5, b.Max.X, 1e-9)
}

func TestBoundsNested(t *testing.T) {
	r := Region{Segments: []Primitive{
		Line{Start: v2.Vec{X: 0, Y: 0}, End: v2.Vec{X: 4, Y: 0}},
		Line{Start: v2.Vec{X: 4, Y: 0}, End: v2.Vec{X: 4, Y: 3}},
		Line{Start: v2.Vec{X: 4, Y: 3}, End: v2.Vec{X: 0, Y: 0}},
	}}
	b, err := Bounds(r)
	require.NoError(t, err)
	assert.Equal(t, v2.Vec{X: 4, Y: 3}, b.Max)

	m := MacroGroup{Center: v2.Vec{X: 1, Y: 1}, Primitives: []Primitive{
		Circle{Center: v2.Vec{X: 1, Y: 1}, Diameter: 2},
		r,
	}}
	b, err = Bounds(m)
	require.NoError(t, err)
	assert.Equal(t, v2.Vec{X: 0, Y: 0}, b.Min)
	assert.Equal(t, v2.Vec{X: 4, Y: 3}, b.Max)

	_, err = BoundsAll(nil)
	assert.ErrorIs(t, err, ErrEmptyBoard)
	assert.Equal(t, v2.Vec{}, Outline{}.Position())
}

func TestRectangleCorners(t *testing.T) {
	r := RectangleFromCorners(v2.Vec{X: 0, Y: 0}, v2.Vec{X: 10, Y: 4})
	assert.Equal(t, v2.Vec{X: 5, Y: 2}, r.Center)
	assert.Equal(t, v2.Vec{X: 0, Y: 0}, r.LowerLeft())
	assert.Equal(t, v2.Vec{X: 10, Y: 4}, r.UpperRight())
}

func TestPolygonVertices(t *testing.T) {
	p := Polygon{Center: v2.Vec{X: 1, Y: 1}, Diameter: 2, Sides: 4}
	vs := p.Vertices()
	require.Len(t, vs, 4)
	assert.InDelta(t, 2, vs[0].X, 1e-9)
	assert.InDelta(t, 2, vs[1].Y, 1e-9)
}

func TestPrimitiveError(t *testing.T) {
	err := NewError("reconstruct", KindRegion, ErrDiscontinuousRegion, "segment %d ends at %v", 0, "(5, 5)")
	assert.ErrorIs(t, err, ErrDiscontinuousRegion)
	assert.Equal(t, "reconstruct: (Region): discontinuous region: segment 0 ends at (5, 5)", err.Error())

	indexed := AtIndex(err, 7)
	var pe *PrimitiveError
	require.True(t, errors.As(indexed, &pe))
	assert.Equal(t, 7, pe.Index)
	assert.Contains(t, indexed.Error(), "primitive 7 (Region)")

	// An index already set is kept.
	again := AtIndex(indexed, 9)
	require.True(t, errors.As(again, &pe))
	assert.Equal(t, 7, pe.Index)

	plain := errors.New("boom")
	assert.Equal(t, plain, AtIndex(plain, 1))
}

func TestNestedError(t *testing.T) {
	inner := NewError("reconstruct", KindOutline, ErrMalformedOutline, "segment 2 has width 0.1")
	err := Nested(inner, KindMacroGroup, 1)
	assert.ErrorIs(t, err, ErrMalformedOutline)
	assert.Contains(t, err.Error(), "(MacroGroup)")
	assert.Contains(t, err.Error(), "MacroGroup sub-primitive 1 (Outline): segment 2 has width 0.1")
}
