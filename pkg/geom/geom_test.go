package geom

import (
	"math"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingArea(t *testing.T) {
	sq := Box(v2.Vec{}, v2.Vec{X: 10, Y: 10})
	assert.InDelta(t, 100, sq.SignedArea(), 1e-9)
	assert.InDelta(t, -100, sq.Reverse().SignedArea(), 1e-9)
	assert.InDelta(t, 100, sq.Reverse().Area(), 1e-9)
	assert.Greater(t, sq.Reverse().CCW().SignedArea(), 0.0)
	assert.Less(t, sq.CW().SignedArea(), 0.0)
}

func TestCircleTessellation(t *testing.T) {
	c := Circle(v2.Vec{X: 5, Y: 5}, 2, 64)
	require.Len(t, c, 64)
	// A regular 64-gon is within 0.2% of the true disk area.
	assert.InEpsilon(t, math.Pi*4, c.Area(), 2e-3)
	// The four extremes are vertices.
	assert.Equal(t, 7.0, c[0].X)
	assert.InDelta(t, 7.0, c[16].Y, 1e-12)
	assert.InDelta(t, 3.0, c[32].X, 1e-12)
	assert.InDelta(t, 3.0, c[48].Y, 1e-12)
}

func TestArcPointsIncludesEnds(t *testing.T) {
	pts := ArcPoints(v2.Vec{}, 1, 0, math.Pi, 5)
	require.Len(t, pts, 5)
	assert.InDelta(t, 1, pts[0].X, 1e-12)
	assert.InDelta(t, -1, pts[4].X, 1e-12)
	assert.InDelta(t, 1, pts[2].Y, 1e-12)
}

func TestClean(t *testing.T) {
	r := Ring{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}
	assert.Equal(t, Ring{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, r.Clean())
}

func TestContains(t *testing.T) {
	s := Polygon(Box(v2.Vec{}, v2.Vec{X: 10, Y: 10}), Circle(v2.Vec{X: 5, Y: 5}, 2, 32))
	assert.True(t, s.Contains(v2.Vec{X: 1, Y: 1}))
	assert.False(t, s.Contains(v2.Vec{X: 5, Y: 5}))
	assert.False(t, s.Contains(v2.Vec{X: 11, Y: 5}))
	assert.False(t, Polyline(v2.Vec{}, v2.Vec{X: 1}).Contains(v2.Vec{X: 0.5}))
}

func TestShapeArea(t *testing.T) {
	s := Polygon(Box(v2.Vec{}, v2.Vec{X: 10, Y: 10}), Box(v2.Vec{X: 4, Y: 4}, v2.Vec{X: 6, Y: 6}))
	assert.InDelta(t, 96, s.Area(), 1e-9)
	assert.Zero(t, Polyline(v2.Vec{}, v2.Vec{X: 3}).Area())
}

func TestSelfIntersects(t *testing.T) {
	bowtie := Ring{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 2}}
	assert.True(t, bowtie.SelfIntersects())
	assert.False(t, Box(v2.Vec{}, v2.Vec{X: 1, Y: 1}).SelfIntersects())
	assert.False(t, Circle(v2.Vec{}, 1, 64).SelfIntersects())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		want  error
	}{
		{"ok", Polygon(Box(v2.Vec{}, v2.Vec{X: 1, Y: 1})), nil},
		{"two points", Polygon(Ring{{}, {X: 1}}), ErrTooFewPoints},
		{"collinear", Polygon(Ring{{}, {X: 1}, {X: 2}}), ErrZeroArea},
		{"bowtie", Polygon(Ring{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 2}}), ErrSelfIntersects},
		{"polyline", Polyline(v2.Vec{}, v2.Vec{X: 1}), nil},
		{"bad hole", Polygon(Box(v2.Vec{}, v2.Vec{X: 4, Y: 4}), Ring{{X: 1, Y: 1}}), ErrTooFewPoints},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.Validate(true)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBounds(t *testing.T) {
	b := Circle(v2.Vec{X: 1, Y: 2}, 3, 64).Bounds()
	assert.InDelta(t, -2, b.Min.X, 1e-9)
	assert.InDelta(t, 5, b.Max.Y, 1e-9)
}

func TestRingDistance(t *testing.T) {
	sq := Box(v2.Vec{}, v2.Vec{X: 2, Y: 2})
	assert.InDelta(t, 1, sq.Distance(v2.Vec{X: 1, Y: 1}), 1e-12)
	assert.InDelta(t, 0, sq.Distance(v2.Vec{X: 2, Y: 1}), 1e-12)
	assert.InDelta(t, 5, sq.Distance(v2.Vec{X: 5, Y: 6}), 1e-12)
}
