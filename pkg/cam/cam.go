// Package cam runs the planning pipeline for one board: reconstruction,
// polarity composition, then path and drill extraction.
package cam

import (
	"errors"
	"fmt"

	"github.com/ambadran/PCB-CAM/pkg/board"
	"github.com/ambadran/PCB-CAM/pkg/compose"
	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/ambadran/PCB-CAM/pkg/kernel"
	"github.com/ambadran/PCB-CAM/pkg/kernel/sdfx"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	"github.com/ambadran/PCB-CAM/pkg/reconstruct"
	"github.com/ambadran/PCB-CAM/pkg/toolpath"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/samber/lo"
)

// Options groups the settings of every stage.
type Options struct {
	Reconstruct reconstruct.Options
	Scope       compose.Scope
	Paths       toolpath.Options
	// CrossCheck is the per-axis sample grid of the signed-distance
	// cross-check. Zero skips it.
	CrossCheck int
}

// DefaultOptions returns the standard pipeline settings.
func DefaultOptions() Options {
	return Options{
		Reconstruct: reconstruct.DefaultOptions(),
		Scope:       compose.ScopeRegions,
		Paths:       toolpath.DefaultOptions(),
	}
}

// Result is the planned geometry of a board.
type Result struct {
	// Shapes are the composed copper pieces followed by hairline strokes.
	Shapes []geom.Shape
	// Traces are the exterior and hole loops of Shapes.
	Traces []toolpath.Loop
	// Drills are the pad positions.
	Drills []toolpath.Loop
	// Bounds is the extent of the board primitives.
	Bounds sdf.Box2
}

// Plan reconstructs and composes b with kernel k and extracts its loops.
func Plan(b *board.Board, k kernel.Kernel, opts Options) (*Result, error) {
	bounds, err := b.Bounds()
	if err != nil {
		return nil, fmt.Errorf("cam: %w", err)
	}
	ps := b.Primitives()

	rec := reconstruct.New(k, opts.Reconstruct)
	layer, err := compose.Build(rec, ps)
	if err != nil {
		return nil, fmt.Errorf("cam: %w", err)
	}
	shapes, err := compose.New(k, opts.Scope).Compose(layer)
	if err != nil {
		return nil, fmt.Errorf("cam: %w", err)
	}

	if opts.CrossCheck > 0 {
		if err := crossCheck(layer, shapes, opts.Scope, bounds, opts.CrossCheck); err != nil {
			return nil, fmt.Errorf("cam: %w", err)
		}
	}

	res := &Result{
		Shapes: shapes,
		Traces: toolpath.ExtractPaths(shapes, opts.Paths),
		Drills: toolpath.ExtractDrillPoints(ps, opts.Paths),
		Bounds: bounds,
	}
	holes := lo.CountBy(res.Traces, func(l toolpath.Loop) bool { return l.Kind == toolpath.Hole })
	logging.Logger().Info("planned board",
		"primitives", len(ps), "shapes", len(shapes),
		"loops", len(res.Traces), "holes", holes, "drills", len(res.Drills))
	return res, nil
}

// ErrCrossCheck is returned when the composed copper and its signed-distance
// rebuild disagree away from the outlines.
var ErrCrossCheck = errors.New("copper differs from signed-distance rebuild")

// crossMargin is the distance from an outline within which samples are not
// compared.
const crossMargin = 1e-3

// crossCheck composes layer again with the sdfx kernel and compares
// membership with shapes at the centers of an n×n grid over bounds.
func crossCheck(layer *compose.Layer, shapes []geom.Shape, scope compose.Scope, bounds sdf.Box2, n int) error {
	k := sdfx.New()
	region, err := compose.New(k, scope).Region(layer)
	if err != nil {
		return err
	}
	closed := lo.Reject(shapes, func(s geom.Shape, _ int) bool { return s.Open })
	size := bounds.Size()
	dx, dy := size.X/float64(n), size.Y/float64(n)
	compared := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p := v2.Vec{X: bounds.Min.X + (float64(i)+0.5)*dx, Y: bounds.Min.Y + (float64(j)+0.5)*dy}
			if nearOutline(closed, p) {
				continue
			}
			compared++
			in := lo.ContainsBy(closed, func(s geom.Shape) bool { return s.Contains(p) })
			if in != k.Contains(region, p) {
				return fmt.Errorf("%w at (%g, %g): composed %t", ErrCrossCheck, p.X, p.Y, in)
			}
		}
	}
	logging.Logger().Debug("cross-checked copper", "grid", n, "compared", compared)
	return nil
}

func nearOutline(shapes []geom.Shape, p v2.Vec) bool {
	for _, s := range shapes {
		b := s.Bounds()
		if p.X < b.Min.X-crossMargin || p.X > b.Max.X+crossMargin ||
			p.Y < b.Min.Y-crossMargin || p.Y > b.Max.Y+crossMargin {
			continue
		}
		for _, r := range append([]geom.Ring{s.Exterior}, s.Holes...) {
			if r.Distance(p) < crossMargin {
				return true
			}
		}
	}
	return false
}
