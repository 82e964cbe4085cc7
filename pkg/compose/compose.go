// Package compose combines reconstructed shapes according to their Gerber
// polarity: clear shapes cut dark ones, the dark results are unioned, and
// the union is split into connected pieces.
package compose

import (
	"fmt"

	"github.com/ambadran/PCB-CAM/pkg/geom"
	"github.com/ambadran/PCB-CAM/pkg/gerber"
	"github.com/ambadran/PCB-CAM/pkg/kernel"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	"github.com/ambadran/PCB-CAM/pkg/reconstruct"
	"github.com/samber/lo"
)

// Entry is the reconstruction of one board primitive.
type Entry struct {
	Index  int
	Kind   gerber.Kind
	Shapes []geom.Shape
}

// Layer holds the entries of a board split by polarity, each side in
// primitive order.
type Layer struct {
	Dark  []Entry
	Clear []Entry
}

// Add files shapes under the polarity of p.
func (l *Layer) Add(index int, p gerber.Primitive, shapes []geom.Shape) error {
	e := Entry{Index: index, Kind: p.Kind(), Shapes: shapes}
	switch pol := gerber.PolarityOf(p); pol {
	case gerber.Dark:
		l.Dark = append(l.Dark, e)
	case gerber.Clear:
		l.Clear = append(l.Clear, e)
	default:
		return gerber.AtIndex(gerber.NewError("compose", p.Kind(), gerber.ErrUnknownPolarity, "%s", pol), index)
	}
	return nil
}

// Build reconstructs every primitive and partitions the results. The
// polarity is checked before any geometry is produced.
func Build(rec *reconstruct.Reconstructor, ps []gerber.Primitive) (*Layer, error) {
	l := &Layer{}
	for i, p := range ps {
		if pol := gerber.PolarityOf(p); !pol.Valid() {
			return nil, gerber.AtIndex(gerber.NewError("compose", p.Kind(), gerber.ErrUnknownPolarity, "%s", pol), i)
		}
		shapes, err := rec.Reconstruct(p)
		if err != nil {
			return nil, gerber.AtIndex(err, i)
		}
		if err := l.Add(i, p, shapes); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Scope selects which dark kinds clear shapes are subtracted from.
type Scope int

const (
	// ScopeRegions subtracts clear shapes from Region primitives only.
	ScopeRegions Scope = iota
	// ScopeAll subtracts clear shapes from every dark primitive.
	ScopeAll
)

func (s Scope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "regions"
}

// ParseScope accepts "regions" and "all".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "regions", "region":
		return ScopeRegions, nil
	case "all":
		return ScopeAll, nil
	}
	return 0, fmt.Errorf("compose: unknown subtraction scope %q", s)
}

func (s Scope) covers(k gerber.Kind) bool {
	return s == ScopeAll || k == gerber.KindRegion
}

// Compositor applies polarity using a boolean kernel.
type Compositor struct {
	k     kernel.Kernel
	scope Scope
}

// New returns a Compositor.
func New(k kernel.Kernel, scope Scope) *Compositor {
	return &Compositor{k: k, scope: scope}
}

// Region returns the copper of l as one kernel region: the clear union is
// cut from every dark entry the scope covers, then the dark entries are
// unioned in order.
func (c *Compositor) Region(l *Layer) (kernel.Region, error) {
	if l == nil || len(l.Dark) == 0 {
		return nil, fmt.Errorf("compose: %w: no dark primitives", gerber.ErrEmptyBoard)
	}

	// Subtracting the union of the clear shapes removes the same points as
	// subtracting them one by one.
	cutter := c.k.Empty()
	for _, e := range l.Clear {
		r, err := kernel.FromShapes(c.k, e.Shapes)
		if err != nil {
			return nil, gerber.AtIndex(gerber.NewError("compose", e.Kind, gerber.ErrDegenerateShape, "%v", err), e.Index)
		}
		cutter = c.k.Union(cutter, r)
	}

	dark := make([]kernel.Region, 0, len(l.Dark))
	cut := 0
	for _, e := range l.Dark {
		r, err := kernel.FromShapes(c.k, e.Shapes)
		if err != nil {
			return nil, gerber.AtIndex(gerber.NewError("compose", e.Kind, gerber.ErrDegenerateShape, "%v", err), e.Index)
		}
		if !cutter.Empty() && c.scope.covers(e.Kind) {
			r = c.k.Difference(r, cutter)
			cut++
		}
		dark = append(dark, r)
	}
	logging.Logger().Debug("cut layer", "dark", len(l.Dark), "clear", len(l.Clear), "cut", cut, "scope", c.scope)
	return kernel.UnionAll(c.k, dark), nil
}

// Compose returns the connected copper shapes of l, each with its holes,
// followed by the open polylines of dark hairline strokes.
func (c *Compositor) Compose(l *Layer) ([]geom.Shape, error) {
	region, err := c.Region(l)
	if err != nil {
		return nil, err
	}
	shapes, err := c.k.Components(region)
	if err != nil {
		return nil, fmt.Errorf("compose: components: %w", err)
	}

	open := lo.FlatMap(l.Dark, func(e Entry, _ int) []geom.Shape {
		return lo.Filter(e.Shapes, func(s geom.Shape, _ int) bool { return s.Open })
	})

	logging.Logger().Debug("composed layer", "components", len(shapes), "open", len(open))
	return append(shapes, open...), nil
}
