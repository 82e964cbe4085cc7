package engine

import (
	"fmt"
	"strings"

	"github.com/ambadran/PCB-CAM/pkg/gerber"
	v2 "github.com/deadsy/sdfx/vec/v2"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/go-gl/mathgl/mgl64"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpPoint wraps a board coordinate in millimetres.
type sexpPoint struct {
	v v2.Vec
}

func (p *sexpPoint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pt %g %g)", p.v.X, p.v.Y)
}
func (p *sexpPoint) Type() *zygo.RegisteredType { return nil }

// sexpPrimitive wraps a gerber.Primitive so it can be passed to `board`,
// `macro-group` and user functions.
type sexpPrimitive struct {
	p gerber.Primitive
}

func (p *sexpPrimitive) SexpString(ps *zygo.PrintState) string {
	at := p.p.Position()
	return fmt.Sprintf("(%s %s at %g,%g)", p.p.Kind(), gerber.PolarityOf(p.p), at.X, at.Y)
}
func (p *sexpPrimitive) Type() *zygo.RegisteredType { return nil }

// collector accumulates the primitives handed to `board`.
type collector struct {
	prims []gerber.Primitive
}

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	fn         string
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(fn string, args []zygo.Sexp) kwArgs {
	result := kwArgs{fn: fn, kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// float returns keyword key as a number, or def when it is absent.
func (a kwArgs) float(key string, def float64) (float64, error) {
	v, ok := a.kw[key]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", a.fn, key, err)
	}
	return f, nil
}

func (a kwArgs) requireFloat(key string) (float64, error) {
	if _, ok := a.kw[key]; !ok {
		return 0, fmt.Errorf("%s: missing :%s", a.fn, key)
	}
	return a.float(key, 0)
}

// attr reads the optional :polarity keyword.
func (a kwArgs) attr() (gerber.Attr, error) {
	v, ok := a.kw["polarity"]
	if !ok {
		return gerber.Attr{}, nil
	}
	name, err := toKeywordString(v)
	if err != nil {
		return gerber.Attr{}, fmt.Errorf("%s: polarity: %w", a.fn, err)
	}
	p, err := gerber.ParsePolarity(name)
	if err != nil {
		return gerber.Attr{}, fmt.Errorf("%s: %w", a.fn, err)
	}
	return gerber.Attr{Polarity: p}, nil
}

// center returns the first positional argument as a point.
func (a kwArgs) center() (v2.Vec, error) {
	if len(a.positional) < 1 {
		return v2.Vec{}, fmt.Errorf("%s requires a center point", a.fn)
	}
	p, err := toPoint(a.positional[0])
	if err != nil {
		return v2.Vec{}, fmt.Errorf("%s: center: %w", a.fn, err)
	}
	return p, nil
}

func (a kwArgs) points(min int) ([]v2.Vec, error) {
	if len(a.positional) < min {
		return nil, fmt.Errorf("%s requires at least %d points, got %d", a.fn, min, len(a.positional))
	}
	pts := make([]v2.Vec, len(a.positional))
	for i, s := range a.positional {
		p, err := toPoint(s)
		if err != nil {
			return nil, fmt.Errorf("%s: point %d: %w", a.fn, i, err)
		}
		pts[i] = p
	}
	return pts, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_clear) and plain strings ("clear").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toPoint(s zygo.Sexp) (v2.Vec, error) {
	if p, ok := s.(*sexpPoint); ok {
		return p.v, nil
	}
	return v2.Vec{}, fmt.Errorf("expected point, got %T (%s)", s, s.SexpString(nil))
}

// toPrimitives accepts a primitive or a list/array of primitives, so
// scripts can pass the result of map or a let-bound list.
func toPrimitives(s zygo.Sexp) ([]gerber.Primitive, error) {
	if p, ok := s.(*sexpPrimitive); ok {
		return []gerber.Primitive{p.p}, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, fmt.Errorf("expected primitive or list of primitives: %w", err)
	}
	out := make([]gerber.Primitive, 0, len(items))
	for _, item := range items {
		ps, err := toPrimitives(item)
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
	}
	return out, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// closedLines joins pts into a closed chain of zero-width lines.
func closedLines(attr gerber.Attr, pts []v2.Vec) []gerber.Primitive {
	segs := make([]gerber.Primitive, len(pts))
	for i := range pts {
		segs[i] = gerber.Line{Attr: attr, Start: pts[i], End: pts[(i+1)%len(pts)]}
	}
	return segs
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// constructor builds one primitive from parsed arguments.
type constructor func(pa kwArgs) (gerber.Primitive, error)

// registerBuiltins installs the board script builtins into a zygomys
// environment. Primitives handed to `board` are appended to c.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, c *collector) {
	primitive := func(name string, fn constructor) {
		display := strings.ReplaceAll(name, "_", "-")
		env.AddFunction(name, func(env *zygo.Zlisp, _ string, args []zygo.Sexp) (zygo.Sexp, error) {
			p, err := fn(parseArgs(display, args))
			if err != nil {
				return zygo.SexpNull, err
			}
			return &sexpPrimitive{p: p}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (pt 1.5 -2)
	// -----------------------------------------------------------------------
	env.AddFunction("pt", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("pt requires exactly 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pt: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pt: y: %w", err)
		}
		return &sexpPoint{v: v2.Vec{X: x, Y: y}}, nil
	})

	// -----------------------------------------------------------------------
	// (line (pt 0 0) (pt 10 0) :width 0.25 :polarity :dark)
	// -----------------------------------------------------------------------
	primitive("line", func(pa kwArgs) (gerber.Primitive, error) {
		pts, err := pa.points(2)
		if err != nil {
			return nil, err
		}
		if len(pts) != 2 {
			return nil, fmt.Errorf("line takes exactly 2 points, got %d", len(pts))
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		w, err := pa.float("width", 0)
		if err != nil {
			return nil, err
		}
		return gerber.Line{Attr: attr, Start: pts[0], End: pts[1], Width: w}, nil
	})

	// -----------------------------------------------------------------------
	// (arc (pt 0 0) :radius 5 :from 0 :to 90 :width 0.25 :direction :cw)
	// Angles are in degrees.
	// -----------------------------------------------------------------------
	primitive("arc", func(pa kwArgs) (gerber.Primitive, error) {
		c, err := pa.center()
		if err != nil {
			return nil, err
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		r, err := pa.requireFloat("radius")
		if err != nil {
			return nil, err
		}
		from, err := pa.float("from", 0)
		if err != nil {
			return nil, err
		}
		to, err := pa.float("to", 360)
		if err != nil {
			return nil, err
		}
		w, err := pa.float("width", 0)
		if err != nil {
			return nil, err
		}
		a := gerber.Arc{
			Attr:       attr,
			Center:     c,
			Radius:     r,
			StartAngle: mgl64.DegToRad(from),
			EndAngle:   mgl64.DegToRad(to),
			Width:      w,
		}
		if v, ok := pa.kw["direction"]; ok {
			dir, err := toKeywordString(v)
			if err != nil {
				return nil, fmt.Errorf("arc: direction: %w", err)
			}
			switch dir {
			case "ccw":
			case "cw":
				a.Direction = gerber.Clockwise
			default:
				return nil, fmt.Errorf("arc: invalid direction %q, expected cw or ccw", dir)
			}
		}
		return a, nil
	})

	// -----------------------------------------------------------------------
	// (circle (pt 5 5) :diameter 1.6)
	// -----------------------------------------------------------------------
	primitive("circle", func(pa kwArgs) (gerber.Primitive, error) {
		c, err := pa.center()
		if err != nil {
			return nil, err
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		d, err := pa.requireFloat("diameter")
		if err != nil {
			return nil, err
		}
		return gerber.Circle{Attr: attr, Center: c, Diameter: d}, nil
	})

	// -----------------------------------------------------------------------
	// (rect (pt 5 5) :width 10 :height 4)
	// (rect :from (pt 0 0) :to (pt 10 4))
	// -----------------------------------------------------------------------
	primitive("rect", func(pa kwArgs) (gerber.Primitive, error) {
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		if from, ok := pa.kw["from"]; ok {
			ll, err := toPoint(from)
			if err != nil {
				return nil, fmt.Errorf("rect: from: %w", err)
			}
			to, ok := pa.kw["to"]
			if !ok {
				return nil, fmt.Errorf("rect: :from requires :to")
			}
			ur, err := toPoint(to)
			if err != nil {
				return nil, fmt.Errorf("rect: to: %w", err)
			}
			r := gerber.RectangleFromCorners(ll, ur)
			r.Attr = attr
			return r, nil
		}
		c, err := pa.center()
		if err != nil {
			return nil, err
		}
		w, err := pa.requireFloat("width")
		if err != nil {
			return nil, err
		}
		h, err := pa.requireFloat("height")
		if err != nil {
			return nil, err
		}
		return gerber.Rectangle{Attr: attr, Center: c, Width: w, Height: h}, nil
	})

	// -----------------------------------------------------------------------
	// (obround (pt 0 0) :width 1.2 :height 2)
	// -----------------------------------------------------------------------
	primitive("obround", func(pa kwArgs) (gerber.Primitive, error) {
		c, err := pa.center()
		if err != nil {
			return nil, err
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		w, err := pa.requireFloat("width")
		if err != nil {
			return nil, err
		}
		h, err := pa.requireFloat("height")
		if err != nil {
			return nil, err
		}
		return gerber.Obround{Attr: attr, Center: c, Width: w, Height: h}, nil
	})

	// -----------------------------------------------------------------------
	// (polygon (pt 0 0) :diameter 2 :sides 6 :rotation 30)
	// -----------------------------------------------------------------------
	primitive("polygon", func(pa kwArgs) (gerber.Primitive, error) {
		c, err := pa.center()
		if err != nil {
			return nil, err
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		d, err := pa.requireFloat("diameter")
		if err != nil {
			return nil, err
		}
		n, err := pa.requireFloat("sides")
		if err != nil {
			return nil, err
		}
		if n < 3 || n != float64(int(n)) {
			return nil, fmt.Errorf("polygon: sides must be an integer >= 3, got %g", n)
		}
		rot, err := pa.float("rotation", 0)
		if err != nil {
			return nil, err
		}
		return gerber.Polygon{Attr: attr, Center: c, Diameter: d, Sides: int(n), Rotation: mgl64.DegToRad(rot)}, nil
	})

	// -----------------------------------------------------------------------
	// (ellipse (pt 0 0) :width 4 :height 2)
	// -----------------------------------------------------------------------
	primitive("ellipse", func(pa kwArgs) (gerber.Primitive, error) {
		c, err := pa.center()
		if err != nil {
			return nil, err
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		w, err := pa.requireFloat("width")
		if err != nil {
			return nil, err
		}
		h, err := pa.requireFloat("height")
		if err != nil {
			return nil, err
		}
		return gerber.Ellipse{Attr: attr, Center: c, Width: w, Height: h}, nil
	})

	// -----------------------------------------------------------------------
	// (outline (pt 0 0) (pt 4 0) (pt 4 3))
	// The last point joins back to the first.
	// -----------------------------------------------------------------------
	primitive("outline", func(pa kwArgs) (gerber.Primitive, error) {
		pts, err := pa.points(3)
		if err != nil {
			return nil, err
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		return gerber.Outline{Attr: attr, Segments: closedLines(attr, pts)}, nil
	})

	// -----------------------------------------------------------------------
	// (region (pt 0 0) (pt 10 0) (pt 10 10) (pt 0 10) :polarity :clear)
	// -----------------------------------------------------------------------
	primitive("region", func(pa kwArgs) (gerber.Primitive, error) {
		pts, err := pa.points(3)
		if err != nil {
			return nil, err
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		return gerber.Region{Attr: attr, Segments: closedLines(attr, pts)}, nil
	})

	// -----------------------------------------------------------------------
	// (macro-group "RoundRect" (pt 1 1) (outline ...) (circle ...) ...)
	//
	// Registered as "macro_group"; the preprocessor converts macro-group.
	// -----------------------------------------------------------------------
	primitive("macro_group", func(pa kwArgs) (gerber.Primitive, error) {
		if len(pa.positional) < 2 {
			return nil, fmt.Errorf("macro-group requires a name and a center point")
		}
		name, err := toString(pa.positional[0])
		if err != nil {
			return nil, fmt.Errorf("macro-group: name: %w", err)
		}
		c, err := toPoint(pa.positional[1])
		if err != nil {
			return nil, fmt.Errorf("macro-group: center: %w", err)
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		m := gerber.MacroGroup{Attr: attr, Name: name, Center: c}
		for i, s := range pa.positional[2:] {
			ps, err := toPrimitives(s)
			if err != nil {
				return nil, fmt.Errorf("macro-group: child %d: %w", i, err)
			}
			m.Primitives = append(m.Primitives, ps...)
		}
		return m, nil
	})

	// -----------------------------------------------------------------------
	// (flash (pt 3 3) :shape :slot :width 1 :height 3)
	// Pads with no planar reconstruction, such as drills and slots.
	// -----------------------------------------------------------------------
	primitive("flash", func(pa kwArgs) (gerber.Primitive, error) {
		c, err := pa.center()
		if err != nil {
			return nil, err
		}
		attr, err := pa.attr()
		if err != nil {
			return nil, err
		}
		v, ok := pa.kw["shape"]
		if !ok {
			return nil, fmt.Errorf("flash: missing :shape")
		}
		name, err := toKeywordString(v)
		if err != nil {
			return nil, fmt.Errorf("flash: shape: %w", err)
		}
		k, err := gerber.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("flash: %w", err)
		}
		if k.Reconstructable() {
			return nil, fmt.Errorf("flash: %s has its own builtin", k)
		}
		w, err := pa.float("width", 0)
		if err != nil {
			return nil, err
		}
		h, err := pa.float("height", w)
		if err != nil {
			return nil, err
		}
		return gerber.Flash{Attr: attr, Shape: k, Center: c, Width: w, Height: h}, nil
	})

	// -----------------------------------------------------------------------
	// (board (rect ...) (circle ... :polarity :clear) (list ...))
	// Appends primitives in argument order. May be called more than once;
	// returns the running primitive count.
	// -----------------------------------------------------------------------
	env.AddFunction("board", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		for i, a := range args {
			ps, err := toPrimitives(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("board: argument %d: %w", i, err)
			}
			c.prims = append(c.prims, ps...)
		}
		return &zygo.SexpInt{Val: int64(len(c.prims))}, nil
	})
}
