package rs274x

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ambadran/PCB-CAM/pkg/gerber"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/go-gl/mathgl/mgl64"
)

// aperture is one %AD definition. Parameters are kept in file units.
type aperture struct {
	code     int
	template string
	params   []float64
	macro    *macro
}

// diameter returns the stroke width of a circular aperture.
func (a *aperture) diameter() (float64, bool) {
	if a.template != "C" || len(a.params) == 0 {
		return 0, false
	}
	return a.params[0], true
}

func (a *aperture) param(i int) float64 {
	if i < len(a.params) {
		return a.params[i]
	}
	return 0
}

// flash places the aperture at at. scale converts file units to mm.
func (a *aperture) flash(at v2.Vec, pol gerber.Polarity, scale float64) (gerber.Primitive, error) {
	attr := gerber.Attr{Polarity: pol}
	switch a.template {
	case "C":
		return gerber.Circle{Attr: attr, Center: at, Diameter: a.param(0) * scale}, nil
	case "R":
		return gerber.Rectangle{Attr: attr, Center: at, Width: a.param(0) * scale, Height: a.param(1) * scale}, nil
	case "O":
		return gerber.Obround{Attr: attr, Center: at, Width: a.param(0) * scale, Height: a.param(1) * scale}, nil
	case "P":
		return gerber.Polygon{
			Attr:     attr,
			Center:   at,
			Diameter: a.param(0) * scale,
			Sides:    int(a.param(1)),
			Rotation: mgl64.DegToRad(a.param(2)),
		}, nil
	}
	if a.macro == nil {
		return nil, fmt.Errorf("aperture D%d: unknown template %q", a.code, a.template)
	}
	prims, err := a.macro.instantiate(a.params, at, scale)
	if err != nil {
		return nil, fmt.Errorf("aperture D%d: %w", a.code, err)
	}
	return gerber.MacroGroup{Attr: attr, Name: a.macro.name, Center: at, Primitives: prims}, nil
}

// parseAperture reads "ADD<code><template>[,<p>X<p>...]".
func parseAperture(word string, macros map[string]*macro) (*aperture, error) {
	body := strings.TrimPrefix(word, "ADD")
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	if i == 0 {
		return nil, fmt.Errorf("aperture definition %q has no code", word)
	}
	code, err := strconv.Atoi(body[:i])
	if err != nil {
		return nil, fmt.Errorf("aperture definition %q: %w", word, err)
	}
	template, rest, _ := strings.Cut(body[i:], ",")
	if template == "" {
		return nil, fmt.Errorf("aperture D%d has no template", code)
	}
	a := &aperture{code: code, template: template}
	if rest != "" {
		for _, f := range strings.Split(rest, "X") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("aperture D%d: parameter %q: %w", code, f, err)
			}
			a.params = append(a.params, v)
		}
	}
	switch template {
	case "C", "R", "O", "P":
	default:
		m, ok := macros[template]
		if !ok {
			return nil, fmt.Errorf("aperture D%d: undefined macro %q", code, template)
		}
		a.macro = m
	}
	return a, nil
}

// macro is an %AM definition.
type macro struct {
	name  string
	stmts []macroStmt
}

// macroStmt is either a variable assignment or a primitive.
type macroStmt struct {
	assign int
	code   int
	exprs  []string
}

func parseMacro(words []string) (*macro, error) {
	m := &macro{name: strings.TrimPrefix(words[0], "AM")}
	if m.name == "" {
		return nil, fmt.Errorf("macro definition has no name")
	}
	for _, w := range words[1:] {
		if w == "0" || strings.HasPrefix(w, "0 ") {
			continue
		}
		if strings.HasPrefix(w, "$") {
			lhs, rhs, ok := strings.Cut(w, "=")
			if !ok {
				return nil, fmt.Errorf("macro %s: bad statement %q", m.name, w)
			}
			n, err := strconv.Atoi(strings.TrimPrefix(lhs, "$"))
			if err != nil {
				return nil, fmt.Errorf("macro %s: bad variable %q", m.name, lhs)
			}
			m.stmts = append(m.stmts, macroStmt{assign: n, exprs: []string{rhs}})
			continue
		}
		fields := strings.Split(w, ",")
		code, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("macro %s: bad primitive code in %q", m.name, w)
		}
		switch code {
		case 1, 4, 5, 20, 21:
		case 6, 7:
			return nil, fmt.Errorf("macro %s: primitive %d is not supported", m.name, code)
		default:
			return nil, fmt.Errorf("macro %s: unknown primitive %d", m.name, code)
		}
		m.stmts = append(m.stmts, macroStmt{code: code, exprs: fields[1:]})
	}
	return m, nil
}

// instantiate evaluates the macro body with $1..$n bound to params and
// returns its primitives in board coordinates.
func (m *macro) instantiate(params []float64, at v2.Vec, scale float64) ([]gerber.Primitive, error) {
	vars := make(map[int]float64, len(params))
	for i, p := range params {
		vars[i+1] = p
	}
	var out []gerber.Primitive
	for _, st := range m.stmts {
		vals := make([]float64, len(st.exprs))
		for i, e := range st.exprs {
			v, err := evalExpr(e, vars)
			if err != nil {
				return nil, fmt.Errorf("macro %s: %w", m.name, err)
			}
			vals[i] = v
		}
		if st.assign > 0 {
			vars[st.assign] = vals[0]
			continue
		}
		p, err := macroPrimitive(st.code, vals, at, scale)
		if err != nil {
			return nil, fmt.Errorf("macro %s: %w", m.name, err)
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func macroPrimitive(code int, v []float64, at v2.Vec, scale float64) (gerber.Primitive, error) {
	need := map[int]int{1: 4, 4: 5, 5: 6, 20: 7, 21: 6}[code]
	if len(v) < need {
		return nil, fmt.Errorf("primitive %d needs %d parameters, got %d", code, need, len(v))
	}
	attr := gerber.Attr{Polarity: gerber.Dark}
	if v[0] == 0 {
		attr.Polarity = gerber.Clear
	}
	rotation := func(i int) float64 {
		if i < len(v) {
			return mgl64.DegToRad(v[i])
		}
		return 0
	}
	place := func(p v2.Vec, rot float64) v2.Vec {
		p = p.MulScalar(scale)
		s, c := math.Sincos(rot)
		return v2.Vec{X: p.X*c - p.Y*s + at.X, Y: p.X*s + p.Y*c + at.Y}
	}

	switch code {
	case 1:
		rot := rotation(4)
		return gerber.Circle{Attr: attr, Center: place(v2.Vec{X: v[2], Y: v[3]}, rot), Diameter: v[1] * scale}, nil
	case 20:
		s, e := v2.Vec{X: v[2], Y: v[3]}, v2.Vec{X: v[4], Y: v[5]}
		d := e.Sub(s)
		if d.Length() == 0 || v[1] == 0 {
			return nil, nil
		}
		u := d.MulScalar(1 / d.Length())
		n := v2.Vec{X: -u.Y, Y: u.X}.MulScalar(v[1] / 2)
		rot := rotation(6)
		return outline(attr, rot, place, s.Add(n), e.Add(n), e.Sub(n), s.Sub(n)), nil
	case 21:
		w, h := v[1]/2, v[2]/2
		cx, cy := v[3], v[4]
		rot := rotation(5)
		return outline(attr, rot, place,
			v2.Vec{X: cx - w, Y: cy - h}, v2.Vec{X: cx + w, Y: cy - h},
			v2.Vec{X: cx + w, Y: cy + h}, v2.Vec{X: cx - w, Y: cy + h}), nil
	case 4:
		n := int(v[1])
		if n < 3 || len(v) < 2+2*(n+1) {
			return nil, fmt.Errorf("outline with %d vertices has %d parameters", n, len(v))
		}
		pts := make([]v2.Vec, n+1)
		for i := range pts {
			pts[i] = v2.Vec{X: v[2+2*i], Y: v[3+2*i]}
		}
		rot := rotation(2 + 2*(n+1))
		return outline(attr, rot, place, pts[:n]...), nil
	case 5:
		rot := rotation(5)
		return gerber.Polygon{
			Attr:     attr,
			Center:   place(v2.Vec{X: v[2], Y: v[3]}, rot),
			Diameter: v[4] * scale,
			Sides:    int(v[1]),
			Rotation: rot,
		}, nil
	}
	return nil, fmt.Errorf("primitive %d is not supported", code)
}

// outline closes pts into an Outline of zero-width lines.
func outline(attr gerber.Attr, rot float64, place func(v2.Vec, float64) v2.Vec, pts ...v2.Vec) gerber.Outline {
	segs := make([]gerber.Primitive, len(pts))
	for i := range pts {
		segs[i] = gerber.Line{
			Attr:  attr,
			Start: place(pts[i], rot),
			End:   place(pts[(i+1)%len(pts)], rot),
		}
	}
	return gerber.Outline{Attr: attr, Segments: segs}
}
