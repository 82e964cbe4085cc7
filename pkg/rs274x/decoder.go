package rs274x

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ambadran/PCB-CAM/pkg/gerber"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"gonum.org/v1/gonum/floats"
)

const inch = 25.4

type interpolation int

const (
	linear interpolation = iota
	clockwise
	counterClockwise
)

// decoder is the graphics state of one file.
type decoder struct {
	opts Options
	line int

	intDigits, decDigits int
	trailing             bool
	scale                float64

	apertures map[int]*aperture
	macros    map[string]*macro
	current   *aperture

	pos          v2.Vec
	interp       interpolation
	singleQuad   bool
	polarity     gerber.Polarity
	lastOp       int
	region       bool
	contour      []gerber.Primitive
	out          []gerber.Primitive
	done         bool
	warnedSingle bool
}

func newDecoder(opts Options) *decoder {
	return &decoder{
		opts:      opts,
		intDigits: 3,
		decDigits: 6,
		scale:     1,
		apertures: make(map[int]*aperture),
		macros:    make(map[string]*macro),
		lastOp:    2,
	}
}

func (d *decoder) errorf(format string, args ...any) error {
	return &SyntaxError{Line: d.line, Message: fmt.Sprintf(format, args...)}
}

func (d *decoder) exec(c command) error {
	d.line = c.line
	if c.extended {
		return d.extended(c.words)
	}
	return d.word(c.words[0])
}

// extended handles the parameters of a %...% block.
func (d *decoder) extended(words []string) error {
	if len(words) == 0 {
		return nil
	}
	w := words[0]
	switch {
	case strings.HasPrefix(w, "FS"):
		return d.format(w)
	case w == "MOMM":
		d.scale = 1
	case w == "MOIN":
		d.scale = inch
	case strings.HasPrefix(w, "MO"):
		return d.errorf("unknown unit %q", w)
	case strings.HasPrefix(w, "AM"):
		m, err := parseMacro(words)
		if err != nil {
			return d.errorf("%v", err)
		}
		d.macros[m.name] = m
	case strings.HasPrefix(w, "AD"):
		for _, aw := range words {
			a, err := parseAperture(aw, d.macros)
			if err != nil {
				return d.errorf("%v", err)
			}
			d.apertures[a.code] = a
		}
	case strings.HasPrefix(w, "LP"):
		p, err := gerber.ParsePolarity(strings.TrimPrefix(w, "LP"))
		if err != nil {
			return d.errorf("%v", err)
		}
		d.polarity = p
	case w == "LMN", w == "LR0", w == "LS1", w == "LS1.0", w == "IPPOS", strings.HasPrefix(w, "IN"):
		// Identity aperture transforms, positive image, image name.
	case strings.HasPrefix(w, "LM"), strings.HasPrefix(w, "LR"), strings.HasPrefix(w, "LS"):
		return d.errorf("aperture transform %q is not supported", w)
	case strings.HasPrefix(w, "SR"):
		if w != "SR" && !strings.HasPrefix(w, "SRX1Y1") {
			return d.errorf("step and repeat is not supported")
		}
	case strings.HasPrefix(w, "AB"):
		return d.errorf("block apertures are not supported")
	case strings.HasPrefix(w, "TF"), strings.HasPrefix(w, "TA"),
		strings.HasPrefix(w, "TO"), strings.HasPrefix(w, "TD"):
		// Attributes carry no geometry.
	case strings.HasPrefix(w, "G04"):
	default:
		logging.Logger().Warn("ignoring unknown extended command", "line", d.line, "command", w)
	}
	return nil
}

// format reads %FSLAX<i><d>Y<i><d>*%.
func (d *decoder) format(w string) error {
	spec := strings.TrimPrefix(w, "FS")
	if len(spec) < 2 {
		return d.errorf("bad format %q", w)
	}
	switch spec[0] {
	case 'L':
		d.trailing = false
	case 'T':
		d.trailing = true
	default:
		return d.errorf("bad zero omission in %q", w)
	}
	if spec[1] != 'A' {
		return d.errorf("incremental coordinates are not supported")
	}
	xi := strings.Index(spec, "X")
	if xi < 0 || xi+2 >= len(spec) {
		return d.errorf("bad format %q", w)
	}
	i, err1 := strconv.Atoi(spec[xi+1 : xi+2])
	f, err2 := strconv.Atoi(spec[xi+2 : xi+3])
	if err1 != nil || err2 != nil {
		return d.errorf("bad format %q", w)
	}
	d.intDigits, d.decDigits = i, f
	return nil
}

// word handles one function-code or coordinate command.
func (d *decoder) word(w string) error {
	switch {
	case strings.HasPrefix(w, "G04"), strings.HasPrefix(w, "G4 "), w == "G4":
		return nil
	case w == "M02", w == "M2", w == "M00", w == "M01":
		d.done = true
		return nil
	case w == "G36":
		if d.region {
			return d.errorf("nested region")
		}
		d.region = true
		d.contour = nil
		return nil
	case w == "G37":
		if !d.region {
			return d.errorf("G37 without G36")
		}
		d.closeContour()
		d.region = false
		return nil
	case w == "G74":
		d.singleQuad = true
		return nil
	case w == "G75":
		d.singleQuad = false
		return nil
	case w == "G70":
		d.scale = inch
		return nil
	case w == "G71":
		d.scale = 1
		return nil
	case w == "G90":
		return nil
	case w == "G91":
		return d.errorf("incremental coordinates are not supported")
	}

	// Deprecated G54 before an aperture selection.
	w = strings.TrimPrefix(w, "G54")
	w = strings.TrimPrefix(w, "G55")

	for _, g := range []struct {
		prefix string
		mode   interpolation
	}{
		{"G01", linear}, {"G1", linear},
		{"G02", clockwise}, {"G2", clockwise},
		{"G03", counterClockwise}, {"G3", counterClockwise},
	} {
		if strings.HasPrefix(w, g.prefix) && !isDigitAt(w, len(g.prefix)) {
			d.interp = g.mode
			w = w[len(g.prefix):]
			break
		}
	}
	if w == "" {
		return nil
	}

	if w[0] == 'D' {
		n, err := strconv.Atoi(w[1:])
		if err != nil {
			return d.errorf("bad aperture selection %q", w)
		}
		if n < 10 {
			return d.operate(n, d.pos, v2.Vec{}, false)
		}
		a, ok := d.apertures[n]
		if !ok {
			return d.errorf("aperture D%d is not defined", n)
		}
		d.current = a
		return nil
	}

	if strings.ContainsAny(w[:1], "XYIJ") {
		return d.coordinates(w)
	}
	logging.Logger().Warn("ignoring unknown command", "line", d.line, "command", w)
	return nil
}

func isDigitAt(s string, i int) bool {
	return i < len(s) && s[i] >= '0' && s[i] <= '9'
}

// coordinates handles X..Y..I..J..D0n.
func (d *decoder) coordinates(w string) error {
	target := d.pos
	var offset v2.Vec
	hasOffset := false
	op := d.lastOp
	for len(w) > 0 {
		key := w[0]
		j := 1
		for j < len(w) && (w[j] == '-' || w[j] == '+' || w[j] == '.' || (w[j] >= '0' && w[j] <= '9')) {
			j++
		}
		val := w[1:j]
		w = w[j:]
		if key == 'D' {
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 3 {
				return d.errorf("bad operation D%s", val)
			}
			op = n
			continue
		}
		v, err := d.number(val)
		if err != nil {
			return err
		}
		switch key {
		case 'X':
			target.X = v
		case 'Y':
			target.Y = v
		case 'I':
			offset.X, hasOffset = v, true
		case 'J':
			offset.Y, hasOffset = v, true
		default:
			return d.errorf("unexpected %q in coordinate data", string(key))
		}
	}
	return d.operate(op, target, offset, hasOffset)
}

// number converts a coordinate in the file format to millimetres.
func (d *decoder) number(s string) (float64, error) {
	if s == "" {
		return 0, d.errorf("missing coordinate value")
	}
	if strings.Contains(s, ".") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, d.errorf("bad coordinate %q", s)
		}
		return v * d.scale, nil
	}
	sign := 1.0
	digits := s
	switch s[0] {
	case '-':
		sign, digits = -1, s[1:]
	case '+':
		digits = s[1:]
	}
	if d.trailing {
		for len(digits) < d.intDigits+d.decDigits {
			digits += "0"
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, d.errorf("bad coordinate %q", s)
	}
	return sign * float64(n) / math.Pow10(d.decDigits) * d.scale, nil
}

func (d *decoder) operate(op int, target, offset v2.Vec, hasOffset bool) error {
	d.lastOp = op
	defer func() { d.pos = target }()

	switch op {
	case 2:
		if d.region {
			d.closeContour()
		}
		return nil
	case 3:
		if d.region {
			return d.errorf("flash inside a region")
		}
		if d.current == nil {
			return d.errorf("flash without an aperture")
		}
		p, err := d.current.flash(target, d.polarity, d.scale)
		if err != nil {
			return d.errorf("%v", err)
		}
		d.out = append(d.out, p)
		return nil
	}

	if d.interp == linear {
		line := gerber.Line{Attr: gerber.Attr{Polarity: d.polarity}, Start: d.pos, End: target}
		if d.region {
			d.contour = append(d.contour, line)
			return nil
		}
		width, err := d.strokeWidth()
		if err != nil {
			return err
		}
		line.Width = width
		d.out = append(d.out, line)
		return nil
	}

	if !hasOffset && !d.singleQuad {
		return d.errorf("circular interpolation without I/J offsets")
	}
	arc, err := d.arc(d.pos, target, offset)
	if err != nil {
		return err
	}
	if d.region {
		d.contour = append(d.contour, d.linearize(arc, d.pos, target)...)
		return nil
	}
	width, err := d.strokeWidth()
	if err != nil {
		return err
	}
	arc.Width = width
	d.out = append(d.out, arc)
	return nil
}

func (d *decoder) strokeWidth() (float64, error) {
	if d.current == nil {
		return 0, d.errorf("stroke without an aperture")
	}
	dia, ok := d.current.diameter()
	if !ok {
		return 0, d.errorf("stroke with non-circular aperture D%d (%s)", d.current.code, d.current.template)
	}
	return dia * d.scale, nil
}

// arc builds the arc from start to end. Arcs are stored counterclockwise:
// a clockwise arc becomes the counterclockwise arc from end to start.
func (d *decoder) arc(start, end, offset v2.Vec) (gerber.Arc, error) {
	var center v2.Vec
	if d.singleQuad {
		if start.Sub(end).Length() < 1e-9 {
			return gerber.Arc{}, d.errorf("single-quadrant arc with coincident end points")
		}
		c, ok := d.quadrantCenter(start, end, offset)
		if !ok {
			return gerber.Arc{}, d.errorf("no single-quadrant arc centre fits offsets (%g, %g)", offset.X, offset.Y)
		}
		center = c
	} else {
		center = start.Add(offset)
	}
	radius := start.Sub(center).Length()
	if radius == 0 {
		return gerber.Arc{}, d.errorf("arc with zero radius")
	}
	a0 := angle(start.Sub(center))
	a1 := angle(end.Sub(center))
	arc := gerber.Arc{
		Attr:       gerber.Attr{Polarity: d.polarity},
		Center:     center,
		Radius:     radius,
		StartAngle: a0,
		EndAngle:   a1,
	}
	if d.interp == clockwise {
		arc.StartAngle, arc.EndAngle = a1, a0
	}
	return arc, nil
}

func angle(v v2.Vec) float64 { return math.Atan2(v.Y, v.X) }

// quadrantCenter picks the signed offset whose arc spans at most 90 degrees
// and whose radii at both ends agree best.
func (d *decoder) quadrantCenter(start, end, offset v2.Vec) (v2.Vec, bool) {
	best, found := v2.Vec{}, false
	bestErr := math.Inf(1)
	for _, s := range []v2.Vec{{X: 1, Y: 1}, {X: -1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: -1}} {
		c := start.Add(v2.Vec{X: s.X * math.Abs(offset.X), Y: s.Y * math.Abs(offset.Y)})
		a0, a1 := angle(start.Sub(c)), angle(end.Sub(c))
		sweep := a1 - a0
		if d.interp == clockwise {
			sweep = -sweep
		}
		sweep = math.Mod(sweep+4*math.Pi, 2*math.Pi)
		if sweep > math.Pi/2+1e-6 {
			continue
		}
		if e := math.Abs(start.Sub(c).Length() - end.Sub(c).Length()); e < bestErr {
			best, bestErr, found = c, e, true
		}
	}
	return best, found
}

// linearize splits an arc inside a region into lines from start to end.
func (d *decoder) linearize(a gerber.Arc, start, end v2.Vec) []gerber.Primitive {
	sweep := a.Sweep()
	from := a.StartAngle
	if d.interp == clockwise {
		// Stored reversed; walk it back from the original start.
		from, sweep = a.EndAngle, -sweep
	}
	n := int(math.Ceil(math.Abs(sweep) / (2 * math.Pi) * float64(d.opts.ArcSegments)))
	if n < 2 {
		n = 2
	}
	ts := floats.Span(make([]float64, n+1), from, from+sweep)
	pts := make([]v2.Vec, len(ts))
	for i, t := range ts {
		pts[i] = v2.Vec{X: a.Center.X + a.Radius*math.Cos(t), Y: a.Center.Y + a.Radius*math.Sin(t)}
	}
	pts[0], pts[len(pts)-1] = start, end

	out := make([]gerber.Primitive, 0, n)
	for i := 0; i+1 < len(pts); i++ {
		out = append(out, gerber.Line{Attr: a.Attr, Start: pts[i], End: pts[i+1]})
	}
	return out
}

// closeContour emits the current region contour, if any.
func (d *decoder) closeContour() {
	if len(d.contour) == 0 {
		return
	}
	d.out = append(d.out, gerber.Region{Attr: gerber.Attr{Polarity: d.polarity}, Segments: d.contour})
	d.contour = nil
}
