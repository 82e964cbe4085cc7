// Package gcode writes the machine programs of a PCB run: machine setup,
// tool changes, hole drilling, laser trace marking and ink laying.
//
// Coordinates are absolute millimetres rounded to three decimals.
package gcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ambadran/PCB-CAM/pkg/config"
	"github.com/valyala/fasttemplate"
	"gonum.org/v1/gonum/floats/scalar"
)

// ErrNotImplemented is returned for machine features without an encoding.
var ErrNotImplemented = errors.New("gcode: not implemented")

// Tool is a slot on the tool changer. Empty deselects every end effector.
type Tool int

const (
	Empty Tool = iota
	Laser
	Spindle
	Pen
)

func (t Tool) String() string {
	switch t {
	case Empty:
		return "Empty"
	case Laser:
		return "Laser"
	case Spindle:
		return "Spindle"
	case Pen:
		return "Pen"
	}
	return fmt.Sprintf("Tool(%d)", int(t))
}

// Mode says whether move coordinates are absolute or relative.
type Mode int

const (
	Absolute Mode = iota
	Incremental
)

// Axis is a set of coordinate letters.
type Axis uint8

const (
	AxisX Axis = 1 << iota
	AxisY
	AxisZ
)

// Coord is a target position; only the axes in Set are written.
type Coord struct {
	X, Y, Z float64
	Set     Axis
}

// XY targets a point in the board plane.
func XY(x, y float64) Coord { return Coord{X: x, Y: y, Set: AxisX | AxisY} }

// XYZ targets a point in space.
func XYZ(x, y, z float64) Coord { return Coord{X: x, Y: y, Z: z, Set: AxisX | AxisY | AxisZ} }

// X moves along X only.
func X(x float64) Coord { return Coord{X: x, Set: AxisX} }

// Y moves along Y only.
func Y(y float64) Coord { return Coord{Y: y, Set: AxisY} }

// Z moves along Z only.
func Z(z float64) Coord { return Coord{Z: z, Set: AxisZ} }

func point(p config.Point3) Coord { return XYZ(p.X, p.Y, p.Z) }

func (c Coord) String() string {
	var b strings.Builder
	if c.Set&AxisX != 0 {
		b.WriteString("X" + Num(c.X))
	}
	if c.Set&AxisY != 0 {
		b.WriteString("Y" + Num(c.Y))
	}
	if c.Set&AxisZ != 0 {
		b.WriteString("Z" + Num(c.Z))
	}
	return b.String()
}

// Num formats v rounded to three decimals without trailing zeros.
func Num(v float64) string {
	r := scalar.RoundEven(v, 3)
	if r == 0 {
		r = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// MoveOptions are the optional parts of a move line.
type MoveOptions struct {
	// Rapid selects G00 instead of G01.
	Rapid bool
	// Feed appends F<feed> when positive.
	Feed    int
	Comment string
}

var moveTmpl = fasttemplate.New("[cmd][coord][feed][comment]\n[restore]", "[", "]")

// Move returns one G00/G01 line. Incremental moves switch to G91 for the
// line and back to G90 after it.
func Move(mode Mode, c Coord, opts MoveOptions) string {
	cmd := "G01"
	if opts.Rapid {
		cmd = "G00"
	}
	restore := ""
	if mode == Incremental {
		cmd = "G21G91" + cmd
		restore = "G21G90\n"
	}
	feed := ""
	if opts.Feed > 0 {
		feed = "F" + strconv.Itoa(opts.Feed)
	}
	return moveTmpl.ExecuteString(map[string]any{
		"cmd":     cmd,
		"coord":   c.String(),
		"feed":    feed,
		"comment": comment(opts.Comment),
		"restore": restore,
	})
}

func comment(s string) string {
	if s == "" {
		return ""
	}
	return " ; " + s
}

var initTmpl = fasttemplate.New(`; Generated by pcbcam

; Machine Initialization Sequence...

G21 ; to set metric units
G90 ; to set absolute mode, G91 for incremental mode
G94 ; to set the active feed rate mode to units per minute mode

M5 ; disabling spindle PWM
C{{empty}} ; choosing the empty tool slot in the multiplexer circuits

B1 ; Turn ON Machine

$H ; Homing
G10 P0 L20 {{origin}} ; Force Reset current coordinates after homing

`, "{{", "}}")

// Init returns the power-on, homing and coordinate reset sequence.
func Init() string {
	return initTmpl.ExecuteString(map[string]any{
		"empty":  strconv.Itoa(int(Empty)),
		"origin": XYZ(0, 0, 0).String(),
	})
}

// Deinit returns the machine to the origin and powers it off.
func Deinit() string {
	return "; Machine deinitialization Sequence...\n" +
		Move(Absolute, XYZ(0, 0, 0), MoveOptions{Rapid: true}) +
		"B0 ; Turn Machine OFF\n"
}
