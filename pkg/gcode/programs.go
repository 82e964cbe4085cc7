package gcode

import (
	"fmt"
	"math"
	"strings"

	"github.com/ambadran/PCB-CAM/pkg/config"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	"github.com/ambadran/PCB-CAM/pkg/toolpath"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"gonum.org/v1/gonum/floats/scalar"
)

// Holes returns the drilling program: pick up the spindle, plunge at every
// drill point, put the spindle back.
func Holes(c *Changer, r config.Router, drills []v2.Vec) (string, error) {
	if r.SpindleSpeed < 0 || r.SpindleSpeed > 250 {
		return "", fmt.Errorf("gcode: holes: spindle speed %d is outside 0-250", r.SpindleSpeed)
	}
	sel, err := c.Select(Spindle)
	if err != nil {
		return "", fmt.Errorf("gcode: holes: %w", err)
	}
	desel, err := c.Deselect(Spindle)
	if err != nil {
		return "", fmt.Errorf("gcode: holes: %w", err)
	}

	var b strings.Builder
	b.WriteString("\n; The following gcode is the PCB holes drill gcode\n\n")
	b.WriteString(sel)
	fmt.Fprintf(&b, "F%d ; setting default feedrate\n\n", r.FeedXY)
	fmt.Fprintf(&b, "S%d ; sets pwm speed when we enable it\n\n", r.SpindleSpeed)
	b.WriteString(Move(Absolute, Z(r.ZUp), MoveOptions{Feed: r.FeedZUp, Comment: "Moving Spindle to UP Position"}))
	b.WriteString("\nM3 ; Turn Motor ON\n")
	b.WriteString("G4 P2 ; dwell for 2 seconds so motor reaches full RPM\n\n")
	for _, p := range drills {
		b.WriteString(Move(Absolute, XY(p.X, p.Y), MoveOptions{Feed: r.FeedXY}))
		b.WriteString(Move(Absolute, Z(r.ZDown), MoveOptions{Feed: r.FeedZDrilling}))
		b.WriteString(Move(Absolute, Z(r.ZUp), MoveOptions{Feed: r.FeedZUp}))
	}
	b.WriteString("\nM5 ; disabling spindle PWM\n\n")
	b.WriteString(desel)

	logging.Logger().Debug("holes program", "holes", len(drills))
	return b.String(), nil
}

// Trace returns the laser marking program. Every loop is burnt once per
// pass; closed loops return to their first point before the laser stops.
func Trace(c *Changer, l config.Laser, loops []toolpath.Loop) (string, error) {
	if l.Passes < 1 {
		return "", fmt.Errorf("gcode: trace: %d passes", l.Passes)
	}
	sel, err := c.Select(Laser)
	if err != nil {
		return "", fmt.Errorf("gcode: trace: %w", err)
	}
	desel, err := c.Deselect(Laser)
	if err != nil {
		return "", fmt.Errorf("gcode: trace: %w", err)
	}

	var b strings.Builder
	b.WriteString("\n; The following gcode is the PCB trace laser marking gcode\n\n")
	b.WriteString("M5 ; Being extra sure it won't light up before activation\n\n")
	b.WriteString(sel)
	fmt.Fprintf(&b, "F%d ; setting default feedrate\n\n", l.Feedrate)
	b.WriteString(Move(Absolute, Z(l.FocalZ), MoveOptions{Rapid: true, Comment: "Moving to correct focal length Z position"}))
	fmt.Fprintf(&b, "\nS%d ; Setting Laser Power\n\n", l.Power)
	fmt.Fprintf(&b, "; Number of passes: %d\n\n", l.Passes)
	for pass := 1; pass <= l.Passes; pass++ {
		fmt.Fprintf(&b, "; Pass number: %d\n", pass)
		for _, loop := range loops {
			if loop.Kind == toolpath.Drill || len(loop.Points) == 0 {
				continue
			}
			first := loop.Points[0]
			b.WriteString(Move(Absolute, XY(first.X, first.Y), MoveOptions{}))
			b.WriteString("M3\n")
			for _, p := range loop.Points[1:] {
				b.WriteString(Move(Absolute, XY(p.X, p.Y), MoveOptions{}))
			}
			if loop.Closed {
				b.WriteString(Move(Absolute, XY(first.X, first.Y), MoveOptions{}))
			}
			b.WriteString("M5\n")
		}
	}
	b.WriteString("\nM5 ; Disable End-Effector Signal\n\n")
	b.WriteString(desel)

	logging.Logger().Debug("trace program", "loops", len(loops), "passes", l.Passes)
	return b.String(), nil
}

// Raster is the ink-laying sweep over a board.
type Raster struct {
	// Rows is the number of Y steps.
	Rows int
	// Overlap is how far neighbouring pen strokes overlap.
	Overlap float64
	// XStart and XEnd are the stroke ends; YStart is the first row.
	XStart, XEnd, YStart float64
	// Step is the Y distance between rows.
	Step float64
}

// PlanRaster fits pen strokes of width tip over bounds, choosing the fewest
// rows whose overlap lies between 1 mm and tip-1 mm.
func PlanRaster(bounds sdf.Box2, tip float64) (Raster, error) {
	if tip <= 1 {
		return Raster{}, fmt.Errorf("gcode: ink: tip thickness %g must exceed 1", tip)
	}
	yLen := scalar.RoundEven(bounds.Max.Y-bounds.Min.Y, 2)
	const minOverlap = 1.0
	maxOverlap := tip - 1
	most := int(math.Floor(yLen / (tip - maxOverlap)))
	fewest := int(math.Ceil(yLen / (tip - minOverlap)))
	if fewest > most {
		return Raster{}, fmt.Errorf("gcode: ink: board height %g is too small for a %g mm tip", yLen, tip)
	}
	n := fewest
	od := scalar.RoundEven((tip+float64(n)*tip-yLen)/float64(n+2), 2)
	return Raster{
		Rows:    n,
		Overlap: od,
		XStart:  bounds.Min.X + 0.5*tip - od,
		XEnd:    bounds.Max.X - 0.5*tip + od,
		YStart:  bounds.Min.Y + 0.5*tip - od,
		Step:    tip - od,
	}, nil
}

// Ink returns the ink-laying program: a boustrophedon sweep of the pen
// over the board bounds.
func Ink(c *Changer, p config.Pen, bounds sdf.Box2) (string, error) {
	r, err := PlanRaster(bounds, p.TipThickness)
	if err != nil {
		return "", err
	}
	sel, err := c.Select(Pen)
	if err != nil {
		return "", fmt.Errorf("gcode: ink: %w", err)
	}
	desel, err := c.Deselect(Pen)
	if err != nil {
		return "", fmt.Errorf("gcode: ink: %w", err)
	}

	var b strings.Builder
	b.WriteString("\n; The following gcode is the ink laying gcode\n")
	fmt.Fprintf(&b, "; %d y iterations, overlapping distance %s\n\n", r.Rows, Num(r.Overlap))
	b.WriteString(sel)
	fmt.Fprintf(&b, "F%d ; setting default feedrate for ink laying\n\n", p.Feedrate)
	b.WriteString(Move(Absolute, XYZ(r.XStart, r.YStart, p.DownZ), MoveOptions{Rapid: true, Comment: "Go to ink laying starting position"}))
	y := r.YStart
	for i := 0; i < r.Rows; i++ {
		x := r.XEnd
		if i%2 == 1 {
			x = r.XStart
		}
		y += r.Step
		b.WriteString(Move(Absolute, X(x), MoveOptions{}))
		b.WriteString(Move(Absolute, Y(y), MoveOptions{}))
	}
	b.WriteString("\n")
	b.WriteString(Move(Absolute, Z(0), MoveOptions{Rapid: true, Comment: "Get away from PCB in Z axis"}))
	b.WriteString("\nM5 ; Disable End-Effector Signal\n\n")
	b.WriteString(desel)

	logging.Logger().Debug("ink program", "rows", r.Rows, "overlap", r.Overlap)
	return b.String(), nil
}
