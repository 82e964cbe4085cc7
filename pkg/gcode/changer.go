package gcode

import (
	"fmt"
	"strconv"

	"github.com/ambadran/PCB-CAM/pkg/config"
	"github.com/valyala/fasttemplate"
)

// Changer writes tool pick-up and put-back sequences for the kinematic
// mounts. Both sequences assume a homed machine; Select also assumes the
// head is empty.
type Changer struct {
	cfg config.ToolChanger
}

// NewChanger returns a Changer for cfg. Non-zero tool offsets have no
// encoding and are rejected.
func NewChanger(cfg config.ToolChanger) (*Changer, error) {
	for _, t := range []Tool{Laser, Spindle, Pen} {
		if !toolPoint(cfg.Offsets, t).IsZero() {
			return nil, fmt.Errorf("tool %d (%s) offset: %w", t, t, ErrNotImplemented)
		}
	}
	return &Changer{cfg: cfg}, nil
}

func toolPoint(tp config.ToolPoints, t Tool) config.Point3 {
	switch t {
	case Laser:
		return tp.Laser
	case Spindle:
		return tp.Spindle
	case Pen:
		return tp.Pen
	}
	return config.Point3{}
}

var selectTmpl = fasttemplate.New(`; Getting and Activating Tool-{{n}}, The {{name}}
{{home}}{{enter}}A1 ; Latch on Kinematic Mount
G4 P{{dwell}} ; Wait for Kinematic Mount to fully attach
{{exit}}C{{n}} ; Choosing tool {{n}} in the demultiplexer circuits

`, "{{", "}}")

var deselectTmpl = fasttemplate.New(`; Returning and Deactivating Tool-{{n}}, The {{name}}
C{{empty}} ; Selecting the empty tool slot in the demultiplexer circuits
{{home}}{{enter}}A0 ; Latch OFF Kinematic Mount
G4 P{{dwell}} ; Wait for Kinematic Mount to fully detach
{{exit}}
`, "{{", "}}")

// Select picks t up from its hanger and activates it.
func (c *Changer) Select(t Tool) (string, error) {
	return c.change(selectTmpl, t, c.cfg.LatchIn, c.cfg.LatchOut)
}

// Deselect deactivates t and hangs it back.
func (c *Changer) Deselect(t Tool) (string, error) {
	return c.change(deselectTmpl, t, c.cfg.LatchOut, c.cfg.LatchIn)
}

func (c *Changer) change(tmpl *fasttemplate.Template, t Tool, enter, exit float64) (string, error) {
	if t <= Empty || t > Pen {
		return "", fmt.Errorf("gcode: no mount for tool %s", t)
	}
	rapid := func(x Coord, note string) string {
		return Move(Absolute, x, MoveOptions{Rapid: true, Comment: note})
	}
	return tmpl.ExecuteString(map[string]any{
		"n":     strconv.Itoa(int(t)),
		"name":  t.String(),
		"empty": strconv.Itoa(int(Empty)),
		"home":  rapid(point(toolPoint(c.cfg.Homes, t)), fmt.Sprintf("Go to Tool-%d Home Pos", t)),
		"enter": rapid(X(enter), "Enter Female Kinematic Mount Home Pos"),
		"exit":  rapid(X(exit), "Exit Female Kinematic Mount Home Pos"),
		"dwell": Num(c.cfg.AttachDetachTime),
	}), nil
}
