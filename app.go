package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ambadran/PCB-CAM/pkg/board"
	"github.com/ambadran/PCB-CAM/pkg/cam"
	"github.com/ambadran/PCB-CAM/pkg/compose"
	"github.com/ambadran/PCB-CAM/pkg/config"
	"github.com/ambadran/PCB-CAM/pkg/engine"
	"github.com/ambadran/PCB-CAM/pkg/gcode"
	"github.com/ambadran/PCB-CAM/pkg/kernel"
	"github.com/ambadran/PCB-CAM/pkg/kernel/polyclip"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	"github.com/ambadran/PCB-CAM/pkg/plot"
	"github.com/ambadran/PCB-CAM/pkg/rs274x"
	"github.com/ambadran/PCB-CAM/pkg/toolpath"
)

// ScriptExt marks a source file as a board script instead of Gerber.
const ScriptExt = ".pcbl"

// App turns one source file into a machine program.
type App struct {
	settings config.Settings
	engine   *engine.Engine
	kernel   kernel.Kernel
}

// Output is everything a run produced.
type Output struct {
	GCode string
	Plan  *cam.Result
}

// NewApp creates an App for settings with the polyclip kernel.
func NewApp(s config.Settings) *App {
	return &App{
		settings: s,
		engine:   engine.NewEngine(),
		kernel:   polyclip.New(),
	}
}

// Load reads the board in data. Names ending in ScriptExt are evaluated as
// board scripts; everything else is decoded as RS-274X.
func (a *App) Load(name string, data []byte) (*board.Board, error) {
	if strings.EqualFold(filepath.Ext(name), ScriptExt) {
		b, evalErrs, err := a.engine.Evaluate(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(evalErrs) > 0 {
			msgs := make([]string, len(evalErrs))
			for i, e := range evalErrs {
				msgs[i] = e.Error()
			}
			return nil, fmt.Errorf("%s: %s", name, strings.Join(msgs, "; "))
		}
		return b, nil
	}
	ps, err := rs274x.Decode(bytes.NewReader(data), rs274x.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return board.New(ps...), nil
}

// Place applies the offset, rotation and mirroring settings to b.
func (a *App) Place(b *board.Board) (*board.Board, error) {
	s := a.settings
	b, err := b.Recenter(s.Offset.X, s.Offset.Y)
	if err != nil {
		return nil, err
	}
	if s.Rotate {
		if b, err = b.Rotate90(); err != nil {
			return nil, err
		}
	}
	if s.Mirrored {
		if b, err = b.Mirror(board.AxisX); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Generate plans b and writes the selected programs between the machine
// init and deinit sequences.
func (a *App) Generate(b *board.Board) (*Output, error) {
	s := a.settings
	scope, err := compose.ParseScope(s.Geometry.Scope)
	if err != nil {
		return nil, err
	}
	opts := cam.Options{
		Reconstruct: s.Geometry.Tessellation,
		Scope:       scope,
		Paths: toolpath.Options{
			Resolution:      s.Geometry.Resolution,
			IncludeEdgeCuts: s.Laser.IncludeEdgeCuts,
		},
		CrossCheck: s.Geometry.CrossCheck,
	}
	res, err := cam.Plan(b, a.kernel, opts)
	if err != nil {
		return nil, err
	}
	ch, err := gcode.NewChanger(s.Changer)
	if err != nil {
		return nil, err
	}

	modes := s.Enabled()
	var out strings.Builder
	out.WriteString(gcode.Init())
	if modes.Ink {
		g, err := gcode.Ink(ch, s.Pen, res.Bounds)
		if err != nil {
			return nil, err
		}
		out.WriteString(g)
	}
	if modes.Laser {
		g, err := gcode.Trace(ch, s.Laser, res.Traces)
		if err != nil {
			return nil, err
		}
		out.WriteString(g)
	}
	if modes.Holes {
		g, err := gcode.Holes(ch, s.Router, toolpath.Points(res.Drills))
		if err != nil {
			return nil, err
		}
		out.WriteString(g)
	}
	out.WriteString(gcode.Deinit())
	return &Output{GCode: out.String(), Plan: res}, nil
}

// Run processes the source file at src and writes the configured outputs.
func (a *App) Run(src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	b, err := a.Load(src, data)
	if err != nil {
		return err
	}
	if b, err = a.Place(b); err != nil {
		return err
	}
	out, err := a.Generate(b)
	if err != nil {
		return err
	}

	o := a.settings.Output
	if err := os.WriteFile(o.Dest, []byte(out.GCode), 0o644); err != nil {
		return err
	}
	logging.Logger().Info("wrote gcode", "dest", o.Dest, "bytes", len(out.GCode))

	loops := append(append([]toolpath.Loop{}, out.Plan.Traces...), out.Plan.Drills...)
	if o.SVG != "" {
		if err := writeSVG(o.SVG, loops, out.Plan); err != nil {
			return err
		}
	}
	if o.DXF != "" {
		if err := plot.DXF(o.DXF, loops); err != nil {
			return err
		}
		logging.Logger().Info("wrote dxf", "path", o.DXF)
	}
	return nil
}

func writeSVG(path string, loops []toolpath.Loop, res *cam.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := plot.SVG(f, loops, res.Bounds); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logging.Logger().Info("wrote svg", "path", path)
	return nil
}
