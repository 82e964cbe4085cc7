package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ambadran/PCB-CAM/pkg/board"
	"github.com/ambadran/PCB-CAM/pkg/config"
	"github.com/ambadran/PCB-CAM/pkg/gerber"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/spf13/pflag"
)

func allModes() config.Settings {
	s := config.Default()
	s.Modes.All = true
	return s
}

func loadExample(t *testing.T, app *App, name string) *board.Board {
	t.Helper()
	path := filepath.Join("examples", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	b, err := app.Load(path, data)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return b
}

// TestE2EGerberAndScriptAgree checks that the Gerber example and its board
// script rendition describe the same board.
func TestE2EGerberAndScriptAgree(t *testing.T) {
	app := NewApp(allModes())
	gbr := loadExample(t, app, "two_pads.gbr")
	script := loadExample(t, app, "two_pads.pcbl")

	if gbr.Len() != 5 || script.Len() != 5 {
		t.Fatalf("expected 5 primitives each, got gerber=%d script=%d", gbr.Len(), script.Len())
	}
	gb, err := gbr.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	sb, err := script.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []float64{gb.Min.X - sb.Min.X, gb.Min.Y - sb.Min.Y, gb.Max.X - sb.Max.X, gb.Max.Y - sb.Max.Y} {
		if math.Abs(d) > 1e-9 {
			t.Fatalf("bounds differ: gerber %v, script %v", gb, sb)
		}
	}
}

func TestE2EPlaceOffsets(t *testing.T) {
	s := allModes()
	s.Offset.X, s.Offset.Y = 3, 7
	app := NewApp(s)
	b, err := app.Place(loadExample(t, app, "two_pads.gbr"))
	if err != nil {
		t.Fatal(err)
	}
	box, err := b.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(box.Min.X-3) > 1e-9 || math.Abs(box.Min.Y-7) > 1e-9 {
		t.Errorf("expected minimum corner (3, 7), got %v", box.Min)
	}
}

func TestE2EPlaceMirroredRotated(t *testing.T) {
	s := allModes()
	s.Mirrored, s.Rotate = true, true
	app := NewApp(s)
	src := loadExample(t, app, "two_pads.gbr")
	b, err := app.Place(src)
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != src.Len() {
		t.Fatalf("expected %d primitives, got %d", src.Len(), b.Len())
	}
	box, err := b.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(box.Min.X-2) > 1e-6 || math.Abs(box.Min.Y-2) > 1e-6 {
		t.Errorf("expected minimum corner (2, 2), got %v", box.Min)
	}
	// A quarter turn swaps the board extents.
	if w, h := box.Max.X-box.Min.X, box.Max.Y-box.Min.Y; h <= w {
		t.Errorf("expected a tall board after rotation, got %gx%g", w, h)
	}
}

func TestE2EGenerateAll(t *testing.T) {
	app := NewApp(allModes())
	b, err := app.Place(loadExample(t, app, "two_pads.gbr"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := app.Generate(b)
	if err != nil {
		t.Fatal(err)
	}
	g := out.GCode

	if !strings.HasPrefix(g, "; Generated by pcbcam") {
		t.Errorf("program should start with the init sequence, got %q", g[:40])
	}
	if !strings.HasSuffix(g, "B0 ; Turn Machine OFF\n") {
		t.Error("program should end with the deinit sequence")
	}
	pen, laser, spindle := strings.Index(g, "C3 ;"), strings.Index(g, "C1 ;"), strings.Index(g, "C2 ;")
	if pen < 0 || laser < 0 || spindle < 0 {
		t.Fatalf("expected all three tools, got pen=%d laser=%d spindle=%d", pen, laser, spindle)
	}
	if !(pen < laser && laser < spindle) {
		t.Errorf("expected ink, laser, holes order, got pen=%d laser=%d spindle=%d", pen, laser, spindle)
	}
	if n := strings.Count(g, "G01Z13F1\n"); n != 3 {
		t.Errorf("expected 3 drill plunges, got %d", n)
	}
	if len(out.Plan.Drills) != 3 {
		t.Errorf("expected 3 drill loops, got %d", len(out.Plan.Drills))
	}
	if strings.Count(g, "M3\n") == 0 {
		t.Error("expected laser loops")
	}
}

// A clear disk inside a flashed pad only becomes a hole loop with scope all.
func TestE2EGenerateScope(t *testing.T) {
	pad := gerber.RectangleFromCorners(v2.Vec{}, v2.Vec{X: 10, Y: 10})
	cut := gerber.Circle{Attr: gerber.Attr{Polarity: gerber.Clear}, Center: v2.Vec{X: 5, Y: 5}, Diameter: 4}
	for _, tc := range []struct {
		scope string
		loops int
	}{
		{"regions", 1},
		{"all", 2},
	} {
		t.Run(tc.scope, func(t *testing.T) {
			s := config.Default()
			s.Modes.Laser = true
			s.Geometry.Scope = tc.scope
			s.Geometry.CrossCheck = 16
			out, err := NewApp(s).Generate(board.New(pad, cut))
			if err != nil {
				t.Fatal(err)
			}
			if n := len(out.Plan.Traces); n != tc.loops {
				t.Errorf("expected %d loops, got %d", tc.loops, n)
			}
		})
	}
}

func TestE2EGenerateSingleMode(t *testing.T) {
	s := config.Default()
	s.Modes.Holes = true
	app := NewApp(s)
	out, err := app.Generate(loadExample(t, app, "two_pads.pcbl"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.GCode, "C1 ;") || strings.Contains(out.GCode, "C3 ;") {
		t.Error("only the spindle should be selected")
	}
	if !strings.Contains(out.GCode, "C2 ;") {
		t.Error("expected the spindle to be selected")
	}
}

func TestE2EGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Settings)
	}{
		{"bad scope", func(s *config.Settings) { s.Geometry.Scope = "everything" }},
		{"tool offset", func(s *config.Settings) { s.Changer.Offsets.Laser.Z = 1 }},
		{"spindle speed", func(s *config.Settings) { s.Router.SpindleSpeed = 999 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := allModes()
			tt.modify(&s)
			app := NewApp(s)
			if _, err := app.Generate(loadExample(t, app, "two_pads.gbr")); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestE2ELoadErrors(t *testing.T) {
	app := NewApp(allModes())
	tests := []struct {
		name string
		file string
		data string
	}{
		{"script eval error", "bad.pcbl", `(board (circle))`},
		{"script syntax error", "bad.pcbl", `(board (pt 0 0)`},
		{"gerber syntax error", "bad.gbr", "%FSLAX46Y46*%\n%MOMM*%\nX0Y0D03*\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Load(tt.file, []byte(tt.data))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.file) {
				t.Errorf("error should name the file, got %v", err)
			}
		})
	}
}

func TestE2ERunWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	s := allModes()
	s.Output.Dest = filepath.Join(dir, "board.gcode")
	s.Output.SVG = filepath.Join(dir, "board.svg")
	s.Output.DXF = filepath.Join(dir, "board.dxf")

	if err := NewApp(s).Run(filepath.Join("examples", "two_pads.gbr")); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{s.Output.Dest, s.Output.SVG, s.Output.DXF} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("missing output: %v", err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", path)
		}
	}
}

func TestE2ERunMissingSource(t *testing.T) {
	s := allModes()
	s.Output.Dest = filepath.Join(t.TempDir(), "board.gcode")
	if err := NewApp(s).Run("examples/does_not_exist.gbr"); err == nil {
		t.Fatal("expected an error for a missing source")
	}
	if _, err := os.Stat(s.Output.Dest); !os.IsNotExist(err) {
		t.Error("no gcode should be written when loading fails")
	}
}

func TestUsageMentionsScope(t *testing.T) {
	fs := pflag.NewFlagSet("pcbcam", pflag.ContinueOnError)
	config.BindFlags(fs)
	var b strings.Builder
	usage(&b, fs)
	out := b.String()
	for _, want := range []string{ScriptExt, "--scope all", "--cross-check"} {
		if !strings.Contains(out, want) {
			t.Errorf("usage lacks %q:\n%s", want, out)
		}
	}
}
