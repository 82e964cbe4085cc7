// Package config holds the machine and pipeline settings of a PCB-CAM run.
//
// Settings are resolved once, in increasing priority: built-in defaults, an
// optional settings file (YAML, TOML or JSON), PCBCAM_* environment
// variables, and command-line flags. Nested keys map to environment names by
// replacing dots with underscores, so laser.power is PCBCAM_LASER_POWER.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ambadran/PCB-CAM/pkg/compose"
	"github.com/ambadran/PCB-CAM/pkg/reconstruct"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "PCBCAM"

// Point3 is an absolute machine coordinate in millimetres.
type Point3 struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
	Z float64 `mapstructure:"z" yaml:"z"`
}

// IsZero reports whether p is the origin.
func (p Point3) IsZero() bool { return p == Point3{} }

// ToolPoints holds one coordinate per tool on the changer.
type ToolPoints struct {
	Laser   Point3 `mapstructure:"laser" yaml:"laser"`
	Spindle Point3 `mapstructure:"spindle" yaml:"spindle"`
	Pen     Point3 `mapstructure:"pen" yaml:"pen"`
}

// Offset moves the board away from the machine origin.
type Offset struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
}

// ToolChanger describes the kinematic tool mounts.
type ToolChanger struct {
	// LatchIn and LatchOut are absolute X positions for entering and
	// leaving a mount.
	LatchIn  float64 `mapstructure:"latch_in" yaml:"latch_in"`
	LatchOut float64 `mapstructure:"latch_out" yaml:"latch_out"`
	// AttachDetachTime is the latch dwell in seconds.
	AttachDetachTime float64    `mapstructure:"attach_detach_time" yaml:"attach_detach_time"`
	Homes            ToolPoints `mapstructure:"homes" yaml:"homes"`
	Offsets          ToolPoints `mapstructure:"offsets" yaml:"offsets"`
}

// Router is the drilling spindle.
type Router struct {
	ZUp           float64 `mapstructure:"z_up" yaml:"z_up"`
	ZDown         float64 `mapstructure:"z_down" yaml:"z_down"`
	FeedXY        int     `mapstructure:"feed_xy" yaml:"feed_xy"`
	FeedZDrilling int     `mapstructure:"feed_z_drilling" yaml:"feed_z_drilling"`
	FeedZUp       int     `mapstructure:"feed_z_up" yaml:"feed_z_up"`
	SpindleSpeed  int     `mapstructure:"spindle_speed" yaml:"spindle_speed"`
}

// Pen is the ink-laying tool.
type Pen struct {
	DownZ        float64 `mapstructure:"down_z" yaml:"down_z"`
	Feedrate     int     `mapstructure:"feedrate" yaml:"feedrate"`
	TipThickness float64 `mapstructure:"tip_thickness" yaml:"tip_thickness"`
}

// Laser is the trace-marking laser module.
type Laser struct {
	FocalZ          float64 `mapstructure:"focal_z" yaml:"focal_z"`
	Feedrate        int     `mapstructure:"feedrate" yaml:"feedrate"`
	Power           int     `mapstructure:"power" yaml:"power"`
	Passes          int     `mapstructure:"passes" yaml:"passes"`
	IncludeEdgeCuts bool    `mapstructure:"include_edge_cuts" yaml:"include_edge_cuts"`
}

// Geometry tunes reconstruction and path extraction.
type Geometry struct {
	// Resolution is the number of decimal places kept in toolpaths.
	Resolution int `mapstructure:"resolution" yaml:"resolution"`
	// Scope selects which dark kinds clear primitives cut: regions or all.
	Scope        string              `mapstructure:"scope" yaml:"scope"`
	Tessellation reconstruct.Options `mapstructure:"tessellation" yaml:"tessellation"`
	// CrossCheck is the per-axis grid on which the composed copper is
	// compared with a signed-distance rebuild. Zero disables the check.
	CrossCheck int `mapstructure:"cross_check" yaml:"cross_check"`
}

// Output names the files written by a run.
type Output struct {
	Dest string `mapstructure:"dest" yaml:"dest"`
	SVG  string `mapstructure:"svg" yaml:"svg"`
	DXF  string `mapstructure:"dxf" yaml:"dxf"`
}

// Modes selects the programs emitted. All enables every program.
type Modes struct {
	All   bool `mapstructure:"all" yaml:"all"`
	Ink   bool `mapstructure:"ink" yaml:"ink"`
	Laser bool `mapstructure:"laser" yaml:"laser"`
	Holes bool `mapstructure:"holes" yaml:"holes"`
}

// Settings is the full configuration of a run.
type Settings struct {
	Offset   Offset      `mapstructure:"offset" yaml:"offset"`
	Mirrored bool        `mapstructure:"mirrored" yaml:"mirrored"`
	Rotate   bool        `mapstructure:"rotate" yaml:"rotate"`
	Changer  ToolChanger `mapstructure:"tool_changer" yaml:"tool_changer"`
	Router   Router      `mapstructure:"router" yaml:"router"`
	Pen      Pen         `mapstructure:"pen" yaml:"pen"`
	Laser    Laser       `mapstructure:"laser" yaml:"laser"`
	Geometry Geometry    `mapstructure:"geometry" yaml:"geometry"`
	Output   Output      `mapstructure:"output" yaml:"output"`
	Modes    Modes       `mapstructure:"modes" yaml:"modes"`
}

// Default returns the settings of the reference machine.
func Default() Settings {
	return Settings{
		Offset: Offset{X: 2, Y: 2},
		Changer: ToolChanger{
			LatchIn:          188,
			LatchOut:         92,
			AttachDetachTime: 5,
			Homes: ToolPoints{
				Laser:   Point3{X: 165, Y: 0, Z: 10.5},
				Spindle: Point3{X: 165, Y: 91, Z: 12},
				Pen:     Point3{X: 165, Y: 185.5, Z: 12},
			},
		},
		Router: Router{
			ZUp:           10,
			ZDown:         13,
			FeedXY:        600,
			FeedZDrilling: 1,
			FeedZUp:       20,
			SpindleSpeed:  230,
		},
		Pen: Pen{DownZ: 10, Feedrate: 100, TipThickness: 4},
		Laser: Laser{
			FocalZ:          16,
			Feedrate:        400,
			Power:           200,
			Passes:          1,
			IncludeEdgeCuts: true,
		},
		Geometry: Geometry{
			Resolution:   5,
			Scope:        compose.ScopeRegions.String(),
			Tessellation: reconstruct.DefaultOptions(),
		},
		Output: Output{Dest: "./default.gcode"},
	}
}

// Enabled returns the selected programs with All expanded.
func (s Settings) Enabled() Modes {
	m := s.Modes
	if m.All {
		m.Ink, m.Laser, m.Holes = true, true, true
	}
	return m
}

// ErrNoMode is returned by Validate when no program is selected.
var ErrNoMode = errors.New("no gcode selected: use --all-gcode, --holes, --ink or --laser")

// Validate checks ranges the machine depends on.
func (s Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(s.Router.SpindleSpeed >= 0 && s.Router.SpindleSpeed <= 250, "router.spindle_speed %d is outside 0-250", s.Router.SpindleSpeed)
	check(s.Laser.Power >= 0 && s.Laser.Power <= 255, "laser.power %d is outside 0-255", s.Laser.Power)
	check(s.Laser.Passes >= 1, "laser.passes must be at least 1, got %d", s.Laser.Passes)
	check(s.Geometry.Resolution >= 0 && s.Geometry.Resolution <= 10, "geometry.resolution %d is outside 0-10", s.Geometry.Resolution)
	check(s.Geometry.CrossCheck >= 0, "geometry.cross_check must not be negative, got %d", s.Geometry.CrossCheck)
	check(s.Pen.TipThickness > 1, "pen.tip_thickness must be greater than 1, got %g", s.Pen.TipThickness)
	if _, err := compose.ParseScope(s.Geometry.Scope); err != nil {
		errs = append(errs, err)
	}
	m := s.Enabled()
	if !m.Ink && !m.Laser && !m.Holes {
		errs = append(errs, ErrNoMode)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// flagKeys maps command-line flags to settings keys.
var flagKeys = map[string]string{
	"dest":              "output.dest",
	"svg":               "output.svg",
	"dxf":               "output.dxf",
	"mirrored":          "mirrored",
	"rotate":            "rotate",
	"x-offset":          "offset.x",
	"y-offset":          "offset.y",
	"all-gcode":         "modes.all",
	"holes":             "modes.holes",
	"ink":               "modes.ink",
	"laser":             "modes.laser",
	"include-edge-cuts": "laser.include_edge_cuts",
	"laser-passes":      "laser.passes",
	"scope":             "geometry.scope",
	"resolution":        "geometry.resolution",
	"cross-check":       "geometry.cross_check",
}

// BindFlags registers the setting flags on fs with defaults from Default.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("dest", "D", d.Output.Dest, "destination gcode file")
	fs.String("svg", "", "also draw the toolpaths to this SVG file")
	fs.String("dxf", "", "also export the toolpaths to this DXF file")
	fs.BoolP("mirrored", "M", d.Mirrored, "mirror the board, used for the traces of DIP components")
	fs.Bool("rotate", d.Rotate, "rotate the board a quarter turn before mirroring")
	fs.Float64("x-offset", d.Offset.X, "distance of the board from the X axis")
	fs.Float64("y-offset", d.Offset.Y, "distance of the board from the Y axis")
	fs.BoolP("all-gcode", "A", d.Modes.All, "emit hole drilling, ink laying and laser drawing gcode")
	fs.Bool("holes", d.Modes.Holes, "emit hole drilling gcode")
	fs.Bool("ink", d.Modes.Ink, "emit ink laying gcode")
	fs.Bool("laser", d.Modes.Laser, "emit laser drawing gcode")
	fs.Bool("include-edge-cuts", d.Laser.IncludeEdgeCuts, "include edge cuts in laser marking")
	fs.Int("laser-passes", d.Laser.Passes, "number of laser marking passes")
	fs.String("scope", d.Geometry.Scope, "dark kinds cut by clear primitives: regions or all (clearances in pads and traces need all)")
	fs.Int("resolution", d.Geometry.Resolution, "decimal places kept in toolpaths")
	fs.Int("cross-check", d.Geometry.CrossCheck, "compare the composed copper with a signed-distance rebuild on an NxN grid (0 disables)")
	fs.String("config", "", "settings file (yaml, toml or json)")
}

// Load resolves the settings. fs may be nil; otherwise it must have been
// prepared with BindFlags and parsed.
func Load(fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	if err := setDefaults(v, Default()); err != nil {
		return Settings{}, err
	}

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Settings{}, fmt.Errorf("config: read %s: %w", f.Value.String(), err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Settings{}, fmt.Errorf("config: bind --%s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: decode: %w", err)
	}
	return s, nil
}

// setDefaults registers every leaf of s as a viper default, so environment
// variables resolve for all keys.
func setDefaults(v *viper.Viper, s Settings) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("config: defaults: %w", err)
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := prefix + k
			if sub, ok := val.(map[string]any); ok {
				walk(key+".", sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// Dump writes s as YAML.
func Dump(w io.Writer, s Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("config: dump: %w", err)
	}
	return enc.Close()
}
