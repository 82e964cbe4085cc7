// Command pcbcam converts a Gerber copper layer or a board script into the
// G-code program of a three-tool PCB machine: pen for ink, laser for
// traces, spindle for holes.
//
//	pcbcam [flags] SRC
package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/ambadran/PCB-CAM/pkg/config"
	"github.com/ambadran/PCB-CAM/pkg/logging"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("pcbcam", pflag.ExitOnError)
	fs.Usage = func() { usage(os.Stderr, fs) }
	config.BindFlags(fs)
	verbose := fs.BoolP("verbose", "v", false, "log debug output")
	dump := fs.Bool("dump-config", false, "print the resolved settings and exit")
	fs.Parse(os.Args[1:])

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	s, err := config.Load(fs)
	if err != nil {
		log.Fatal(err)
	}
	if *dump {
		if err := config.Dump(os.Stdout, s); err != nil {
			log.Fatal(err)
		}
		return
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	if err := s.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := NewApp(s).Run(fs.Arg(0)); err != nil {
		log.Fatal(err)
	}
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `usage: pcbcam [flags] SRC

SRC is a Gerber file or a %s board script.

Clear primitives only cut Region copper by default. Pass --scope all to cut
clearances out of pads and traces as well.

`, ScriptExt)
	fs.SetOutput(w)
	fs.PrintDefaults()
}
