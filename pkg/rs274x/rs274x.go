// Package rs274x decodes Gerber (RS-274X) files into board primitives.
//
// The decoder understands the subset written by common EDA tools: format and
// unit statements, standard and macro apertures, polarity, linear and
// circular interpolation, regions, and flashes. Coordinates are returned in
// millimetres. Step-repeat, block apertures and the moiré and thermal macro
// primitives are rejected.
package rs274x

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ambadran/PCB-CAM/pkg/gerber"
	"github.com/ambadran/PCB-CAM/pkg/logging"
)

// Options tunes decoding.
type Options struct {
	// ArcSegments is the number of straight segments a full circle is split
	// into when an arc appears inside a region.
	ArcSegments int
}

// DefaultOptions returns the standard decoding settings.
func DefaultOptions() Options {
	return Options{ArcSegments: 64}
}

// SyntaxError reports a command the decoder could not interpret.
type SyntaxError struct {
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("rs274x: line %d: %s", e.Line, e.Message)
}

// command is one '*'-terminated word. Extended commands keep every word of
// their '%' block so macro definitions stay together.
type command struct {
	line     int
	extended bool
	words    []string
}

// Decode reads a Gerber file and returns its primitives in file order.
func Decode(r io.Reader, opts Options) ([]gerber.Primitive, error) {
	if opts.ArcSegments < 4 {
		opts.ArcSegments = DefaultOptions().ArcSegments
	}
	cmds, err := scan(r)
	if err != nil {
		return nil, err
	}
	d := newDecoder(opts)
	for _, c := range cmds {
		if d.done {
			break
		}
		if err := d.exec(c); err != nil {
			return nil, err
		}
	}
	if d.region {
		return nil, &SyntaxError{Line: d.line, Message: "unterminated region (missing G37)"}
	}
	logging.Logger().Debug("decoded gerber", "primitives", len(d.out), "apertures", len(d.apertures), "macros", len(d.macros))
	return d.out, nil
}

// scan splits the input into commands, dropping line breaks.
func scan(r io.Reader) ([]command, error) {
	br := bufio.NewReader(r)
	var (
		cmds     []command
		word     strings.Builder
		block    *command
		line     = 1
		start    = 1
		inBlock  bool
		hasWords bool
	)
	for {
		ch, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("rs274x: read: %w", err)
		}
		switch ch {
		case '\n':
			line++
			continue
		case '\r':
			continue
		case '%':
			if !inBlock {
				inBlock = true
				block = &command{line: line, extended: true}
				continue
			}
			if strings.TrimSpace(word.String()) != "" {
				return nil, &SyntaxError{Line: line, Message: "extended command not terminated by '*'"}
			}
			word.Reset()
			cmds = append(cmds, *block)
			inBlock, block = false, nil
			continue
		case '*':
			w := strings.TrimSpace(word.String())
			word.Reset()
			hasWords = false
			if inBlock {
				if w != "" {
					block.words = append(block.words, w)
				}
				continue
			}
			if w != "" {
				cmds = append(cmds, command{line: start, words: []string{w}})
			}
			continue
		}
		if !hasWords {
			start = line
			hasWords = true
		}
		word.WriteRune(ch)
	}
	if inBlock {
		return nil, &SyntaxError{Line: block.line, Message: "unterminated extended command"}
	}
	if strings.TrimSpace(word.String()) != "" {
		return nil, &SyntaxError{Line: start, Message: fmt.Sprintf("command %q not terminated by '*'", strings.TrimSpace(word.String()))}
	}
	return cmds, nil
}
