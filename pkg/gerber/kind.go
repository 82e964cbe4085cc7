package gerber

import (
	"fmt"
	"strings"
)

// Kind identifies a primitive variant.
type Kind int

const (
	KindLine Kind = iota
	KindArc
	KindCircle
	KindRectangle
	KindObround
	KindPolygon
	KindEllipse
	KindOutline
	KindRegion
	KindMacroGroup

	// Kinds below carry no geometric reconstruction. They only appear as
	// the Shape of a Flash.
	KindChamferRectangle
	KindDiamond
	KindDonut
	KindDrill
	KindRoundButterfly
	KindRoundRectangle
	KindSlot
	KindSquareButterfly
	KindSquareRoundDonut
	KindTestRecord
)

var kindNames = [...]string{
	KindLine:             "Line",
	KindArc:              "Arc",
	KindCircle:           "Circle",
	KindRectangle:        "Rectangle",
	KindObround:          "Obround",
	KindPolygon:          "Polygon",
	KindEllipse:          "Ellipse",
	KindOutline:          "Outline",
	KindRegion:           "Region",
	KindMacroGroup:       "MacroGroup",
	KindChamferRectangle: "ChamferRectangle",
	KindDiamond:          "Diamond",
	KindDonut:            "Donut",
	KindDrill:            "Drill",
	KindRoundButterfly:   "RoundButterfly",
	KindRoundRectangle:   "RoundRectangle",
	KindSlot:             "Slot",
	KindSquareButterfly:  "SquareButterfly",
	KindSquareRoundDonut: "SquareRoundDonut",
	KindTestRecord:       "TestRecord",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Reconstructable reports whether the kind has a planar shape.
func (k Kind) Reconstructable() bool {
	return k >= KindLine && k <= KindMacroGroup
}

// ParseKind looks a kind up by name, ignoring case, dashes and underscores.
func ParseKind(name string) (Kind, error) {
	norm := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(name))
	for k, n := range kindNames {
		if strings.ToLower(n) == norm {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("gerber: unknown primitive kind %q", name)
}

// Polarity says whether a primitive adds copper (Dark) or removes it (Clear).
// The zero value is Dark, the Gerber default.
type Polarity int

const (
	Dark Polarity = iota
	Clear
)

func (p Polarity) String() string {
	switch p {
	case Dark:
		return "dark"
	case Clear:
		return "clear"
	}
	return fmt.Sprintf("Polarity(%d)", int(p))
}

// Valid reports whether p is Dark or Clear.
func (p Polarity) Valid() bool {
	return p == Dark || p == Clear
}

// ParsePolarity accepts "dark"/"clear" and the Gerber LP letters "D"/"C".
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(s) {
	case "dark", "d":
		return Dark, nil
	case "clear", "c":
		return Clear, nil
	}
	return 0, fmt.Errorf("gerber: %w %q", ErrUnknownPolarity, s)
}

// Direction is the sweep direction of an arc.
type Direction int

const (
	CounterClockwise Direction = iota
	Clockwise
)

func (d Direction) String() string {
	if d == Clockwise {
		return "cw"
	}
	return "ccw"
}
