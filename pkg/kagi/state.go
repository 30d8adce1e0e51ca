package kagi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction of the current vertical run
type Direction int8

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "none"
	}
}

// Opposite returns the reversed direction
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	default:
		return DirectionNone
	}
}

// style is the line style a run in this direction ends up in once it breaks
// the standing extremum ahead of it.
func (d Direction) style() Style {
	if d == DirectionUp {
		return StyleYang
	}
	return StyleYin
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "up":
		*d = DirectionUp
	case "down":
		*d = DirectionDown
	case "none", "":
		*d = DirectionNone
	default:
		return fmt.Errorf("unknown direction %q", text)
	}
	return nil
}

// Style of a Kagi line: Yang (thick) after a shoulder is broken, Yin (thin)
// after a waist is broken.
type Style int8

const (
	StyleNone Style = iota
	StyleYang
	StyleYin
)

func (s Style) String() string {
	switch s {
	case StyleYang:
		return "yang"
	case StyleYin:
		return "yin"
	default:
		return "none"
	}
}

func (s Style) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Style) UnmarshalText(text []byte) error {
	switch string(text) {
	case "yang":
		*s = StyleYang
	case "yin":
		*s = StyleYin
	case "none", "":
		*s = StyleNone
	default:
		return fmt.Errorf("unknown style %q", text)
	}
	return nil
}

// State is the only mutable part of a chart. Reference is the last committed
// segment endpoint; LocalMaximum and LocalMinimum are the standing shoulder
// and waist.
type State struct {
	ReferencePrice decimal.Decimal `json:"reference_price"`
	ReferenceTime  time.Time       `json:"reference_time"`
	LocalMaximum   decimal.Decimal `json:"local_maximum"`
	LocalMinimum   decimal.Decimal `json:"local_minimum"`
	Direction      Direction       `json:"direction"`
	Style          Style           `json:"style"`
}

// NewState seeds an uninitialized state with the oldest sample
func NewState(seed Sample) State {
	return State{
		ReferencePrice: seed.Close,
		ReferenceTime:  seed.Time,
	}
}

// Initialized reports whether the first threshold breach has happened
func (s State) Initialized() bool {
	return s.Direction != DirectionNone
}

// Reference returns the anchor point of the state
func (s State) Reference() Point {
	return Point{Time: s.ReferenceTime, Price: s.ReferencePrice}
}

// Equal compares states by value. Decimals with different exponents but the
// same value are equal.
func (s State) Equal(o State) bool {
	return s.ReferencePrice.Equal(o.ReferencePrice) &&
		s.ReferenceTime.Equal(o.ReferenceTime) &&
		s.LocalMaximum.Equal(o.LocalMaximum) &&
		s.LocalMinimum.Equal(o.LocalMinimum) &&
		s.Direction == o.Direction &&
		s.Style == o.Style
}

func (s State) String() string {
	return fmt.Sprintf("%s/%s ref=%s@%s max=%s min=%s", s.Direction, s.Style,
		s.ReferencePrice, s.ReferenceTime.Format(time.RFC3339), s.LocalMaximum, s.LocalMinimum)
}

// boundary is the standing extremum a run in direction d has to break to
// change the style.
func (s State) boundary(d Direction) decimal.Decimal {
	if d == DirectionUp {
		return s.LocalMaximum
	}
	return s.LocalMinimum
}

// widen grows the extremum in direction d to include price
func (s *State) widen(d Direction, price decimal.Decimal) {
	if d == DirectionUp {
		s.LocalMaximum = decimal.Max(s.LocalMaximum, price)
		return
	}
	s.LocalMinimum = decimal.Min(s.LocalMinimum, price)
}

// reseed turns the reference of the leg being abandoned into its extremum
func (s *State) reseed() {
	if s.Direction == DirectionUp {
		s.LocalMaximum = s.ReferencePrice
		return
	}
	s.LocalMinimum = s.ReferencePrice
}

// beyond reports whether price lies strictly past level when heading in d
func beyond(price, level decimal.Decimal, d Direction) bool {
	if d == DirectionUp {
		return price.GreaterThan(level)
	}
	return price.LessThan(level)
}
