package report

import (
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/shopspring/decimal"
)

// Leg is one vertical run of the chart, between two turning points
type Leg struct {
	From      kagi.Point
	To        kagi.Point
	Direction kagi.Direction
	// Style of the line at the end of the leg
	Style kagi.Style
	// Flipped is set when the leg broke the standing shoulder or waist
	Flipped bool
}

// Move is the signed price change of the leg
func (l Leg) Move() decimal.Decimal {
	return l.To.Price.Sub(l.From.Price)
}

// Percent is the move relative to where the leg started
func (l Leg) Percent() float64 {
	if l.From.Price.IsZero() {
		return 0
	}
	return l.Move().Div(l.From.Price).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Legs splits an emission stream into legs. Bends close the running leg; the
// last leg is still open and may extend further.
func Legs(segments []kagi.Segment) []Leg {
	var (
		legs    []Leg
		current *Leg
	)

	for _, segment := range segments {
		switch segment.Kind {
		case kagi.KindBend:
			if current != nil {
				legs = append(legs, *current)
				current = nil
			}
		case kagi.KindStyleChange:
			if current != nil {
				current.Flipped = true
				current.Style = segment.Style
			}
		case kagi.KindExtend:
			if current == nil {
				current = &Leg{From: segment.From}
			}
			current.To = segment.To
			current.Style = segment.Style
		}
	}
	if current != nil {
		legs = append(legs, *current)
	}

	for i := range legs {
		if legs[i].Move().IsNegative() {
			legs[i].Direction = kagi.DirectionDown
		} else {
			legs[i].Direction = kagi.DirectionUp
		}
	}
	return legs
}
