package kagi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind of an emitted segment
type Kind uint8

const (
	// KindExtend is a run drawn in one style
	KindExtend Kind = iota + 1
	// KindBend is the horizontal connector at a turning point
	KindBend
	// KindStyleChange marks a thin/thick transition; From and To coincide
	KindStyleChange
)

func (k Kind) String() string {
	switch k {
	case KindExtend:
		return "extend"
	case KindBend:
		return "bend"
	case KindStyleChange:
		return "style_change"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "extend":
		*k = KindExtend
	case "bend":
		*k = KindBend
	case "style_change":
		*k = KindStyleChange
	default:
		return fmt.Errorf("unknown segment kind %q", text)
	}
	return nil
}

// Point is a (time, price) coordinate
type Point struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// Equal compares points by value
func (p Point) Equal(o Point) bool {
	return p.Time.Equal(o.Time) && p.Price.Equal(o.Price)
}

// Segment is immutable once emitted. For KindStyleChange, Style is the new style.
type Segment struct {
	Kind  Kind  `json:"kind"`
	From  Point `json:"from"`
	To    Point `json:"to"`
	Style Style `json:"style"`
}

func extend(from, to Point, style Style) Segment {
	return Segment{Kind: KindExtend, From: from, To: to, Style: style}
}

func bend(at, to Point, style Style) Segment {
	return Segment{Kind: KindBend, From: at, To: to, Style: style}
}

func styleChange(at Point, style Style) Segment {
	return Segment{Kind: KindStyleChange, From: at, To: at, Style: style}
}

// Equal compares segments by value
func (s Segment) Equal(o Segment) bool {
	return s.Kind == o.Kind && s.Style == o.Style && s.From.Equal(o.From) && s.To.Equal(o.To)
}

func (s Segment) String() string {
	if s.Kind == KindStyleChange {
		return fmt.Sprintf("%s %s@%s -> %s", s.Kind, s.From.Price, s.From.Time.Format(time.RFC3339), s.Style)
	}
	return fmt.Sprintf("%s %s %s@%s -> %s@%s", s.Kind, s.Style,
		s.From.Price, s.From.Time.Format(time.RFC3339),
		s.To.Price, s.To.Time.Format(time.RFC3339))
}

// SegmentsEqual compares two segment sequences by value
func SegmentsEqual(a, b []Segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
