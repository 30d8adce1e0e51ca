package plot

import (
	"time"

	"github.com/raykavin/kagiline/pkg/kagi"
)

// Shape is one drawn line of the chart
type Shape struct {
	StartX time.Time `json:"x0"`
	EndX   time.Time `json:"x1"`
	StartY float64   `json:"y0"`
	EndY   float64   `json:"y1"`
	Color  string    `json:"color"`
	Width  int       `json:"width"`
	Name   string    `json:"name"`
}

// Marker flags a style change
type Marker struct {
	Time  time.Time  `json:"time"`
	Price float64    `json:"price"`
	Style kagi.Style `json:"style"`
	Color string     `json:"color"`
}

// Theme holds the colours and widths of each line style
type Theme struct {
	YangColor string
	YinColor  string
	YangWidth int
	YinWidth  int
}

var DefaultTheme = Theme{
	YangColor: "#2e7d32",
	YinColor:  "#c62828",
	YangWidth: 3,
	YinWidth:  1,
}

func (t Theme) color(style kagi.Style) string {
	if style == kagi.StyleYang {
		return t.YangColor
	}
	return t.YinColor
}

func (t Theme) width(style kagi.Style) int {
	if style == kagi.StyleYang {
		return t.YangWidth
	}
	return t.YinWidth
}

// pairData is the JSON payload of /data
type pairData struct {
	Pair    string   `json:"pair"`
	Asset   string   `json:"asset"`
	Quote   string   `json:"quote"`
	Shapes  []Shape  `json:"shapes"`
	Markers []Marker `json:"markers"`
}
