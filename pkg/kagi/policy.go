package kagi

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Mode selects how the reversal distance is derived from the reference price.
type Mode uint8

const (
	ModePercentage Mode = iota + 1
	ModeAbsoluteStep
)

func (m Mode) String() string {
	switch m {
	case ModePercentage:
		return "percentage"
	case ModeAbsoluteStep:
		return "absolute"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMode converts a configuration string into a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage", "percent", "pct", "%":
		return ModePercentage, nil
	case "absolute", "step", "fixed":
		return ModeAbsoluteStep, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrConfiguration, s)
}

// ReversalConfig is fixed for the lifetime of a chart.
// TickSize is the native price precision of the series; zero disables rounding.
type ReversalConfig struct {
	Mode     Mode            `json:"mode"`
	Value    decimal.Decimal `json:"value"`
	TickSize decimal.Decimal `json:"tick_size"`
}

// Equal reports whether both configurations produce the same thresholds
func (c ReversalConfig) Equal(other ReversalConfig) bool {
	return c.Mode == other.Mode && c.Value.Equal(other.Value) && c.TickSize.Equal(other.TickSize)
}

func (c ReversalConfig) String() string {
	if c.Mode == ModePercentage {
		return fmt.Sprintf("%s%% tick %s", c.Value, c.TickSize)
	}
	return fmt.Sprintf("%s step tick %s", c.Value, c.TickSize)
}

// Validate reports configuration errors
func (c ReversalConfig) Validate() error {
	if c.Mode != ModePercentage && c.Mode != ModeAbsoluteStep {
		return fmt.Errorf("%w: unknown mode %s", ErrConfiguration, c.Mode)
	}
	if !c.Value.IsPositive() {
		return fmt.Errorf("%w: reversal value must be positive, got %s", ErrConfiguration, c.Value)
	}
	if c.TickSize.IsNegative() {
		return fmt.Errorf("%w: tick size must not be negative, got %s", ErrConfiguration, c.TickSize)
	}
	return nil
}

// Policy maps a reference price to an absolute reversal distance.
// The zero Policy is not usable, build one with NewPolicy.
type Policy struct {
	config ReversalConfig
}

// NewPolicy validates the configuration and returns the policy for it
func NewPolicy(config ReversalConfig) (Policy, error) {
	if err := config.Validate(); err != nil {
		return Policy{}, err
	}
	return Policy{config: config}, nil
}

// Config returns the configuration the policy was built from
func (p Policy) Config() ReversalConfig {
	return p.config
}

// Threshold returns the minimum adverse move from reference that reverses the chart
func (p Policy) Threshold(reference decimal.Decimal) decimal.Decimal {
	threshold := p.config.Value
	if p.config.Mode == ModePercentage {
		threshold = reference.Mul(p.config.Value).Div(hundred)
	}
	return p.normalize(threshold)
}

// normalize rounds to the tick grid, never below one tick
func (p Policy) normalize(v decimal.Decimal) decimal.Decimal {
	tick := p.config.TickSize
	if !tick.IsPositive() {
		return v
	}

	rounded := v.Div(tick).Round(0).Mul(tick)
	if rounded.LessThan(tick) {
		return tick
	}
	return rounded
}
