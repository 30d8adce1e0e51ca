package kagi

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		config    ReversalConfig
		reference string
		expected  string
	}{
		{
			name:      "percentage of reference",
			config:    ReversalConfig{Mode: ModePercentage, Value: dec("1.5"), TickSize: dec("0.01")},
			reference: "200",
			expected:  "3",
		},
		{
			name:      "percentage rounded to tick",
			config:    ReversalConfig{Mode: ModePercentage, Value: dec("1"), TickSize: dec("0.01")},
			reference: "123.456",
			expected:  "1.23",
		},
		{
			name:      "percentage rounded half away from zero",
			config:    ReversalConfig{Mode: ModePercentage, Value: dec("1"), TickSize: dec("0.5")},
			reference: "125",
			expected:  "1.5",
		},
		{
			name:      "percentage without tick size keeps precision",
			config:    ReversalConfig{Mode: ModePercentage, Value: dec("1")},
			reference: "123.456",
			expected:  "1.23456",
		},
		{
			name:      "never below one tick",
			config:    ReversalConfig{Mode: ModePercentage, Value: dec("1"), TickSize: dec("0.01")},
			reference: "0.05",
			expected:  "0.01",
		},
		{
			name:      "absolute step ignores reference",
			config:    ReversalConfig{Mode: ModeAbsoluteStep, Value: dec("0.5"), TickSize: dec("0.25")},
			reference: "1000",
			expected:  "0.5",
		},
		{
			name:      "absolute step snapped to tick",
			config:    ReversalConfig{Mode: ModeAbsoluteStep, Value: dec("1.013"), TickSize: dec("0.01")},
			reference: "1",
			expected:  "1.01",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			policy, err := NewPolicy(tc.config)
			require.NoError(t, err)
			requireDecimal(t, tc.expected, policy.Threshold(dec(tc.reference)))
		})
	}
}

func TestPolicy_InvalidConfiguration(t *testing.T) {
	tests := map[string]ReversalConfig{
		"zero value":         {Mode: ModeAbsoluteStep, Value: decimal.Zero},
		"negative value":     {Mode: ModePercentage, Value: dec("-1")},
		"missing mode":       {Value: dec("1")},
		"negative tick size": {Mode: ModeAbsoluteStep, Value: dec("1"), TickSize: dec("-0.01")},
	}

	for name, config := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewPolicy(config)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"percentage", "Percent", "pct", "%"} {
		mode, err := ParseMode(s)
		require.NoError(t, err)
		require.Equal(t, ModePercentage, mode)
	}

	for _, s := range []string{"absolute", "STEP", " fixed "} {
		mode, err := ParseMode(s)
		require.NoError(t, err)
		require.Equal(t, ModeAbsoluteStep, mode)
	}

	_, err := ParseMode("atr")
	require.ErrorIs(t, err, ErrConfiguration)
}
