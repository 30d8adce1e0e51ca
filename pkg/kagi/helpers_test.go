package kagi

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(i int) time.Time {
	return t0.Add(time.Duration(i) * time.Hour)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pt(i int, price string) Point {
	return Point{Time: at(i), Price: dec(price)}
}

func series(prices ...string) []Sample {
	samples := make([]Sample, len(prices))
	for i, price := range prices {
		samples[i] = Sample{Time: at(i), Close: dec(price)}
	}
	return samples
}

func absolutePolicy(t *testing.T, value string) Policy {
	t.Helper()
	policy, err := NewPolicy(ReversalConfig{Mode: ModeAbsoluteStep, Value: dec(value), TickSize: dec("0.01")})
	require.NoError(t, err)
	return policy
}

func requireSegments(t *testing.T, expected, actual []Segment) {
	t.Helper()
	require.True(t, SegmentsEqual(expected, actual), "segments mismatch\nexpected: %v\nactual:   %v", expected, actual)
}

func requireState(t *testing.T, expected, actual State) {
	t.Helper()
	require.True(t, expected.Equal(actual), "state mismatch\nexpected: %s\nactual:   %s", expected, actual)
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

// walk feeds samples one Step at a time, returning every intermediate state
func walk(samples []Sample, policy Policy) ([]State, [][]Segment) {
	state := NewState(samples[0])
	states := []State{state}
	emitted := [][]Segment{nil}
	for _, sample := range samples[1:] {
		var segments []Segment
		state, segments = Step(state, sample, policy)
		states = append(states, state)
		emitted = append(emitted, segments)
	}
	return states, emitted
}
