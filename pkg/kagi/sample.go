package kagi

import (
	"fmt"
	"math"
	"time"

	"github.com/raykavin/kagiline/pkg/core"
	"github.com/shopspring/decimal"
)

// Sample is one closed bar reduced to its close
type Sample struct {
	Time  time.Time
	Close decimal.Decimal
}

// Point returns the sample as a chart coordinate
func (s Sample) Point() Point {
	return Point{Time: s.Time, Price: s.Close}
}

// NewSample validates a raw price. This is the boundary where feed floats
// become decimals; nothing degenerate gets past it.
func NewSample(t time.Time, close float64) (Sample, error) {
	if t.IsZero() {
		return Sample{}, fmt.Errorf("%w: zero timestamp", ErrInputOrdering)
	}
	if math.IsNaN(close) || math.IsInf(close, 0) {
		return Sample{}, fmt.Errorf("%w: %v at %s", ErrNumericDegeneracy, close, t.Format(time.RFC3339))
	}
	if close < 0 {
		return Sample{}, fmt.Errorf("%w: negative price %v at %s", ErrNumericDegeneracy, close, t.Format(time.RFC3339))
	}
	return Sample{Time: t, Close: decimal.NewFromFloat(close)}, nil
}

// SampleFromCandle converts a closed candle into a sample
func SampleFromCandle(candle core.Candle) (Sample, error) {
	if !candle.IsComplete() {
		return Sample{}, fmt.Errorf("%w: %s %s", ErrIncompleteBar, candle.Pair, candle.Time.Format(time.RFC3339))
	}
	return NewSample(candle.Time, candle.Close)
}

// SamplesFromCandles converts a bar history, stopping at the first invalid bar
func SamplesFromCandles(candles []core.Candle) ([]Sample, error) {
	samples := make([]Sample, 0, len(candles))
	for _, candle := range candles {
		sample, err := SampleFromCandle(candle)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// checkOrder verifies timestamps are strictly increasing, starting after last
func checkOrder(last time.Time, samples []Sample) error {
	for _, sample := range samples {
		if !last.IsZero() && !sample.Time.After(last) {
			return fmt.Errorf("%w: %s is not after %s", ErrInputOrdering,
				sample.Time.Format(time.RFC3339), last.Format(time.RFC3339))
		}
		last = sample.Time
	}
	return nil
}
