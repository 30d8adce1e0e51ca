package indicator

import (
	"errors"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/shopspring/decimal"
)

var ErrNotEnoughBars = errors.New("indicator: not enough bars")

func ohlc(candles []core.Candle) (high, low, close []float64) {
	high = make([]float64, len(candles))
	low = make([]float64, len(candles))
	for i, c := range candles {
		high[i], low[i] = c.High, c.Low
	}
	return high, low, core.Closes(candles)
}

// ATR returns the average true range of the last bar
func ATR(candles []core.Candle, period int) (float64, error) {
	if period < 1 || len(candles) <= period {
		return 0, fmt.Errorf("%w: %d bars for period %d", ErrNotEnoughBars, len(candles), period)
	}
	high, low, close := ohlc(candles)
	return core.Series[float64](talib.Atr(high, low, close, period)).Last(0), nil
}

// NATR returns the normalized average true range of the last bar, in percent
func NATR(candles []core.Candle, period int) (float64, error) {
	if period < 1 || len(candles) <= period {
		return 0, fmt.Errorf("%w: %d bars for period %d", ErrNotEnoughBars, len(candles), period)
	}
	high, low, close := ohlc(candles)
	return core.Series[float64](talib.Natr(high, low, close, period)).Last(0), nil
}

// SuggestReversal derives a reversal configuration from recent volatility:
// multiplier times ATR as an absolute step, or times NATR as a percentage.
func SuggestReversal(candles []core.Candle, period int, multiplier float64, mode kagi.Mode, tick float64) (kagi.ReversalConfig, error) {
	var (
		value float64
		err   error
	)
	switch mode {
	case kagi.ModeAbsoluteStep:
		value, err = ATR(candles, period)
	case kagi.ModePercentage:
		value, err = NATR(candles, period)
	default:
		return kagi.ReversalConfig{}, fmt.Errorf("%w: unknown mode %s", kagi.ErrConfiguration, mode)
	}
	if err != nil {
		return kagi.ReversalConfig{}, err
	}

	value *= multiplier
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return kagi.ReversalConfig{}, fmt.Errorf("%w: volatility %v", kagi.ErrNumericDegeneracy, value)
	}

	config := kagi.ReversalConfig{
		Mode:     mode,
		Value:    decimal.NewFromFloat(value).Round(4),
		TickSize: decimal.NewFromFloat(tick),
	}
	if mode == kagi.ModeAbsoluteStep && tick > 0 {
		policy, err := kagi.NewPolicy(config)
		if err != nil {
			return kagi.ReversalConfig{}, err
		}
		config.Value = policy.Threshold(decimal.Zero)
	}
	return config, config.Validate()
}
