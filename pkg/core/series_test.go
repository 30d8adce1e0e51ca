package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeries_Last(t *testing.T) {
	s := Series[float64]{3, 1, 4, 1, 5}

	require.Equal(t, 5.0, s.Last(0))
	require.Equal(t, 1.0, s.Last(1))
	require.Equal(t, 3.0, s.Last(4))
}

func TestCloses(t *testing.T) {
	candles := []Candle{{Close: 1}, {Close: 2.5}}
	require.Equal(t, Series[float64]{1, 2.5}, Closes(candles))
}
