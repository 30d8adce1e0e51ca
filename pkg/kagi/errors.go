package kagi

import "errors"

var (
	// ErrConfiguration reports a reversal configuration that can never produce a chart.
	ErrConfiguration = errors.New("kagi: invalid reversal configuration")
	// ErrInputOrdering reports a sample whose timestamp is not after the previous one.
	ErrInputOrdering = errors.New("kagi: sample out of order")
	// ErrNumericDegeneracy reports NaN, infinite or negative prices.
	ErrNumericDegeneracy = errors.New("kagi: degenerate price")
	// ErrIncompleteBar reports a bar that is still forming.
	ErrIncompleteBar = errors.New("kagi: bar is not closed")
)
