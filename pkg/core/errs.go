package core

import "errors"

var (
	ErrEmptyPair      = errors.New("empty pair")
	ErrInvalidPeriod  = errors.New("invalid period")
	ErrNotImplemented = errors.New("invalid operation")
)
