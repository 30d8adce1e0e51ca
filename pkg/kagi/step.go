package kagi

import "github.com/shopspring/decimal"

// move classifies a sample against the current direction of the chart
type move uint8

const (
	moveHold move = iota
	moveExtend
	moveReverse
)

type transition func(state State, sample Sample) (State, []Segment)

var transitions = map[move]transition{
	moveHold:    hold,
	moveExtend:  extendRun,
	moveReverse: reverseRun,
}

// Step applies one sample to state and returns the successor state together
// with the segments it emits. It is pure: the input state is not modified.
//
// Every initialized state is evaluated against its current direction and style
// only, so how the state was reached never matters.
func Step(state State, sample Sample, policy Policy) (State, []Segment) {
	threshold := policy.Threshold(state.ReferencePrice)
	if !state.Initialized() {
		return initialize(state, sample, threshold)
	}
	return transitions[classify(state, sample, threshold)](state, sample)
}

// classify measures the move from the reference along the current direction.
// Any new extreme extends the run; a counter move of at least threshold
// reverses it. A repeated price never reverses, even when the threshold is
// zero (a percentage of a zero reference).
func classify(state State, sample Sample, threshold decimal.Decimal) move {
	delta := sample.Close.Sub(state.ReferencePrice)
	if state.Direction == DirectionDown {
		delta = delta.Neg()
	}

	switch {
	case delta.IsPositive():
		return moveExtend
	case delta.IsNegative() && delta.Neg().GreaterThanOrEqual(threshold):
		return moveReverse
	}
	return moveHold
}

func initialize(state State, sample Sample, threshold decimal.Decimal) (State, []Segment) {
	delta := sample.Close.Sub(state.ReferencePrice)

	switch {
	case delta.IsZero():
		return state, nil
	case delta.GreaterThanOrEqual(threshold):
		state.Direction, state.Style = DirectionUp, StyleYang
		state.LocalMinimum, state.LocalMaximum = state.ReferencePrice, sample.Close
	case delta.Neg().GreaterThanOrEqual(threshold):
		state.Direction, state.Style = DirectionDown, StyleYin
		state.LocalMaximum, state.LocalMinimum = state.ReferencePrice, sample.Close
	default:
		return state, nil
	}

	segments := []Segment{extend(state.Reference(), sample.Point(), state.Style)}
	state.ReferencePrice, state.ReferenceTime = sample.Close, sample.Time
	return state, segments
}

func hold(state State, _ Sample) (State, []Segment) {
	return state, nil
}

func extendRun(state State, sample Sample) (State, []Segment) {
	return advance(state, state.Reference(), sample.Point(), state.Direction, nil)
}

func reverseRun(state State, sample Sample) (State, []Segment) {
	corner := Point{Time: sample.Time, Price: state.ReferencePrice}
	segments := []Segment{bend(state.Reference(), corner, state.Style)}

	state.reseed()
	return advance(state, corner, sample.Point(), state.Direction.Opposite(), segments)
}

// advance draws the run from -> to heading in direction d. When the run
// crosses the standing extremum held against the current style, the run is
// split at that extremum and the style flips there.
func advance(state State, from, to Point, d Direction, segments []Segment) (State, []Segment) {
	target := d.style()
	level := state.boundary(d)

	if state.Style != target && beyond(to.Price, level, d) {
		pivot := Point{Time: to.Time, Price: level}
		if !level.Equal(from.Price) {
			segments = append(segments, extend(from, pivot, state.Style))
		}
		segments = append(segments, extend(pivot, to, target), styleChange(pivot, target))
		state.Style = target
	} else {
		segments = append(segments, extend(from, to, state.Style))
	}

	state.Direction = d
	state.widen(d, to.Price)
	state.ReferencePrice, state.ReferenceTime = to.Price, to.Time
	return state, segments
}
