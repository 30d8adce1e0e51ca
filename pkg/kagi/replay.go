package kagi

// Replay builds a chart from history: the oldest sample seeds the state and
// Step is folded over the rest. Callers validate ordering beforehand.
func Replay(samples []Sample, policy Policy) (State, []Segment) {
	if len(samples) == 0 {
		return State{}, nil
	}
	return Resume(NewState(samples[0]), samples[1:], policy)
}

// Resume folds Step over samples starting at state. Live updates call it with
// a single sample, so history and live share one code path.
func Resume(state State, samples []Sample, policy Policy) (State, []Segment) {
	var segments []Segment
	for _, sample := range samples {
		var emitted []Segment
		state, emitted = Step(state, sample, policy)
		segments = append(segments, emitted...)
	}
	return state, segments
}
