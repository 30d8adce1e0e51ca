package kagi

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func randomWalk(seed int64, n int) []Sample {
	rng := rand.New(rand.NewSource(seed))
	price := 1000.0
	samples := make([]Sample, n)
	for i := range samples {
		price += (rng.Float64() - 0.5) * 6
		samples[i] = Sample{Time: at(i), Close: decimal.NewFromFloat(price).Round(2)}
	}
	return samples
}

func TestReplay_Empty(t *testing.T) {
	state, segments := Replay(nil, absolutePolicy(t, "1"))
	require.Empty(t, segments)
	require.False(t, state.Initialized())
}

func TestReplay_PrefixConsistency(t *testing.T) {
	policy := absolutePolicy(t, "2.5")
	samples := randomWalk(7, 300)
	states, emitted := walk(samples, policy)

	var folded []Segment
	for k := 1; k <= len(samples); k++ {
		folded = append(folded, emitted[k-1]...)

		state, segments := Replay(samples[:k], policy)
		requireState(t, states[k-1], state)
		requireSegments(t, folded, segments)
	}
}

func TestReplay_ResumeMatchesBulk(t *testing.T) {
	policy := absolutePolicy(t, "1.5")
	samples := randomWalk(11, 250)

	bulkState, bulkSegments := Replay(samples, policy)

	for _, split := range []int{1, 2, 50, 249} {
		state, head := Replay(samples[:split], policy)

		var tail []Segment
		for _, sample := range samples[split:] {
			var segments []Segment
			state, segments = Resume(state, []Sample{sample}, policy)
			tail = append(tail, segments...)
		}

		requireState(t, bulkState, state)
		requireSegments(t, bulkSegments, append(head, tail...))
	}
}

func TestReplay_Deterministic(t *testing.T) {
	policy := absolutePolicy(t, "2")
	samples := randomWalk(3, 200)

	firstState, firstSegments := Replay(samples, policy)
	secondState, secondSegments := Replay(samples, policy)

	requireState(t, firstState, secondState)
	requireSegments(t, firstSegments, secondSegments)
	require.NotEmpty(t, firstSegments)
}

func TestReplay_Invariants(t *testing.T) {
	for _, value := range []string{"0.5", "2", "6"} {
		policy := absolutePolicy(t, value)
		samples := randomWalk(42, 500)
		states, emitted := walk(samples, policy)

		var last *Segment
		for i := 1; i < len(states); i++ {
			prev, next := states[i-1], states[i]

			require.Equal(t, next.Initialized(), next.Style != StyleNone)
			require.False(t, next.ReferenceTime.Before(prev.ReferenceTime))

			reversed := false
			for _, segment := range emitted[i] {
				if segment.Kind == KindBend {
					reversed = true
				}
			}

			if !reversed && prev.Direction == next.Direction {
				switch next.Direction {
				case DirectionUp:
					require.True(t, next.LocalMaximum.GreaterThanOrEqual(prev.LocalMaximum), "maximum shrank at %d", i)
				case DirectionDown:
					require.True(t, next.LocalMinimum.LessThanOrEqual(prev.LocalMinimum), "minimum grew at %d", i)
				}
			}

			switch next.Direction {
			case DirectionUp:
				require.True(t, next.LocalMaximum.GreaterThanOrEqual(next.ReferencePrice))
			case DirectionDown:
				require.True(t, next.LocalMinimum.LessThanOrEqual(next.ReferencePrice))
			}

			for j := range emitted[i] {
				segment := emitted[i][j]
				if segment.Kind == KindStyleChange {
					require.True(t, segment.From.Equal(segment.To))
					continue
				}
				if last != nil {
					require.True(t, last.To.Equal(segment.From), "gap before %s", segment)
				}
				last = &segment
			}
		}
	}
}
