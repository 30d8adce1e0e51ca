package kagi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func absoluteConfig(value string) ReversalConfig {
	return ReversalConfig{Mode: ModeAbsoluteStep, Value: dec(value), TickSize: dec("0.01")}
}

func TestNewChart_InvalidConfiguration(t *testing.T) {
	_, err := NewChart(ReversalConfig{Mode: ModeAbsoluteStep, Value: dec("0")})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = RestoreChart(ReversalConfig{Mode: ModePercentage, Value: dec("-1")}, Snapshot{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestChart_FeedMatchesBuild(t *testing.T) {
	samples := randomWalk(5, 200)

	built, err := NewChart(absoluteConfig("2"))
	require.NoError(t, err)
	bulk, err := built.Build(samples)
	require.NoError(t, err)

	fed, err := NewChart(absoluteConfig("2"))
	require.NoError(t, err)
	var live []Segment
	for _, sample := range samples {
		segments, err := fed.Feed(sample)
		require.NoError(t, err)
		live = append(live, segments...)
	}

	requireState(t, built.State(), fed.State())
	requireSegments(t, bulk, live)

	state, segments := Replay(samples, absolutePolicy(t, "2"))
	requireState(t, state, fed.State())
	requireSegments(t, segments, live)
}

func TestChart_RejectsOutOfOrder(t *testing.T) {
	chart, err := NewChart(absoluteConfig("1"))
	require.NoError(t, err)

	_, err = chart.Build(series("100", "101.2", "99.9"))
	require.NoError(t, err)
	before := chart.Snapshot()

	t.Run("duplicate timestamp", func(t *testing.T) {
		_, err := chart.Feed(Sample{Time: at(2), Close: dec("90")})
		require.ErrorIs(t, err, ErrInputOrdering)
	})

	t.Run("older timestamp", func(t *testing.T) {
		_, err := chart.Feed(Sample{Time: at(1), Close: dec("90")})
		require.ErrorIs(t, err, ErrInputOrdering)
	})

	t.Run("unsorted batch", func(t *testing.T) {
		batch := []Sample{
			{Time: at(3), Close: dec("95")},
			{Time: at(5), Close: dec("94")},
			{Time: at(4), Close: dec("93")},
		}
		segments, err := chart.Build(batch)
		require.ErrorIs(t, err, ErrInputOrdering)
		require.Empty(t, segments)
	})

	after := chart.Snapshot()
	requireState(t, before.State, after.State)
	require.True(t, before.LastSample.Equal(after.LastSample))
	require.Equal(t, before.Samples, after.Samples)
}

func TestChart_Lookback(t *testing.T) {
	samples := randomWalk(9, 400)

	full, err := NewChart(absoluteConfig("1"))
	require.NoError(t, err)
	all, err := full.Build(samples)
	require.NoError(t, err)

	var sunk []Segment
	windowed, err := NewChart(absoluteConfig("1"), WithLookback(50), WithSink(func(segment Segment) {
		sunk = append(sunk, segment)
	}))
	require.NoError(t, err)
	recent, err := windowed.Build(samples)
	require.NoError(t, err)

	requireState(t, full.State(), windowed.State())
	require.Less(t, len(recent), len(all))
	requireSegments(t, recent, sunk)

	cutoff := samples[len(samples)-50].Time
	for _, segment := range recent {
		require.False(t, segment.To.Time.Before(cutoff))
	}
	requireSegments(t, all[len(all)-len(recent):], recent)
}

func TestChart_AppendIgnoresLookback(t *testing.T) {
	samples := randomWalk(11, 400)
	_, all := Replay(samples, absolutePolicy(t, "1"))

	var sunk []Segment
	chart, err := NewChart(absoluteConfig("1"), WithLookback(5), WithSink(func(segment Segment) {
		sunk = append(sunk, segment)
	}))
	require.NoError(t, err)

	head, err := chart.Build(samples[:100])
	require.NoError(t, err)
	rest, err := chart.Append(samples[100:])
	require.NoError(t, err)

	_, before := Replay(samples[:100], absolutePolicy(t, "1"))
	requireSegments(t, all[len(before):], rest)
	requireSegments(t, append(head, rest...), sunk)

	_, err = chart.Append(samples[:1])
	require.ErrorIs(t, err, ErrInputOrdering)
}

func TestChart_SinkReceivesLiveSegments(t *testing.T) {
	var sunk []Segment
	chart, err := NewChart(absoluteConfig("1"), WithSink(func(segment Segment) {
		sunk = append(sunk, segment)
	}))
	require.NoError(t, err)

	for _, sample := range series("100", "101.2", "99.9", "98.5") {
		_, err := chart.Feed(sample)
		require.NoError(t, err)
	}

	require.Len(t, sunk, 6)
	require.Equal(t, KindExtend, sunk[0].Kind)
	require.Equal(t, KindBend, sunk[1].Kind)
	require.Equal(t, KindStyleChange, sunk[4].Kind)
	require.Equal(t, StyleYin, chart.State().Style)
}

func TestChart_EmptyBuild(t *testing.T) {
	chart, err := NewChart(absoluteConfig("1"))
	require.NoError(t, err)

	segments, err := chart.Build(nil)
	require.NoError(t, err)
	require.Empty(t, segments)
	require.Zero(t, chart.Snapshot().Samples)
}

func TestRestoreChart_ContinuesWhereItStopped(t *testing.T) {
	samples := randomWalk(21, 300)
	config := absoluteConfig("1.5")

	reference, err := NewChart(config)
	require.NoError(t, err)
	_, err = reference.Build(samples)
	require.NoError(t, err)

	first, err := NewChart(config)
	require.NoError(t, err)
	_, err = first.Build(samples[:120])
	require.NoError(t, err)

	payload, err := json.Marshal(first.Snapshot())
	require.NoError(t, err)

	var snapshot Snapshot
	require.NoError(t, json.Unmarshal(payload, &snapshot))
	require.Equal(t, 120, snapshot.Samples)

	restored, err := RestoreChart(config, snapshot)
	require.NoError(t, err)

	_, err = restored.Feed(samples[119])
	require.ErrorIs(t, err, ErrInputOrdering)

	_, err = restored.Build(samples[120:])
	require.NoError(t, err)

	requireState(t, reference.State(), restored.State())
	require.Equal(t, reference.Snapshot().Samples, restored.Snapshot().Samples)
}
