package kagi

import (
	"time"

	"github.com/samber/lo"
)

// Sink receives rendered segments synchronously, in emission order.
// It must not block on unbounded I/O.
type Sink func(Segment)

// Snapshot is the persistable form of a chart
type Snapshot struct {
	State      State     `json:"state"`
	LastSample time.Time `json:"last_sample"`
	Samples    int       `json:"samples"`
}

// Chart owns the state of one instrument and timeframe. It is not safe for
// concurrent use; drive it from a single goroutine.
type Chart struct {
	policy   Policy
	state    State
	last     time.Time
	samples  int
	lookback int
	sink     Sink
}

// ChartOption configures a Chart
type ChartOption func(*Chart)

// WithSink hands every rendered segment to sink
func WithSink(sink Sink) ChartOption {
	return func(c *Chart) {
		c.sink = sink
	}
}

// WithLookback limits how many of the most recent samples Build renders.
// State is always computed over the whole history.
func WithLookback(samples int) ChartOption {
	return func(c *Chart) {
		c.lookback = samples
	}
}

// NewChart creates an empty chart. The first sample it receives seeds it.
func NewChart(config ReversalConfig, options ...ChartOption) (*Chart, error) {
	policy, err := NewPolicy(config)
	if err != nil {
		return nil, err
	}

	chart := &Chart{policy: policy}
	for _, option := range options {
		option(chart)
	}
	return chart, nil
}

// RestoreChart recreates a chart from a snapshot taken with the same configuration
func RestoreChart(config ReversalConfig, snapshot Snapshot, options ...ChartOption) (*Chart, error) {
	chart, err := NewChart(config, options...)
	if err != nil {
		return nil, err
	}

	chart.state = snapshot.State
	chart.last = snapshot.LastSample
	chart.samples = snapshot.Samples
	return chart, nil
}

// State returns a copy of the current state
func (c *Chart) State() State {
	return c.state
}

// Policy returns the reversal policy of the chart
func (c *Chart) Policy() Policy {
	return c.policy
}

// Snapshot captures the chart for persistence
func (c *Chart) Snapshot() Snapshot {
	return Snapshot{State: c.state, LastSample: c.last, Samples: c.samples}
}

// Feed applies one newly closed sample
func (c *Chart) Feed(sample Sample) ([]Segment, error) {
	return c.Append([]Sample{sample})
}

// Append applies samples that closed after the chart was drawn, such as the
// bars missed while a restored chart was offline. Unlike Build it renders
// every segment regardless of the lookback.
func (c *Chart) Append(samples []Sample) ([]Segment, error) {
	if err := checkOrder(c.last, samples); err != nil {
		return nil, err
	}

	segments := c.apply(samples)
	c.emit(segments)
	return segments, nil
}

// Build applies a batch of history. The whole batch is validated before any
// state changes. Only segments within the lookback window are returned and
// handed to the sink.
func (c *Chart) Build(samples []Sample) ([]Segment, error) {
	if err := checkOrder(c.last, samples); err != nil {
		return nil, err
	}

	segments := c.apply(samples)
	if c.lookback > 0 && len(samples) > c.lookback {
		cutoff := samples[len(samples)-c.lookback].Time
		segments = lo.Filter(segments, func(segment Segment, _ int) bool {
			return !segment.To.Time.Before(cutoff)
		})
	}

	c.emit(segments)
	return segments, nil
}

func (c *Chart) apply(samples []Sample) []Segment {
	if len(samples) == 0 {
		return nil
	}

	if c.samples == 0 {
		c.state = NewState(samples[0])
		c.samples, c.last = 1, samples[0].Time
		samples = samples[1:]
	}

	var segments []Segment
	c.state, segments = Resume(c.state, samples, c.policy)
	if len(samples) > 0 {
		c.samples += len(samples)
		c.last = samples[len(samples)-1].Time
	}
	return segments
}

func (c *Chart) emit(segments []Segment) {
	if c.sink == nil {
		return
	}
	for _, segment := range segments {
		c.sink(segment)
	}
}
