// Package optimizer searches the reversal amount that gives a chart the
// desired shape on a given history
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/logger"
	"github.com/raykavin/kagiline/pkg/metric"
	"github.com/raykavin/kagiline/pkg/report"
	"github.com/shopspring/decimal"
)

// MetricName selects a measure of a built chart
type MetricName string

const (
	// MetricLegs is the number of legs
	MetricLegs MetricName = "legs"
	// MetricStyleChanges is the number of yin/yang transitions
	MetricStyleChanges MetricName = "style_changes"
	// MetricMeanLeg is the average leg size in percent
	MetricMeanLeg MetricName = "mean_leg"
	// MetricYangShare is the fraction of the line drawn thick
	MetricYangShare MetricName = "yang_share"
)

var (
	ErrNoValues      = errors.New("optimizer: no values to evaluate")
	ErrUnknownMetric = errors.New("optimizer: unknown metric")
)

// Result is the outcome of building the chart with one reversal value
type Result struct {
	Config   kagi.ReversalConfig
	Metrics  map[MetricName]float64
	Duration time.Duration
}

// Metric returns a measure of the result, NaN when unknown
func (r Result) Metric(name MetricName) float64 {
	value, ok := r.Metrics[name]
	if !ok {
		return math.NaN()
	}
	return value
}

// ParseMetric validates a metric name
func ParseMetric(name string) (MetricName, error) {
	switch m := MetricName(name); m {
	case MetricLegs, MetricStyleChanges, MetricMeanLeg, MetricYangShare:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, name)
}

// Values enumerates min, min+step, ... up to and including max
func Values(min, max, step decimal.Decimal) ([]decimal.Decimal, error) {
	if !step.IsPositive() || !min.IsPositive() || max.LessThan(min) {
		return nil, fmt.Errorf("%w: range %s..%s step %s", ErrNoValues, min, max, step)
	}

	var values []decimal.Decimal
	for v := min; v.LessThanOrEqual(max); v = v.Add(step) {
		values = append(values, v)
	}
	return values, nil
}

// GridSearch builds the chart once per candidate value. Evaluations are
// independent and run in parallel.
type GridSearch struct {
	mode        kagi.Mode
	tickSize    decimal.Decimal
	values      []decimal.Decimal
	parallelism int
	log         logger.Logger
}

type Option func(*GridSearch)

// WithParallelism sets the number of parallel evaluations
func WithParallelism(n int) Option {
	return func(g *GridSearch) {
		if n > 0 {
			g.parallelism = n
		}
	}
}

// WithLogger logs the progress of the search
func WithLogger(log logger.Logger) Option {
	return func(g *GridSearch) {
		g.log = log
	}
}

func NewGridSearch(mode kagi.Mode, tickSize decimal.Decimal, values []decimal.Decimal, options ...Option) (*GridSearch, error) {
	if len(values) == 0 {
		return nil, ErrNoValues
	}
	for _, value := range values {
		config := kagi.ReversalConfig{Mode: mode, Value: value, TickSize: tickSize}
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}

	search := &GridSearch{
		mode:        mode,
		tickSize:    tickSize,
		values:      values,
		parallelism: 1,
	}
	for _, option := range options {
		option(search)
	}
	return search, nil
}

// Optimize evaluates every value on samples and returns the results in the
// order of the values
func (g *GridSearch) Optimize(ctx context.Context, samples []kagi.Sample) ([]Result, error) {
	g.logf("starting grid search of %d values over %d samples", len(g.values), len(samples))

	var (
		wg      sync.WaitGroup
		results = make([]Result, len(g.values))
		errs    = make([]error, len(g.values))
		sem     = make(chan struct{}, g.parallelism)
	)

	for i, value := range g.values {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, value decimal.Decimal) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = g.evaluate(samples, value)
		}(i, value)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	g.logf("grid search completed with %d results", len(results))
	return results, nil
}

func (g *GridSearch) evaluate(samples []kagi.Sample, value decimal.Decimal) (Result, error) {
	started := time.Now()
	config := kagi.ReversalConfig{Mode: g.mode, Value: value, TickSize: g.tickSize}
	policy, err := kagi.NewPolicy(config)
	if err != nil {
		return Result{}, err
	}

	var (
		state    kagi.State
		segments []kagi.Segment
	)
	if len(samples) > 0 {
		state, segments = kagi.Replay(samples, policy)
	}
	summary := report.Summarize("", segments, state)

	return Result{
		Config: config,
		Metrics: map[MetricName]float64{
			MetricLegs:         float64(len(summary.Legs)),
			MetricStyleChanges: float64(summary.StyleChanges),
			MetricMeanLeg:      metric.Mean(metric.Abs(summary.Moves())),
			MetricYangShare:    summary.YangShare(),
		},
		Duration: time.Since(started),
	}, nil
}

func (g *GridSearch) logf(format string, args ...any) {
	if g.log != nil {
		g.log.Infof(format, args...)
	}
}

// Rank orders results by how close the metric is to target. Ties keep the
// smaller reversal value first.
func Rank(results []Result, name MetricName, target float64) []Result {
	ranked := make([]Result, len(results))
	copy(ranked, results)

	distance := func(r Result) float64 {
		d := math.Abs(r.Metric(name) - target)
		if math.IsNaN(d) {
			return math.Inf(1)
		}
		return d
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := distance(ranked[i]), distance(ranked[j])
		if di != dj {
			return di < dj
		}
		return ranked[i].Config.Value.LessThan(ranked[j].Config.Value)
	})
	return ranked
}
