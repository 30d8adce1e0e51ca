package main

import (
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/kagiline/pkg/core"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/optimizer"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Sweep command flags
var (
	sweepPair   string
	sweepFrom   string
	sweepTo     string
	sweepStep   string
	sweepMetric string
	sweepTarget float64
	sweepTop    int
	sweepOutput string
)

func buildSweepCmd() *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Compare reversal values on the same history",
		RunE:  runSweep,
	}

	sweepCmd.Flags().StringVarP(&sweepPair, "pair", "p", "", "Trading pair (default the first chart.pairs)")
	sweepCmd.Flags().StringVar(&sweepFrom, "from", "0.5", "Smallest reversal value")
	sweepCmd.Flags().StringVar(&sweepTo, "to", "5", "Largest reversal value")
	sweepCmd.Flags().StringVar(&sweepStep, "step", "0.5", "Increment between values")
	sweepCmd.Flags().StringVarP(&sweepMetric, "metric", "m", string(optimizer.MetricLegs),
		"Metric to rank by: legs, style_changes, mean_leg, yang_share")
	sweepCmd.Flags().Float64Var(&sweepTarget, "target", 0, "Rank by distance of the metric to this value")
	sweepCmd.Flags().IntVarP(&sweepTop, "top", "n", 10, "Number of results to print")
	sweepCmd.Flags().StringVarP(&sweepOutput, "output", "o", "", "Save every result as CSV")

	return sweepCmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	metric, err := optimizer.ParseMetric(sweepMetric)
	if err != nil {
		return err
	}
	values, err := sweepValues()
	if err != nil {
		return err
	}

	feeder, err := initializeFeeder(ctx, cfg, log)
	if err != nil {
		return err
	}
	if sweepPair == "" {
		sweepPair = cfg.Chart.Pairs[0]
	}

	candles, err := history(ctx, cfg, feeder, sweepPair)
	if err != nil {
		return err
	}
	samples, err := kagi.SamplesFromCandles(lo.Filter(candles, func(candle core.Candle, _ int) bool {
		return candle.IsComplete()
	}))
	if err != nil {
		return err
	}

	reversal, err := cfg.Reversal()
	if err != nil {
		return err
	}
	tick := reversal.TickSize
	if tick.IsZero() {
		tick = decimal.NewFromFloat(feeder.AssetsInfo(sweepPair).GetTickSize())
	}

	search, err := optimizer.NewGridSearch(reversal.Mode, tick, values,
		optimizer.WithParallelism(runtime.NumCPU()), optimizer.WithLogger(log))
	if err != nil {
		return err
	}
	results, err := search.Optimize(ctx, samples)
	if err != nil {
		return err
	}

	ranked := optimizer.Rank(results, metric, sweepTarget)
	if sweepOutput != "" {
		if err := optimizer.SaveResultsToCSV(ranked, sweepOutput); err != nil {
			return err
		}
	}

	writeSweep(cmd.OutOrStdout(), lo.Subset(ranked, 0, uint(sweepTop)))
	return nil
}

func sweepValues() ([]decimal.Decimal, error) {
	from, err := decimal.NewFromString(sweepFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := decimal.NewFromString(sweepTo)
	if err != nil {
		return nil, fmt.Errorf("invalid --to: %w", err)
	}
	step, err := decimal.NewFromString(sweepStep)
	if err != nil {
		return nil, fmt.Errorf("invalid --step: %w", err)
	}
	return optimizer.Values(from, to, step)
}

func writeSweep(w io.Writer, results []optimizer.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Reversal", "Legs", "Flips", "Avg Leg", "% Yang"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, r := range results {
		table.Append([]string{
			strconv.Itoa(i + 1),
			r.Config.String(),
			fmt.Sprintf("%.0f", r.Metric(optimizer.MetricLegs)),
			fmt.Sprintf("%.0f", r.Metric(optimizer.MetricStyleChanges)),
			fmt.Sprintf("%.2f %%", r.Metric(optimizer.MetricMeanLeg)),
			fmt.Sprintf("%.1f %%", r.Metric(optimizer.MetricYangShare)*100),
		})
	}
	table.Render()
}
