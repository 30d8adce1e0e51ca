package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/report"
	"github.com/raykavin/kagiline/pkg/storage"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// Show command flags
var (
	showPair      string
	showTimeframe string
	showKinds     []string
	showSince     string
)

func buildShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "List stored charts, or the segments of one chart",
		RunE:  runShow,
	}

	showCmd.Flags().StringVarP(&showPair, "pair", "p", "", "Trading pair (e.g. BTCUSDT); lists every chart when empty")
	showCmd.Flags().StringVarP(&showTimeframe, "timeframe", "t", "", "Timeframe (default chart.timeframe)")
	showCmd.Flags().StringSliceVarP(&showKinds, "kind", "k", nil, "Segment kinds to show: extend, bend, style_change")
	showCmd.Flags().StringVarP(&showSince, "since", "s", "", "Only segments ending after this date (e.g. 2024-01-31)")

	return showCmd
}

func runShow(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := storage.FromFile(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.Charts()
	if err != nil {
		return err
	}

	if showPair == "" {
		writeCharts(cmd.OutOrStdout(), records)
		return nil
	}

	if showTimeframe == "" {
		showTimeframe = cfg.Chart.Timeframe
	}
	key := storage.ChartKey{Pair: showPair, Timeframe: showTimeframe}
	record, ok := lo.Find(records, func(r storage.SnapshotRecord) bool {
		return r.Chart == key
	})
	if !ok {
		return fmt.Errorf("%w: chart %s", storage.ErrNotFound, key)
	}

	filters, err := segmentFilters()
	if err != nil {
		return err
	}
	segments, err := db.Segments(key, filters...)
	if err != nil {
		return err
	}
	writeSegments(cmd.OutOrStdout(), segments)

	// statistics always cover the whole journal
	all, err := db.Segments(key)
	if err != nil {
		return err
	}
	summary := report.Summarize(key.Pair, lo.Map(all, func(r storage.SegmentRecord, _ int) kagi.Segment {
		return r.Segment
	}), record.Snapshot.State)
	return report.Write(cmd.OutOrStdout(), []report.Summary{summary})
}

func segmentFilters() ([]storage.SegmentFilter, error) {
	var filters []storage.SegmentFilter

	if len(showKinds) > 0 {
		kinds := make([]kagi.Kind, len(showKinds))
		for i, name := range showKinds {
			if err := kinds[i].UnmarshalText([]byte(name)); err != nil {
				return nil, err
			}
		}
		filters = append(filters, storage.WithKind(kinds...))
	}

	if showSince != "" {
		since, err := time.Parse(dateLayout, showSince)
		if err != nil {
			return nil, fmt.Errorf("invalid since date format: %w", err)
		}
		filters = append(filters, storage.Since(since))
	}

	return filters, nil
}

func writeCharts(w io.Writer, records []storage.SnapshotRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Pair", "Timeframe", "Reversal", "Bars", "Direction", "Style", "Reference", "Last Bar", "Saved"})
	for _, r := range records {
		table.Append([]string{
			r.Chart.Pair,
			r.Chart.Timeframe,
			r.Config.String(),
			strconv.Itoa(r.Snapshot.Samples),
			r.Snapshot.State.Direction.String(),
			r.Snapshot.State.Style.String(),
			r.Snapshot.State.ReferencePrice.String(),
			r.Snapshot.LastSample.UTC().Format(time.RFC3339),
			r.SavedAt.UTC().Format(time.RFC3339),
		})
	}
	table.Render()
}

func writeSegments(w io.Writer, records []storage.SegmentRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Seq", "Kind", "Style", "From", "", "To", ""})
	for _, r := range records {
		s := r.Segment
		table.Append([]string{
			strconv.FormatInt(r.Seq, 10),
			s.Kind.String(),
			s.Style.String(),
			s.From.Time.UTC().Format(time.RFC3339),
			s.From.Price.String(),
			s.To.Time.UTC().Format(time.RFC3339),
			s.To.Price.String(),
		})
	}
	table.Render()
}
