package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/metric"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	bootstrapSamples = 10000
	histogramBins    = 15
)

// Summary is the statistics of one chart
type Summary struct {
	Pair         string
	Legs         []Leg
	StyleChanges int
	YangLength   decimal.Decimal
	YinLength    decimal.Decimal
	State        kagi.State
}

// Summarize computes the statistics of the segments rendered for a pair
func Summarize(pair string, segments []kagi.Segment, state kagi.State) Summary {
	summary := Summary{Pair: pair, Legs: Legs(segments), State: state}
	for _, segment := range segments {
		switch segment.Kind {
		case kagi.KindStyleChange:
			summary.StyleChanges++
		case kagi.KindExtend:
			length := segment.To.Price.Sub(segment.From.Price).Abs()
			if segment.Style == kagi.StyleYang {
				summary.YangLength = summary.YangLength.Add(length)
			} else {
				summary.YinLength = summary.YinLength.Add(length)
			}
		}
	}
	return summary
}

// YangShare is the fraction of vertical line length drawn thick
func (s Summary) YangShare() float64 {
	total := s.YangLength.Add(s.YinLength)
	if total.IsZero() {
		return 0
	}
	return s.YangLength.Div(total).InexactFloat64()
}

// Moves are the signed leg moves in percent
func (s Summary) Moves() []float64 {
	return lo.Map(s.Legs, func(leg Leg, _ int) float64 {
		return leg.Percent()
	})
}

func (s Summary) count(d kagi.Direction) int {
	return lo.CountBy(s.Legs, func(leg Leg) bool {
		return leg.Direction == d
	})
}

// Table writes one row per chart
func Table(w io.Writer, summaries []Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Pair", "Legs", "Up", "Down", "Flips", "% Yang", "Avg Leg", "Max Leg", "Up/Down", "Direction", "Style", "Reference"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	var legs, ups, downs, flips int
	for _, s := range summaries {
		sizes := metric.Abs(s.Moves())
		table.Append([]string{
			s.Pair,
			strconv.Itoa(len(s.Legs)),
			strconv.Itoa(s.count(kagi.DirectionUp)),
			strconv.Itoa(s.count(kagi.DirectionDown)),
			strconv.Itoa(s.StyleChanges),
			fmt.Sprintf("%.1f %%", s.YangShare()*100),
			fmt.Sprintf("%.2f %%", metric.Mean(sizes)),
			fmt.Sprintf("%.2f %%", lo.Max(sizes)),
			ratio(metric.UpDownRatio(s.Moves())),
			s.State.Direction.String(),
			s.State.Style.String(),
			s.State.ReferencePrice.String(),
		})
		legs += len(s.Legs)
		ups += s.count(kagi.DirectionUp)
		downs += s.count(kagi.DirectionDown)
		flips += s.StyleChanges
	}

	table.SetFooter([]string{"TOTAL", strconv.Itoa(legs), strconv.Itoa(ups), strconv.Itoa(downs), strconv.Itoa(flips),
		"", "", "", "", "", "", ""})
	table.Render()
}

func ratio(v float64) string {
	if math.IsInf(v, 1) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// Histogram plots the leg sizes of every chart, in percent
func Histogram(w io.Writer, summaries []Summary) error {
	sizes := lo.FlatMap(summaries, func(s Summary, _ int) []float64 {
		return metric.Abs(s.Moves())
	})
	if len(sizes) == 0 {
		_, err := fmt.Fprintln(w, "no legs")
		return err
	}
	return histogram.Fprint(w, histogram.Hist(histogramBins, sizes), histogram.Linear(10))
}

// Intervals prints the bootstrap confidence interval of the mean leg size
func Intervals(w io.Writer, summaries []Summary, confidence float64) {
	for _, s := range summaries {
		sizes := metric.Abs(s.Moves())
		if len(sizes) < 2 {
			continue
		}
		interval := metric.Bootstrap(sizes, metric.Mean, bootstrapSamples, confidence)
		fmt.Fprintf(w, "| %s | LEG SIZE: %.2f%% (%.2f%% ~ %.2f%%)\n", s.Pair, interval.Mean, interval.Lower, interval.Upper)
	}
}

// Write renders the full report
func Write(w io.Writer, summaries []Summary) error {
	buffer := bytes.NewBuffer(nil)
	Table(buffer, summaries)

	fmt.Fprintln(buffer, "------ LEG SIZE (%) -------")
	if err := Histogram(buffer, summaries); err != nil {
		return err
	}
	fmt.Fprintln(buffer)

	fmt.Fprintln(buffer, "------ CONFIDENCE INTERVAL (95%) -------")
	Intervals(buffer, summaries, 0.95)

	_, err := w.Write(buffer.Bytes())
	return err
}
