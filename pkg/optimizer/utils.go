package optimizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

var metricColumns = []MetricName{MetricLegs, MetricStyleChanges, MetricMeanLeg, MetricYangShare}

// SaveResultsToCSV saves results to a CSV file, in the given order
func SaveResultsToCSV(results []Result, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := WriteResults(file, results); err != nil {
		return err
	}
	return file.Sync()
}

// WriteResults writes one CSV row per result
func WriteResults(w io.Writer, results []Result) error {
	writer := csv.NewWriter(w)

	header := []string{"rank", "mode", "value", "tick_size", "duration"}
	for _, name := range metricColumns {
		header = append(header, string(name))
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, result := range results {
		row := []string{
			strconv.Itoa(i + 1),
			result.Config.Mode.String(),
			result.Config.Value.String(),
			result.Config.TickSize.String(),
			result.Duration.String(),
		}
		for _, name := range metricColumns {
			row = append(row, strconv.FormatFloat(result.Metric(name), 'f', 4, 64))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
