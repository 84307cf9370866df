package main

import (
	"fmt"
	"io"
	"time"

	"buscast/crowding"
	"buscast/neuralnet"
)

func printSummary(w io.Writer, s crowding.Summary) {
	fmt.Fprintln(w, "DATA STATISTICS")
	if s.Records == 0 {
		fmt.Fprintln(w, "  no records")
		return
	}
	out, ret := s.Directions[crowding.Outbound], s.Directions[crowding.Return]
	fmt.Fprintf(w, "  Period:       %s - %s\n", s.From.Format(crowding.DateLayout), s.To.Format(crowding.DateLayout))
	fmt.Fprintf(w, "  Temperatures: %.0f°C - %.0f°C\n", s.MinTemperature, s.MaxTemperature)
	fmt.Fprintf(w, "  Records:      %d (%d outbound, %d return)\n", s.Records, out.Count, ret.Count)
	fmt.Fprintf(w, "  Mean level:   outbound %.1f, return %.1f\n", out.MeanCrowding, ret.MeanCrowding)

	fmt.Fprintln(w, "  Weekdays:     outbound / return")
	for i := 0; i < 7; i++ {
		day := time.Weekday((i + 1) % 7)
		fmt.Fprintf(w, "    %-10s %3d / %3d\n", day, out.Weekdays[i], ret.Weekdays[i])
	}
}

func printPrediction(w io.Writer, res crowding.PredictionResult, temperature float64) {
	fmt.Fprintln(w, "PREDICTION")
	fmt.Fprintf(w, "  %s on %s (%s)\n", res.Direction, res.Date.Format("02/01/2006"), res.DayName)
	fmt.Fprintf(w, "  Temperature:  %.1f°C\n", temperature)
	fmt.Fprintf(w, "  Level:        %.1f - %s\n", res.Level, res.Description())
	fmt.Fprintf(w, "  Confidence:   %.1f%%\n", res.Confidence)
	fmt.Fprintf(w, "  Output:       %.3f (normalized %.3f)\n", res.RawOutput, res.NetworkOutput)
}

func printModel(w io.Writer, stats neuralnet.TrainingStats) {
	fmt.Fprintln(w, "MODEL")
	fmt.Fprintf(w, "  Trained on %d samples\n", stats.Samples)
	fmt.Fprintf(w, "  %d epochs in %s\n", stats.Epochs, stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Error avg %.4f, min %.4f, max %.4f\n", stats.AvgError, stats.MinError, stats.MaxError)
}

func printHistorical(w io.Writer, est crowding.HistoricalEstimate) {
	fmt.Fprintf(w, "  Historical:   %.1f - %s (%s, confidence %.0f%%)\n",
		est.Level, crowding.DescribeLevel(est.Level), est.Method, est.Confidence)
	fmt.Fprintf(w, "                %d same weekday and direction, %d same direction, %d total; temperature effect %+.2f\n",
		est.SameDayDirectionCount, est.DirectionCount, est.TotalCount, est.TemperatureEffect)
}

func printBaseline(w io.Writer, level, r2 float64) {
	fmt.Fprintf(w, "  Linear baseline: %.2f (R² %.3f)\n", level, r2)
}
