package crowding

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// FeatureStats are the observed bounds of one feature. Range is 1 when the
// feature never varied, so normalization never divides by zero.
type FeatureStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Range float64 `json:"range"`
}

func newFeatureStats(values []float64) FeatureStats {
	lo, hi := floats.Min(values), floats.Max(values)
	r := hi - lo
	if r == 0 {
		r = 1
	}
	return FeatureStats{Min: lo, Max: hi, Range: r}
}

func (s FeatureStats) normalize(v float64) float64 {
	return (v - s.Min) / s.Range
}

// FeatureNormalizer maps records to network inputs and crowding levels to and
// from the network's output scale. It is an immutable value produced by Fit;
// the same value must be used for every prediction against a network trained
// with it.
type FeatureNormalizer struct {
	Temperature FeatureStats `json:"temperature"`
	DayOfWeek   FeatureStats `json:"dayOfWeek"`
	Direction   FeatureStats `json:"direction"`
	Month       FeatureStats `json:"month"`
	Target      FeatureStats `json:"target"`
}

// Fit computes the per-feature bounds over records.
func Fit(records []Record) (FeatureNormalizer, error) {
	if len(records) == 0 {
		return FeatureNormalizer{}, fmt.Errorf("cannot fit normalizer on empty records: %w", ErrInvalidInput)
	}

	n := len(records)
	temps := make([]float64, n)
	days := make([]float64, n)
	dirs := make([]float64, n)
	months := make([]float64, n)
	levels := make([]float64, n)
	for i, r := range records {
		temps[i] = r.Temperature
		days[i] = float64(DayOfWeek(r.Date))
		dirs[i] = r.Direction.Flag()
		months[i] = float64(r.Date.Month())
		levels[i] = r.CrowdingLevel
	}

	return FeatureNormalizer{
		Temperature: newFeatureStats(temps),
		DayOfWeek:   newFeatureStats(days),
		Direction:   newFeatureStats(dirs),
		Month:       newFeatureStats(months),
		Target:      newFeatureStats(levels),
	}, nil
}

// NormalizeFeatures returns temperature, day of week, direction flag and month
// scaled by the fitted bounds. Values outside those bounds extrapolate linearly.
func (n FeatureNormalizer) NormalizeFeatures(r Record) []float64 {
	return []float64{
		n.Temperature.normalize(r.Temperature),
		n.DayOfWeek.normalize(float64(DayOfWeek(r.Date))),
		n.Direction.normalize(r.Direction.Flag()),
		n.Month.normalize(float64(r.Date.Month())),
	}
}

func (n FeatureNormalizer) NormalizeTarget(level float64) float64 {
	return n.Target.normalize(level)
}

func (n FeatureNormalizer) DenormalizeTarget(v float64) float64 {
	return v*n.Target.Range + n.Target.Min
}

// Stats returns the bounds keyed by feature name, target included.
func (n FeatureNormalizer) Stats() map[string]FeatureStats {
	return map[string]FeatureStats{
		"temperature": n.Temperature,
		"dayOfWeek":   n.DayOfWeek,
		"direction":   n.Direction,
		"month":       n.Month,
		"target":      n.Target,
	}
}
