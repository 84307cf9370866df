package crowding

import (
	"encoding/json"
	"math"
	"time"
)

// PredictionResult is the outcome of a single crowding query.
type PredictionResult struct {
	// Level is the clamped prediction rounded to the nearest half step.
	Level float64
	// Confidence is a percentage in [50, 100].
	Confidence float64
	// RawOutput is the denormalized network output before clamping.
	RawOutput float64
	// NetworkOutput is the network output on its normalized (0, 1) scale.
	NetworkOutput float64
	DayName       string
	Date          time.Time
	Direction     Direction
	// Historical is the estimate from the training records alone.
	Historical HistoricalEstimate
}

var levelDescriptions = map[float64]string{
	1.0: "Empty",
	1.5: "Almost empty",
	2.0: "Not very crowded",
	2.5: "Moderately crowded",
	3.0: "Normally crowded",
	3.5: "Fairly crowded",
	4.0: "Very crowded",
	4.5: "Almost full",
	5.0: "Packed",
}

// Description returns a human label for the half-step level.
func (p PredictionResult) Description() string {
	return DescribeLevel(p.Level)
}

// DescribeLevel labels a crowding level after rounding it to the nearest half step.
func DescribeLevel(level float64) string {
	if d, ok := levelDescriptions[math.Round(level*2)/2]; ok {
		return d
	}
	return "Unknown"
}

func (p PredictionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date          string             `json:"date"`
		DayName       string             `json:"dayName"`
		Direction     Direction          `json:"direction"`
		Level         float64            `json:"level"`
		Description   string             `json:"description"`
		Confidence    float64            `json:"confidence"`
		RawOutput     float64            `json:"rawOutput"`
		NetworkOutput float64            `json:"networkOutput"`
		Historical    HistoricalEstimate `json:"historical"`
	}{
		Date:          p.Date.Format(DateLayout),
		DayName:       p.DayName,
		Direction:     p.Direction,
		Level:         p.Level,
		Description:   p.Description(),
		Confidence:    p.Confidence,
		RawOutput:     p.RawOutput,
		NetworkOutput: p.NetworkOutput,
		Historical:    p.Historical,
	})
}

// confidence decays from 100 at a whole level to the 50 floor at a half step.
func confidence(level float64) float64 {
	return math.Max(50, 100-math.Abs(level-math.Round(level))*50)
}

func clampLevel(v float64) float64 {
	return math.Max(MinLevel, math.Min(MaxLevel, v))
}
