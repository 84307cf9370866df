package crowding

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Estimation methods of HistoricalEstimate, from the most specific history to
// none at all.
const (
	MethodSameDayDirection = "same-day-direction"
	MethodSameDirection    = "same-direction"
	MethodGeneral          = "general"
	MethodDefault          = "default"
)

// temperatureScale converts correlation times degrees of difference into
// crowding levels.
const temperatureScale = 0.05

// HistoricalEstimate is a statistical prediction made straight from past
// records, without the network.
type HistoricalEstimate struct {
	Level      float64 `json:"level"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	// TemperatureEffect is the shift applied to the historical mean.
	TemperatureEffect     float64 `json:"temperatureEffect"`
	SameDayDirectionCount int     `json:"sameDayDirectionCount"`
	DirectionCount        int     `json:"directionCount"`
	TotalCount            int     `json:"totalCount"`
}

// EstimateFromHistory averages the records of the same weekday and direction,
// falling back to the same direction and then to every record. The mean is
// shifted by the temperature correlation of the records used.
func EstimateFromHistory(records []Record, date time.Time, temperature float64, direction Direction) HistoricalEstimate {
	var sameDirection, sameDay []Record
	for _, r := range records {
		if r.Direction != direction {
			continue
		}
		sameDirection = append(sameDirection, r)
		if DayOfWeek(r.Date) == DayOfWeek(date) {
			sameDay = append(sameDay, r)
		}
	}

	est := HistoricalEstimate{
		SameDayDirectionCount: len(sameDay),
		DirectionCount:        len(sameDirection),
		TotalCount:            len(records),
	}
	relevant := records
	switch {
	case len(sameDay) > 0:
		relevant, est.Method = sameDay, MethodSameDayDirection
	case len(sameDirection) > 0:
		relevant, est.Method = sameDirection, MethodSameDirection
	case len(records) > 0:
		est.Method = MethodGeneral
	default:
		est.Level, est.Method = 3, MethodDefault
		return est
	}

	temps := make([]float64, len(relevant))
	levels := make([]float64, len(relevant))
	for i, r := range relevant {
		temps[i], levels[i] = r.Temperature, r.CrowdingLevel
	}

	var corr float64
	if len(relevant) > 1 {
		corr = stat.Correlation(temps, levels, nil)
		if math.IsNaN(corr) {
			corr = 0
		}
	}
	est.TemperatureEffect = corr * (temperature - stat.Mean(temps, nil)) * temperatureScale

	level := clampLevel(stat.Mean(levels, nil) + est.TemperatureEffect)
	est.Level = math.Round(level*2) / 2
	est.Confidence = historyConfidence(len(sameDay), len(sameDirection), len(relevant), math.Abs(corr))
	return est
}

// historyConfidence gives up to 70 points for same weekday and direction
// records (50 for direction only), 20 for the amount of data and 10 for the
// temperature correlation.
func historyConfidence(sameDay, sameDirection, relevant int, corr float64) float64 {
	var c float64
	switch {
	case sameDay > 0:
		c += math.Min(float64(sameDay)*20, 70)
	case sameDirection > 0:
		c += math.Min(float64(sameDirection)*10, 50)
	}
	c += math.Min(float64(relevant)*2, 20)
	c += corr * 10
	return math.Min(c, 100)
}
