package crowding

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DirectionSummary aggregates the records of one direction.
type DirectionSummary struct {
	Count        int     `json:"count"`
	MeanCrowding float64 `json:"meanCrowding"`
	// Weekdays counts records per ISO weekday; index 0 is Monday.
	Weekdays [7]int `json:"weekdays"`
}

// Summary describes a record set before training.
type Summary struct {
	Records        int                            `json:"records"`
	From           time.Time                      `json:"from"`
	To             time.Time                      `json:"to"`
	MinTemperature float64                        `json:"minTemperature"`
	MaxTemperature float64                        `json:"maxTemperature"`
	MeanCrowding   float64                        `json:"meanCrowding"`
	Directions     map[Direction]DirectionSummary `json:"directions"`
}

// Summarize computes dataset statistics. An empty input yields a zero Summary.
func Summarize(records []Record) Summary {
	s := Summary{
		Records:    len(records),
		Directions: map[Direction]DirectionSummary{},
	}
	if len(records) == 0 {
		return s
	}

	temps := make([]float64, len(records))
	levels := make([]float64, len(records))
	byDir := map[Direction][]float64{}
	s.From, s.To = records[0].Date, records[0].Date
	for i, r := range records {
		temps[i] = r.Temperature
		levels[i] = r.CrowdingLevel
		if r.Date.Before(s.From) {
			s.From = r.Date
		}
		if r.Date.After(s.To) {
			s.To = r.Date
		}

		ds := s.Directions[r.Direction]
		ds.Count++
		ds.Weekdays[DayOfWeek(r.Date)-1]++
		s.Directions[r.Direction] = ds
		byDir[r.Direction] = append(byDir[r.Direction], r.CrowdingLevel)
	}

	s.MinTemperature = floats.Min(temps)
	s.MaxTemperature = floats.Max(temps)
	s.MeanCrowding = stat.Mean(levels, nil)
	for dir, lv := range byDir {
		ds := s.Directions[dir]
		ds.MeanCrowding = stat.Mean(lv, nil)
		s.Directions[dir] = ds
	}
	return s
}
