package crowding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 2025-06-09 is a Monday.
func historyRecords() []Record {
	return []Record{
		{Date: day("2025-06-09"), Temperature: 20, Direction: Outbound, CrowdingLevel: 2},
		{Date: day("2025-06-02"), Temperature: 30, Direction: Outbound, CrowdingLevel: 4},
		{Date: day("2025-06-10"), Temperature: 25, Direction: Return, CrowdingLevel: 1},
	}
}

func TestEstimateSameDayAndDirection(t *testing.T) {
	est := EstimateFromHistory(historyRecords(), day("2025-06-16"), 25, Outbound)

	assert.Equal(t, MethodSameDayDirection, est.Method)
	assert.Equal(t, 2, est.SameDayDirectionCount)
	assert.Equal(t, 2, est.DirectionCount)
	assert.Equal(t, 3, est.TotalCount)
	assert.Equal(t, 3.0, est.Level)
	assert.InDelta(t, 0, est.TemperatureEffect, 1e-9)
	// 2 records * 20 + 2 records * 2 + correlation 1 * 10
	assert.InDelta(t, 54, est.Confidence, 1e-9)
}

func TestEstimateTemperatureShift(t *testing.T) {
	est := EstimateFromHistory(historyRecords(), day("2025-06-16"), 35, Outbound)
	assert.InDelta(t, 0.5, est.TemperatureEffect, 1e-9)
	assert.Equal(t, 3.5, est.Level)

	est = EstimateFromHistory(historyRecords(), day("2025-06-16"), 200, Outbound)
	assert.Equal(t, MaxLevel, est.Level)
}

func TestEstimateFallsBackToDirection(t *testing.T) {
	est := EstimateFromHistory(historyRecords(), day("2025-06-18"), 25, Outbound)

	assert.Equal(t, MethodSameDirection, est.Method)
	assert.Zero(t, est.SameDayDirectionCount)
	assert.Equal(t, 2, est.DirectionCount)
	assert.Equal(t, 3.0, est.Level)
	assert.InDelta(t, 34, est.Confidence, 1e-9)
}

func TestEstimateFallsBackToAllRecords(t *testing.T) {
	outbound := historyRecords()[:2]
	est := EstimateFromHistory(outbound, day("2025-06-16"), 25, Return)

	assert.Equal(t, MethodGeneral, est.Method)
	assert.Zero(t, est.DirectionCount)
	assert.Equal(t, 2, est.TotalCount)
	assert.Equal(t, 3.0, est.Level)
	assert.InDelta(t, 14, est.Confidence, 1e-9)
}

func TestEstimateWithoutHistory(t *testing.T) {
	est := EstimateFromHistory(nil, day("2025-06-16"), 25, Return)
	assert.Equal(t, HistoricalEstimate{Level: 3, Method: MethodDefault}, est)
}

func TestEstimateIgnoresUndefinedCorrelation(t *testing.T) {
	single := []Record{{Date: day("2025-06-09"), Temperature: 10, Direction: Outbound, CrowdingLevel: 5}}
	est := EstimateFromHistory(single, day("2025-06-16"), 30, Outbound)
	assert.Equal(t, 5.0, est.Level)
	assert.Zero(t, est.TemperatureEffect)
	assert.InDelta(t, 22, est.Confidence, 1e-9)

	sameTemp := []Record{
		{Date: day("2025-06-09"), Temperature: 20, Direction: Outbound, CrowdingLevel: 2},
		{Date: day("2025-06-02"), Temperature: 20, Direction: Outbound, CrowdingLevel: 3},
	}
	est = EstimateFromHistory(sameTemp, day("2025-06-16"), 30, Outbound)
	assert.Equal(t, 2.5, est.Level)
	assert.Zero(t, est.TemperatureEffect)
}
