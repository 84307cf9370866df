package crowding

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleRecords() []Record {
	return []Record{
		{Date: day("2025-03-03"), Temperature: 8, Direction: Outbound, CrowdingLevel: 4},
		{Date: day("2025-03-04"), Temperature: 12, Direction: Return, CrowdingLevel: 2},
		{Date: day("2025-05-09"), Temperature: 21, Direction: Outbound, CrowdingLevel: 3.5},
		{Date: day("2025-07-13"), Temperature: 33, Direction: Return, CrowdingLevel: 1},
		{Date: day("2025-06-18"), Temperature: 28, Direction: Outbound, CrowdingLevel: 5},
	}
}

func TestFitEmpty(t *testing.T) {
	_, err := Fit(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFitBounds(t *testing.T) {
	n, err := Fit(sampleRecords())
	require.NoError(t, err)

	assert.Equal(t, FeatureStats{Min: 8, Max: 33, Range: 25}, n.Temperature)
	assert.Equal(t, FeatureStats{Min: 1, Max: 7, Range: 6}, n.DayOfWeek)
	assert.Equal(t, FeatureStats{Min: 0, Max: 1, Range: 1}, n.Direction)
	assert.Equal(t, FeatureStats{Min: 3, Max: 7, Range: 4}, n.Month)
	assert.Equal(t, FeatureStats{Min: 1, Max: 5, Range: 4}, n.Target)
	assert.Len(t, n.Stats(), 5)
}

func TestFitDegenerateFeatures(t *testing.T) {
	records := []Record{
		{Date: day("2025-06-10"), Temperature: 20, Direction: Outbound, CrowdingLevel: 3},
		{Date: day("2025-06-10"), Temperature: 20, Direction: Outbound, CrowdingLevel: 3},
	}
	n, err := Fit(records)
	require.NoError(t, err)
	for name, s := range n.Stats() {
		assert.Greater(t, s.Range, 0.0, name)
		assert.Equal(t, 1.0, s.Range, name)
	}
	for _, f := range n.NormalizeFeatures(records[0]) {
		assert.False(t, math.IsNaN(f))
		assert.Equal(t, 0.0, f)
	}
}

func TestNormalizeFeaturesInUnitCube(t *testing.T) {
	records := sampleRecords()
	n, err := Fit(records)
	require.NoError(t, err)

	for _, r := range records {
		features := n.NormalizeFeatures(r)
		require.Len(t, features, 4)
		for _, f := range features {
			assert.GreaterOrEqual(t, f, 0.0)
			assert.LessOrEqual(t, f, 1.0)
		}
	}

	got := n.NormalizeFeatures(records[2])
	assert.InDelta(t, 13.0/25, got[0], 1e-12)
	assert.InDelta(t, 4.0/6, got[1], 1e-12) // Friday
	assert.Equal(t, 1.0, got[2])
	assert.InDelta(t, 2.0/4, got[3], 1e-12)
}

func TestNormalizeFeaturesExtrapolates(t *testing.T) {
	n, err := Fit(sampleRecords())
	require.NoError(t, err)

	got := n.NormalizeFeatures(Record{Date: day("2025-12-01"), Temperature: -2, Direction: Return})
	assert.InDelta(t, -10.0/25, got[0], 1e-12)
	assert.InDelta(t, 9.0/4, got[3], 1e-12)
}

func TestTargetRoundTrip(t *testing.T) {
	n, err := Fit(sampleRecords())
	require.NoError(t, err)

	for v := 1.0; v <= 5.0; v += 0.25 {
		norm := n.NormalizeTarget(v)
		assert.GreaterOrEqual(t, norm, 0.0)
		assert.LessOrEqual(t, norm, 1.0)
		assert.InDelta(t, v, n.DenormalizeTarget(norm), 1e-12)
	}
}
