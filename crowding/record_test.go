package crowding

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
	}{
		{"OUTBOUND", Outbound},
		{"outbound", Outbound},
		{" Return ", Return},
		{"ANDATA", Outbound},
		{"ritorno", Return},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDirectionFlag(t *testing.T) {
	assert.Equal(t, 1.0, Outbound.Flag())
	assert.Equal(t, 0.0, Return.Flag())
}

func TestDayOfWeekIsISO(t *testing.T) {
	monday := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		assert.Equal(t, i+1, DayOfWeek(monday.AddDate(0, 0, i)))
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"", "10/06/2025", "2025-13-01", "yesterday"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestRecordJSON(t *testing.T) {
	in := `[
		{"date":"2025-06-10","temperature":27.4,"direction":"ANDATA","crowdingLevel":4},
		{"date":"2025-06-10","temperature":27.4,"direction":"RETURN","crowdingLevel":2.5}
	]`
	var records []Record
	require.NoError(t, json.Unmarshal([]byte(in), &records))
	require.Len(t, records, 2)
	assert.Equal(t, Outbound, records[0].Direction)
	assert.Equal(t, Return, records[1].Direction)
	assert.Equal(t, 2.5, records[1].CrowdingLevel)
	assert.Equal(t, time.June, records[0].Date.Month())

	out, err := json.Marshal(records[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-06-10","temperature":27.4,"direction":"OUTBOUND","crowdingLevel":4}`, string(out))
}

func TestRecordJSONRejectsBadFields(t *testing.T) {
	var r Record
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"date":"10-06-2025","temperature":1,"direction":"RETURN","crowdingLevel":1}`), &r), ErrInvalidInput)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"date":"2025-06-10","temperature":1,"direction":"UP","crowdingLevel":1}`), &r), ErrInvalidInput)
}

func TestRecordJSONRequiresEveryField(t *testing.T) {
	tests := []struct {
		description string
		in          string
	}{
		{"no date", `{"temperature":20,"direction":"OUTBOUND","crowdingLevel":3}`},
		{"no temperature", `{"date":"2025-06-10","direction":"OUTBOUND","crowdingLevel":3}`},
		{"no direction", `{"date":"2025-06-10","temperature":20,"crowdingLevel":3}`},
		{"no crowding level", `{"date":"2025-06-10","temperature":20,"direction":"OUTBOUND"}`},
		{"empty direction", `{"date":"2025-06-10","temperature":20,"direction":"","crowdingLevel":3}`},
		{"level below scale", `{"date":"2025-06-10","temperature":20,"direction":"OUTBOUND","crowdingLevel":0}`},
		{"level above scale", `{"date":"2025-06-10","temperature":20,"direction":"OUTBOUND","crowdingLevel":5.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			var r Record
			assert.ErrorIs(t, json.Unmarshal([]byte(tt.in), &r), ErrInvalidInput)
		})
	}

	var records []Record
	err := json.Unmarshal([]byte(`[{"date":"2025-06-10","temperature":20,"crowdingLevel":3}]`), &records)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordJSONItalianKeys(t *testing.T) {
	in := `{"data":"2025-06-10","temperatura":27.4,"direzione":"RITORNO","livelloAffollamento":3.5}`
	var r Record
	require.NoError(t, json.Unmarshal([]byte(in), &r))
	assert.Equal(t, Record{
		Date:          time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Temperature:   27.4,
		Direction:     Return,
		CrowdingLevel: 3.5,
	}, r)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-06-10","temperature":27.4,"direction":"RETURN","crowdingLevel":3.5}`, string(out))
}
