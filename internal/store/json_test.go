package store

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buscast/crowding"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := crowding.ParseDate(s)
	require.NoError(t, err)
	return d
}

func temp(v float64) *float64 {
	return &v
}

func TestJSONStoreMissingFileIsEmpty(t *testing.T) {
	s := NewJSONStore(filepath.Join(t.TempDir(), "annotations.json"), quietLogger())

	as, err := s.LoadAnnotations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, as)

	records, err := s.LoadRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONStoreAppendAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "annotations.json")
	s := NewJSONStore(path, quietLogger())

	require.NoError(t, s.Append(ctx, Annotation{Date: date(t, "2025-06-10"), Time: "07:45", Direction: crowding.Outbound, Level: 4, Temperature: temp(26.3)}))
	require.NoError(t, s.Append(ctx, Annotation{Date: date(t, "2025-06-10"), Direction: crowding.Return, Level: 2}))

	reopened := NewJSONStore(path, quietLogger())
	as, err := reopened.LoadAnnotations(ctx)
	require.NoError(t, err)
	require.Len(t, as, 2)
	assert.Equal(t, DefaultLine, as[0].Line)
	assert.Equal(t, "07:45", as[0].Time)
	assert.Nil(t, as[1].Temperature)

	has, err := reopened.Has(ctx, date(t, "2025-06-10"), crowding.Return)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = reopened.Has(ctx, date(t, "2025-06-11"), crowding.Return)
	require.NoError(t, err)
	assert.False(t, has)

	records, err := reopened.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, crowding.Record{Date: date(t, "2025-06-10"), Temperature: 26.3, Direction: crowding.Outbound, CrowdingLevel: 4}, records[0])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}

func TestJSONStoreRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewJSONStore(filepath.Join(t.TempDir(), "annotations.json"), quietLogger())

	a := Annotation{Date: date(t, "2025-06-10"), Direction: crowding.Outbound, Level: 3}
	require.NoError(t, s.Append(ctx, a))
	a.Level = 5
	assert.ErrorIs(t, s.Append(ctx, a), ErrDuplicate)

	as, err := s.LoadAnnotations(ctx)
	require.NoError(t, err)
	require.Len(t, as, 1)
	assert.Equal(t, 3, as[0].Level)
}

func TestJSONStoreRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewJSONStore(filepath.Join(t.TempDir(), "annotations.json"), quietLogger())

	tests := []struct {
		description string
		a           Annotation
	}{
		{"level too low", Annotation{Date: date(t, "2025-06-10"), Direction: crowding.Outbound, Level: 0}},
		{"level too high", Annotation{Date: date(t, "2025-06-10"), Direction: crowding.Outbound, Level: 6}},
		{"missing date", Annotation{Direction: crowding.Outbound, Level: 3}},
		{"bad time", Annotation{Date: date(t, "2025-06-10"), Time: "25:99", Direction: crowding.Outbound, Level: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.ErrorIs(t, s.Append(ctx, tt.a), ErrInvalidAnnotation)
		})
	}
}

func TestJSONStoreReplace(t *testing.T) {
	ctx := context.Background()
	s := NewJSONStore(filepath.Join(t.TempDir(), "annotations.json"), quietLogger())
	require.NoError(t, s.Append(ctx, Annotation{Date: date(t, "2025-06-10"), Direction: crowding.Outbound, Level: 3}))

	as, err := s.LoadAnnotations(ctx)
	require.NoError(t, err)
	as[0].Temperature = temp(19.5)
	require.NoError(t, s.Replace(ctx, as))

	records, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 19.5, records[0].Temperature)
}

func TestJSONStoreReadsLegacyDirections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.json")
	legacy := `[{"date":"2025-05-02","time":"08:10","level":5,"direction":"ANDATA","line":"Linea 64","temperature":18.2}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	as, err := NewJSONStore(path, quietLogger()).LoadAnnotations(context.Background())
	require.NoError(t, err)
	require.Len(t, as, 1)
	assert.Equal(t, crowding.Outbound, as[0].Direction)
	assert.Equal(t, "Linea 64", as[0].Line)

	out, err := json.Marshal(as[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-05-02","time":"08:10","level":5,"direction":"OUTBOUND","line":"Linea 64","temperature":18.2}`, string(out))
}

func TestRecordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	data := `[{"date":"2025-06-10","temperature":27.4,"direction":"OUTBOUND","crowdingLevel":4}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	records, err := RecordFile{Path: path}.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 27.4, records[0].Temperature)

	_, err = RecordFile{Path: filepath.Join(t.TempDir(), "missing.json")}.LoadRecords(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnnotationJSONRequiresFields(t *testing.T) {
	tests := []struct {
		description string
		in          string
	}{
		{"no date", `{"time":"07:45","level":3,"direction":"OUTBOUND"}`},
		{"no level", `{"date":"2025-06-10","direction":"OUTBOUND"}`},
		{"no direction", `{"date":"2025-06-10","level":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			var a Annotation
			assert.ErrorIs(t, json.Unmarshal([]byte(tt.in), &a), ErrInvalidAnnotation)
		})
	}
}

func TestJSONStoreRejectsInvalidFileEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.json")
	data := `[
		{"date":"2025-06-10","level":3,"direction":"OUTBOUND","temperature":20},
		{"date":"2025-06-11","level":0,"direction":"OUTBOUND","temperature":21}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s := NewJSONStore(path, quietLogger())
	_, err := s.LoadRecords(context.Background())
	assert.ErrorIs(t, err, ErrInvalidAnnotation)

	require.NoError(t, os.WriteFile(path, []byte(`[{"date":"2025-06-10","level":3,"temperature":20}]`), 0o644))
	_, err = s.LoadAnnotations(context.Background())
	assert.ErrorIs(t, err, ErrInvalidAnnotation)
}

func TestJSONStoreReadsItalianKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotazioni.json")
	legacy := `[
		{"data":"2025-05-02","orario":"08:10:41.123","livelloAffollamento":4,"direzione":"ANDATA","linea":"Linea 64","temperatura":18.2},
		{"data":"2025-05-02","livelloAffollamento":2,"direzione":"RITORNO","linea":"Linea 64","temperatura":null}
	]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s := NewJSONStore(path, quietLogger())
	as, err := s.LoadAnnotations(context.Background())
	require.NoError(t, err)
	require.Len(t, as, 2)
	assert.Equal(t, "08:10", as[0].Time)
	assert.Equal(t, "Linea 64", as[0].Line)
	assert.Equal(t, crowding.Return, as[1].Direction)
	assert.Nil(t, as[1].Temperature)

	records, err := s.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, crowding.Record{Date: date(t, "2025-05-02"), Temperature: 18.2, Direction: crowding.Outbound, CrowdingLevel: 4}, records[0])
}
