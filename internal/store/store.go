package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"buscast/crowding"
)

// DefaultLine is the line name stored when an annotation does not name one.
const DefaultLine = "Linea Bus"

var (
	// ErrDuplicate is returned when an annotation already exists for the same
	// date and direction.
	ErrDuplicate = errors.New("annotation already exists for date and direction")
	// ErrInvalidAnnotation is returned for annotations that cannot be stored.
	ErrInvalidAnnotation = errors.New("invalid annotation")
	ErrNotFound          = errors.New("not found")
)

// RecordLoader supplies historical crowding records for training.
type RecordLoader interface {
	LoadRecords(ctx context.Context) ([]crowding.Record, error)
}

// AnnotationStore persists crowding annotations, one per date and direction.
type AnnotationStore interface {
	RecordLoader
	LoadAnnotations(ctx context.Context) ([]Annotation, error)
	Append(ctx context.Context, a Annotation) error
	Has(ctx context.Context, date time.Time, dir crowding.Direction) (bool, error)
	// Replace overwrites the stored annotations with as.
	Replace(ctx context.Context, as []Annotation) error
}

// Annotation is a crowding observation as entered by a rider. Temperature is
// nil until the weather enricher fills it.
type Annotation struct {
	Date        time.Time
	Time        string
	Direction   crowding.Direction
	Level       int
	Line        string
	Temperature *float64
}

type annotationJSON struct {
	Date        string             `json:"date"`
	Time        string             `json:"time,omitempty"`
	Level       int                `json:"level"`
	Direction   crowding.Direction `json:"direction"`
	Line        string             `json:"line"`
	Temperature *float64           `json:"temperature,omitempty"`
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(annotationJSON{
		Date:        a.Date.Format(crowding.DateLayout),
		Time:        a.Time,
		Level:       a.Level,
		Direction:   a.Direction,
		Line:        a.Line,
		Temperature: a.Temperature,
	})
}

// annotationInput also accepts the Italian keys written by the original
// annotation app. Date, direction and level are required.
type annotationInput struct {
	Date        *string             `json:"date"`
	Time        *string             `json:"time"`
	Level       *int                `json:"level"`
	Direction   *crowding.Direction `json:"direction"`
	Line        *string             `json:"line"`
	Temperature *float64            `json:"temperature"`

	Data                *string             `json:"data"`
	Orario              *string             `json:"orario"`
	LivelloAffollamento *int                `json:"livelloAffollamento"`
	Direzione           *crowding.Direction `json:"direzione"`
	Linea               *string             `json:"linea"`
	Temperatura         *float64            `json:"temperatura"`
}

func either[T any](v, legacy *T) *T {
	if v != nil {
		return v
	}
	return legacy
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var raw annotationInput
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	day := either(raw.Date, raw.Data)
	level := either(raw.Level, raw.LivelloAffollamento)
	dir := either(raw.Direction, raw.Direzione)
	switch {
	case day == nil:
		return fmt.Errorf("annotation without date: %w", ErrInvalidAnnotation)
	case level == nil:
		return fmt.Errorf("annotation %s without level: %w", *day, ErrInvalidAnnotation)
	case dir == nil:
		return fmt.Errorf("annotation %s without direction: %w", *day, ErrInvalidAnnotation)
	}
	date, err := crowding.ParseDate(*day)
	if err != nil {
		return err
	}

	*a = Annotation{
		Date:        date,
		Direction:   *dir,
		Level:       *level,
		Temperature: either(raw.Temperature, raw.Temperatura),
	}
	if t := either(raw.Time, raw.Orario); t != nil {
		a.Time = clockMinutes(*t)
	}
	if line := either(raw.Line, raw.Linea); line != nil {
		a.Line = *line
	}
	return nil
}

// clockMinutes cuts "15:04:05.000" style times down to "15:04".
func clockMinutes(s string) string {
	if len(s) > 5 && s[2] == ':' && s[5] == ':' {
		return s[:5]
	}
	return s
}

// Validate checks the level range and fills the default line.
func (a *Annotation) Validate() error {
	if a.Date.IsZero() {
		return fmt.Errorf("missing date: %w", ErrInvalidAnnotation)
	}
	if a.Level < int(crowding.MinLevel) || a.Level > int(crowding.MaxLevel) {
		return fmt.Errorf("level %d outside 1..5: %w", a.Level, ErrInvalidAnnotation)
	}
	if a.Direction != crowding.Outbound && a.Direction != crowding.Return {
		return fmt.Errorf("direction %v: %w", a.Direction, ErrInvalidAnnotation)
	}
	if a.Time != "" {
		if _, err := time.Parse("15:04", a.Time); err != nil {
			return fmt.Errorf("time %q: %w", a.Time, ErrInvalidAnnotation)
		}
	}
	if a.Line == "" {
		a.Line = DefaultLine
	}
	return nil
}

// Record converts the annotation to a training record. ok is false while the
// temperature is unknown.
func (a Annotation) Record() (crowding.Record, bool) {
	if a.Temperature == nil {
		return crowding.Record{}, false
	}
	return crowding.Record{
		Date:          a.Date,
		Temperature:   *a.Temperature,
		Direction:     a.Direction,
		CrowdingLevel: float64(a.Level),
	}, true
}

func sameSlot(a Annotation, date time.Time, dir crowding.Direction) bool {
	return a.Direction == dir && a.Date.Format(crowding.DateLayout) == date.Format(crowding.DateLayout)
}

// toRecords keeps the annotations with a known temperature.
func toRecords(as []Annotation) ([]crowding.Record, int) {
	records := make([]crowding.Record, 0, len(as))
	skipped := 0
	for _, a := range as {
		r, ok := a.Record()
		if !ok {
			skipped++
			continue
		}
		records = append(records, r)
	}
	return records, skipped
}
