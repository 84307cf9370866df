package crowding

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date format used on every boundary.
const DateLayout = "2006-01-02"

// Crowding levels are annotated on a 1 (empty) to 5 (packed) scale.
const (
	MinLevel = 1.0
	MaxLevel = 5.0
)

// Direction is the leg of the trip an observation belongs to.
type Direction int

const (
	Outbound Direction = iota
	Return
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "OUTBOUND"
	case Return:
		return "RETURN"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Flag is the numeric feature value of the direction: 1 outbound, 0 return.
func (d Direction) Flag() float64 {
	if d == Outbound {
		return 1
	}
	return 0
}

// ParseDirection accepts OUTBOUND and RETURN in any case, plus the ANDATA and
// RITORNO labels of files written by the original annotation app.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OUTBOUND", "ANDATA":
		return Outbound, nil
	case "RETURN", "RITORNO":
		return Return, nil
	}
	return 0, fmt.Errorf("unknown direction %q: %w", s, ErrInvalidInput)
}

func (d Direction) MarshalText() ([]byte, error) {
	if d != Outbound && d != Return {
		return nil, fmt.Errorf("cannot marshal %v", d)
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDate parses an ISO-8601 calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed date %q: %w", s, ErrInvalidInput)
	}
	return d, nil
}

// Record is one historical observation.
type Record struct {
	Date          time.Time
	Temperature   float64
	Direction     Direction
	CrowdingLevel float64
}

type recordJSON struct {
	Date          string    `json:"date"`
	Temperature   float64   `json:"temperature"`
	Direction     Direction `json:"direction"`
	CrowdingLevel float64   `json:"crowdingLevel"`
}

// recordInput also accepts the Italian keys of files written by the original
// annotation app. Every field is required.
type recordInput struct {
	Date          *string    `json:"date"`
	Temperature   *float64   `json:"temperature"`
	Direction     *Direction `json:"direction"`
	CrowdingLevel *float64   `json:"crowdingLevel"`

	Data                *string    `json:"data"`
	Temperatura         *float64   `json:"temperatura"`
	Direzione           *Direction `json:"direzione"`
	LivelloAffollamento *float64   `json:"livelloAffollamento"`
}

func either[T any](v, legacy *T) *T {
	if v != nil {
		return v
	}
	return legacy
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Date:          r.Date.Format(DateLayout),
		Temperature:   r.Temperature,
		Direction:     r.Direction,
		CrowdingLevel: r.CrowdingLevel,
	})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordInput
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	day := either(raw.Date, raw.Data)
	temperature := either(raw.Temperature, raw.Temperatura)
	direction := either(raw.Direction, raw.Direzione)
	level := either(raw.CrowdingLevel, raw.LivelloAffollamento)
	switch {
	case day == nil:
		return fmt.Errorf("record without date: %w", ErrInvalidInput)
	case temperature == nil:
		return fmt.Errorf("record %s without temperature: %w", *day, ErrInvalidInput)
	case direction == nil:
		return fmt.Errorf("record %s without direction: %w", *day, ErrInvalidInput)
	case level == nil:
		return fmt.Errorf("record %s without crowding level: %w", *day, ErrInvalidInput)
	}

	date, err := ParseDate(*day)
	if err != nil {
		return err
	}
	if *level < MinLevel || *level > MaxLevel {
		return fmt.Errorf("record %s: crowding level %v outside %v..%v: %w", *day, *level, MinLevel, MaxLevel, ErrInvalidInput)
	}
	*r = Record{
		Date:          date,
		Temperature:   *temperature,
		Direction:     *direction,
		CrowdingLevel: *level,
	}
	return nil
}

// DayOfWeek returns the ISO weekday, Monday = 1 through Sunday = 7.
func DayOfWeek(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func validTemperature(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("temperature must be finite, got %v: %w", v, ErrInvalidInput)
	}
	return nil
}

func validateRecords(records []Record) error {
	if len(records) == 0 {
		return fmt.Errorf("no records: %w", ErrInvalidInput)
	}
	for i, r := range records {
		if err := validTemperature(r.Temperature); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if math.IsNaN(r.CrowdingLevel) || math.IsInf(r.CrowdingLevel, 0) {
			return fmt.Errorf("record %d: crowding level must be finite: %w", i, ErrInvalidInput)
		}
		if r.Direction != Outbound && r.Direction != Return {
			return fmt.Errorf("record %d: %v: %w", i, r.Direction, ErrInvalidInput)
		}
	}
	return nil
}
