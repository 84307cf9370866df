package weather

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"buscast/crowding"
	"buscast/internal/store"
)

// DefaultPause is the delay between two requests to the weather service.
const DefaultPause = 100 * time.Millisecond

// Report counts how the dates of one Enrich call were resolved.
type Report struct {
	Dates       int `json:"dates"`
	Reused      int `json:"reused"`
	Cached      int `json:"cached"`
	Fetched     int `json:"fetched"`
	Unavailable int `json:"unavailable"`
}

// Enricher fills missing annotation temperatures from a TemperatureSource.
type Enricher struct {
	source TemperatureSource
	cache  Cache
	logger *logrus.Logger
	Pause  time.Duration
}

func NewEnricher(source TemperatureSource, cache Cache, logger *logrus.Logger) *Enricher {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Enricher{source: source, cache: cache, logger: logger, Pause: DefaultPause}
}

// Enrich returns a copy of as with temperatures filled per date. Temperatures
// already present in as or in previous are reused; the remaining dates are
// looked up in the cache and then fetched one by one. Dates the source cannot
// answer keep a nil temperature.
func (e *Enricher) Enrich(ctx context.Context, as, previous []store.Annotation) ([]store.Annotation, Report, error) {
	known := map[string]float64{}
	for _, group := range [][]store.Annotation{previous, as} {
		for _, a := range group {
			if a.Temperature != nil {
				known[a.Date.Format(crowding.DateLayout)] = *a.Temperature
			}
		}
	}

	var dates []time.Time
	seen := map[string]bool{}
	for _, a := range as {
		key := a.Date.Format(crowding.DateLayout)
		if !seen[key] {
			seen[key] = true
			dates = append(dates, a.Date)
		}
	}

	var report Report
	report.Dates = len(dates)
	requested := false
	for _, d := range dates {
		key := d.Format(crowding.DateLayout)
		if _, ok := known[key]; ok {
			report.Reused++
			continue
		}

		v, ok, err := e.cache.Get(ctx, d)
		if err != nil {
			e.logger.WithField("date", key).WithError(err).Warn("temperature cache lookup failed")
		}
		if ok {
			known[key] = v
			report.Cached++
			continue
		}

		if requested && e.Pause > 0 {
			select {
			case <-ctx.Done():
				return nil, report, ctx.Err()
			case <-time.After(e.Pause):
			}
		}
		requested = true

		v, err = e.source.DailyMeanTemperature(ctx, d)
		if err != nil {
			if ctx.Err() != nil {
				return nil, report, ctx.Err()
			}
			report.Unavailable++
			fields := logrus.Fields{"date": key}
			if errors.Is(err, ErrUnavailable) {
				e.logger.WithFields(fields).Warn("temperature not available")
			} else {
				e.logger.WithFields(fields).WithError(err).Warn("temperature request failed")
			}
			continue
		}

		known[key] = v
		report.Fetched++
		if err := e.cache.Set(ctx, d, v); err != nil {
			e.logger.WithField("date", key).WithError(err).Warn("temperature cache update failed")
		}
		e.logger.WithFields(logrus.Fields{
			"date":        key,
			"temperature": v,
		}).Info("temperature fetched")
	}

	out := make([]store.Annotation, len(as))
	for i, a := range as {
		if v, ok := known[a.Date.Format(crowding.DateLayout)]; ok {
			a.Temperature = &v
		}
		out[i] = a
	}
	return out, report, nil
}
