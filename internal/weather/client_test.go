package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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

func testClient(url string) *Client {
	opts := DefaultOptions()
	opts.BaseURL = url
	opts.Backoff = time.Millisecond
	opts.Logger = quietLogger()
	return NewClient(opts)
}

func TestDailyMeanTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "41.9028", q.Get("latitude"))
		assert.Equal(t, "12.4964", q.Get("longitude"))
		assert.Equal(t, "temperature_2m_mean", q.Get("daily"))
		assert.Equal(t, "2025-06-10", q.Get("start_date"))
		assert.Equal(t, "2025-06-10", q.Get("end_date"))
		assert.Equal(t, "Europe/Rome", q.Get("timezone"))
		fmt.Fprint(w, `{"daily":{"time":["2025-06-10"],"temperature_2m_mean":[23.46]}}`)
	}))
	defer srv.Close()

	v, err := testClient(srv.URL).DailyMeanTemperature(context.Background(), date(t, "2025-06-10"))
	require.NoError(t, err)
	assert.Equal(t, 23.5, v)
}

func TestDailyMeanTemperatureNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"daily":{"time":["2030-01-01"],"temperature_2m_mean":[null]}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).DailyMeanTemperature(context.Background(), date(t, "2030-01-01"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDailyMeanTemperatureRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"daily":{"temperature_2m_mean":[12]}}`)
	}))
	defer srv.Close()

	v, err := testClient(srv.URL).DailyMeanTemperature(context.Background(), date(t, "2025-01-10"))
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDailyMeanTemperatureGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).DailyMeanTemperature(context.Background(), date(t, "2025-01-10"))
	require.Error(t, err)
	assert.Equal(t, int32(DefaultMaxRetries+1), atomic.LoadInt32(&calls))
}

func TestDailyMeanTemperatureDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).DailyMeanTemperature(context.Background(), date(t, "2025-01-10"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
