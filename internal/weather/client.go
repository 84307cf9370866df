package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"buscast/crowding"
)

// Defaults match the Open-Meteo forecast endpoint for central Rome.
const (
	DefaultBaseURL    = "https://api.open-meteo.com"
	DefaultLatitude   = 41.9028
	DefaultLongitude  = 12.4964
	DefaultTimezone   = "Europe/Rome"
	DefaultMaxRetries = 3
	DefaultBackoff    = 500 * time.Millisecond
)

// ErrUnavailable is returned when the service has no temperature for the date.
var ErrUnavailable = errors.New("temperature unavailable")

// TemperatureSource returns the daily mean temperature for a date.
type TemperatureSource interface {
	DailyMeanTemperature(ctx context.Context, date time.Time) (float64, error)
}

type Options struct {
	BaseURL    string
	Latitude   float64
	Longitude  float64
	Timezone   string
	MaxRetries uint64
	// Backoff is the base delay of the Fibonacci retry backoff.
	Backoff time.Duration
	HTTP    *http.Client
	Logger  *logrus.Logger
}

func DefaultOptions() Options {
	return Options{
		BaseURL:    DefaultBaseURL,
		Latitude:   DefaultLatitude,
		Longitude:  DefaultLongitude,
		Timezone:   DefaultTimezone,
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultBackoff,
	}
}

// Client queries the Open-Meteo daily forecast API.
type Client struct {
	opts   Options
	http   *http.Client
	logger *logrus.Logger
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timezone == "" {
		opts.Timezone = DefaultTimezone
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{opts: opts, http: httpClient, logger: logger}
}

type forecastResponse struct {
	Daily struct {
		Time            []string   `json:"time"`
		TemperatureMean []*float64 `json:"temperature_2m_mean"`
	} `json:"daily"`
}

func (c *Client) forecastURL(date time.Time) string {
	day := date.Format(crowding.DateLayout)
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.opts.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.opts.Longitude, 'f', -1, 64))
	q.Set("daily", "temperature_2m_mean")
	q.Set("start_date", day)
	q.Set("end_date", day)
	q.Set("timezone", c.opts.Timezone)
	return c.opts.BaseURL + "/v1/forecast?" + q.Encode()
}

// DailyMeanTemperature returns the mean temperature of date rounded to one
// decimal. Network failures, 429 and 5xx responses are retried.
func (c *Client) DailyMeanTemperature(ctx context.Context, date time.Time) (float64, error) {
	var temp float64
	b := retry.WithMaxRetries(c.opts.MaxRetries, retry.NewFibonacci(c.opts.Backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		v, err := c.fetch(ctx, date)
		if err != nil {
			var te transientError
			if errors.As(err, &te) {
				c.logger.WithFields(logrus.Fields{
					"date":  date.Format(crowding.DateLayout),
					"error": err,
				}).Warn("temperature request failed, retrying")
				return retry.RetryableError(err)
			}
			return err
		}
		temp = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return temp, nil
}

type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

func (c *Client) fetch(ctx context.Context, date time.Time) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.forecastURL(date), nil)
	if err != nil {
		return 0, fmt.Errorf("error building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, transientError{fmt.Errorf("error sending request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return 0, transientError{fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return 0, fmt.Errorf("error decoding response: %w", err)
	}
	if len(fr.Daily.TemperatureMean) == 0 || fr.Daily.TemperatureMean[0] == nil {
		return 0, fmt.Errorf("%s: %w", date.Format(crowding.DateLayout), ErrUnavailable)
	}
	return math.Round(*fr.Daily.TemperatureMean[0]*10) / 10, nil
}
