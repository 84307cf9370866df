package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"buscast/crowding"
	"buscast/internal/weather"
)

// Config holds the runtime settings of the buscast commands.
type Config struct {
	DataPath    string
	PostgresURL string
	RedisAddr   string
	Listen      string
	Epochs      int
	// Seed drives weight initialization and shuffling. Zero picks a time based seed.
	Seed int64

	Latitude     float64
	Longitude    float64
	Timezone     string
	WeatherURL   string
	WeatherPause time.Duration

	LogLevel  string
	LogFormat string
}

func Default() Config {
	return Config{
		DataPath:     "annotations.json",
		Listen:       ":8080",
		Epochs:       crowding.DefaultEpochs,
		Latitude:     weather.DefaultLatitude,
		Longitude:    weather.DefaultLongitude,
		Timezone:     weather.DefaultTimezone,
		WeatherURL:   weather.DefaultBaseURL,
		WeatherPause: weather.DefaultPause,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load reads BUSCAST_* variables over the defaults.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, parse func(string) error) {
		if v := getenv(key); v != "" {
			if err := parse(v); err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
			}
		}
	}

	str("BUSCAST_DATA", &cfg.DataPath)
	str("BUSCAST_POSTGRES_URL", &cfg.PostgresURL)
	str("BUSCAST_REDIS_ADDR", &cfg.RedisAddr)
	str("BUSCAST_LISTEN", &cfg.Listen)
	str("BUSCAST_TIMEZONE", &cfg.Timezone)
	str("BUSCAST_WEATHER_URL", &cfg.WeatherURL)
	str("BUSCAST_LOG_LEVEL", &cfg.LogLevel)
	str("BUSCAST_LOG_FORMAT", &cfg.LogFormat)

	num("BUSCAST_EPOCHS", func(v string) (err error) {
		cfg.Epochs, err = strconv.Atoi(v)
		return err
	})
	num("BUSCAST_SEED", func(v string) (err error) {
		cfg.Seed, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	num("BUSCAST_LATITUDE", func(v string) (err error) {
		cfg.Latitude, err = strconv.ParseFloat(v, 64)
		return err
	})
	num("BUSCAST_LONGITUDE", func(v string) (err error) {
		cfg.Longitude, err = strconv.ParseFloat(v, 64)
		return err
	})
	num("BUSCAST_WEATHER_PAUSE", func(v string) (err error) {
		cfg.WeatherPause, err = time.ParseDuration(v)
		return err
	})

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no command can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Epochs <= 0 {
		errs = append(errs, fmt.Errorf("epochs must be positive, got %d", c.Epochs))
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		errs = append(errs, fmt.Errorf("latitude %v out of range [-90, 90]", c.Latitude))
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		errs = append(errs, fmt.Errorf("longitude %v out of range [-180, 180]", c.Longitude))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if c.WeatherPause < 0 {
		errs = append(errs, fmt.Errorf("weather pause must not be negative"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format %q: want text or json", c.LogFormat))
	}
	return errors.Join(errs...)
}

// NewLogger builds a logger with the configured level and formatter.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func (c Config) WeatherOptions(logger *logrus.Logger) weather.Options {
	opts := weather.DefaultOptions()
	opts.BaseURL = c.WeatherURL
	opts.Latitude = c.Latitude
	opts.Longitude = c.Longitude
	opts.Timezone = c.Timezone
	opts.Logger = logger
	return opts
}
