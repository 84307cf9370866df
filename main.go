package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"buscast/crowding"
	"buscast/internal/api"
	"buscast/internal/config"
	"buscast/internal/store"
	"buscast/internal/weather"
)

const usage = `buscast predicts how crowded the bus will be.

Usage:
  buscast predict <file.json> <date> <temperature> <direction> [epochs]
  buscast summary <file.json>
  buscast annotate [-time HH:MM] [-line name] [-temperature C] <date> <direction> <level>
  buscast enrich <in.json> <out.json>
  buscast serve

Dates are YYYY-MM-DD, directions OUTBOUND or RETURN, levels 1 to 5.
Settings are read from BUSCAST_* environment variables; every command also
accepts -seed, -log-level and -log-format.

Example:
  buscast predict data.json 2025-06-10 25 OUTBOUND 1500
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed, 0 for time based")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format, text or json")

	switch cmd {
	case "predict":
		return runPredict(ctx, fs, args, cfg, stdout)
	case "summary":
		return runSummary(ctx, fs, args, cfg, stdout)
	case "annotate":
		return runAnnotate(ctx, fs, args, cfg, stdout)
	case "enrich":
		return runEnrich(ctx, fs, args, cfg, stdout)
	case "serve":
		return runServe(ctx, fs, args, cfg)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// setup parses the command flags, checks that between min and max positional
// arguments remain and builds the logger.
func setup(fs *flag.FlagSet, args []string, cfg *config.Config, min, max int) (*logrus.Logger, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < min || fs.NArg() > max {
		fmt.Fprint(fs.Output(), usage)
		return nil, errUsage
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.NewLogger(), nil
}

func newService(cfg config.Config, logger *logrus.Logger) *crowding.PredictionService {
	opts := []crowding.Option{crowding.WithLogger(logger)}
	if cfg.Seed != 0 {
		opts = append(opts, crowding.WithSeed(cfg.Seed))
	}
	return crowding.NewPredictionService(opts...)
}

func runPredict(ctx context.Context, fs *flag.FlagSet, args []string, cfg config.Config, stdout io.Writer) error {
	logger, err := setup(fs, args, &cfg, 4, 5)
	if err != nil {
		return err
	}
	path := fs.Arg(0)

	date, err := crowding.ParseDate(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	temperature, err := strconv.ParseFloat(fs.Arg(2), 64)
	if err != nil {
		return fmt.Errorf("invalid temperature %q: %w", fs.Arg(2), crowding.ErrInvalidInput)
	}
	direction, err := crowding.ParseDirection(fs.Arg(3))
	if err != nil {
		return err
	}
	epochs := cfg.Epochs
	if fs.NArg() == 5 {
		if epochs, err = strconv.Atoi(fs.Arg(4)); err != nil {
			return fmt.Errorf("invalid epochs %q: %w", fs.Arg(4), crowding.ErrInvalidInput)
		}
	}

	records, err := loadRecords(ctx, path, logger)
	if err != nil {
		return err
	}
	printSummary(stdout, crowding.Summarize(records))
	fmt.Fprintln(stdout)

	svc := newService(cfg, logger)
	stats, err := svc.Train(records, epochs)
	if err != nil {
		return err
	}
	res, err := svc.Predict(date, temperature, direction)
	if err != nil {
		return err
	}

	printPrediction(stdout, res, temperature)
	printHistorical(stdout, res.Historical)
	if b, err := crowding.FitBaseline(records); err != nil {
		logger.WithError(err).Warn("linear baseline unavailable")
	} else if level, err := b.Predict(crowding.Record{Date: date, Temperature: temperature, Direction: direction}); err == nil {
		printBaseline(stdout, level, b.R2())
	}
	fmt.Fprintln(stdout)
	printModel(stdout, stats)
	return nil
}

func runSummary(ctx context.Context, fs *flag.FlagSet, args []string, cfg config.Config, stdout io.Writer) error {
	logger, err := setup(fs, args, &cfg, 1, 1)
	if err != nil {
		return err
	}
	records, err := loadRecords(ctx, fs.Arg(0), logger)
	if err != nil {
		return err
	}
	printSummary(stdout, crowding.Summarize(records))
	return nil
}

func runAnnotate(ctx context.Context, fs *flag.FlagSet, args []string, cfg config.Config, stdout io.Writer) error {
	at := fs.String("time", time.Now().Format("15:04"), "time of the observation, HH:MM")
	line := fs.String("line", store.DefaultLine, "bus line")
	temp := fs.String("temperature", "", "daily mean temperature in °C, looked up when empty")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "annotation file")
	logger, err := setup(fs, args, &cfg, 3, 3)
	if err != nil {
		return err
	}

	date, err := crowding.ParseDate(fs.Arg(0))
	if err != nil {
		return err
	}
	direction, err := crowding.ParseDirection(fs.Arg(1))
	if err != nil {
		return err
	}
	level, err := strconv.Atoi(fs.Arg(2))
	if err != nil {
		return fmt.Errorf("level %q: %w", fs.Arg(2), store.ErrInvalidAnnotation)
	}

	a := store.Annotation{Date: date, Time: *at, Direction: direction, Level: level, Line: *line}
	if err := a.Validate(); err != nil {
		return err
	}

	annotations, _, closeStore, err := openAnnotations(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	exists, err := annotations.Has(ctx, date, direction)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s %s is already annotated: %w", direction, date.Format(crowding.DateLayout), store.ErrDuplicate)
	}

	if *temp != "" {
		v, err := strconv.ParseFloat(*temp, 64)
		if err != nil {
			return fmt.Errorf("temperature %q: %w", *temp, crowding.ErrInvalidInput)
		}
		a.Temperature = &v
	} else {
		client := weather.NewClient(cfg.WeatherOptions(logger))
		if v, err := client.DailyMeanTemperature(ctx, date); err == nil {
			a.Temperature = &v
		} else {
			logger.WithError(err).Warn("saving annotation without temperature")
		}
	}

	if err := annotations.Append(ctx, a); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved level %d for %s %s\n", level, direction, date.Format(crowding.DateLayout))
	return nil
}

func openCache(ctx context.Context, cfg config.Config, logger *logrus.Logger) (weather.Cache, func()) {
	if cfg.RedisAddr == "" {
		return weather.NewMemoryCache(), func() {}
	}
	c, err := weather.OpenRedisCache(ctx, cfg.RedisAddr)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, caching temperatures in memory")
		return weather.NewMemoryCache(), func() {}
	}
	return c, func() { c.Close() }
}

func runEnrich(ctx context.Context, fs *flag.FlagSet, args []string, cfg config.Config, stdout io.Writer) error {
	fs.DurationVar(&cfg.WeatherPause, "pause", cfg.WeatherPause, "pause between weather requests")
	logger, err := setup(fs, args, &cfg, 2, 2)
	if err != nil {
		return err
	}
	in := store.NewJSONStore(fs.Arg(0), logger)
	out := store.NewJSONStore(fs.Arg(1), logger)

	as, err := in.LoadAnnotations(ctx)
	if err != nil {
		return err
	}
	previous, err := out.LoadAnnotations(ctx)
	if err != nil {
		logger.WithError(err).Warn("ignoring unreadable output file")
		previous = nil
	}

	cache, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()

	enricher := weather.NewEnricher(weather.NewClient(cfg.WeatherOptions(logger)), cache, logger)
	enricher.Pause = cfg.WeatherPause
	enriched, report, err := enricher.Enrich(ctx, as, previous)
	if err != nil {
		return err
	}
	if err := out.Replace(ctx, enriched); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%d annotations, %d dates: %d reused, %d cached, %d fetched, %d unavailable\n",
		len(enriched), report.Dates, report.Reused, report.Cached, report.Fetched, report.Unavailable)
	fmt.Fprintf(stdout, "Written to %s\n", out.Path())
	return nil
}

func runServe(ctx context.Context, fs *flag.FlagSet, args []string, cfg config.Config) error {
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "listen address")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "annotation file")
	logger, err := setup(fs, args, &cfg, 0, 0)
	if err != nil {
		return err
	}

	annotations, recorder, closeStore, err := openAnnotations(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []api.Option{
		api.WithAnnotations(annotations),
		api.WithEpochs(cfg.Epochs),
		api.WithWeather(weather.NewClient(cfg.WeatherOptions(logger))),
	}
	if recorder != nil {
		opts = append(opts, api.WithRecorder(recorder))
	}
	srv := api.NewServer(newService(cfg, logger), annotations, logger, opts...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Listen)
	})
	g.Go(func() error {
		stats, _, err := srv.Train(ctx, cfg.Epochs)
		if errors.Is(err, crowding.ErrInvalidInput) {
			logger.WithError(err).Warn("starting untrained, POST /api/train once annotations exist")
			return nil
		}
		if err != nil {
			return err
		}
		logger.WithField("avg_error", stats.AvgError).Info("model ready")
		return nil
	})
	return g.Wait()
}
