package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"buscast/crowding"
	"buscast/internal/store"
	"buscast/internal/weather"
	"buscast/neuralnet"
)

// Server exposes a PredictionService over HTTP. Training holds the write lock;
// predictions share the read lock.
type Server struct {
	mu      sync.RWMutex
	service *crowding.PredictionService

	loader      store.RecordLoader
	annotations store.AnnotationStore
	recorder    store.TrainingRecorder
	weather     weather.TemperatureSource

	epochs int
	logger *logrus.Logger
}

type Option func(*Server)

// WithAnnotations enables POST /api/annotations.
func WithAnnotations(s store.AnnotationStore) Option {
	return func(srv *Server) { srv.annotations = s }
}

// WithRecorder persists the statistics of every training run and enables
// GET /api/runs.
func WithRecorder(r store.TrainingRecorder) Option {
	return func(srv *Server) { srv.recorder = r }
}

// WithWeather lets requests omit the temperature.
func WithWeather(src weather.TemperatureSource) Option {
	return func(srv *Server) { srv.weather = src }
}

func WithEpochs(epochs int) Option {
	return func(srv *Server) { srv.epochs = epochs }
}

func NewServer(service *crowding.PredictionService, loader store.RecordLoader, logger *logrus.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		service: service,
		loader:  loader,
		epochs:  crowding.DefaultEpochs,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger))

	router.GET("/healthz", s.health)

	v1 := router.Group("/api")
	{
		v1.POST("/train", s.train)
		v1.GET("/model", s.model)
		v1.POST("/predict", s.predict)
		v1.POST("/predict/batch", s.predictBatch)
		v1.GET("/summary", s.summary)
		v1.POST("/annotations", s.addAnnotation)
		v1.GET("/annotations", s.listAnnotations)
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
	}
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, crowding.ErrInvalidInput), errors.Is(err, store.ErrInvalidAnnotation):
		return http.StatusBadRequest
	case errors.Is(err, crowding.ErrModelNotTrained), errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, weather.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, err error) {
	c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func fail(c *gin.Context, err error) {
	abort(c, statusFor(err), err)
}

func (s *Server) health(c *gin.Context) {
	s.mu.RLock()
	trained := s.service.Trained()
	s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "trained": trained})
}

type trainRequest struct {
	Epochs *int `json:"epochs"`
}

type trainResponse struct {
	Stats neuralnet.TrainingStats `json:"stats"`
	RunID string                  `json:"runId,omitempty"`
}

func (s *Server) train(c *gin.Context) {
	var req trainRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
	}
	epochs := s.epochs
	if req.Epochs != nil {
		epochs = *req.Epochs
	}

	stats, runID, err := s.Train(c.Request.Context(), epochs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trainResponse{Stats: stats, RunID: runID})
}

// Train loads the records and trains the service under the write lock. The
// run ID is empty when no recorder is configured or recording failed.
func (s *Server) Train(ctx context.Context, epochs int) (neuralnet.TrainingStats, string, error) {
	records, err := s.loader.LoadRecords(ctx)
	if err != nil {
		return neuralnet.TrainingStats{}, "", err
	}

	s.mu.Lock()
	stats, err := s.service.Train(records, epochs)
	s.mu.Unlock()
	if err != nil {
		return neuralnet.TrainingStats{}, "", err
	}

	if s.recorder == nil {
		return stats, "", nil
	}
	id, err := s.recorder.RecordRun(ctx, stats)
	if err != nil {
		s.logger.WithError(err).Warn("training run not recorded")
		return stats, "", nil
	}
	return stats, id.String(), nil
}

func (s *Server) model(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, trained := s.service.TrainingStats()
	if !trained {
		fail(c, crowding.ErrModelNotTrained)
		return
	}
	normalizer, _ := s.service.Normalizer()
	c.JSON(http.StatusOK, gin.H{
		"stats":    stats,
		"features": normalizer.Stats(),
	})
}

type predictRequest struct {
	Date        string   `json:"date" binding:"required"`
	Temperature *float64 `json:"temperature"`
	Direction   string   `json:"direction" binding:"required"`
}

func (s *Server) predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	q := crowding.Query{Date: req.Date, Direction: req.Direction}
	if req.Temperature != nil {
		q.Temperature = *req.Temperature
	} else {
		t, err := s.lookupTemperature(c.Request.Context(), req.Date)
		if err != nil {
			fail(c, err)
			return
		}
		q.Temperature = t
	}

	s.mu.RLock()
	res, err := s.service.PredictQuery(q)
	s.mu.RUnlock()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) lookupTemperature(ctx context.Context, day string) (float64, error) {
	date, err := crowding.ParseDate(day)
	if err != nil {
		return 0, err
	}
	if s.weather == nil {
		return 0, fmt.Errorf("temperature is required: %w", crowding.ErrInvalidInput)
	}
	t, err := s.weather.DailyMeanTemperature(ctx, date)
	if err != nil && !errors.Is(err, weather.ErrUnavailable) {
		return 0, fmt.Errorf("%w: %v", weather.ErrUnavailable, err)
	}
	return t, err
}

type batchRequest struct {
	Queries []crowding.Query `json:"queries" binding:"required"`
}

func (s *Server) predictBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	s.mu.RLock()
	results, err := s.service.PredictBatch(c.Request.Context(), req.Queries)
	s.mu.RUnlock()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) summary(c *gin.Context) {
	records, err := s.loader.LoadRecords(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, crowding.Summarize(records))
}

type annotationRequest struct {
	Date        string   `json:"date" binding:"required"`
	Time        string   `json:"time"`
	Direction   string   `json:"direction" binding:"required"`
	Level       int      `json:"level" binding:"required"`
	Line        string   `json:"line"`
	Temperature *float64 `json:"temperature"`
}

var (
	errAnnotationsDisabled = fmt.Errorf("annotations are not enabled: %w", store.ErrNotFound)
	errRunsDisabled        = fmt.Errorf("training runs are not recorded: %w", store.ErrNotFound)
)

func (s *Server) addAnnotation(c *gin.Context) {
	if s.annotations == nil {
		fail(c, errAnnotationsDisabled)
		return
	}

	var req annotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	date, err := crowding.ParseDate(req.Date)
	if err != nil {
		fail(c, err)
		return
	}
	dir, err := crowding.ParseDirection(req.Direction)
	if err != nil {
		fail(c, err)
		return
	}

	a := store.Annotation{
		Date:        date,
		Time:        req.Time,
		Direction:   dir,
		Level:       req.Level,
		Line:        req.Line,
		Temperature: req.Temperature,
	}
	if err := a.Validate(); err != nil {
		fail(c, err)
		return
	}
	exists, err := s.annotations.Has(c.Request.Context(), date, dir)
	if err != nil {
		fail(c, err)
		return
	}
	if exists {
		fail(c, fmt.Errorf("%s %v: %w", req.Date, dir, store.ErrDuplicate))
		return
	}
	if a.Temperature == nil && s.weather != nil {
		if t, err := s.weather.DailyMeanTemperature(c.Request.Context(), date); err == nil {
			a.Temperature = &t
		} else {
			s.logger.WithField("date", req.Date).WithError(err).Warn("annotation stored without temperature")
		}
	}

	if err := s.annotations.Append(c.Request.Context(), a); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) listAnnotations(c *gin.Context) {
	if s.annotations == nil {
		fail(c, errAnnotationsDisabled)
		return
	}
	as, err := s.annotations.LoadAnnotations(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if as == nil {
		as = []store.Annotation{}
	}
	c.JSON(http.StatusOK, as)
}

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

func (s *Server) listRuns(c *gin.Context) {
	if s.recorder == nil {
		fail(c, errRunsDisabled)
		return
	}
	limit := defaultRunLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRunLimit {
			abort(c, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", maxRunLimit))
			return
		}
		limit = n
	}

	runs, err := s.recorder.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	if runs == nil {
		runs = []store.TrainingRun{}
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c *gin.Context) {
	if s.recorder == nil {
		fail(c, errRunsDisabled)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("run id: %w", err))
		return
	}
	run, err := s.recorder.Run(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
