package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"buscast/crowding"
)

// JSONStore keeps annotations in a single pretty-printed JSON array.
// A missing file reads as an empty store.
type JSONStore struct {
	path   string
	logger *logrus.Logger
	mu     sync.Mutex
}

func NewJSONStore(path string, logger *logrus.Logger) *JSONStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &JSONStore{path: path, logger: logger}
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) LoadAnnotations(ctx context.Context) ([]Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *JSONStore) LoadRecords(ctx context.Context) ([]crowding.Record, error) {
	as, err := s.LoadAnnotations(ctx)
	if err != nil {
		return nil, err
	}
	records, skipped := toRecords(as)
	if skipped > 0 {
		s.logger.WithFields(logrus.Fields{
			"path":    s.path,
			"skipped": skipped,
		}).Warn("annotations without temperature left out of training")
	}
	return records, nil
}

func (s *JSONStore) Has(ctx context.Context, date time.Time, dir crowding.Direction) (bool, error) {
	as, err := s.LoadAnnotations(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range as {
		if sameSlot(a, date, dir) {
			return true, nil
		}
	}
	return false, nil
}

// Append adds a to the file unless the date and direction are already taken.
func (s *JSONStore) Append(ctx context.Context, a Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	as, err := s.read()
	if err != nil {
		return err
	}
	for _, existing := range as {
		if sameSlot(existing, a.Date, a.Direction) {
			return fmt.Errorf("%s %v: %w", a.Date.Format(crowding.DateLayout), a.Direction, ErrDuplicate)
		}
	}
	if err := s.write(append(as, a)); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"date":      a.Date.Format(crowding.DateLayout),
		"direction": a.Direction,
		"level":     a.Level,
	}).Info("annotation saved")
	return nil
}

func (s *JSONStore) Replace(ctx context.Context, as []Annotation) error {
	for i := range as {
		if err := as[i].Validate(); err != nil {
			return fmt.Errorf("annotation %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(as)
}

func (s *JSONStore) read() ([]Annotation, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var as []Annotation
	if err := json.Unmarshal(data, &as); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	for i := range as {
		if err := as[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: annotation %d: %w", s.path, i, err)
		}
	}
	return as, nil
}

// write replaces the file through a temporary sibling and a rename.
func (s *JSONStore) write(as []Annotation) error {
	if as == nil {
		as = []Annotation{}
	}
	data, err := json.MarshalIndent(as, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding annotations: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// RecordFile loads training records from a JSON array of records.
type RecordFile struct {
	Path string
}

func (f RecordFile) LoadRecords(ctx context.Context) ([]crowding.Record, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}
	var records []crowding.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.Path, err)
	}
	return records, nil
}
