package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"buscast/crowding"
	"buscast/internal/config"
	"buscast/internal/store"
)

// openAnnotations returns the annotation store selected by cfg: Postgres when a
// URL is configured, otherwise the JSON file at cfg.DataPath. Training runs are
// only recorded with Postgres; the recorder is nil otherwise.
func openAnnotations(ctx context.Context, cfg config.Config, logger *logrus.Logger) (store.AnnotationStore, store.TrainingRecorder, func(), error) {
	if cfg.PostgresURL == "" {
		return store.NewJSONStore(cfg.DataPath, logger), nil, func() {}, nil
	}
	db, err := store.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return store.NewPostgresStore(db, logger), store.NewPostgresTrainingRecorder(db), func() { db.Close() }, nil
}

// annotationKeys only appear in annotation files. Record files carry
// "crowdingLevel" or "livelloAffollamento" with a temperature on every entry.
var annotationKeys = []string{"level", "time", "line", "orario", "linea"}

// loaderForFile picks how to read path from the keys of its first entry.
func loaderForFile(path string, logger *logrus.Logger) (store.RecordLoader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []map[string]json.RawMessage
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if len(entries) > 0 {
		for _, key := range annotationKeys {
			if _, ok := entries[0][key]; ok {
				return store.NewJSONStore(path, logger), nil
			}
		}
	}
	return store.RecordFile{Path: path}, nil
}

func loadRecords(ctx context.Context, path string, logger *logrus.Logger) ([]crowding.Record, error) {
	loader, err := loaderForFile(path, logger)
	if err != nil {
		return nil, err
	}
	records, err := loader.LoadRecords(ctx)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"path":    path,
		"records": len(records),
	}).Info("records loaded")
	return records, nil
}
