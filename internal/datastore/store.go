package datastore

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/rcanpahali/BirdNet/internal/conf"
	"github.com/rcanpahali/BirdNet/internal/errors"
	"github.com/rcanpahali/BirdNet/internal/logger"
	"github.com/rcanpahali/BirdNet/internal/observability/metrics"
)

const (
	// DefaultListLimit is used when ListAnalyses is called with a non-positive limit.
	DefaultListLimit = 20
	// MaxListLimit caps ListAnalyses.
	MaxListLimit = 100

	// detectionBatchSize keeps each detection INSERT well below the bind
	// variable limits of SQLite and MySQL.
	detectionBatchSize = 100
)

// detectionCounter is implemented by recorders that track stored detection rows.
type detectionCounter interface {
	RecordDetectionsStored(n int)
}

// Store is the persistence store for analyses and detections. It is created
// once at startup and shared by all requests.
type Store struct {
	manager Manager
	db      *gorm.DB
	metrics metrics.Recorder

	// SQLite allows a single writer; serializing here avoids busy retries
	// under concurrent ingests. MySQL relies on its own transaction isolation.
	writeMu        sync.Mutex
	serializeWrite bool
}

// Open creates the manager for settings, applies the schema and returns the
// store. A failure here means the service has no durable storage.
func Open(settings *conf.DatabaseSettings, recorder metrics.Recorder) (*Store, error) {
	manager, err := NewManager(settings)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := manager.Initialize(); err != nil {
		_ = manager.Close()
		return nil, err
	}
	s := NewStore(manager, recorder)
	s.observe(metrics.OpMigrate, start, nil)

	GetLogger().Info("datastore initialized",
		logger.String("backend", settings.Type),
		logger.String("location", manager.Path()))
	return s, nil
}

// NewStore wraps an initialized manager.
func NewStore(manager Manager, recorder metrics.Recorder) *Store {
	return &Store{
		manager:        manager,
		db:             manager.DB(),
		metrics:        metrics.OrNoOp(recorder),
		serializeWrite: !manager.IsMySQL(),
	}
}

// Location returns the database location for logging.
func (s *Store) Location() string {
	return s.manager.Path()
}

// RecordAnalysis inserts one analysis and all of its detections in a single
// transaction and returns the new analysis id. Optional numeric fields are
// normalized; if any insert fails no rows are committed.
func (s *Store) RecordAnalysis(ctx context.Context, in AnalysisInput, detections []Detection) (uint, error) {
	if s.serializeWrite {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}

	start := time.Now()
	analysis := Analysis{
		Filename: in.Filename,
		MimeType: in.MimeType,
		FileSize: max(in.FileSize, 0),
		Lat:      NormalizeOptional(in.Lat),
		Lon:      NormalizeOptional(in.Lon),
		MinConf:  NormalizeOptional(in.MinConf),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Detections").Create(&analysis).Error; err != nil {
			return err
		}
		if len(detections) == 0 {
			return nil
		}

		rows := make([]Detection, len(detections))
		for i := range detections {
			rows[i] = detections[i]
			rows[i].ID = 0
			rows[i].AnalysisID = analysis.ID
		}
		return tx.CreateInBatches(&rows, detectionBatchSize).Error
	})
	if err != nil {
		err = dbError(err, metrics.OpRecordAnalysis,
			"filename", in.Filename,
			"detection_count", len(detections))
		s.observe(metrics.OpRecordAnalysis, start, err)
		return 0, err
	}

	s.observe(metrics.OpRecordAnalysis, start, nil)
	if dc, ok := s.metrics.(detectionCounter); ok {
		dc.RecordDetectionsStored(len(detections))
	}
	return analysis.ID, nil
}

// GetAnalysis returns one analysis with its detections, or an error matching
// ErrAnalysisNotFound.
func (s *Store) GetAnalysis(ctx context.Context, id uint) (*Analysis, error) {
	start := time.Now()

	var analysis Analysis
	err := s.db.WithContext(ctx).
		Preload("Detections", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&analysis, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.observe(metrics.OpGetAnalysis, start, nil)
			return nil, notFoundError(metrics.OpGetAnalysis, id)
		}
		err = dbError(err, metrics.OpGetAnalysis, "analysis_id", id)
		s.observe(metrics.OpGetAnalysis, start, err)
		return nil, err
	}

	s.observe(metrics.OpGetAnalysis, start, nil)
	return &analysis, nil
}

// ListAnalyses returns the most recent analyses, newest first, with their
// detections. limit is clamped to [1, MaxListLimit]; zero means DefaultListLimit.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]Analysis, error) {
	start := time.Now()

	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	analyses := make([]Analysis, 0, limit)
	err := s.db.WithContext(ctx).
		Preload("Detections", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("id DESC").
		Limit(limit).
		Find(&analyses).Error
	if err != nil {
		err = dbError(err, metrics.OpListAnalyses, "limit", limit)
		s.observe(metrics.OpListAnalyses, start, err)
		return nil, err
	}

	s.observe(metrics.OpListAnalyses, start, nil)
	return analyses, nil
}

// DeleteAnalysis removes an analysis; its detections are removed by the
// cascading foreign key.
func (s *Store) DeleteAnalysis(ctx context.Context, id uint) error {
	if s.serializeWrite {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}

	start := time.Now()
	result := s.db.WithContext(ctx).Delete(&Analysis{}, id)
	if result.Error != nil {
		err := dbError(result.Error, metrics.OpDeleteAnalysis, "analysis_id", id)
		s.observe(metrics.OpDeleteAnalysis, start, err)
		return err
	}
	s.observe(metrics.OpDeleteAnalysis, start, nil)

	if result.RowsAffected == 0 {
		return notFoundError(metrics.OpDeleteAnalysis, id)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.manager.Close()
}

func (s *Store) observe(operation string, start time.Time, err error) {
	s.metrics.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordOperation(operation, metrics.StatusError)
		s.metrics.RecordError(operation, string(errors.CategoryDatabase))
		return
	}
	s.metrics.RecordOperation(operation, metrics.StatusSuccess)
}
