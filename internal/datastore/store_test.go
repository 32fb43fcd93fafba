package datastore

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rcanpahali/BirdNet/internal/conf"
	"github.com/rcanpahali/BirdNet/internal/errors"
	"github.com/rcanpahali/BirdNet/internal/observability/metrics"
)

func ptr(f float64) *float64 { return &f }

// newTestStore opens a SQLite store in a fresh temp dir.
func newTestStore(t *testing.T) (*Store, *metrics.TestRecorder) {
	t.Helper()
	recorder := metrics.NewTestRecorder()
	store, err := Open(&conf.DatabaseSettings{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "nested", "dir", "birdnet.db"),
	}, recorder)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, recorder
}

func sparrow() Detection {
	return Detection{
		CommonName:     "House Sparrow",
		ScientificName: "Passer domesticus",
		Confidence:     0.87,
		StartTime:      0.0,
		EndTime:        3.0,
	}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestRecordAnalysisPersistsRows(t *testing.T) {
	t.Parallel()
	store, recorder := newTestStore(t)
	ctx := context.Background()

	robin := Detection{CommonName: "American Robin", ScientificName: "Turdus migratorius", Confidence: 0.64, StartTime: 3, EndTime: 6}
	id, err := store.RecordAnalysis(ctx, AnalysisInput{
		Filename: "sparrow.wav",
		MimeType: "audio/wav",
		FileSize: 120_000,
		Lat:      ptr(35.4244),
		Lon:      ptr(-120.7463),
	}, []Detection{sparrow(), robin})
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := store.GetAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "sparrow.wav", got.Filename)
	assert.Equal(t, "audio/wav", got.MimeType)
	assert.Equal(t, int64(120_000), got.FileSize)
	require.NotNil(t, got.Lat)
	require.NotNil(t, got.Lon)
	assert.InDelta(t, 35.4244, *got.Lat, 1e-9)
	assert.InDelta(t, -120.7463, *got.Lon, 1e-9)
	assert.Nil(t, got.MinConf)
	assert.False(t, got.CreatedAt.IsZero())

	require.Len(t, got.Detections, 2)
	assert.Equal(t, "House Sparrow", got.Detections[0].CommonName)
	assert.Equal(t, "Turdus migratorius", got.Detections[1].ScientificName)
	assert.Equal(t, id, got.Detections[0].AnalysisID)

	assert.Equal(t, 1, recorder.GetOperationCount(metrics.OpRecordAnalysis, metrics.StatusSuccess))
	assert.Equal(t, 1, recorder.GetOperationCount(metrics.OpMigrate, metrics.StatusSuccess))
}

func TestRecordAnalysisDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	in := []Detection{sparrow()}
	_, err := store.RecordAnalysis(context.Background(), AnalysisInput{Filename: "a.wav"}, in)
	require.NoError(t, err)
	assert.Zero(t, in[0].ID)
	assert.Zero(t, in[0].AnalysisID)
}

func TestRecordAnalysisStoresNonFiniteAsNull(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordAnalysis(ctx, AnalysisInput{
		Filename: "noise.wav",
		Lat:      ptr(math.NaN()),
		Lon:      ptr(math.Inf(1)),
		MinConf:  ptr(0),
	}, nil)
	require.NoError(t, err)

	var lat, lon, minConf *float64
	row := store.db.Raw("SELECT lat, lon, min_conf FROM analyses WHERE id = ?", id).Row()
	require.NoError(t, row.Scan(&lat, &lon, &minConf))
	assert.Nil(t, lat)
	assert.Nil(t, lon)
	require.NotNil(t, minConf, "zero is a value, not absence")
	assert.Zero(t, *minConf)
}

func TestRecordAnalysisRollsBackOnDetectionFailure(t *testing.T) {
	t.Parallel()
	store, recorder := newTestStore(t)

	require.NoError(t, store.db.Callback().Create().Before("gorm:create").Register("test:fail_detections", func(tx *gorm.DB) {
		if tx.Statement.Table == "detections" {
			_ = tx.AddError(errors.NewStd("disk I/O error"))
		}
	}))

	_, err := store.RecordAnalysis(context.Background(), AnalysisInput{Filename: "a.wav"}, []Detection{sparrow()})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))

	assert.Zero(t, countRows(t, store.db, &Analysis{}))
	assert.Zero(t, countRows(t, store.db, &Detection{}))
	assert.Equal(t, 1, recorder.GetOperationCount(metrics.OpRecordAnalysis, metrics.StatusError))
}

func TestRecordAnalysisLargeDetectionSet(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	const n = 6500
	detections := make([]Detection, n)
	for i := range detections {
		detections[i] = sparrow()
		detections[i].StartTime = float64(i * 3)
		detections[i].EndTime = float64(i*3 + 3)
	}

	id, err := store.RecordAnalysis(context.Background(), AnalysisInput{Filename: "long.flac"}, detections)
	require.NoError(t, err)
	require.NotZero(t, id)

	assert.Equal(t, int64(1), countRows(t, store.db, &Analysis{}))
	assert.Equal(t, int64(n), countRows(t, store.db, &Detection{}))

	got, err := store.GetAnalysis(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, got.Detections, n)
}

func TestDeleteAnalysisCascades(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	keep, err := store.RecordAnalysis(ctx, AnalysisInput{Filename: "keep.wav"}, []Detection{sparrow()})
	require.NoError(t, err)
	drop, err := store.RecordAnalysis(ctx, AnalysisInput{Filename: "drop.wav"}, []Detection{sparrow(), sparrow(), sparrow()})
	require.NoError(t, err)

	require.NoError(t, store.DeleteAnalysis(ctx, drop))

	assert.Equal(t, int64(1), countRows(t, store.db, &Detection{}))
	remaining, err := store.GetAnalysis(ctx, keep)
	require.NoError(t, err)
	assert.Len(t, remaining.Detections, 1)

	err = store.DeleteAnalysis(ctx, drop)
	require.ErrorIs(t, err, ErrAnalysisNotFound)
}

func TestGetAnalysisNotFound(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	_, err := store.GetAnalysis(context.Background(), 4242)
	require.ErrorIs(t, err, ErrAnalysisNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestListAnalysesNewestFirst(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"first.wav", "second.wav", "third.wav"} {
		_, err := store.RecordAnalysis(ctx, AnalysisInput{Filename: name}, []Detection{sparrow()})
		require.NoError(t, err)
	}

	got, err := store.ListAnalyses(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third.wav", got[0].Filename)
	assert.Equal(t, "second.wav", got[1].Filename)
	assert.Len(t, got[0].Detections, 1)

	all, err := store.ListAnalyses(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInitializeIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "birdnet.db")
	settings := &conf.DatabaseSettings{Type: "sqlite", Path: path}
	ctx := context.Background()

	first, err := Open(settings, nil)
	require.NoError(t, err)
	id, err := first.RecordAnalysis(ctx, AnalysisInput{Filename: "a.wav"}, []Detection{sparrow()})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	require.NoError(t, second.manager.Initialize())

	got, err := second.GetAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Detections, 1)

	var tables int64
	require.NoError(t, second.db.Raw(
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('analyses', 'detections')").
		Scan(&tables).Error)
	assert.Equal(t, int64(2), tables)
}

func TestConcurrentRecordsDoNotInterleave(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	const perAnalysis = 5

	ids := make([]uint, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Go(func() {
			dets := make([]Detection, perAnalysis)
			for j := range dets {
				dets[j] = sparrow()
			}
			id, err := store.RecordAnalysis(ctx, AnalysisInput{Filename: "concurrent.wav"}, dets)
			if err != nil {
				t.Errorf("RecordAnalysis: %v", err)
				return
			}
			ids[i] = id
		})
	}
	wg.Wait()

	for _, id := range ids {
		got, err := store.GetAnalysis(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.Detections, perAnalysis)
	}
}

func TestNewManagerRejectsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewManager(&conf.DatabaseSettings{Type: "postgres"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = NewSQLiteManager("  ")
	require.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	dsn := mysqlDSN(&conf.MySQLSettings{
		Host:     "db.internal",
		Port:     3307,
		Username: "birdnet",
		Password: "p@ss:word/1",
		Database: "birds",
	})
	assert.Contains(t, dsn, "birdnet:p@ss:word/1@tcp(db.internal:3307)/birds?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	assert.Contains(t, mysqlDSN(&conf.MySQLSettings{Host: "db"}), "tcp(db:3306)")
}

// closingPool is a ConnPool that is not a *sql.DB, so gorm cannot hand out
// the underlying handle.
type closingPool struct {
	gorm.ConnPool
	closed bool
}

func (p *closingPool) Close() error {
	p.closed = true
	return nil
}

func TestTuneMySQLPoolClosesHandleOnFailure(t *testing.T) {
	t.Parallel()

	pool := &closingPool{}
	db := &gorm.DB{Config: &gorm.Config{ConnPool: pool}}

	err := tuneMySQLPool(db)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
	assert.True(t, pool.closed, "handle must be closed when the pool is unreachable")
}
