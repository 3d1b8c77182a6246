package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// MockPrimaryStore is a mock implementation of PrimaryStore
type MockPrimaryStore struct {
	mock.Mock
}

func (m *MockPrimaryStore) Insert(ctx context.Context, rec models.FeedbackRecord) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

func (m *MockPrimaryStore) FindAll(ctx context.Context) ([]models.FeedbackRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeedbackRecord), args.Error(1)
}

func (m *MockPrimaryStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// failingFallback is a FallbackStore whose writes always fail
type failingFallback struct{}

func (failingFallback) Append(context.Context, models.FeedbackRecord) error {
	return errors.New("disk full")
}

func (failingFallback) Load(context.Context) ([]models.FeedbackRecord, error) {
	return nil, contextutils.ErrStorageReadFailed
}

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func TestGateway_FallbackOnly(t *testing.T) {
	store := newTestFileStore(t)
	gw := NewGateway(nil, store, true, testLogger())
	ctx := context.Background()

	assert.False(t, gw.UsingPrimary(), "nil primary can never be active")
	assert.Equal(t, BackendFile, gw.Backend())

	id, err := gw.Append(ctx, sampleRecord("2024-01-01T00:00:00.000001", 5))
	require.NoError(t, err)
	assert.True(t, id.IsAbsent())

	supplied := sampleRecord("2024-01-01T00:00:00.000002", 1)
	supplied.ID = "client-7"
	id, err = gw.Append(ctx, supplied)
	require.NoError(t, err)
	assert.Equal(t, models.SuppliedID("client-7"), id)

	records, err := gw.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-01-01T00:00:00.000002", records[0].Timestamp, "newest first")
	assert.Equal(t, "2024-01-01T00:00:00.000001", records[1].Timestamp)

	n, err := gw.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGateway_ListAllIsIdempotent(t *testing.T) {
	store := newTestFileStore(t)
	gw := NewGateway(nil, store, false, testLogger())
	ctx := context.Background()

	for _, ts := range []string{"2024-01-01T00:00:00.000001", "2024-01-01T00:00:00.000002", "2024-01-01T00:00:00.000003"} {
		_, err := gw.Append(ctx, sampleRecord(ts, 3))
		require.NoError(t, err)
	}

	first, err := gw.ListAll(ctx)
	require.NoError(t, err)
	second, err := gw.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Reversal must not leak into the stored order
	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00.000001", stored[0].Timestamp)
}

func TestGateway_EmptyFallbackListsEmpty(t *testing.T) {
	gw := NewGateway(nil, newTestFileStore(t), false, testLogger())

	records, err := gw.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestGateway_FallbackOrderedByTimestamp(t *testing.T) {
	store := newTestFileStore(t)
	gw := NewGateway(nil, store, false, testLogger())
	ctx := context.Background()

	// Append order differs from timestamp order, as with overlapping submissions
	for _, ts := range []string{
		"2024-01-01T00:00:00.000002",
		"2024-01-01T00:00:00.000001",
		"2024-01-01T00:00:00.000003",
	} {
		require.NoError(t, store.Append(ctx, sampleRecord(ts, 4)))
	}
	tied := sampleRecord("2024-01-01T00:00:00.000002", 1)
	tied.Review = "later append, same timestamp"
	require.NoError(t, store.Append(ctx, tied))

	records, err := gw.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "2024-01-01T00:00:00.000003", records[0].Timestamp)
	assert.Equal(t, "later append, same timestamp", records[1].Review)
	assert.Equal(t, "2024-01-01T00:00:00.000002", records[2].Timestamp)
	assert.Equal(t, 4, records[2].Rating)
	assert.Equal(t, "2024-01-01T00:00:00.000001", records[3].Timestamp)
}

func TestGateway_PrimaryWrite(t *testing.T) {
	primary := new(MockPrimaryStore)
	store := newTestFileStore(t)
	gw := NewGateway(primary, store, true, testLogger())
	rec := sampleRecord("2024-01-01T00:00:00.000001", 5)

	primary.On("Insert", mock.Anything, rec).Return("65a1f0c2e4b0a1b2c3d4e5f6", nil).Once()

	id, err := gw.Append(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, models.GeneratedID("65a1f0c2e4b0a1b2c3d4e5f6"), id)
	assert.Equal(t, BackendMongo, gw.Backend())

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored, "fallback untouched on primary success")
	primary.AssertExpectations(t)
}

func TestGateway_PrimaryWriteFailureDegradesPerCall(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := &observability.Logger{Logger: zap.New(core)}

	primary := new(MockPrimaryStore)
	store := newTestFileStore(t)
	gw := NewGateway(primary, store, true, logger)
	ctx := context.Background()

	failing := sampleRecord("2024-01-01T00:00:00.000001", 2)
	healthy := sampleRecord("2024-01-01T00:00:00.000002", 4)
	primary.On("Insert", mock.Anything, failing).Return("", contextutils.ErrStorageWriteFailed).Once()
	primary.On("Insert", mock.Anything, healthy).Return("65a1f0c2e4b0a1b2c3d4e5f7", nil).Once()

	id, err := gw.Append(ctx, failing)
	require.NoError(t, err)
	assert.True(t, id.IsAbsent())
	assert.Equal(t, 1, logs.FilterMessage("Primary store write failed, writing to fallback file").Len())

	// The next write tries the primary again
	assert.True(t, gw.UsingPrimary())
	id, err = gw.Append(ctx, healthy)
	require.NoError(t, err)
	assert.Equal(t, models.IdentifierGenerated, id.Kind)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, failing.Timestamp, stored[0].Timestamp)
	primary.AssertExpectations(t)
}

func TestGateway_BothBackendsFail(t *testing.T) {
	primary := new(MockPrimaryStore)
	gw := NewGateway(primary, failingFallback{}, true, testLogger())
	rec := sampleRecord("2024-01-01T00:00:00.000001", 2)

	primary.On("Insert", mock.Anything, rec).Return("", errors.New("no primary")).Once()

	_, err := gw.Append(context.Background(), rec)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeStorageWriteFailed, contextutils.GetErrorCode(err))
	assert.Contains(t, err.Error(), "no primary")
	assert.Contains(t, err.Error(), "disk full")
}

func TestGateway_FallbackWriteFailure(t *testing.T) {
	gw := NewGateway(nil, failingFallback{}, false, testLogger())

	_, err := gw.Append(context.Background(), sampleRecord("2024-01-01T00:00:00.000001", 2))
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeStorageWriteFailed, contextutils.GetErrorCode(err))
}

func TestGateway_PrimaryRead(t *testing.T) {
	primary := new(MockPrimaryStore)
	gw := NewGateway(primary, newTestFileStore(t), true, testLogger())
	want := []models.FeedbackRecord{
		sampleRecord("2024-01-02T00:00:00.000000", 5),
		sampleRecord("2024-01-01T00:00:00.000000", 1),
	}
	primary.On("FindAll", mock.Anything).Return(want, nil).Once()
	primary.On("Count", mock.Anything).Return(2, nil).Once()

	records, err := gw.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, records)

	n, err := gw.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	primary.AssertExpectations(t)
}

func TestGateway_PrimaryReadFailureServesFile(t *testing.T) {
	primary := new(MockPrimaryStore)
	store := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, sampleRecord("2024-01-01T00:00:00.000001", 1)))
	require.NoError(t, store.Append(ctx, sampleRecord("2024-01-01T00:00:00.000002", 2)))

	gw := NewGateway(primary, store, true, testLogger())
	primary.On("FindAll", mock.Anything).Return(nil, contextutils.ErrStorageReadFailed).Once()

	records, err := gw.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-01-01T00:00:00.000002", records[0].Timestamp)
}

func TestGateway_FallbackReadFailure(t *testing.T) {
	gw := NewGateway(nil, failingFallback{}, false, testLogger())

	_, err := gw.ListAll(context.Background())
	require.Error(t, err)
}

func TestManager_OpenWithoutURIUsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback_data.json")
	dm := NewManager(testLogger(), nil)

	gw, err := dm.Open(context.Background(), config.DatabaseConfig{FallbackFile: path})
	require.NoError(t, err)
	assert.False(t, gw.UsingPrimary())
	assert.Equal(t, BackendFile, gw.Backend())
	assert.Nil(t, dm.Mongo())
	assert.FileExists(t, path)
	assert.NoError(t, dm.Close(context.Background()))
}

func TestManager_OpenReadOnlyLeavesFileAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback_data.json")
	dm := NewManager(testLogger(), nil)

	gw, err := dm.OpenReadOnly(context.Background(), config.DatabaseConfig{FallbackFile: path})
	require.NoError(t, err)
	assert.Equal(t, BackendFile, gw.Backend())

	records, err := gw.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoFileExists(t, path)
}

func TestManager_OpenUnreachablePrimaryUsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback_data.json")
	dm := NewManager(testLogger(), nil)

	gw, err := dm.Open(context.Background(), config.DatabaseConfig{
		MongoDBURI:             "mongodb://127.0.0.1:1",
		Name:                   "feedback_db",
		Collection:             "feedback",
		FallbackFile:           path,
		ServerSelectionTimeout: config.AITestTimeout,
	})
	require.NoError(t, err)
	assert.False(t, gw.UsingPrimary())
	assert.FileExists(t, path)

	_, err = gw.Append(context.Background(), sampleRecord("2024-01-01T00:00:00.000001", 5))
	require.NoError(t, err)
	records, err := gw.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestManager_OpenFailsWhenFileCannotBeCreated(t *testing.T) {
	dm := NewManager(testLogger(), nil)

	_, err := dm.Open(context.Background(), config.DatabaseConfig{
		FallbackFile: filepath.Join(t.TempDir(), "missing", "feedback.json"),
	})
	require.Error(t, err)
}
