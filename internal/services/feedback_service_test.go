package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"feedbackapp/internal/database"
	"feedbackapp/internal/models"
	contextutils "feedbackapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEnrichmentService is a mock implementation of EnrichmentServiceInterface
type MockEnrichmentService struct {
	mock.Mock
}

func (m *MockEnrichmentService) GenerateReply(ctx context.Context, rating int, review string) string {
	return m.Called(ctx, rating, review).String(0)
}

func (m *MockEnrichmentService) GenerateSummary(ctx context.Context, review string) string {
	return m.Called(ctx, review).String(0)
}

func (m *MockEnrichmentService) GenerateRecommendedAction(ctx context.Context, rating int, review string) string {
	return m.Called(ctx, rating, review).String(0)
}

func (m *MockEnrichmentService) Enrich(ctx context.Context, rating int, review string) models.Enrichment {
	return m.Called(ctx, rating, review).Get(0).(models.Enrichment)
}

// MockFeedbackRepository is a mock implementation of FeedbackRepository
type MockFeedbackRepository struct {
	mock.Mock
}

func (m *MockFeedbackRepository) Append(ctx context.Context, rec models.FeedbackRecord) (models.Identifier, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(models.Identifier), args.Error(1)
}

func (m *MockFeedbackRepository) ListAll(ctx context.Context) ([]models.FeedbackRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeedbackRecord), args.Error(1)
}

func fixedClock() *models.Clock {
	t := time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.Local)
	return models.NewClock(func() time.Time { return t })
}

var sampleEnrichment = models.Enrichment{
	AIResponse:        "Thank you for the great review!",
	Summary:           "Customer loved the pasta.",
	RecommendedAction: "Feature the review on the website.",
}

func TestFeedbackService_Submit(t *testing.T) {
	enrich := new(MockEnrichmentService)
	repo := new(MockFeedbackRepository)
	svc := NewFeedbackService(enrich, repo, fixedClock(), testLogger(), nil)

	enrich.On("Enrich", mock.Anything, 5, "Loved the pasta").Return(sampleEnrichment).Once()
	repo.On("Append", mock.Anything, models.FeedbackRecord{
		Timestamp:         "2024-03-01T12:30:45.123456",
		Rating:            5,
		Review:            "Loved the pasta",
		AIResponse:        sampleEnrichment.AIResponse,
		Summary:           sampleEnrichment.Summary,
		RecommendedAction: sampleEnrichment.RecommendedAction,
	}).Return(models.GeneratedID("65a1f0c2e4b0a1b2c3d4e5f6"), nil).Once()

	result, err := svc.Submit(context.Background(), 5, "  Loved the pasta \n")
	require.NoError(t, err)
	assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", result.ID)
	assert.Equal(t, sampleEnrichment.AIResponse, result.AIResponse)
	enrich.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestFeedbackService_SubmitAbsentID(t *testing.T) {
	enrich := new(MockEnrichmentService)
	repo := new(MockFeedbackRepository)
	svc := NewFeedbackService(enrich, repo, fixedClock(), testLogger(), nil)

	enrich.On("Enrich", mock.Anything, 3, "ok").Return(sampleEnrichment).Once()
	repo.On("Append", mock.Anything, mock.Anything).Return(models.AbsentID(), nil).Once()

	result, err := svc.Submit(context.Background(), 3, "ok")
	require.NoError(t, err)
	assert.Equal(t, "", result.ID)
}

func TestFeedbackService_SubmitInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		rating int
		review string
	}{
		{"rating too low", 0, "fine"},
		{"rating too high", 6, "fine"},
		{"negative rating", -1, "fine"},
		{"empty review", 3, ""},
		{"whitespace review", 3, "   \t\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enrich := new(MockEnrichmentService)
			repo := new(MockFeedbackRepository)
			svc := NewFeedbackService(enrich, repo, fixedClock(), testLogger(), nil)

			result, err := svc.Submit(context.Background(), tt.rating, tt.review)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
			enrich.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		})
	}
}

func TestFeedbackService_SubmitStorageFailure(t *testing.T) {
	enrich := new(MockEnrichmentService)
	repo := new(MockFeedbackRepository)
	svc := NewFeedbackService(enrich, repo, fixedClock(), testLogger(), nil)

	enrich.On("Enrich", mock.Anything, 4, "Nice").Return(sampleEnrichment).Once()
	repo.On("Append", mock.Anything, mock.Anything).Return(models.AbsentID(), errors.New("disk full")).Once()

	result, err := svc.Submit(context.Background(), 4, "Nice")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, contextutils.ErrorCodeInternalError, contextutils.GetErrorCode(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestFeedbackService_SubmitRecoversPanic(t *testing.T) {
	enrich := new(MockEnrichmentService)
	repo := new(MockFeedbackRepository)
	svc := NewFeedbackService(enrich, repo, fixedClock(), testLogger(), nil)

	enrich.On("Enrich", mock.Anything, 4, "Nice").Return(sampleEnrichment).Once()
	repo.On("Append", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(models.AbsentID(), nil).Once()

	result, err := svc.Submit(context.Background(), 4, "Nice")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, contextutils.ErrorCodeInternalError, contextutils.GetErrorCode(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestFeedbackService_ListAllAndStats(t *testing.T) {
	repo := new(MockFeedbackRepository)
	svc := NewFeedbackService(new(MockEnrichmentService), repo, nil, testLogger(), nil)
	records := []models.FeedbackRecord{
		{Timestamp: "2024-01-03T00:00:00.000000", Rating: 5},
		{Timestamp: "2024-01-02T00:00:00.000000", Rating: 5},
		{Timestamp: "2024-01-01T00:00:00.000000", Rating: 1},
	}
	repo.On("ListAll", mock.Anything).Return(records, nil)

	got, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records, got)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.TotalReviews)
	assert.Equal(t, 3.67, stats.AverageRating)
	assert.Equal(t, map[string]int{"1": 1, "2": 0, "3": 0, "4": 0, "5": 2}, stats.RatingDistribution)
}

func TestFeedbackService_EmptyStore(t *testing.T) {
	repo := new(MockFeedbackRepository)
	svc := NewFeedbackService(new(MockEnrichmentService), repo, nil, testLogger(), nil)
	repo.On("ListAll", mock.Anything).Return(nil, nil)

	got, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.AverageRating)
	assert.Len(t, stats.RatingDistribution, 5)
}

func TestFeedbackService_ReadFailure(t *testing.T) {
	repo := new(MockFeedbackRepository)
	svc := NewFeedbackService(new(MockEnrichmentService), repo, nil, testLogger(), nil)
	repo.On("ListAll", mock.Anything).Return(nil, contextutils.ErrStorageReadFailed)

	_, err := svc.ListAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeInternalError, contextutils.GetErrorCode(err))

	_, err = svc.GetStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeInternalError, contextutils.GetErrorCode(err))
}

func TestFeedbackService_WithFileBackend(t *testing.T) {
	ctx := context.Background()
	store := database.NewFileStore(filepath.Join(t.TempDir(), "feedback_data.json"), testLogger())
	gw := database.NewGateway(nil, store, false, testLogger())
	enrichment, err := NewEnrichmentService(nil, testLogger(), nil)
	require.NoError(t, err)
	svc := NewFeedbackService(enrichment, gw, nil, testLogger(), nil)

	first, err := svc.Submit(ctx, 2, "Cold soup")
	require.NoError(t, err)
	assert.Equal(t, "", first.ID)
	assert.Equal(t, FallbackReply, first.AIResponse)

	_, err = svc.Submit(ctx, 5, "Great dessert")
	require.NoError(t, err)

	records, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Great dessert", records[0].Review)
	assert.Equal(t, "Cold soup", records[1].Review)
	assert.Equal(t, FallbackActionNegative, records[1].RecommendedAction)
	assert.Equal(t, "Cold soup", records[1].Summary)
	assert.GreaterOrEqual(t, records[0].Timestamp, records[1].Timestamp)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.5, stats.AverageRating)
}

// slowFallback delays appends of one review so a later submission reaches the file first
type slowFallback struct {
	*database.FileStore
	slowReview string
	delay      time.Duration
}

func (s *slowFallback) Append(ctx context.Context, rec models.FeedbackRecord) error {
	if rec.Review == s.slowReview {
		time.Sleep(s.delay)
	}
	return s.FileStore.Append(ctx, rec)
}

func TestFeedbackService_OverlappingSubmissionsListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := database.NewFileStore(filepath.Join(t.TempDir(), "feedback_data.json"), testLogger())
	gw := database.NewGateway(nil, &slowFallback{FileStore: store, slowReview: "first", delay: 200 * time.Millisecond}, false, testLogger())
	enrichment, err := NewEnrichmentService(nil, testLogger(), nil)
	require.NoError(t, err)
	svc := NewFeedbackService(enrichment, gw, nil, testLogger(), nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Submit(ctx, 5, "first")
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		_, err := svc.Submit(ctx, 4, "second")
		assert.NoError(t, err)
	}()
	wg.Wait()

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "second", stored[0].Review, "file order differs from timestamp order")

	records, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].Review)
	assert.Equal(t, "first", records[1].Review)
	assert.Greater(t, records[0].Timestamp, records[1].Timestamp)
}
