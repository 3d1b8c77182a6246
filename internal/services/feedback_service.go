package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Submission outcomes recorded in metrics
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// FeedbackRepository is the persistence the ingestion pipeline writes to and reads from.
// database.Gateway implements it.
type FeedbackRepository interface {
	Append(ctx context.Context, rec models.FeedbackRecord) (models.Identifier, error)
	ListAll(ctx context.Context) ([]models.FeedbackRecord, error)
}

// FeedbackServiceInterface defines the feedback ingestion and reporting operations
type FeedbackServiceInterface interface {
	Submit(ctx context.Context, rating int, review string) (*models.SubmissionResult, error)
	ListAll(ctx context.Context) ([]models.FeedbackRecord, error)
	GetStats(ctx context.Context) (*models.StatsSummary, error)
}

// FeedbackService validates, enriches and stores feedback submissions.
type FeedbackService struct {
	enrichment EnrichmentServiceInterface
	repo       FeedbackRepository
	clock      *models.Clock
	logger     *observability.Logger
	metrics    *observability.FeedbackMetrics
}

// NewFeedbackService creates a new FeedbackService instance.
func NewFeedbackService(enrichment EnrichmentServiceInterface, repo FeedbackRepository, clock *models.Clock, logger *observability.Logger, metrics *observability.FeedbackMetrics) *FeedbackService {
	if enrichment == nil {
		panic("NewFeedbackService: enrichment is nil")
	}
	if repo == nil {
		panic("NewFeedbackService: repo is nil")
	}
	if logger == nil {
		panic("NewFeedbackService: logger is nil")
	}
	if clock == nil {
		clock = models.NewClock(nil)
	}
	return &FeedbackService{
		enrichment: enrichment,
		repo:       repo,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Submit validates the input, enriches it, stores the record and returns its identifier
// together with the customer-facing reply.
func (s *FeedbackService) Submit(ctx context.Context, rating int, review string) (result0 *models.SubmissionResult, err error) {
	review = strings.TrimSpace(review)
	ctx, span := observability.TraceFeedbackFunction(ctx, "Submit",
		observability.AttributeRating(rating),
		observability.AttributeReviewLength(review),
	)
	defer observability.FinishSpan(span, &err)

	if err := contextutils.ValidateStruct(models.SubmissionInput{Rating: rating, Review: review}); err != nil {
		s.metrics.RecordSubmission(ctx, OutcomeInvalid)
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic during submission: %v", r)
			s.logger.Error(ctx, "Recovered from panic while storing feedback", panicErr, map[string]interface{}{
				"stack": string(debug.Stack()),
			})
			result0 = nil
			err = internalError(panicErr)
		}
		if err != nil {
			s.metrics.RecordSubmission(ctx, OutcomeError)
		} else {
			s.metrics.RecordSubmission(ctx, OutcomeSuccess)
		}
	}()

	enrichment := s.enrichment.Enrich(ctx, rating, review)

	rec := models.FeedbackRecord{
		Timestamp:         s.clock.Timestamp(),
		Rating:            rating,
		Review:            review,
		AIResponse:        enrichment.AIResponse,
		Summary:           enrichment.Summary,
		RecommendedAction: enrichment.RecommendedAction,
	}

	id, err := s.repo.Append(ctx, rec)
	if err != nil {
		s.logger.Error(ctx, "Failed to store feedback", err, map[string]interface{}{
			"rating": rating,
		})
		return nil, internalError(err)
	}

	span.SetAttributes(
		observability.AttributeRecordID(id.String()),
		attribute.String("feedback.id_kind", id.Kind.String()),
	)
	s.logger.Info(ctx, "Feedback stored", map[string]interface{}{
		"id":      id.String(),
		"id_kind": id.Kind.String(),
		"rating":  rating,
	})

	return &models.SubmissionResult{
		ID:         id.String(),
		AIResponse: rec.AIResponse,
	}, nil
}

// ListAll returns every stored record, newest first
func (s *FeedbackService) ListAll(ctx context.Context) (result0 []models.FeedbackRecord, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "ListAll")
	defer observability.FinishSpan(span, &err)

	records, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error(ctx, "Failed to list feedback", err)
		return nil, internalError(err)
	}
	if records == nil {
		records = []models.FeedbackRecord{}
	}
	span.SetAttributes(attribute.Int("feedback.count", len(records)))
	return records, nil
}

// GetStats summarises every stored record
func (s *FeedbackService) GetStats(ctx context.Context) (result0 *models.StatsSummary, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "GetStats")
	defer observability.FinishSpan(span, &err)

	records, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error(ctx, "Failed to read feedback for stats", err)
		return nil, internalError(err)
	}
	stats := models.ComputeStats(records)
	span.SetAttributes(
		attribute.Int("feedback.count", stats.Total),
		attribute.Float64("feedback.average_rating", stats.AverageRating),
	)
	return stats, nil
}

// internalError reports err as an internal error carrying the underlying message
func internalError(err error) error {
	return contextutils.NewAppErrorWithCause(
		contextutils.ErrorCodeInternalError,
		contextutils.SeverityError,
		err.Error(),
		"",
		err,
	)
}
