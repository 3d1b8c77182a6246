package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// InvalidSubmissionMessage is the error text returned for a rejected submission
const InvalidSubmissionMessage = "Invalid rating or review"

// SubmitRequest is the body of POST /api/submit. Rating may be a JSON number or a numeric string.
type SubmitRequest struct {
	Rating json.RawMessage `json:"rating"`
	Review string          `json:"review"`
}

// SubmitResponse is returned after a submission is stored
type SubmitResponse struct {
	Success    bool   `json:"success"`
	AIResponse string `json:"ai_response"`
	ID         string `json:"id"`
}

// FeedbackListResponse wraps the records served to the admin dashboard
type FeedbackListResponse struct {
	Feedback []models.FeedbackRecord `json:"feedback"`
}

// FeedbackHandler handles feedback submission and reporting requests
type FeedbackHandler struct {
	feedbackService services.FeedbackServiceInterface
	logger          *observability.Logger
}

// NewFeedbackHandler creates a new FeedbackHandler
func NewFeedbackHandler(feedbackService services.FeedbackServiceInterface, logger *observability.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService, logger: logger}
}

// SubmitFeedback handles POST /api/submit
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_feedback")
	defer observability.FinishSpan(span, nil)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectSubmission(c, "request body is not valid JSON")
		return
	}

	rating, ok := parseRating(req.Rating)
	if !ok {
		h.rejectSubmission(c, "rating must be a whole number")
		return
	}
	span.SetAttributes(attribute.Int("feedback.rating", rating))

	// Enrichment and storage finish even if the client goes away
	result, err := h.feedbackService.Submit(context.WithoutCancel(ctx), rating, req.Review)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrInvalidInput) {
			details := ""
			var appErr *contextutils.AppError
			if contextutils.AsError(err, &appErr) {
				details = appErr.Details
			}
			h.rejectSubmission(c, details)
			return
		}
		h.logger.Error(ctx, "Error submitting feedback", err)
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, SubmitResponse{
		Success:    true,
		AIResponse: result.AIResponse,
		ID:         result.ID,
	})
}

// GetFeedback handles GET /api/feedback
func (h *FeedbackHandler) GetFeedback(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_feedback")
	defer observability.FinishSpan(span, nil)

	records, err := h.feedbackService.ListAll(ctx)
	if err != nil {
		h.logger.Error(ctx, "Error fetching feedback", err)
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, FeedbackListResponse{Feedback: records})
}

// GetStats handles GET /api/stats
func (h *FeedbackHandler) GetStats(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_stats")
	defer observability.FinishSpan(span, nil)

	stats, err := h.feedbackService.GetStats(ctx)
	if err != nil {
		h.logger.Error(ctx, "Error computing stats", err)
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *FeedbackHandler) rejectSubmission(c *gin.Context, details string) {
	StandardizeHTTPError(c, http.StatusBadRequest, InvalidSubmissionMessage, details)
}

// parseRating accepts a JSON number (fractions truncate toward zero) or a string holding
// an integer. A missing rating parses as 0 and is rejected by validation.
func parseRating(raw json.RawMessage) (int, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, true
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		if math.IsNaN(number) || math.Abs(number) > math.MaxInt32 {
			return 0, false
		}
		return int(number), true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return 0, false
		}
		return n, true
	}

	return 0, false
}
