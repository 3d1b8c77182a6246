package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"
)

// Backend names reported by Gateway.Backend
const (
	BackendMongo = "mongodb"
	BackendFile  = "file"
)

// PrimaryStore is the document store used while it is reachable.
type PrimaryStore interface {
	Insert(ctx context.Context, rec models.FeedbackRecord) (string, error)
	FindAll(ctx context.Context) ([]models.FeedbackRecord, error)
	Count(ctx context.Context) (int, error)
}

// FallbackStore is the local store used when the primary is unavailable or a write to it fails.
type FallbackStore interface {
	Append(ctx context.Context, rec models.FeedbackRecord) error
	Load(ctx context.Context) ([]models.FeedbackRecord, error)
}

// Gateway routes reads and writes to the primary or fallback store.
// Which backend is primary is decided once, at construction.
type Gateway struct {
	primary      PrimaryStore
	fallback     FallbackStore
	usingPrimary bool
	logger       *observability.Logger
	metrics      *observability.FeedbackMetrics
}

// NewGateway creates a gateway. usingPrimary is ignored when primary is nil.
func NewGateway(primary PrimaryStore, fallback FallbackStore, usingPrimary bool, logger *observability.Logger) *Gateway {
	if logger == nil {
		logger = observability.NewLogger(nil)
	}
	return &Gateway{
		primary:      primary,
		fallback:     fallback,
		usingPrimary: usingPrimary && primary != nil,
		logger:       logger,
	}
}

// WithMetrics sets the counters used to record degraded writes
func (g *Gateway) WithMetrics(metrics *observability.FeedbackMetrics) *Gateway {
	g.metrics = metrics
	return g
}

// UsingPrimary reports whether writes go to the primary store first
func (g *Gateway) UsingPrimary() bool {
	return g.usingPrimary
}

// Backend names the active backend
func (g *Gateway) Backend() string {
	if g.usingPrimary {
		return BackendMongo
	}
	return BackendFile
}

// Append persists rec and reports the identifier the storing backend assigned or kept.
// A failed primary write is retried once on the fallback store for this call only.
func (g *Gateway) Append(ctx context.Context, rec models.FeedbackRecord) (result0 models.Identifier, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "Gateway.Append",
		observability.AttributeBackend(g.Backend()),
	)
	defer observability.FinishSpan(span, &err)

	if !g.usingPrimary {
		if err := g.fallback.Append(ctx, rec); err != nil {
			return models.AbsentID(), contextutils.NewAppErrorWithCause(
				contextutils.ErrorCodeStorageWriteFailed,
				contextutils.SeverityError,
				"failed to store feedback",
				err.Error(),
				err,
			)
		}
		return models.IdentifierFor(rec.ID), nil
	}

	id, primaryErr := g.primary.Insert(ctx, rec)
	if primaryErr == nil {
		return models.GeneratedID(id), nil
	}

	g.logger.Warn(ctx, "Primary store write failed, writing to fallback file", map[string]interface{}{
		"error": primaryErr.Error(),
	})
	g.metrics.RecordDegradedWrite(ctx)

	if fallbackErr := g.fallback.Append(ctx, rec); fallbackErr != nil {
		return models.AbsentID(), contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeStorageWriteFailed,
			contextutils.SeverityError,
			"failed to store feedback",
			fmt.Sprintf("primary: %v; fallback: %v", primaryErr, fallbackErr),
			errors.Join(primaryErr, fallbackErr),
		)
	}
	return models.IdentifierFor(rec.ID), nil
}

// ListAll returns every stored record, newest first, whichever backend holds them.
// A failed primary read is served from the fallback file.
func (g *Gateway) ListAll(ctx context.Context) (result0 []models.FeedbackRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "Gateway.ListAll",
		observability.AttributeBackend(g.Backend()),
	)
	defer observability.FinishSpan(span, &err)

	if g.usingPrimary {
		records, err := g.primary.FindAll(ctx)
		if err == nil {
			return records, nil
		}
		g.logger.Warn(ctx, "Primary store read failed, reading fallback file", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return g.loadFallbackNewestFirst(ctx)
}

// Count returns the number of stored records on the active backend
func (g *Gateway) Count(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "Gateway.Count",
		observability.AttributeBackend(g.Backend()),
	)
	defer observability.FinishSpan(span, &err)

	if g.usingPrimary {
		return g.primary.Count(ctx)
	}
	records, err := g.fallback.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// loadFallbackNewestFirst orders the fallback by descending timestamp. Records with equal
// timestamps keep reverse append order.
func (g *Gateway) loadFallbackNewestFirst(ctx context.Context) ([]models.FeedbackRecord, error) {
	records, err := g.fallback.Load(ctx)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read feedback")
	}
	out := slices.Clone(records)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b models.FeedbackRecord) int {
		return strings.Compare(b.Timestamp, a.Timestamp)
	})
	if out == nil {
		out = []models.FeedbackRecord{}
	}
	return out, nil
}
