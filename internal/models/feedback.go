package models

import (
	"math"
	"strconv"
	"sync"
	"time"
)

// TimestampLayout is the stored timestamp format: local time with microseconds and no zone,
// so records sort lexicographically in ingestion order.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// FeedbackRecord represents one enriched feedback submission as it is stored and served.
type FeedbackRecord struct {
	ID                string `json:"id,omitempty"`
	Timestamp         string `json:"timestamp"`
	Rating            int    `json:"rating"`
	Review            string `json:"review"`
	AIResponse        string `json:"ai_response"`
	Summary           string `json:"summary"`
	RecommendedAction string `json:"recommended_action"`
}

// SubmissionInput is the validated input of a feedback submission.
type SubmissionInput struct {
	Rating int    `json:"rating" validate:"min=1,max=5"`
	Review string `json:"review" validate:"required"`
}

// SubmissionResult is returned to the submitter once the record is stored.
type SubmissionResult struct {
	ID         string `json:"id"`
	AIResponse string `json:"ai_response"`
}

// Enrichment holds the three generated fields attached to a record.
type Enrichment struct {
	AIResponse        string `json:"ai_response"`
	Summary           string `json:"summary"`
	RecommendedAction string `json:"recommended_action"`
}

// IdentifierKind tells where a record identifier came from.
type IdentifierKind int

const (
	// IdentifierAbsent means the record was stored without an identifier
	IdentifierAbsent IdentifierKind = iota
	// IdentifierGenerated means the primary store generated the identifier
	IdentifierGenerated
	// IdentifierSupplied means the caller's identifier was kept by the fallback store
	IdentifierSupplied
)

// String returns the kind name used in logs
func (k IdentifierKind) String() string {
	switch k {
	case IdentifierGenerated:
		return "generated"
	case IdentifierSupplied:
		return "supplied"
	default:
		return "absent"
	}
}

// Identifier is the identifier a storage backend reports for an appended record.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// GeneratedID returns an identifier created by the store.
func GeneratedID(value string) Identifier {
	return Identifier{Kind: IdentifierGenerated, Value: value}
}

// SuppliedID returns an identifier that came with the record.
func SuppliedID(value string) Identifier {
	return Identifier{Kind: IdentifierSupplied, Value: value}
}

// AbsentID returns the identifier of a record stored without one.
func AbsentID() Identifier {
	return Identifier{Kind: IdentifierAbsent}
}

// IdentifierFor returns SuppliedID(id) for a non-empty id and AbsentID otherwise.
func IdentifierFor(id string) Identifier {
	if id == "" {
		return AbsentID()
	}
	return SuppliedID(id)
}

// String returns the identifier as a plain string; absent identifiers are empty.
func (i Identifier) String() string {
	if i.Kind == IdentifierAbsent {
		return ""
	}
	return i.Value
}

// IsAbsent reports whether no identifier exists
func (i Identifier) IsAbsent() bool {
	return i.Kind == IdentifierAbsent
}

// Rating bounds accepted on submission
const (
	MinRating = 1
	MaxRating = 5
)

// StatsSummary is the aggregate view over all stored records.
type StatsSummary struct {
	Total              int            `json:"total"`
	AverageRating      float64        `json:"average_rating"`
	RatingDistribution map[string]int `json:"rating_distribution"`
	TotalReviews       int            `json:"total_reviews"`
}

// ComputeStats aggregates records into a StatsSummary. Every rating bucket "1".."5" is present,
// and the average is rounded to two decimals. Ratings outside 1..5 count toward the total and
// average but not toward any bucket.
func ComputeStats(records []FeedbackRecord) *StatsSummary {
	stats := &StatsSummary{RatingDistribution: make(map[string]int, MaxRating)}
	for r := MinRating; r <= MaxRating; r++ {
		stats.RatingDistribution[strconv.Itoa(r)] = 0
	}
	if len(records) == 0 {
		return stats
	}

	sum := 0
	for _, rec := range records {
		sum += rec.Rating
		key := strconv.Itoa(rec.Rating)
		if _, ok := stats.RatingDistribution[key]; ok {
			stats.RatingDistribution[key]++
		}
	}

	stats.Total = len(records)
	stats.TotalReviews = len(records)
	stats.AverageRating = math.Round(float64(sum)/float64(len(records))*100) / 100
	return stats
}

// Clock issues record timestamps that never go backwards within a process,
// even when the wall clock is stepped back.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock returns a Clock reading time from now; nil uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Timestamp returns the current time formatted with TimestampLayout.
func (c *Clock) Timestamp() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t.Format(TimestampLayout)
}
