package database

import (
	"context"
	"fmt"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel/attribute"
)

// feedbackDocument is the stored shape of a record in the primary collection.
// The identifier lives in _id; it is usually an ObjectID but older documents may carry any value.
type feedbackDocument struct {
	ID                interface{} `bson:"_id,omitempty"`
	Timestamp         string      `bson:"timestamp"`
	Rating            int         `bson:"rating"`
	Review            string      `bson:"review"`
	AIResponse        string      `bson:"ai_response"`
	Summary           string      `bson:"summary"`
	RecommendedAction string      `bson:"recommended_action"`
}

func newFeedbackDocument(rec models.FeedbackRecord) feedbackDocument {
	doc := feedbackDocument{
		Timestamp:         rec.Timestamp,
		Rating:            rec.Rating,
		Review:            rec.Review,
		AIResponse:        rec.AIResponse,
		Summary:           rec.Summary,
		RecommendedAction: rec.RecommendedAction,
	}
	// Keep a caller id only when it is a valid ObjectID; otherwise the driver generates one.
	if oid, err := primitive.ObjectIDFromHex(rec.ID); err == nil {
		doc.ID = oid
	}
	return doc
}

func (d feedbackDocument) record() models.FeedbackRecord {
	return models.FeedbackRecord{
		ID:                idString(d.ID),
		Timestamp:         d.Timestamp,
		Rating:            d.Rating,
		Review:            d.Review,
		AIResponse:        d.AIResponse,
		Summary:           d.Summary,
		RecommendedAction: d.RecommendedAction,
	}
}

// idString normalises a stored _id to its string form
func idString(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// MongoStore is the primary document store for feedback records.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *observability.Logger
}

// NewMongoStore wraps an already connected client and collection
func NewMongoStore(client *mongo.Client, collection *mongo.Collection, logger *observability.Logger) *MongoStore {
	return &MongoStore{
		client:     client,
		collection: collection,
		logger:     logger,
	}
}

// ConnectMongo connects to the configured deployment and verifies it answers a ping within
// the server selection timeout. The returned store owns the client.
func ConnectMongo(ctx context.Context, cfg config.DatabaseConfig, logger *observability.Logger) (result0 *MongoStore, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ConnectMongo",
		attribute.String("db.system", "mongodb"),
		attribute.String("db.name", cfg.Name),
		attribute.String("db.collection", cfg.Collection),
	)
	defer observability.FinishSpan(span, &err)

	if cfg.MongoDBURI == "" {
		return nil, contextutils.WrapError(contextutils.ErrStorageUnavailable, "mongodb uri not configured")
	}

	timeout := cfg.ServerSelectionTimeout
	if timeout <= 0 {
		timeout = config.ServerSelectionTimeout
	}

	opts := options.Client().ApplyURI(cfg.MongoDBURI).SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to connect to mongodb: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to ping mongodb: %v", err)
	}

	collection := client.Database(cfg.Name).Collection(cfg.Collection)
	return NewMongoStore(client, collection, logger), nil
}

// Insert stores the record and returns the hex form of its _id
func (s *MongoStore) Insert(ctx context.Context, rec models.FeedbackRecord) (result0 string, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "MongoStore.Insert",
		observability.AttributeRating(rec.Rating),
	)
	defer observability.FinishSpan(span, &err)

	res, err := s.collection.InsertOne(ctx, newFeedbackDocument(rec))
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrStorageWriteFailed, "failed to insert feedback: %v", err)
	}

	id := idString(res.InsertedID)
	span.SetAttributes(observability.AttributeRecordID(id))
	return id, nil
}

// FindAll returns every record, newest first
func (s *MongoStore) FindAll(ctx context.Context) (result0 []models.FeedbackRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "MongoStore.FindAll")
	defer observability.FinishSpan(span, &err)

	return s.find(ctx, options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
}

// Recent returns at most limit records, newest first
func (s *MongoStore) Recent(ctx context.Context, limit int) (result0 []models.FeedbackRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "MongoStore.Recent", observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	return s.find(ctx, opts)
}

func (s *MongoStore) find(ctx context.Context, opts *options.FindOptions) ([]models.FeedbackRecord, error) {
	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStorageReadFailed, "failed to query feedback: %v", err)
	}

	var docs []feedbackDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStorageReadFailed, "failed to decode feedback: %v", err)
	}

	records := make([]models.FeedbackRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.record())
	}
	return records, nil
}

// Count returns the number of stored records
func (s *MongoStore) Count(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "MongoStore.Count")
	defer observability.FinishSpan(span, &err)

	n, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrStorageReadFailed, "failed to count feedback: %v", err)
	}
	return int(n), nil
}

// Ping checks that the deployment is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "mongodb ping failed: %v", err)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to disconnect mongodb: %v", err)
	}
	return nil
}
