package database

import (
	"context"
	"testing"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	contextutils "feedbackapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockMongoStore(mt *mtest.T) *MongoStore {
	return NewMongoStore(mt.Client, mt.Coll, nil)
}

func feedbackDoc(id primitive.ObjectID, ts string, rating int) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "timestamp", Value: ts},
		{Key: "rating", Value: int32(rating)},
		{Key: "review", Value: "review " + ts},
		{Key: "ai_response", Value: "Thanks!"},
		{Key: "summary", Value: "summary"},
		{Key: "recommended_action", Value: "Thank customer"},
	}
}

func TestMongoStore_Insert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("generates an id", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := store.Insert(context.Background(), sampleRecord("2024-01-01T00:00:00.000001", 5))
		require.NoError(t, err)
		_, parseErr := primitive.ObjectIDFromHex(id)
		assert.NoError(t, parseErr)
	})

	mt.Run("keeps a valid supplied object id", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		supplied := primitive.NewObjectID().Hex()
		rec := sampleRecord("2024-01-01T00:00:00.000001", 4)
		rec.ID = supplied

		id, err := store.Insert(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, supplied, id)
	})

	mt.Run("replaces an invalid supplied id", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		rec := sampleRecord("2024-01-01T00:00:00.000001", 4)
		rec.ID = "not-an-object-id"

		id, err := store.Insert(context.Background(), rec)
		require.NoError(t, err)
		assert.NotEqual(t, "not-an-object-id", id)
		assert.Len(t, id, 24)
	})

	mt.Run("write error", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		_, err := store.Insert(context.Background(), sampleRecord("2024-01-01T00:00:00.000001", 5))
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeStorageWriteFailed, contextutils.GetErrorCode(err))
	})
}

func TestMongoStore_FindAll(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("normalises ids", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		newer := primitive.NewObjectID()
		older := primitive.NewObjectID()
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			feedbackDoc(newer, "2024-01-02T00:00:00.000000", 5),
			feedbackDoc(older, "2024-01-01T00:00:00.000000", 1),
		))

		records, err := store.FindAll(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, newer.Hex(), records[0].ID)
		assert.Equal(t, 5, records[0].Rating)
		assert.Equal(t, "Thank customer", records[0].RecommendedAction)
		assert.Equal(t, older.Hex(), records[1].ID)
	})

	mt.Run("empty collection", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		records, err := store.FindAll(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	mt.Run("query error", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad query",
		}))

		_, err := store.FindAll(context.Background())
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeStorageReadFailed, contextutils.GetErrorCode(err))
	})
}

func TestMongoStore_Recent(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns the batch", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			feedbackDoc(primitive.NewObjectID(), "2024-01-02T00:00:00.000000", 3),
		))

		records, err := store.Recent(context.Background(), 10)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestMongoStore_Count(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("counts documents", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: int32(1)}, {Key: "n", Value: int32(7)}},
		))

		n, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	})
}

func TestMongoStore_Ping(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ok", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.NoError(t, store.Ping(context.Background()))
	})

	mt.Run("failure", func(mt *mtest.T) {
		store := newMockMongoStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "no"}))
		err := store.Ping(context.Background())
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeStorageUnavailable, contextutils.GetErrorCode(err))
	})
}

func TestConnectMongo_RequiresURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), config.DatabaseConfig{}, nil)
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrStorageUnavailable))
}

func TestIDString(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, oid.Hex(), idString(oid))
	assert.Equal(t, "custom", idString("custom"))
	assert.Equal(t, "42", idString(int32(42)))
	assert.Equal(t, "", idString(nil))
}

func TestNewFeedbackDocument(t *testing.T) {
	rec := models.FeedbackRecord{Timestamp: "t", Rating: 3, Review: "r"}
	assert.Nil(t, newFeedbackDocument(rec).ID)

	oid := primitive.NewObjectID()
	rec.ID = oid.Hex()
	assert.Equal(t, oid, newFeedbackDocument(rec).ID)
}
