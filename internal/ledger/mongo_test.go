package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("append", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		store := NewMongoStore(mt.Coll)

		e, err := store.Append(context.Background(), Entry{Workspace: "ws", ItemID: "a", Status: "pending"})
		require.NoError(mt, err)
		assert.NotEmpty(mt, e.ID)
		assert.False(mt, e.CreatedAt.IsZero())
	})

	mt.Run("update status", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		store := NewMongoStore(mt.Coll)
		assert.NoError(mt, store.UpdateStatus(context.Background(), "abc", "failed"))
	})

	mt.Run("update missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		store := NewMongoStore(mt.Coll)
		assert.ErrorIs(mt, store.UpdateStatus(context.Background(), "abc", "failed"), ErrNotFound)
	})

	mt.Run("list", func(mt *mtest.T) {
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "id", Value: "1"},
				{Key: "workspace", Value: "ws"},
				{Key: "item_id", Value: "a"},
				{Key: "status", Value: "pending"},
				{Key: "created_at", Value: primitive.NewDateTimeFromTime(created)},
			},
		))
		store := NewMongoStore(mt.Coll)

		entries, err := store.List(context.Background(), "ws", 10)
		require.NoError(mt, err)
		require.Len(mt, entries, 1)
		assert.Equal(mt, "a", entries[0].ItemID)
		assert.True(mt, entries[0].CreatedAt.Equal(created))
	})
}
