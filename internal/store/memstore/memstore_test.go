package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/truongminh/classboard/internal/store"
	"github.com/truongminh/classboard/internal/store/memstore"
)

func TestSubscribeCollection_DeliversSnapshotImmediately(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	_, err := st.Create(ctx, "posts_diary", bson.M{"content": "one"})
	require.NoError(t, err)
	_, err = st.Create(ctx, "posts_diary", bson.M{"content": "two"})
	require.NoError(t, err)

	var got []store.Document
	cancel, err := st.SubscribeCollection("posts_diary", func(docs []store.Document) {
		got = docs
	}, nil)
	require.NoError(t, err)
	defer cancel()

	require.Len(t, got, 2)
}

func TestSubscribeCollection_FansOutOnEveryWrite(t *testing.T) {
	st := memstore.New()
	snapshots := 0
	var last []store.Document
	cancel, err := st.SubscribeCollection("posts_diary", func(docs []store.Document) {
		snapshots++
		last = docs
	}, nil)
	require.NoError(t, err)
	defer cancel()

	_, err = st.Create(context.Background(), "posts_diary", bson.M{"content": "one"})
	require.NoError(t, err)

	assert.Equal(t, 2, snapshots, "initial snapshot plus one per write")
	assert.Len(t, last, 1)
}

func TestCancel_StopsDeliverySynchronously(t *testing.T) {
	st := memstore.New()
	delivered := 0
	cancel, err := st.SubscribeCollection("posts_diary", func([]store.Document) {
		delivered++
	}, nil)
	require.NoError(t, err)

	cancel()
	after := delivered

	_, err = st.Create(context.Background(), "posts_diary", bson.M{"content": "one"})
	require.NoError(t, err)

	assert.Equal(t, after, delivered, "no snapshot lands after cancel returns")
	assert.Equal(t, 0, st.ActiveSubscriptions("posts_diary"))
	assert.Equal(t, 1, st.Cancels("posts_diary"))

	// A second cancel is a no-op, not a double count.
	cancel()
	assert.Equal(t, 1, st.Cancels("posts_diary"))
}

func TestSubscribeDocument_NilWhileAbsentThenDocument(t *testing.T) {
	st := memstore.New()
	var got *store.Document
	calls := 0
	cancel, err := st.SubscribeDocument("settings", "config", func(d *store.Document) {
		calls++
		got = d
	}, nil)
	require.NoError(t, err)
	defer cancel()

	require.Equal(t, 1, calls)
	assert.Nil(t, got, "absent document is delivered as nil")

	require.NoError(t, st.Upsert(context.Background(), "settings", "config",
		bson.M{"bannerUrl": "https://img.example/b.png"}, true))

	require.NotNil(t, got)
	var fields bson.M
	require.NoError(t, got.Decode(&fields))
	assert.Equal(t, "https://img.example/b.png", fields["bannerUrl"])
}

func TestCreate_ResolvesServerTimestamp(t *testing.T) {
	st := memstore.New()
	id, err := st.Create(context.Background(), "posts_diary", bson.M{
		"content":   "hi",
		"createdAt": store.ServerTimestamp,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var fields bson.M
	cancel, err := st.SubscribeCollection("posts_diary", func(docs []store.Document) {
		require.Len(t, docs, 1)
		require.NoError(t, docs[0].Decode(&fields))
	}, nil)
	require.NoError(t, err)
	cancel()

	created, ok := fields["createdAt"].(primitive.DateTime)
	require.True(t, ok, "sentinel resolves to a concrete timestamp")
	assert.False(t, created.Time().IsZero())
}

func TestUpsert_MergeVersusReplace(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, "settings", "config", bson.M{"a": "1", "b": "2"}, true))

	require.NoError(t, st.Upsert(ctx, "settings", "config", bson.M{"b": "3"}, true))
	fields := docFields(t, st, "settings", "config")
	assert.Equal(t, "1", fields["a"], "merge keeps unrelated fields")
	assert.Equal(t, "3", fields["b"])

	require.NoError(t, st.Upsert(ctx, "settings", "config", bson.M{"c": "4"}, false))
	fields = docFields(t, st, "settings", "config")
	assert.NotContains(t, fields, "a", "replace drops unnamed fields")
	assert.Equal(t, "4", fields["c"])
}

func TestMutate_AddToSetIsIdempotent(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	id, err := st.Create(ctx, "posts_pets", bson.M{"likes": bson.A{}})
	require.NoError(t, err)

	require.NoError(t, st.Mutate(ctx, "posts_pets", id, store.AddToSet("likes", "u1")))
	require.NoError(t, st.Mutate(ctx, "posts_pets", id, store.AddToSet("likes", "u1")))

	likes := docFields(t, st, "posts_pets", id)["likes"].(bson.A)
	assert.Len(t, likes, 1)
}

func TestMutate_RemoveFromSet(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	id, err := st.Create(ctx, "posts_pets", bson.M{"likes": bson.A{"u1", "u2"}})
	require.NoError(t, err)

	require.NoError(t, st.Mutate(ctx, "posts_pets", id, store.RemoveFromSet("likes", "u1")))
	likes := docFields(t, st, "posts_pets", id)["likes"].(bson.A)
	assert.Equal(t, bson.A{"u2"}, likes)

	// Removing an absent value is a no-op, not an error.
	require.NoError(t, st.Mutate(ctx, "posts_pets", id, store.RemoveFromSet("likes", "u9")))
}

func TestMutate_AppendToListKeepsDuplicates(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	id, err := st.Create(ctx, "posts_homework", bson.M{"comments": bson.A{}})
	require.NoError(t, err)

	require.NoError(t, st.Mutate(ctx, "posts_homework", id, store.AppendToList("comments", "same")))
	require.NoError(t, st.Mutate(ctx, "posts_homework", id, store.AppendToList("comments", "same")))

	comments := docFields(t, st, "posts_homework", id)["comments"].(bson.A)
	assert.Len(t, comments, 2)
}

func TestMutate_MissingDocument(t *testing.T) {
	st := memstore.New()
	err := st.Mutate(context.Background(), "posts_pets", "nope", store.AddToSet("likes", "u1"))
	assert.Error(t, err)
}

func TestAmbiguousAppend_AppliesAndErrors(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	id, err := st.Create(ctx, "posts_homework", bson.M{"comments": bson.A{}})
	require.NoError(t, err)

	st.AmbiguousAppendFailures = 1
	err = st.Mutate(ctx, "posts_homework", id, store.AppendToList("comments", "lost ack"))
	assert.Error(t, err, "the ack is lost")

	comments := docFields(t, st, "posts_homework", id)["comments"].(bson.A)
	assert.Len(t, comments, 1, "the write itself landed")

	// The knob is consumed.
	require.NoError(t, st.Mutate(ctx, "posts_homework", id, store.AppendToList("comments", "ok")))
}

func docFields(t *testing.T, st *memstore.Store, collection, id string) bson.M {
	t.Helper()
	var fields bson.M
	cancel, err := st.SubscribeDocument(collection, id, func(d *store.Document) {
		require.NotNil(t, d)
		require.NoError(t, d.Decode(&fields))
	}, nil)
	require.NoError(t, err)
	cancel()
	return fields
}
