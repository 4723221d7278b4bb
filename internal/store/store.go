package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is one raw document delivered by a snapshot. Data excludes the
// id; callers decode it into their own model type.
type Document struct {
	ID   string
	Data bson.Raw
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v interface{}) error {
	return bson.Unmarshal(d.Data, v)
}

// CancelFunc tears down a subscription. It is synchronous: once it
// returns, no further snapshot or error callback will fire. Calling it
// more than once is harmless.
type CancelFunc func()

// MutationOp selects the in-place update primitive.
type MutationOp string

const (
	OpAddToSet      MutationOp = "addToSet"
	OpRemoveFromSet MutationOp = "removeFromSet"
	OpAppendToList  MutationOp = "appendToList"
)

// Mutation is a single in-place field update. AddToSet is idempotent on
// membership; AppendToList is at-least-once with no deduplication.
type Mutation struct {
	Op    MutationOp
	Field string
	Value interface{}
}

func AddToSet(field string, value interface{}) Mutation {
	return Mutation{Op: OpAddToSet, Field: field, Value: value}
}

func RemoveFromSet(field string, value interface{}) Mutation {
	return Mutation{Op: OpRemoveFromSet, Field: field, Value: value}
}

func AppendToList(field string, value interface{}) Mutation {
	return Mutation{Op: OpAppendToList, Field: field, Value: value}
}

// serverTimestamp is a sentinel field value: the adapter replaces it with
// a server-assigned time after the document lands. Until then the field
// is absent and decodes as the zero time.
type serverTimestamp struct{}

// ServerTimestamp marks a field for server-side timestamp assignment.
var ServerTimestamp = serverTimestamp{}

// Store is the document store consumed by the sync core. Collection keys
// are logical names ("messages", "posts_diary", "users", ...); the
// adapter owns the tenant-prefixed physical layout. Every snapshot
// callback receives the FULL current contents, never a delta. Within one
// subscription snapshots arrive in increasing freshness order; across
// subscriptions there is no ordering guarantee.
type Store interface {
	SubscribeCollection(collection string, onSnapshot func([]Document), onError func(error)) (CancelFunc, error)
	SubscribeDocument(collection, id string, onSnapshot func(*Document), onError func(error)) (CancelFunc, error)
	Create(ctx context.Context, collection string, fields bson.M) (string, error)
	Upsert(ctx context.Context, collection, id string, fields bson.M, merge bool) error
	Mutate(ctx context.Context, collection, id string, m Mutation) error
}
