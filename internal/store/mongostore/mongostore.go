// Package mongostore backs the document store contract with MongoDB for
// persistence and Redis pub/sub for change invalidation. Every write
// publishes an invalidation for its collection; every subscription
// reloads and delivers the full snapshot on each invalidation, so
// subscribers always observe complete state in freshness order.
package mongostore

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/truongminh/classboard/internal/store"
)

const loadTimeout = 10 * time.Second

type Store struct {
	db     *mongo.Database
	rdb    *redis.Client
	tenant string
}

// New builds a store scoped to one tenant. The tenant id namespaces the
// physical collections so several boards can share a database.
func New(db *mongo.Database, rdb *redis.Client, tenant string) *Store {
	return &Store{db: db, rdb: rdb, tenant: tenant}
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(s.tenant + "_" + name)
}

func (s *Store) channel(name string) string {
	return "classboard:" + s.tenant + ":" + name
}

type subscription struct {
	mu     sync.Mutex
	closed bool
}

// guard runs fn unless the subscription has been cancelled. Holding the
// mutex for the duration of fn makes cancellation synchronous: once
// Cancel returns, no callback is running or will run.
func (sub *subscription) guard(fn func()) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	fn()
}

func (sub *subscription) cancel(pubsub *redis.PubSub, stop chan struct{}) store.CancelFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			sub.mu.Lock()
			sub.closed = true
			sub.mu.Unlock()
			close(stop)
			pubsub.Close()
		})
	}
}

// SubscribeCollection delivers the full collection on subscribe and
// again after every invalidation. Load failures freeze the last
// delivered snapshot and surface through onError.
func (s *Store) SubscribeCollection(name string, onSnapshot func([]store.Document), onError func(error)) (store.CancelFunc, error) {
	sub := &subscription{}
	stop := make(chan struct{})
	pubsub := s.rdb.Subscribe(context.Background(), s.channel(name))

	go func() {
		deliver := func() {
			docs, err := s.loadCollection(name)
			if err != nil {
				sub.guard(func() { onError(err) })
				return
			}
			sub.guard(func() { onSnapshot(docs) })
		}

		deliver()
		ch := pubsub.Channel()
		for {
			select {
			case <-stop:
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	return sub.cancel(pubsub, stop), nil
}

// SubscribeDocument mirrors a single document; nil is delivered while
// the document is absent.
func (s *Store) SubscribeDocument(name, id string, onSnapshot func(*store.Document), onError func(error)) (store.CancelFunc, error) {
	sub := &subscription{}
	stop := make(chan struct{})
	pubsub := s.rdb.Subscribe(context.Background(), s.channel(name))

	go func() {
		deliver := func() {
			doc, err := s.loadDocument(name, id)
			if err != nil {
				sub.guard(func() { onError(err) })
				return
			}
			sub.guard(func() { onSnapshot(doc) })
		}

		deliver()
		ch := pubsub.Channel()
		for {
			select {
			case <-stop:
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	return sub.cancel(pubsub, stop), nil
}

// Create inserts a document. Fields set to store.ServerTimestamp are
// stripped from the insert and resolved by a follow-up $currentDate
// update, so subscribers first observe the document with the timestamp
// pending and then again once it lands.
func (s *Store) Create(ctx context.Context, name string, fields bson.M) (string, error) {
	doc := bson.M{}
	var timestampFields []string
	for k, v := range fields {
		if v == store.ServerTimestamp {
			timestampFields = append(timestampFields, k)
			continue
		}
		doc[k] = v
	}

	res, err := s.collection(name).InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	id := res.InsertedID
	s.publish(name)

	if len(timestampFields) > 0 {
		current := bson.M{}
		for _, f := range timestampFields {
			current[f] = true
		}
		if _, err := s.collection(name).UpdateByID(ctx, id, bson.M{"$currentDate": current}); err != nil {
			log.Printf("mongostore: failed to resolve server timestamp on %s: %v", name, err)
		} else {
			s.publish(name)
		}
	}

	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return "", nil
}

// Upsert writes a document by id, merging into existing fields when
// merge is set and replacing otherwise.
func (s *Store) Upsert(ctx context.Context, name, id string, fields bson.M, merge bool) error {
	col := s.collection(name)
	opts := options.Update().SetUpsert(true)
	var err error
	if merge {
		_, err = col.UpdateByID(ctx, docID(id), bson.M{"$set": fields}, opts)
	} else {
		replaceOpts := options.Replace().SetUpsert(true)
		_, err = col.ReplaceOne(ctx, bson.M{"_id": docID(id)}, fields, replaceOpts)
	}
	if err != nil {
		return err
	}
	s.publish(name)
	return nil
}

// Mutate applies an in-place update. AddToSet maps to $addToSet (set
// membership, idempotent), RemoveFromSet to $pull, AppendToList to
// $push (at-least-once, duplicates preserved).
func (s *Store) Mutate(ctx context.Context, name, id string, m store.Mutation) error {
	var update bson.M
	switch m.Op {
	case store.OpAddToSet:
		update = bson.M{"$addToSet": bson.M{m.Field: m.Value}}
	case store.OpRemoveFromSet:
		update = bson.M{"$pull": bson.M{m.Field: m.Value}}
	case store.OpAppendToList:
		update = bson.M{"$push": bson.M{m.Field: m.Value}}
	default:
		return errors.New("mongostore: unknown mutation op")
	}

	if _, err := s.collection(name).UpdateByID(ctx, docID(id), update); err != nil {
		return err
	}
	s.publish(name)
	return nil
}

func (s *Store) publish(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.rdb.Publish(ctx, s.channel(name), "1").Err(); err != nil {
		log.Printf("mongostore: failed to publish invalidation for %s: %v", name, err)
	}
}

func (s *Store) loadCollection(name string) ([]store.Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	cur, err := s.collection(name).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []store.Document
	for cur.Next(ctx) {
		var raw bson.Raw
		if err := cur.Decode(&raw); err != nil {
			continue
		}
		docs = append(docs, store.Document{ID: rawID(raw), Data: append(bson.Raw(nil), raw...)})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) loadDocument(name, id string) (*store.Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	var raw bson.Raw
	err := s.collection(name).FindOne(ctx, bson.M{"_id": docID(id)}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &store.Document{ID: id, Data: append(bson.Raw(nil), raw...)}, nil
}

// docID maps a logical id back to the Mongo _id: created documents get
// ObjectIDs, fixed documents (settings/config) keep string ids.
func docID(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func rawID(raw bson.Raw) string {
	v := raw.Lookup("_id")
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	return ""
}
