// Package memstore is an in-memory document store used by tests and
// local development. It implements the same contract as the Mongo-backed
// adapter: full-snapshot fan-out on every change, idempotent set
// mutations, at-least-once list appends.
package memstore

import (
	"context"
	"errors"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/truongminh/classboard/internal/store"
)

type subscription struct {
	mu     sync.Mutex
	closed bool
	onDocs func([]store.Document)
	onDoc  func(*store.Document)
	docID  string // set for document subscriptions
}

type collection struct {
	docs  map[string]bson.M
	order []string // insertion order, kept for deterministic snapshots
	subs  map[*subscription]struct{}
}

// Store is a mutex-guarded in-memory document store.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection

	// AmbiguousAppendFailures makes the next N AppendToList mutations
	// apply AND return an error, simulating an ambiguous network failure
	// where the write landed but the ack was lost.
	AmbiguousAppendFailures int

	subscribeCount map[string]int
	cancelCount    map[string]int
}

func New() *Store {
	return &Store{
		collections:    make(map[string]*collection),
		subscribeCount: make(map[string]int),
		cancelCount:    make(map[string]int),
	}
}

func (s *Store) col(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]bson.M), subs: make(map[*subscription]struct{})}
		s.collections[name] = c
	}
	return c
}

// SubscribeCollection registers a full-snapshot listener and delivers the
// current snapshot immediately.
func (s *Store) SubscribeCollection(name string, onSnapshot func([]store.Document), onError func(error)) (store.CancelFunc, error) {
	s.mu.Lock()
	c := s.col(name)
	sub := &subscription{onDocs: onSnapshot}
	c.subs[sub] = struct{}{}
	s.subscribeCount[name]++
	docs := snapshotLocked(c)
	s.mu.Unlock()

	sub.deliverDocs(docs)
	return s.cancelFunc(name, sub), nil
}

// SubscribeDocument registers a single-document listener. A nil document
// is delivered while the document is absent.
func (s *Store) SubscribeDocument(name, id string, onSnapshot func(*store.Document), onError func(error)) (store.CancelFunc, error) {
	s.mu.Lock()
	c := s.col(name)
	sub := &subscription{onDoc: onSnapshot, docID: id}
	c.subs[sub] = struct{}{}
	s.subscribeCount[name]++
	doc := docSnapshotLocked(c, id)
	s.mu.Unlock()

	sub.deliverDoc(doc)
	return s.cancelFunc(name, sub), nil
}

func (s *Store) cancelFunc(name string, sub *subscription) store.CancelFunc {
	return func() {
		sub.mu.Lock()
		already := sub.closed
		sub.closed = true
		sub.mu.Unlock()

		s.mu.Lock()
		if c, ok := s.collections[name]; ok {
			delete(c.subs, sub)
		}
		if !already {
			s.cancelCount[name]++
		}
		s.mu.Unlock()
	}
}

// Create inserts a document and fans out the new snapshot.
// store.ServerTimestamp fields resolve to the current wall clock.
func (s *Store) Create(ctx context.Context, name string, fields bson.M) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	c := s.col(name)
	doc := bson.M{}
	for k, v := range fields {
		if v == store.ServerTimestamp {
			doc[k] = time.Now().UTC()
			continue
		}
		doc[k] = v
	}
	c.docs[id] = doc
	c.order = append(c.order, id)
	s.mu.Unlock()

	s.notify(name)
	return id, nil
}

// Upsert writes a document by id. With merge, existing fields not named
// in fields are preserved; without, the document is replaced.
func (s *Store) Upsert(ctx context.Context, name, id string, fields bson.M, merge bool) error {
	s.mu.Lock()
	c := s.col(name)
	existing, ok := c.docs[id]
	if !ok {
		existing = bson.M{}
		c.order = append(c.order, id)
	} else if !merge {
		existing = bson.M{}
	}
	for k, v := range fields {
		existing[k] = v
	}
	c.docs[id] = existing
	s.mu.Unlock()

	s.notify(name)
	return nil
}

// Mutate applies an in-place field update to an existing document.
func (s *Store) Mutate(ctx context.Context, name, id string, m store.Mutation) error {
	var ambiguous bool

	s.mu.Lock()
	c := s.col(name)
	doc, ok := c.docs[id]
	if !ok {
		s.mu.Unlock()
		return errors.New("memstore: document not found")
	}

	list, _ := doc[m.Field].(bson.A)
	switch m.Op {
	case store.OpAddToSet:
		if !containsValue(list, m.Value) {
			doc[m.Field] = append(list, m.Value)
		}
	case store.OpRemoveFromSet:
		out := bson.A{}
		for _, v := range list {
			if !reflect.DeepEqual(v, m.Value) {
				out = append(out, v)
			}
		}
		doc[m.Field] = out
	case store.OpAppendToList:
		doc[m.Field] = append(list, m.Value)
		if s.AmbiguousAppendFailures > 0 {
			s.AmbiguousAppendFailures--
			ambiguous = true
		}
	default:
		s.mu.Unlock()
		return errors.New("memstore: unknown mutation op")
	}
	s.mu.Unlock()

	s.notify(name)
	if ambiguous {
		return errors.New("memstore: write state unknown")
	}
	return nil
}

// ActiveSubscriptions returns the number of live subscriptions on a
// collection. Used by subscription-lifecycle tests.
func (s *Store) ActiveSubscriptions(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return len(c.subs)
	}
	return 0
}

// Subscribes returns how many subscriptions were ever opened on a
// collection; Cancels how many were torn down.
func (s *Store) Subscribes(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeCount[name]
}

func (s *Store) Cancels(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelCount[name]
}

// Count returns the number of documents in a collection.
func (s *Store) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return len(c.docs)
	}
	return 0
}

func (s *Store) notify(name string) {
	s.mu.Lock()
	c := s.col(name)
	docs := snapshotLocked(c)
	subs := make([]*subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	byID := make(map[string]bson.M, len(c.docs))
	for id, d := range c.docs {
		byID[id] = d
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.onDocs != nil {
			sub.deliverDocs(docs)
			continue
		}
		sub.deliverDoc(encodeDoc(sub.docID, byID[sub.docID]))
	}
}

func (sub *subscription) deliverDocs(docs []store.Document) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.onDocs(docs)
}

func (sub *subscription) deliverDoc(doc *store.Document) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.onDoc(doc)
}

func snapshotLocked(c *collection) []store.Document {
	docs := make([]store.Document, 0, len(c.docs))
	for _, id := range c.order {
		fields, ok := c.docs[id]
		if !ok {
			continue
		}
		if d := encodeDoc(id, fields); d != nil {
			docs = append(docs, *d)
		}
	}
	return docs
}

func docSnapshotLocked(c *collection, id string) *store.Document {
	fields, ok := c.docs[id]
	if !ok {
		return nil
	}
	return encodeDoc(id, fields)
}

func encodeDoc(id string, fields bson.M) *store.Document {
	if fields == nil {
		return nil
	}
	raw, err := bson.Marshal(fields)
	if err != nil {
		log.Printf("memstore: failed to encode document %s: %v", id, err)
		return nil
	}
	return &store.Document{ID: id, Data: raw}
}

func containsValue(list bson.A, v interface{}) bool {
	for _, x := range list {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}
