package live

import (
	"fmt"
	"log"
	"sync"

	"github.com/truongminh/classboard/internal/board"
	"github.com/truongminh/classboard/internal/store"
)

// Coordinator maps (readiness, active board) to live subscriptions. It
// owns at most one feed subscription at a time plus the two always-on
// auxiliary subscriptions (directory, settings) opened when readiness is
// first reached and held until Close.
type Coordinator struct {
	store    store.Store
	cache    *Cache
	feed     *FeedStore
	onNotice func(string) // dismissible notices for subscription errors

	mu         sync.Mutex
	started    bool
	closed     bool
	active     board.Board
	cancelFeed store.CancelFunc
	auxCancels []store.CancelFunc
}

func NewCoordinator(st store.Store, cache *Cache, feed *FeedStore, onNotice func(string)) *Coordinator {
	return &Coordinator{store: st, cache: cache, feed: feed, onNotice: onNotice}
}

// Start opens the directory and settings subscriptions. It runs exactly
// once; later calls are no-ops. Wire it to the session's readiness gate.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true

	cancelUsers, err := c.store.SubscribeCollection(board.UsersCollection,
		c.cache.applyUsers,
		c.subscriptionError("directory"))
	if err != nil {
		c.notice(fmt.Sprintf("directory unavailable: %v", err))
	} else {
		c.auxCancels = append(c.auxCancels, cancelUsers)
	}

	cancelSettings, err := c.store.SubscribeDocument(board.SettingsCollection, board.SettingsDoc,
		c.cache.applySettings,
		c.subscriptionError("settings"))
	if err != nil {
		c.notice(fmt.Sprintf("settings unavailable: %v", err))
	} else {
		c.auxCancels = append(c.auxCancels, cancelSettings)
	}
}

// SetActiveBoard switches the feed subscription. The previous feed
// subscription is cancelled before the new one opens, so a stale
// snapshot from the old board can never land after a fresh one from the
// new board. Navigation boards open nothing.
func (c *Coordinator) SetActiveBoard(b board.Board) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if c.cancelFeed != nil {
		c.cancelFeed()
		c.cancelFeed = nil
	}
	c.active = b

	collection, ok := b.Collection()
	if !ok {
		return
	}

	bd := b
	cancel, err := c.store.SubscribeCollection(collection,
		func(docs []store.Document) { c.feed.Replace(bd, docs) },
		c.subscriptionError(string(b)))
	if err != nil {
		c.notice(fmt.Sprintf("%s feed unavailable: %v", b, err))
		return
	}
	c.cancelFeed = cancel
}

// ActiveBoard returns the currently selected board.
func (c *Coordinator) ActiveBoard() board.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Close tears down the feed and auxiliary subscriptions.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancelFeed != nil {
		c.cancelFeed()
		c.cancelFeed = nil
	}
	for _, cancel := range c.auxCancels {
		cancel()
	}
	c.auxCancels = nil
}

// subscriptionError freezes the affected store at its last snapshot and
// surfaces a dismissible notice. Subscription failures are never fatal.
func (c *Coordinator) subscriptionError(what string) func(error) {
	return func(err error) {
		log.Printf("live: %s subscription error: %v", what, err)
		c.notice(fmt.Sprintf("%s updates interrupted: %v", what, err))
	}
}

func (c *Coordinator) notice(msg string) {
	if c.onNotice != nil {
		c.onNotice(msg)
	}
}
