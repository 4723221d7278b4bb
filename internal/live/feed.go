package live

import (
	"log"
	"sort"
	"sync"

	"github.com/truongminh/classboard/internal/board"
	"github.com/truongminh/classboard/internal/models"
	"github.com/truongminh/classboard/internal/store"
)

// FeedStore holds the latest sorted snapshot of the active feed. Chat
// sorts ascending by creation time, every other feed descending. A post
// whose server timestamp has not resolved carries the zero time and so
// sorts as oldest; it visibly reorders once the real timestamp arrives,
// which is expected behavior.
type FeedStore struct {
	mu       sync.RWMutex
	board    board.Board
	posts    []models.Post
	onChange func()
}

func NewFeedStore() *FeedStore {
	return &FeedStore{}
}

// SetOnChange registers a callback fired after every replaced snapshot.
func (f *FeedStore) SetOnChange(fn func()) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// Replace decodes, sorts and swaps in a full snapshot for the given
// board. Snapshots are replaced, never diffed or merged.
func (f *FeedStore) Replace(b board.Board, docs []store.Document) {
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		var p models.Post
		if err := d.Decode(&p); err != nil {
			log.Printf("live: skipping malformed post %s: %v", d.ID, err)
			continue
		}
		p.ID = d.ID
		posts = append(posts, p)
	}

	ascending := b == board.Chat
	sort.SliceStable(posts, func(i, j int) bool {
		if ascending {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	f.mu.Lock()
	f.board = b
	f.posts = posts
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Posts returns a copy of the current sorted snapshot.
func (f *FeedStore) Posts() []models.Post {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Post, len(f.posts))
	copy(out, f.posts)
	return out
}

// Board returns the board of the last applied snapshot.
func (f *FeedStore) Board() board.Board {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.board
}

// Find returns the locally held copy of a post by id.
func (f *FeedStore) Find(id string) (models.Post, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, p := range f.posts {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}
