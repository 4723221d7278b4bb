// Package engine validates and issues the board mutations: post
// creation, like toggling, comment append, signup and banner updates.
// Role gates and authorship metadata are computed here, client-side;
// there is no remote-side enforcement, by design.
package engine

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/truongminh/classboard/internal/board"
	"github.com/truongminh/classboard/internal/live"
	"github.com/truongminh/classboard/internal/models"
	"github.com/truongminh/classboard/internal/session"
	"github.com/truongminh/classboard/internal/store"
)

const writeTimeout = 5 * time.Second

var (
	// ErrMissingFields is returned by CreateUser when any field is empty.
	ErrMissingFields = errors.New("engine: username, password and display name are required")
	// ErrUsernameTaken is returned when the cached directory already
	// holds the username. The check is local-only and racy against
	// concurrent signups from other sessions; that is a property of the
	// design, not enforced remotely.
	ErrUsernameTaken = errors.New("engine: username already exists")
)

// avatarPalette is the fixed set of colors assigned to new students.
var avatarPalette = []string{
	"bg-red-400", "bg-blue-400", "bg-green-400",
	"bg-yellow-400", "bg-pink-400", "bg-indigo-400",
}

// Engine issues mutations against the document store. Writes are
// fire-and-forget: the caller gets no result, failures are logged and
// reported through the optional error callback, and nothing is retried.
type Engine struct {
	store   store.Store
	session *session.Manager
	cache   *live.Cache
	onError func(op string, err error)
}

func New(st store.Store, mgr *session.Manager, cache *live.Cache, onError func(op string, err error)) *Engine {
	return &Engine{store: st, session: mgr, cache: cache, onError: onError}
}

// CreatePost publishes a post to the collection of its type. It is a
// silent no-op when the content is blank and no image is attached, when
// nobody is logged in, or — for the rewards board — when the acting role
// is not admin. The author fields are copied from the acting identity,
// not re-derived.
func (e *Engine) CreatePost(content string, t models.PostType, imageURL string) {
	if strings.TrimSpace(content) == "" && imageURL == "" {
		return
	}
	current, ok := e.session.Current()
	if !ok {
		log.Println("engine: create post ignored, nobody is logged in")
		return
	}
	if t == models.PostTypeRewards && current.Role != models.RoleAdmin {
		log.Printf("engine: rewards post by %s ignored, admin only", current.Username)
		return
	}
	collection, ok := board.ForPostType(t)
	if !ok {
		log.Printf("engine: create post ignored, unknown type %q", t)
		return
	}

	fields := bson.M{
		"content":     content,
		"type":        string(t),
		"authorId":    current.ID,
		"authorName":  current.DisplayName,
		"authorColor": current.AvatarColor,
		"imageUrl":    imageURL,
		"createdAt":   store.ServerTimestamp,
		"likes":       bson.A{},
		"comments":    bson.A{},
	}
	e.dispatch("create post", func(ctx context.Context) error {
		_, err := e.store.Create(ctx, collection, fields)
		return err
	})
}

// ToggleLike flips the acting identity's membership in the post's likes
// set, judged against the locally held snapshot. Two rapid toggles
// before a fresh snapshot arrives can both issue an add; the store's
// set-add absorbs the duplicate.
func (e *Engine) ToggleLike(post models.Post, collection string) {
	current, ok := e.session.Current()
	if !ok {
		return
	}

	m := store.AddToSet("likes", current.ID)
	if post.LikedBy(current.ID) {
		m = store.RemoveFromSet("likes", current.ID)
	}
	postID := post.ID
	e.dispatch("toggle like", func(ctx context.Context) error {
		return e.store.Mutate(ctx, collection, postID, m)
	})
}

// AddComment appends a comment to the post. The comment id comes from
// the local wall clock with no collision guard, and delivery is
// at-least-once: a retry after an ambiguous failure can leave a visible
// duplicate.
func (e *Engine) AddComment(post models.Post, collection, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	current, ok := e.session.Current()
	if !ok {
		return
	}

	comment := models.Comment{
		ID:         strconv.FormatInt(time.Now().UnixMilli(), 10),
		AuthorName: current.DisplayName,
		Content:    text,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	postID := post.ID
	e.dispatch("add comment", func(ctx context.Context) error {
		return e.store.Mutate(ctx, collection, postID, store.AppendToList("comments", comment))
	})
}

// CreateUser signs up a student. Uniqueness is checked against the
// locally cached directory only; two near-simultaneous signups with the
// same username from different sessions can both pass and both land.
func (e *Engine) CreateUser(username, password, displayName string) error {
	if username == "" || password == "" || displayName == "" {
		return ErrMissingFields
	}
	if e.cache.UsernameTaken(username) {
		return ErrUsernameTaken
	}

	fields := bson.M{
		"username":    username,
		"password":    password,
		"displayName": displayName,
		"role":        string(models.RoleStudent),
		"avatarColor": avatarPalette[rand.Intn(len(avatarPalette))],
	}
	e.dispatch("create user", func(ctx context.Context) error {
		_, err := e.store.Create(ctx, board.UsersCollection, fields)
		return err
	})
	return nil
}

// UpdateBanner merge-upserts the settings document. The url is not
// validated.
func (e *Engine) UpdateBanner(ctx context.Context, url string) error {
	return e.store.Upsert(ctx, board.SettingsCollection, board.SettingsDoc,
		bson.M{"bannerUrl": url}, true)
}

// dispatch runs a write asynchronously with a bounded deadline. Errors
// are logged and surfaced through the error callback; they are never
// retried here.
func (e *Engine) dispatch(op string, write func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			log.Printf("engine: %s failed: %v", op, err)
			if e.onError != nil {
				e.onError(op, err)
			}
		}
	}()
}
