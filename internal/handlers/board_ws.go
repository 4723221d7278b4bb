package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/truongminh/classboard/internal/board"
	"github.com/truongminh/classboard/internal/engine"
	"github.com/truongminh/classboard/internal/identity"
	"github.com/truongminh/classboard/internal/live"
	"github.com/truongminh/classboard/internal/models"
	"github.com/truongminh/classboard/internal/session"
	"github.com/truongminh/classboard/internal/store"
)

var boardUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled at the HTTP layer already.
		return true
	},
}

// ClientAction represents actions coming from the UI shell over WebSocket.
type ClientAction struct {
	Action      string `json:"action"` // "login", "logout", "set_board", "create_post", "toggle_like", "add_comment", "create_user", "update_banner", "ping"
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Board       string `json:"board,omitempty"`
	Content     string `json:"content,omitempty"`
	PostType    string `json:"post_type,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	PostID      string `json:"post_id,omitempty"`
	Text        string `json:"text,omitempty"`
	BannerURL   string `json:"banner_url,omitempty"`
}

// Event is pushed to the UI shell. Feed, directory and settings events
// carry the full current snapshot, never a delta.
type Event struct {
	Type     string               `json:"type"` // "ready", "feed", "directory", "settings", "login_ok", "login_error", "notice", "error"
	Board    string               `json:"board,omitempty"`
	Posts    []models.Post        `json:"posts,omitempty"`
	Users    []models.UserProfile `json:"users,omitempty"`
	Settings *models.Settings     `json:"settings,omitempty"`
	User     *models.UserProfile  `json:"user,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// Gateway hosts one sync core per WebSocket connection: its own session
// manager, subscription coordinator, feed store and interaction engine,
// all backed by the shared store and Redis handles.
type Gateway struct {
	store     store.Store
	rdb       *redis.Client
	authToken string
}

func NewGateway(st store.Store, rdb *redis.Client, authToken string) *Gateway {
	return &Gateway{store: st, rdb: rdb, authToken: authToken}
}

// Serve upgrades the connection and runs the session until the client
// disconnects.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := boardUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events := make(chan Event, 256)
	stop := make(chan struct{})
	defer close(stop)

	// Best-effort push: a slow client drops events rather than stalling
	// the subscription callbacks feeding it.
	push := func(evt Event) {
		select {
		case events <- evt:
		case <-stop:
		default:
			log.Printf("gateway: dropping %s event for slow client", evt.Type)
		}
	}

	// Writer goroutine: forward events to this connection.
	go func() {
		for {
			select {
			case <-stop:
				return
			case evt := <-events:
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			}
		}
	}()

	cache := live.NewCache()
	feed := live.NewFeedStore()

	cache.SetOnChange(func() {
		settings := cache.Settings()
		push(Event{Type: "directory", Users: cache.Users()})
		push(Event{Type: "settings", Settings: &settings})
	})
	feed.SetOnChange(func() {
		push(Event{Type: "feed", Board: string(feed.Board()), Posts: feed.Posts()})
	})

	coord := live.NewCoordinator(g.store, cache, feed, func(msg string) {
		push(Event{Type: "notice", Message: msg})
	})
	defer coord.Close()

	provider := identity.NewRedisProvider(g.rdb)
	mgr := session.NewManager(provider, g.authToken, cache)
	eng := engine.New(g.store, mgr, cache, func(op string, err error) {
		push(Event{Type: "error", Message: op + " failed"})
	})

	mgr.OnReady(func() {
		coord.Start()
		push(Event{Type: "ready"})
	})
	mgr.Bootstrap(r.Context())

	// Mutating actions share one per-connection limiter.
	actions := rate.NewLimiter(rate.Every(200*time.Millisecond), 10)

	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		var act ClientAction
		if err := json.Unmarshal(data, &act); err != nil {
			continue
		}

		switch act.Action {
		case "login":
			profile, err := mgr.Login(act.Username, act.Password)
			if err != nil {
				push(Event{Type: "login_error", Message: "invalid username or password"})
				continue
			}
			push(Event{Type: "login_ok", User: &profile})

		case "logout":
			mgr.Logout()
			coord.SetActiveBoard(board.Login)

		case "set_board":
			coord.SetActiveBoard(board.Board(act.Board))

		case "create_post":
			if !actions.Allow() {
				push(Event{Type: "notice", Message: "slow down"})
				continue
			}
			eng.CreatePost(act.Content, models.PostType(act.PostType), act.ImageURL)

		case "toggle_like":
			if !actions.Allow() {
				push(Event{Type: "notice", Message: "slow down"})
				continue
			}
			post, ok := feed.Find(act.PostID)
			if !ok {
				continue
			}
			if collection, ok := coord.ActiveBoard().Collection(); ok {
				eng.ToggleLike(post, collection)
			}

		case "add_comment":
			if !actions.Allow() {
				push(Event{Type: "notice", Message: "slow down"})
				continue
			}
			post, ok := feed.Find(act.PostID)
			if !ok {
				continue
			}
			if collection, ok := coord.ActiveBoard().Collection(); ok {
				eng.AddComment(post, collection, act.Text)
			}

		case "create_user":
			if err := eng.CreateUser(act.Username, act.Password, act.DisplayName); err != nil {
				push(Event{Type: "error", Message: err.Error()})
			}

		case "update_banner":
			if err := eng.UpdateBanner(r.Context(), act.BannerURL); err != nil {
				push(Event{Type: "error", Message: "failed to update banner"})
			}

		case "ping":
			// Read deadline already refreshed above.

		default:
			// Ignore unknown actions.
		}
	}
}
