package board

import "github.com/truongminh/classboard/internal/models"

// Board is one navigable screen. Feed boards map to a store collection;
// navigation boards (login, dashboard, admin) carry no feed.
type Board string

const (
	Login     Board = "login"
	Dashboard Board = "dashboard"
	Admin     Board = "admin"
	Diary     Board = "diary"
	Pets      Board = "pets"
	Homework  Board = "homework"
	Rewards   Board = "rewards"
	Birthday  Board = "birthday"
	Chat      Board = "chat"
)

// UsersCollection holds the user directory.
const UsersCollection = "users"

// SettingsCollection and SettingsDoc address the single settings document.
const (
	SettingsCollection = "settings"
	SettingsDoc        = "config"
)

var collections = map[Board]string{
	Chat:     "messages",
	Diary:    "posts_diary",
	Pets:     "posts_pets",
	Homework: "posts_homework",
	Rewards:  "posts_rewards",
	Birthday: "posts_birthday",
}

// Collection returns the collection key for a feed board. ok is false
// for navigation boards.
func (b Board) Collection() (string, bool) {
	c, ok := collections[b]
	return c, ok
}

// HasFeed reports whether the board mirrors a collection.
func (b Board) HasFeed() bool {
	_, ok := collections[b]
	return ok
}

// ForPostType resolves the collection key for a post type. Post types
// share the feed-board identifiers.
func ForPostType(t models.PostType) (string, bool) {
	return Board(t).Collection()
}
