package models

import "time"

// PostType identifies which board a post belongs to.
// Valid values: "diary", "pets", "chat", "homework", "rewards", "birthday".
type PostType string

const (
	PostTypeDiary    PostType = "diary"
	PostTypePets     PostType = "pets"
	PostTypeChat     PostType = "chat"
	PostTypeHomework PostType = "homework"
	PostTypeRewards  PostType = "rewards"
	PostTypeBirthday PostType = "birthday"
)

// Post is one entry of a board feed. Likes is a set of user ids
// (membership matters, not multiplicity); Comments is append-only.
// A zero CreatedAt means the server timestamp has not resolved yet.
type Post struct {
	ID          string    `bson:"-" json:"id"`
	Content     string    `bson:"content" json:"content"`
	Type        PostType  `bson:"type" json:"type"`
	AuthorID    string    `bson:"authorId" json:"authorId"`
	AuthorName  string    `bson:"authorName" json:"authorName"`
	AuthorColor string    `bson:"authorColor" json:"authorColor"`
	ImageURL    string    `bson:"imageUrl" json:"imageUrl,omitempty"`
	CreatedAt   time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	Likes       []string  `bson:"likes" json:"likes"`
	Comments    []Comment `bson:"comments" json:"comments"`
}

// LikedBy reports whether userID is in the post's likes set.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment lives embedded inside its parent post and has no independent
// identity. The id is minted from the local wall clock at creation time
// and carries no collision guard.
type Comment struct {
	ID         string `bson:"id" json:"id"`
	AuthorName string `bson:"authorName" json:"authorName"`
	Content    string `bson:"content" json:"content"`
	CreatedAt  string `bson:"createdAt" json:"createdAt"`
}
