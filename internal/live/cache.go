package live

import (
	"log"
	"sync"

	"github.com/truongminh/classboard/internal/models"
	"github.com/truongminh/classboard/internal/store"
)

// Cache mirrors the user directory and the settings document. Both are
// always-on once the session is ready and replaced wholesale on every
// snapshot.
type Cache struct {
	mu       sync.RWMutex
	users    []models.UserProfile
	settings models.Settings
	onChange func()
}

func NewCache() *Cache {
	return &Cache{}
}

// SetOnChange registers a callback fired after every applied snapshot.
func (c *Cache) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Users returns a copy of the current roster.
func (c *Cache) Users() []models.UserProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.UserProfile, len(c.users))
	copy(out, c.users)
	return out
}

// UsernameTaken checks the cached roster only. This is the same
// check-then-act the login flow relies on; it is not atomic against the
// remote store.
func (c *Cache) UsernameTaken(username string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, u := range c.users {
		if u.Username == username {
			return true
		}
	}
	return false
}

// Settings returns the last observed settings document.
func (c *Cache) Settings() models.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

func (c *Cache) applyUsers(docs []store.Document) {
	users := make([]models.UserProfile, 0, len(docs))
	for _, d := range docs {
		var u models.UserProfile
		if err := d.Decode(&u); err != nil {
			log.Printf("live: skipping malformed directory entry %s: %v", d.ID, err)
			continue
		}
		u.ID = d.ID
		users = append(users, u)
	}

	c.mu.Lock()
	c.users = users
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// applySettings keeps the previous value while the document is absent.
func (c *Cache) applySettings(doc *store.Document) {
	if doc == nil {
		return
	}
	var s models.Settings
	if err := doc.Decode(&s); err != nil {
		log.Printf("live: malformed settings document: %v", err)
		return
	}

	c.mu.Lock()
	c.settings = s
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
