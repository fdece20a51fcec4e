// Package feedback keeps per-message assistant feedback in process memory.
// The store is bounded and entries age out; durability is explicitly not a
// goal.
package feedback

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Rating is the user's verdict on one assistant message.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
	RatingNeutral  Rating = "neutral"
)

// Valid reports whether the rating is one of the accepted values.
func (r Rating) Valid() bool {
	switch r {
	case RatingPositive, RatingNegative, RatingNeutral:
		return true
	}
	return false
}

// MaxCommentLength caps the optional free-text comment.
const MaxCommentLength = 500

// Entry is one stored feedback record. A later entry for the same
// user+message replaces the earlier one.
type Entry struct {
	UserID    string
	MessageID string
	Rating    Rating
	Comment   string
	CreatedAt time.Time
}

// Store is a bounded, expiring in-process feedback store.
type Store struct {
	cache *expirable.LRU[string, Entry]
}

// NewStore creates a store holding up to capacity entries for ttl each.
func NewStore(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Store{cache: expirable.NewLRU[string, Entry](capacity, nil, ttl)}
}

func entryKey(userID, messageID string) string {
	return fmt.Sprintf("%s:%s", userID, messageID)
}

// Put stores or replaces the feedback for one user+message pair.
func (s *Store) Put(entry Entry) {
	s.cache.Add(entryKey(entry.UserID, entry.MessageID), entry)
}

// Get returns the stored feedback for one user+message pair.
func (s *Store) Get(userID, messageID string) (Entry, bool) {
	return s.cache.Get(entryKey(userID, messageID))
}

// Len reports how many entries are currently held.
func (s *Store) Len() int {
	return s.cache.Len()
}
