package admin

import (
	"time"

	"github.com/google/uuid"
)

// Footprint lists the remains of an account in each store.
type Footprint struct {
	UserID            uuid.UUID           `json:"user_id"`
	IdentityExists    bool                `json:"identity_exists"`
	ProfileExists     bool                `json:"profile_exists"`
	Handle            string              `json:"handle,omitempty"`
	CreatedCategories []uuid.UUID         `json:"created_categories"`
	ContentCount      int64               `json:"content_count"`
	ReactionCount     int64               `json:"reaction_count"`
	Blobs             map[string][]string `json:"blobs"`
	ComputedAt        time.Time           `json:"computed_at"`
}

// Empty reports whether nothing of the account remains.
func (f *Footprint) Empty() bool {
	if f.IdentityExists || f.ProfileExists || len(f.CreatedCategories) > 0 {
		return false
	}
	if f.ContentCount > 0 || f.ReactionCount > 0 {
		return false
	}
	for _, keys := range f.Blobs {
		if len(keys) > 0 {
			return false
		}
	}
	return true
}

// BlobCount is the number of objects left across all buckets.
func (f *Footprint) BlobCount() int {
	n := 0
	for _, keys := range f.Blobs {
		n += len(keys)
	}
	return n
}
