package simpleaccount

import (
	"time"

	"github.com/google/uuid"
)

// SentinelIdentityID is the system identity that takes over categories whose
// creator was deleted while other users' content still links them.
var SentinelIdentityID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Bucket names used for user-owned blobs. Objects are keyed {owner_id}/{filename}.
const (
	BucketProfileImages = "profile_images"
	BucketPostImages    = "post_images"
	BucketCoverImages   = "cover_images"
)

// DefaultBuckets lists every bucket purged on account deletion.
var DefaultBuckets = []string{BucketProfileImages, BucketPostImages, BucketCoverImages}

// SubjectType identifies what a reaction points at.
type SubjectType string

const (
	SubjectPost    SubjectType = "post"
	SubjectComment SubjectType = "comment"
)

// Identity is an authentication principal owned by the identity provider.
type Identity struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   []byte    `json:"-"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
}

// Profile is the public record of an account. Its ID equals the identity ID.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	AvatarRef   string    `json:"avatar_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Category is a taxonomy record. CreatorID is nil for system categories.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	CreatorID *uuid.UUID `json:"creator_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Content is a post. Deleting it removes its category links and reactions.
type Content struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentCategoryLink joins content and categories.
type ContentCategoryLink struct {
	ContentID  uuid.UUID `json:"content_id"`
	CategoryID uuid.UUID `json:"category_id"`
}

// Reaction is a like given by UserID on a post or comment.
type Reaction struct {
	SubjectID   uuid.UUID   `json:"subject_id"`
	UserID      uuid.UUID   `json:"user_id"`
	SubjectType SubjectType `json:"subject_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CategoryAuthor is one row of the ownership join: a category linked by
// content written by AuthorID.
type CategoryAuthor struct {
	CategoryID uuid.UUID `json:"category_id"`
	AuthorID   uuid.UUID `json:"author_id"`
}

// CategoryOwnership partitions the categories created by one user.
type CategoryOwnership struct {
	// Exclusive categories are linked by no other user's content.
	Exclusive []uuid.UUID `json:"exclusive"`
	// Shared categories are linked by at least one other user's content.
	Shared []uuid.UUID `json:"shared"`
}
