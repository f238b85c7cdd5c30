package simpleaccount

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// IdentityStore is the identity provider holding email and password principals.
type IdentityStore interface {
	// CreateIdentity registers a new principal. A duplicate email is reported
	// through the error; callers classify it with IsDuplicateEmail.
	CreateIdentity(ctx context.Context, email, password string) (*Identity, error)

	// GetIdentity returns ErrIdentityNotFound when id is unknown.
	GetIdentity(ctx context.Context, id uuid.UUID) (*Identity, error)

	// GetIdentityByToken resolves a bearer token to its principal.
	GetIdentityByToken(ctx context.Context, token string) (*Identity, error)

	// DeleteIdentity returns ErrIdentityNotFound when id is unknown.
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
}

// Authenticator issues bearer tokens accepted by IdentityStore.GetIdentityByToken.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (string, error)
}

// Repository is the relational store for profiles, categories, content and
// reactions. Delete operations are no-ops when nothing matches.
type Repository interface {
	// Profile operations
	HandleExists(ctx context.Context, handle string) (bool, error)
	// CreateProfile returns ErrHandleTaken when the handle unique constraint fails.
	CreateProfile(ctx context.Context, profile *Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error

	// Category operations
	CreateCategory(ctx context.Context, category *Category) error
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	ListCategoryIDsByCreator(ctx context.Context, creatorID uuid.UUID) ([]uuid.UUID, error)
	// ListForeignCategoryAuthors returns the (category, author) pairs of links
	// on categoryIDs whose content was written by someone other than excludeAuthor.
	ListForeignCategoryAuthors(ctx context.Context, categoryIDs []uuid.UUID, excludeAuthor uuid.UUID) ([]CategoryAuthor, error)
	ReassignCategoryCreator(ctx context.Context, categoryID, creatorID uuid.UUID) error
	// DeleteCategory also removes the category's content links.
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	// Content operations
	CreateContent(ctx context.Context, content *Content) error
	LinkContentCategory(ctx context.Context, link ContentCategoryLink) error
	ListContentCategoryLinks(ctx context.Context, contentID uuid.UUID) ([]ContentCategoryLink, error)
	CountContentByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error)
	// DeleteContentByAuthor removes the author's content together with its
	// category links and the reactions on it, and returns the number of rows
	// of content removed.
	DeleteContentByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error)

	// Reaction operations
	CreateReaction(ctx context.Context, reaction *Reaction) error
	CountReactionsByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteReactionsByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// BlobStore holds user-owned binaries in named buckets.
type BlobStore interface {
	// Upload stores reader under key in bucket.
	Upload(ctx context.Context, bucket, key string, reader io.Reader) error

	// List returns every key in bucket starting with prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Delete removes keys from bucket. Missing keys are ignored. When some keys
	// fail the error is a *BlobDeleteError naming them.
	Delete(ctx context.Context, bucket string, keys []string) error
}

// EventSink receives account lifecycle events. Errors are logged, never
// propagated to the caller.
type EventSink interface {
	AccountRegistered(ctx context.Context, result *RegisterResult) error
	AccountDeleted(ctx context.Context, report *DeletionReport) error
	// CompensationFailed reports an identity left without a profile.
	CompensationFailed(ctx context.Context, identityID uuid.UUID, cause error) error
}
