package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/tendant/simple-account/pkg/simpleaccount"
)

// AdminService defines read-only operational views over the account stores.
// These operations bypass the requester == target rule of DeleteAccount and
// are intended for operators reconciling partial deletions.
//
// IMPORTANT: Endpoints or tools using this service must be restricted to
// administrators.
type AdminService interface {
	// Footprint reports what still exists for userID across the identity
	// provider, the relational store, and the blob store. A fully deleted
	// account has an empty footprint.
	Footprint(ctx context.Context, userID uuid.UUID) (*Footprint, error)
}

// Stores groups the collaborators the admin service reads from.
type Stores struct {
	Identities simpleaccount.IdentityStore
	Repository simpleaccount.Repository
	Blobs      simpleaccount.BlobStore
	Buckets    []string
}

// New creates a new AdminService. Buckets defaults to simpleaccount.DefaultBuckets.
func New(stores Stores) AdminService {
	if len(stores.Buckets) == 0 {
		stores.Buckets = simpleaccount.DefaultBuckets
	}
	return &adminService{stores: stores}
}
