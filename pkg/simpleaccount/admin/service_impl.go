package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-account/pkg/simpleaccount"
	"github.com/tendant/simple-account/pkg/simpleaccount/objectkey"
)

// adminService implements the AdminService interface
type adminService struct {
	stores Stores
}

// Ensure adminService implements AdminService
var _ AdminService = (*adminService)(nil)

func (s *adminService) Footprint(ctx context.Context, userID uuid.UUID) (*Footprint, error) {
	fp := &Footprint{
		UserID: userID,
		Blobs:  make(map[string][]string, len(s.stores.Buckets)),
	}

	if _, err := s.stores.Identities.GetIdentity(ctx, userID); err == nil {
		fp.IdentityExists = true
	} else if !errors.Is(err, simpleaccount.ErrIdentityNotFound) {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	profile, err := s.stores.Repository.GetProfile(ctx, userID)
	switch {
	case err == nil:
		fp.ProfileExists = true
		fp.Handle = profile.Handle
	case !errors.Is(err, simpleaccount.ErrProfileNotFound):
		return nil, fmt.Errorf("get profile: %w", err)
	}

	categories, err := s.stores.Repository.ListCategoryIDsByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	fp.CreatedCategories = append([]uuid.UUID{}, categories...)

	if fp.ContentCount, err = s.stores.Repository.CountContentByAuthor(ctx, userID); err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}
	if fp.ReactionCount, err = s.stores.Repository.CountReactionsByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("count reactions: %w", err)
	}

	prefix := objectkey.OwnerPrefix(userID)
	for _, bucket := range s.stores.Buckets {
		keys, err := s.stores.Blobs.List(ctx, bucket, prefix)
		if err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", bucket, err)
		}
		fp.Blobs[bucket] = append([]string{}, keys...)
	}

	fp.ComputedAt = time.Now().UTC()
	return fp, nil
}
