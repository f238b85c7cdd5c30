package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-account/pkg/simpleaccount"
)

type reactionKey struct {
	subjectID   uuid.UUID
	userID      uuid.UUID
	subjectType simpleaccount.SubjectType
}

// Repository implements simpleaccount.Repository using in-memory storage.
// Unique handles and category names are enforced under the write lock, the
// same guarantee the Postgres unique indexes give.
type Repository struct {
	mu            sync.RWMutex
	profiles      map[uuid.UUID]*simpleaccount.Profile
	handles       map[string]uuid.UUID // lower(handle) -> profile id
	categories    map[uuid.UUID]*simpleaccount.Category
	categoryNames map[string]uuid.UUID // lower(name) -> category id
	contents      map[uuid.UUID]*simpleaccount.Content
	links         map[uuid.UUID]map[uuid.UUID]struct{} // content id -> category ids
	reactions     map[reactionKey]*simpleaccount.Reaction
}

// New creates a new in-memory repository
func New() simpleaccount.Repository {
	return &Repository{
		profiles:      make(map[uuid.UUID]*simpleaccount.Profile),
		handles:       make(map[string]uuid.UUID),
		categories:    make(map[uuid.UUID]*simpleaccount.Category),
		categoryNames: make(map[string]uuid.UUID),
		contents:      make(map[uuid.UUID]*simpleaccount.Content),
		links:         make(map[uuid.UUID]map[uuid.UUID]struct{}),
		reactions:     make(map[reactionKey]*simpleaccount.Reaction),
	}
}

// Profile operations

func (r *Repository) HandleExists(ctx context.Context, handle string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.handles[strings.ToLower(handle)]
	return exists, nil
}

func (r *Repository) CreateProfile(ctx context.Context, profile *simpleaccount.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(profile.Handle)
	if _, exists := r.handles[key]; exists {
		return simpleaccount.ErrHandleTaken
	}
	if _, exists := r.profiles[profile.ID]; exists {
		return fmt.Errorf("profile %s already exists", profile.ID)
	}

	profileCopy := *profile
	r.profiles[profile.ID] = &profileCopy
	r.handles[key] = profile.ID
	return nil
}

func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (*simpleaccount.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, exists := r.profiles[id]
	if !exists {
		return nil, simpleaccount.ErrProfileNotFound
	}
	profileCopy := *profile
	return &profileCopy, nil
}

func (r *Repository) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, exists := r.profiles[id]
	if !exists {
		return nil
	}
	delete(r.handles, strings.ToLower(profile.Handle))
	delete(r.profiles, id)
	return nil
}

// Category operations

func (r *Repository) CreateCategory(ctx context.Context, category *simpleaccount.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(category.Name)
	if _, exists := r.categoryNames[key]; exists {
		return simpleaccount.ErrCategoryNameTaken
	}

	categoryCopy := *category
	if category.CreatorID != nil {
		creator := *category.CreatorID
		categoryCopy.CreatorID = &creator
	}
	r.categories[category.ID] = &categoryCopy
	r.categoryNames[key] = category.ID
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (*simpleaccount.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category, exists := r.categories[id]
	if !exists {
		return nil, simpleaccount.ErrCategoryNotFound
	}
	categoryCopy := *category
	if category.CreatorID != nil {
		creator := *category.CreatorID
		categoryCopy.CreatorID = &creator
	}
	return &categoryCopy, nil
}

func (r *Repository) ListCategoryIDsByCreator(ctx context.Context, creatorID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var owned []*simpleaccount.Category
	for _, category := range r.categories {
		if category.CreatorID != nil && *category.CreatorID == creatorID {
			owned = append(owned, category)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return bytes.Compare(owned[i].ID[:], owned[j].ID[:]) < 0
		}
		return owned[i].CreatedAt.Before(owned[j].CreatedAt)
	})

	ids := make([]uuid.UUID, len(owned))
	for i, category := range owned {
		ids[i] = category.ID
	}
	return ids, nil
}

func (r *Repository) ListForeignCategoryAuthors(ctx context.Context, categoryIDs []uuid.UUID, excludeAuthor uuid.UUID) ([]simpleaccount.CategoryAuthor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[uuid.UUID]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		wanted[id] = struct{}{}
	}

	seen := make(map[simpleaccount.CategoryAuthor]struct{})
	var result []simpleaccount.CategoryAuthor
	for contentID, categories := range r.links {
		content, exists := r.contents[contentID]
		if !exists || content.AuthorID == excludeAuthor {
			continue
		}
		for categoryID := range categories {
			if _, ok := wanted[categoryID]; !ok {
				continue
			}
			pair := simpleaccount.CategoryAuthor{CategoryID: categoryID, AuthorID: content.AuthorID}
			if _, dup := seen[pair]; dup {
				continue
			}
			seen[pair] = struct{}{}
			result = append(result, pair)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if c := bytes.Compare(result[i].CategoryID[:], result[j].CategoryID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(result[i].AuthorID[:], result[j].AuthorID[:]) < 0
	})
	return result, nil
}

func (r *Repository) ReassignCategoryCreator(ctx context.Context, categoryID, creatorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	category, exists := r.categories[categoryID]
	if !exists {
		return simpleaccount.ErrCategoryNotFound
	}
	creator := creatorID
	category.CreatorID = &creator
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	category, exists := r.categories[id]
	if !exists {
		return nil
	}
	for _, categories := range r.links {
		delete(categories, id)
	}
	delete(r.categoryNames, strings.ToLower(category.Name))
	delete(r.categories, id)
	return nil
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *simpleaccount.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	contentCopy := *content
	r.contents[content.ID] = &contentCopy
	return nil
}

func (r *Repository) LinkContentCategory(ctx context.Context, link simpleaccount.ContentCategoryLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[link.ContentID]; !exists {
		return simpleaccount.ErrContentNotFound
	}
	if _, exists := r.categories[link.CategoryID]; !exists {
		return simpleaccount.ErrCategoryNotFound
	}
	if r.links[link.ContentID] == nil {
		r.links[link.ContentID] = make(map[uuid.UUID]struct{})
	}
	r.links[link.ContentID][link.CategoryID] = struct{}{}
	return nil
}

func (r *Repository) ListContentCategoryLinks(ctx context.Context, contentID uuid.UUID) ([]simpleaccount.ContentCategoryLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []simpleaccount.ContentCategoryLink
	for categoryID := range r.links[contentID] {
		result = append(result, simpleaccount.ContentCategoryLink{ContentID: contentID, CategoryID: categoryID})
	}
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].CategoryID[:], result[j].CategoryID[:]) < 0
	})
	return result, nil
}

func (r *Repository) CountContentByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, content := range r.contents {
		if content.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (r *Repository) DeleteContentByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make(map[uuid.UUID]struct{})
	for id, content := range r.contents {
		if content.AuthorID == authorID {
			removed[id] = struct{}{}
			delete(r.contents, id)
			delete(r.links, id)
		}
	}
	for key := range r.reactions {
		if key.subjectType != simpleaccount.SubjectPost {
			continue
		}
		if _, ok := removed[key.subjectID]; ok {
			delete(r.reactions, key)
		}
	}
	return int64(len(removed)), nil
}

// Reaction operations

func (r *Repository) CreateReaction(ctx context.Context, reaction *simpleaccount.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reaction.SubjectType == simpleaccount.SubjectPost {
		if _, exists := r.contents[reaction.SubjectID]; !exists {
			return simpleaccount.ErrContentNotFound
		}
	}
	key := reactionKey{subjectID: reaction.SubjectID, userID: reaction.UserID, subjectType: reaction.SubjectType}
	reactionCopy := *reaction
	r.reactions[key] = &reactionCopy
	return nil
}

func (r *Repository) CountReactionsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for key := range r.reactions {
		if key.userID == userID {
			n++
		}
	}
	return n, nil
}

func (r *Repository) DeleteReactionsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key := range r.reactions {
		if key.userID == userID {
			delete(r.reactions, key)
			n++
		}
	}
	return n, nil
}
