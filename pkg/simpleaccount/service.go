package simpleaccount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Service defines the account lifecycle operations
type Service interface {
	// Register creates an identity and its profile, removing the identity
	// again when the profile cannot be written.
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)

	// DeleteAccount removes an account and everything it owns. Only the
	// identity deletion decides the result; failures of earlier steps are
	// recorded in the report.
	DeleteAccount(ctx context.Context, req DeleteAccountRequest) (*DeletionReport, error)

	// ResolveCategoryOwnership partitions the categories created by userID.
	ResolveCategoryOwnership(ctx context.Context, userID uuid.UUID) (*CategoryOwnership, error)

	// Authenticate resolves a bearer token to an identity.
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// service implements the Service interface
type service struct {
	identities IdentityStore
	repository Repository
	blobs      BlobStore
	eventSink  EventSink
	logger     *slog.Logger

	buckets           []string
	sentinelID        uuid.UUID
	handleGenerator   HandleGenerator
	concurrentCleanup bool
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithIdentityStore sets the identity provider client
func WithIdentityStore(store IdentityStore) Option {
	return func(s *service) {
		s.identities = store
	}
}

// WithRepository sets the relational store
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob store purged on deletion
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithBuckets replaces the buckets purged on deletion. Defaults to DefaultBuckets.
func WithBuckets(buckets ...string) Option {
	return func(s *service) {
		s.buckets = append([]string(nil), buckets...)
	}
}

// WithSentinelIdentity sets the identity that takes over shared categories.
// Defaults to SentinelIdentityID.
func WithSentinelIdentity(id uuid.UUID) Option {
	return func(s *service) {
		s.sentinelID = id
	}
}

// WithHandleGenerator replaces the handle derivation used when a registration
// omits the handle. Defaults to DeriveHandle.
func WithHandleGenerator(gen HandleGenerator) Option {
	return func(s *service) {
		s.handleGenerator = gen
	}
}

// WithConcurrentCleanup runs the category steps and the per-bucket purge of
// DeleteAccount concurrently. Outcomes are the same either way.
func WithConcurrentCleanup(enabled bool) Option {
	return func(s *service) {
		s.concurrentCleanup = enabled
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:       NewNoopEventSink(),
		buckets:         append([]string(nil), DefaultBuckets...),
		sentinelID:      SentinelIdentityID,
		handleGenerator: DeriveHandle,
	}

	for _, option := range options {
		option(s)
	}

	if s.identities == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.sentinelID == uuid.Nil {
		return nil, fmt.Errorf("sentinel identity id must not be nil")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	s.logger = s.logger.With("service", "simpleaccount")

	return s, nil
}

func (s *service) ResolveCategoryOwnership(ctx context.Context, userID uuid.UUID) (*CategoryOwnership, error) {
	candidates, err := s.repository.ListCategoryIDsByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories created by %s: %w", userID, err)
	}
	if len(candidates) == 0 {
		ownership := PartitionCategories(nil, nil)
		return &ownership, nil
	}

	foreign, err := s.repository.ListForeignCategoryAuthors(ctx, candidates, userID)
	if err != nil {
		return nil, fmt.Errorf("list foreign authors of categories created by %s: %w", userID, err)
	}

	ownership := PartitionCategories(candidates, foreign)
	return &ownership, nil
}

func (s *service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	identity, err := s.identities.GetIdentityByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return identity, nil
}
