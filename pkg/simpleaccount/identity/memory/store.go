package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-account/pkg/simpleaccount"
	"github.com/tendant/simple-account/pkg/simpleaccount/auth"
)

// Store implements simpleaccount.IdentityStore and simpleaccount.Authenticator
// in memory. The sentinel identity is seeded on creation and cannot be deleted.
type Store struct {
	mu         sync.RWMutex
	identities map[uuid.UUID]*simpleaccount.Identity
	emails     map[string]uuid.UUID // lower(email) -> identity id

	tokens     *auth.TokenIssuer
	cost       int
	sentinelID uuid.UUID
}

// Option configures a Store
type Option func(*Store)

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) {
		s.cost = cost
	}
}

// WithSentinel replaces the seeded sentinel identity id.
func WithSentinel(id uuid.UUID) Option {
	return func(s *Store) {
		s.sentinelID = id
	}
}

// New creates an in-memory identity store issuing tokens with tokens.
func New(tokens *auth.TokenIssuer, opts ...Option) *Store {
	s := &Store{
		identities: make(map[uuid.UUID]*simpleaccount.Identity),
		emails:     make(map[string]uuid.UUID),
		tokens:     tokens,
		cost:       bcrypt.DefaultCost,
		sentinelID: simpleaccount.SentinelIdentityID,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.identities[s.sentinelID] = &simpleaccount.Identity{
		ID:             s.sentinelID,
		Email:          "system@localhost",
		EmailConfirmed: true,
		CreatedAt:      time.Now().UTC(),
	}
	s.emails["system@localhost"] = s.sentinelID
	return s
}

func (s *Store) CreateIdentity(ctx context.Context, email, password string) (*simpleaccount.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := s.emails[key]; exists {
		return nil, simpleaccount.ErrEmailAlreadyRegistered
	}

	identity := &simpleaccount.Identity{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	s.identities[identity.ID] = identity
	s.emails[key] = identity.ID

	identityCopy := *identity
	return &identityCopy, nil
}

func (s *Store) GetIdentity(ctx context.Context, id uuid.UUID) (*simpleaccount.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, exists := s.identities[id]
	if !exists {
		return nil, simpleaccount.ErrIdentityNotFound
	}
	identityCopy := *identity
	return &identityCopy, nil
}

func (s *Store) GetIdentityByToken(ctx context.Context, token string) (*simpleaccount.Identity, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	return s.GetIdentity(ctx, id)
}

func (s *Store) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	if id == s.sentinelID {
		return simpleaccount.ErrSentinelIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	identity, exists := s.identities[id]
	if !exists {
		return simpleaccount.ErrIdentityNotFound
	}
	delete(s.emails, strings.ToLower(identity.Email))
	delete(s.identities, id)
	return nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (string, error) {
	s.mu.RLock()
	id, exists := s.emails[strings.ToLower(email)]
	var hash []byte
	if exists {
		hash = s.identities[id].PasswordHash
	}
	s.mu.RUnlock()

	if !exists || len(hash) == 0 {
		return "", simpleaccount.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", simpleaccount.ErrInvalidCredentials
	}
	return s.tokens.Issue(id)
}
