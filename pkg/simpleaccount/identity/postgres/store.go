package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-account/pkg/simpleaccount"
	"github.com/tendant/simple-account/pkg/simpleaccount/auth"
	repo "github.com/tendant/simple-account/pkg/simpleaccount/repo/postgres"
)

// Store implements simpleaccount.IdentityStore and simpleaccount.Authenticator
// over the identities table.
type Store struct {
	db         repo.DBTX
	tokens     *auth.TokenIssuer
	cost       int
	sentinelID uuid.UUID
}

// Option configures a Store
type Option func(*Store)

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) {
		s.cost = cost
	}
}

// WithSentinel sets the identity id DeleteIdentity refuses to remove.
func WithSentinel(id uuid.UUID) Option {
	return func(s *Store) {
		s.sentinelID = id
	}
}

// New creates a Postgres identity store.
func New(db repo.DBTX, tokens *auth.TokenIssuer, opts ...Option) *Store {
	s := &Store{
		db:         db,
		tokens:     tokens,
		cost:       bcrypt.DefaultCost,
		sentinelID: simpleaccount.SentinelIdentityID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWithPool creates a Postgres identity store on a connection pool.
func NewWithPool(pool *pgxpool.Pool, tokens *auth.TokenIssuer, opts ...Option) *Store {
	return New(pool, tokens, opts...)
}

func (s *Store) CreateIdentity(ctx context.Context, email, password string) (*simpleaccount.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity := &simpleaccount.Identity{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	query := `
		INSERT INTO identities (id, email, password_hash, email_confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.db.Exec(ctx, query,
		identity.ID, identity.Email, identity.PasswordHash, identity.EmailConfirmed, identity.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "identities_email") {
			return nil, simpleaccount.ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return identity, nil
}

func (s *Store) GetIdentity(ctx context.Context, id uuid.UUID) (*simpleaccount.Identity, error) {
	query := `SELECT id, email, password_hash, email_confirmed, created_at FROM identities WHERE id = $1`
	return s.scanOne(ctx, "get identity", query, id)
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

	tag, err := s.db.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleaccount.ErrIdentityNotFound
	}
	return nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (string, error) {
	query := `SELECT id, email, password_hash, email_confirmed, created_at FROM identities WHERE lower(email) = lower($1)`
	identity, err := s.scanOne(ctx, "sign in", query, email)
	if err != nil {
		if errors.Is(err, simpleaccount.ErrIdentityNotFound) {
			return "", simpleaccount.ErrInvalidCredentials
		}
		return "", err
	}

	if len(identity.PasswordHash) == 0 {
		return "", simpleaccount.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(identity.PasswordHash, []byte(password)); err != nil {
		return "", simpleaccount.ErrInvalidCredentials
	}
	return s.tokens.Issue(identity.ID)
}

func (s *Store) scanOne(ctx context.Context, op, query string, arg interface{}) (*simpleaccount.Identity, error) {
	var identity simpleaccount.Identity
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&identity.ID, &identity.Email, &identity.PasswordHash, &identity.EmailConfirmed, &identity.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleaccount.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &identity, nil
}
