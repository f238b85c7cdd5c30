package config

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-account/pkg/simpleaccount"
	"github.com/tendant/simple-account/pkg/simpleaccount/admin"
	"github.com/tendant/simple-account/pkg/simpleaccount/auth"
	identitymem "github.com/tendant/simple-account/pkg/simpleaccount/identity/memory"
	identitypg "github.com/tendant/simple-account/pkg/simpleaccount/identity/postgres"
	repomem "github.com/tendant/simple-account/pkg/simpleaccount/repo/memory"
	repopg "github.com/tendant/simple-account/pkg/simpleaccount/repo/postgres"
	fsstorage "github.com/tendant/simple-account/pkg/simpleaccount/storage/fs"
	gcsstorage "github.com/tendant/simple-account/pkg/simpleaccount/storage/gcs"
	memorystorage "github.com/tendant/simple-account/pkg/simpleaccount/storage/memory"
	s3storage "github.com/tendant/simple-account/pkg/simpleaccount/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		DBSchema:           "account",
		Storage:            StorageConfig{Type: "memory"},
		TokenTTL:           auth.DefaultTTL,
		TokenIssuer:        "simple-account",
		SentinelIdentityID: simpleaccount.SentinelIdentityID,
		Buckets:            append([]string(nil), simpleaccount.DefaultBuckets...),
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for the account service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration. Profiles, categories, content, reactions and
	// identities share one database.
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: account)

	Storage StorageConfig

	// Bearer tokens
	JWTSecret   string
	TokenTTL    time.Duration
	TokenIssuer string

	// Deletion behaviour
	SentinelIdentityID uuid.UUID
	Buckets            []string
	ConcurrentCleanup  bool

	EnableEventLogging bool

	logger *slog.Logger
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Type string // "memory", "fs", "s3", "gcs"

	// Filesystem
	BaseDir string

	// Prefix added to logical bucket names by the s3 and gcs backends
	BucketPrefix string

	// S3 and S3-compatible services
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	CreateBuckets   bool
	EnableSSE       bool
	SSEAlgorithm    string
	SSEKMSKeyID     string

	// Google Cloud Storage
	CredentialsFile string
	EmulatorHost    string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory", "s3", "gcs":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("storage base_dir is required for fs storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return errors.New("jwt_secret is required in production")
		}
		if c.DatabaseType == "memory" {
			return errors.New("memory database is not allowed in production")
		}
	}

	if c.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	if c.SentinelIdentityID == uuid.Nil {
		return errors.New("sentinel_identity_id must not be nil")
	}
	if len(c.Buckets) == 0 {
		return errors.New("at least one bucket is required")
	}

	return nil
}

// Components is what BuildService wires together.
type Components struct {
	Service       simpleaccount.Service
	Authenticator simpleaccount.Authenticator
	Admin         admin.AdminService
	Blobs         simpleaccount.BlobStore
	Buckets       []string

	closers []func()
}

// Close releases database pools and storage clients.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

type identityProvider interface {
	simpleaccount.IdentityStore
	simpleaccount.Authenticator
}

// BuildService creates the account service and its collaborators from the
// configuration. Callers must Close the returned Components.
func (c *ServerConfig) BuildService(ctx context.Context) (*Components, error) {
	logger := c.logger
	if logger == nil {
		logger = slog.Default()
	}
	components := &Components{}

	secret := []byte(c.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		logger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer(secret, c.TokenTTL, c.TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to build token issuer: %w", err)
	}

	repo, identities, err := c.buildStores(ctx, tokens, components)
	if err != nil {
		components.Close()
		return nil, err
	}

	blobs, err := c.buildBlobStore(ctx, components)
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}

	var eventSink simpleaccount.EventSink = simpleaccount.NewNoopEventSink()
	if c.EnableEventLogging {
		eventSink = simpleaccount.NewLoggingEventSink(logger)
	}

	svc, err := simpleaccount.New(
		simpleaccount.WithIdentityStore(identities),
		simpleaccount.WithRepository(repo),
		simpleaccount.WithBlobStore(blobs),
		simpleaccount.WithEventSink(eventSink),
		simpleaccount.WithLogger(logger),
		simpleaccount.WithBuckets(c.Buckets...),
		simpleaccount.WithSentinelIdentity(c.SentinelIdentityID),
		simpleaccount.WithConcurrentCleanup(c.ConcurrentCleanup),
	)
	if err != nil {
		components.Close()
		return nil, err
	}

	components.Service = svc
	components.Authenticator = identities
	components.Blobs = blobs
	components.Buckets = append([]string(nil), c.Buckets...)
	components.Admin = admin.New(admin.Stores{
		Identities: identities,
		Repository: repo,
		Blobs:      blobs,
		Buckets:    c.Buckets,
	})
	return components, nil
}

// buildStores creates the relational store and the identity provider
func (c *ServerConfig) buildStores(ctx context.Context, tokens *auth.TokenIssuer, components *Components) (simpleaccount.Repository, identityProvider, error) {
	switch c.DatabaseType {
	case "memory":
		return repomem.New(), identitymem.New(tokens, identitymem.WithSentinel(c.SentinelIdentityID)), nil
	case "postgres":
		pool, err := OpenPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		components.closers = append(components.closers, pool.Close)
		return repopg.NewWithPool(pool), identitypg.NewWithPool(pool, tokens, identitypg.WithSentinel(c.SentinelIdentityID)), nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// OpenPool creates a pgx pool whose sessions use schema as search_path.
func OpenPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		searchPath := "SET search_path TO " + pgx.Identifier{schema}.Sanitize()
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, searchPath)
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres. It fails if the schema
// (when provided) does not exist.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	pool, err := OpenPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildBlobStore creates a BlobStore based on the storage configuration
func (c *ServerConfig) buildBlobStore(ctx context.Context, components *Components) (simpleaccount.BlobStore, error) {
	sc := c.Storage
	switch sc.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: sc.BaseDir})

	case "s3":
		s3Config := s3storage.Config{
			Region:          sc.Region,
			AccessKeyID:     sc.AccessKeyID,
			SecretAccessKey: sc.SecretAccessKey,
			Endpoint:        sc.Endpoint,
			UsePathStyle:    sc.UsePathStyle,
			BucketPrefix:    sc.BucketPrefix,
			EnableSSE:       sc.EnableSSE,
			SSEAlgorithm:    sc.SSEAlgorithm,
			SSEKMSKeyID:     sc.SSEKMSKeyID,
		}
		if sc.CreateBuckets {
			s3Config.CreateBuckets = c.Buckets
		}
		return s3storage.New(ctx, s3Config)

	case "gcs":
		backend, err := gcsstorage.New(ctx, gcsstorage.Config{
			BucketPrefix:    sc.BucketPrefix,
			CredentialsFile: sc.CredentialsFile,
			EmulatorHost:    sc.EmulatorHost,
		})
		if err != nil {
			return nil, err
		}
		components.closers = append(components.closers, func() { _ = backend.Close() })
		return backend, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", sc.Type)
	}
}
