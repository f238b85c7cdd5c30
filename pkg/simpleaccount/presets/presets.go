// Package presets wires ready-to-use account services for local development
// and tests.
package presets

import (
	"crypto/rand"
	"fmt"
	"os"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-account/pkg/simpleaccount"
	"github.com/tendant/simple-account/pkg/simpleaccount/auth"
	identitymem "github.com/tendant/simple-account/pkg/simpleaccount/identity/memory"
	repomem "github.com/tendant/simple-account/pkg/simpleaccount/repo/memory"
	fsstorage "github.com/tendant/simple-account/pkg/simpleaccount/storage/fs"
	storagemem "github.com/tendant/simple-account/pkg/simpleaccount/storage/memory"
)

// Stack is a service together with the stores behind it, so callers can seed
// data and inspect the result of an operation.
type Stack struct {
	Service    simpleaccount.Service
	Identities *identitymem.Store
	Repository simpleaccount.Repository
	Blobs      simpleaccount.BlobStore
}

// NewDevelopment creates a stack for local development.
//
// Features:
//   - In-memory identities and relational data (instant startup)
//   - Filesystem blob storage at ./dev-data/
//   - Random token secret, so tokens do not survive a restart
//
// The returned cleanup function removes the storage directory.
//
// Example:
//
//	stack, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (*Stack, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	tokens, err := auth.NewTokenIssuer(secret, auth.DefaultTTL, "simple-account-dev")
	if err != nil {
		return nil, nil, err
	}

	blobs, err := fsstorage.New(fsstorage.Config{BaseDir: cfg.storageDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	stack, err := newStack(
		identitymem.New(tokens, identitymem.WithSentinel(simpleaccount.SentinelIdentityID)),
		blobs,
		cfg.serviceOptions,
	)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		os.RemoveAll(cfg.storageDir)
	}
	return stack, cleanup, nil
}

// NewTesting creates a stack for unit tests. Everything is in memory and
// isolated per call; passwords are hashed with the minimum bcrypt cost.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    stack := presets.NewTesting(t)
//	    ...
//	}
func NewTesting(t testing.TB, opts ...TestingOption) *Stack {
	t.Helper()

	cfg := &testConfig{
		secret: "simple-account-test-secret",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tokens, err := auth.NewTokenIssuer([]byte(cfg.secret), auth.DefaultTTL, "")
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}

	stack, err := newStack(
		identitymem.New(tokens, identitymem.WithBcryptCost(bcrypt.MinCost)),
		storagemem.New(),
		append([]simpleaccount.Option{simpleaccount.WithEventSink(simpleaccount.NewNoopEventSink())}, cfg.serviceOptions...),
	)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}
	return stack
}

func newStack(identities *identitymem.Store, blobs simpleaccount.BlobStore, extra []simpleaccount.Option) (*Stack, error) {
	repo := repomem.New()

	options := append([]simpleaccount.Option{
		simpleaccount.WithIdentityStore(identities),
		simpleaccount.WithRepository(repo),
		simpleaccount.WithBlobStore(blobs),
	}, extra...)

	svc, err := simpleaccount.New(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return &Stack{
		Service:    svc,
		Identities: identities,
		Repository: repo,
		Blobs:      blobs,
	}, nil
}

// devConfig holds development preset configuration
type devConfig struct {
	storageDir     string
	serviceOptions []simpleaccount.Option
}

// testConfig holds testing preset configuration
type testConfig struct {
	secret         string
	serviceOptions []simpleaccount.Option
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the development storage directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// WithDevServiceOptions passes extra options to simpleaccount.New
func WithDevServiceOptions(opts ...simpleaccount.Option) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.serviceOptions = append(cfg.serviceOptions, opts...)
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestSecret sets the token signing secret
func WithTestSecret(secret string) TestingOption {
	return func(cfg *testConfig) {
		cfg.secret = secret
	}
}

// WithTestServiceOptions passes extra options to simpleaccount.New
func WithTestServiceOptions(opts ...simpleaccount.Option) TestingOption {
	return func(cfg *testConfig) {
		cfg.serviceOptions = append(cfg.serviceOptions, opts...)
	}
}
