package simpleaccount_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-account/pkg/simpleaccount"
	"github.com/tendant/simple-account/pkg/simpleaccount/auth"
	identitymem "github.com/tendant/simple-account/pkg/simpleaccount/identity/memory"
	"github.com/tendant/simple-account/pkg/simpleaccount/objectkey"
	repomem "github.com/tendant/simple-account/pkg/simpleaccount/repo/memory"
	storagemem "github.com/tendant/simple-account/pkg/simpleaccount/storage/memory"
)

// faultyIdentities wraps an identity store and fails selected calls.
type faultyIdentities struct {
	*identitymem.Store

	mu          sync.Mutex
	createErr   error
	deleteErr   error
	createCalls int
	deleteCalls int
}

func (f *faultyIdentities) CreateIdentity(ctx context.Context, email, password string) (*simpleaccount.Identity, error) {
	f.mu.Lock()
	f.createCalls++
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.Store.CreateIdentity(ctx, email, password)
}

func (f *faultyIdentities) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	f.deleteCalls++
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.Store.DeleteIdentity(ctx, id)
}

// faultyRepo wraps a repository and fails selected calls. Fields are set
// before the service runs and only read afterwards.
type faultyRepo struct {
	simpleaccount.Repository

	handleCheckBlind   bool
	createProfileErr   error
	listCategoriesErr  error
	reassignErr        map[uuid.UUID]error
	deleteCategoryErr  map[uuid.UUID]error
	deleteContentErr   error
	deleteReactionsErr error
	deleteProfileErr   error
}

func (f *faultyRepo) HandleExists(ctx context.Context, handle string) (bool, error) {
	if f.handleCheckBlind {
		return false, nil
	}
	return f.Repository.HandleExists(ctx, handle)
}

func (f *faultyRepo) CreateProfile(ctx context.Context, profile *simpleaccount.Profile) error {
	if f.createProfileErr != nil {
		return f.createProfileErr
	}
	return f.Repository.CreateProfile(ctx, profile)
}

func (f *faultyRepo) ListCategoryIDsByCreator(ctx context.Context, creatorID uuid.UUID) ([]uuid.UUID, error) {
	if f.listCategoriesErr != nil {
		return nil, f.listCategoriesErr
	}
	return f.Repository.ListCategoryIDsByCreator(ctx, creatorID)
}

func (f *faultyRepo) ReassignCategoryCreator(ctx context.Context, categoryID, creatorID uuid.UUID) error {
	if err := f.reassignErr[categoryID]; err != nil {
		return err
	}
	return f.Repository.ReassignCategoryCreator(ctx, categoryID, creatorID)
}

func (f *faultyRepo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := f.deleteCategoryErr[id]; err != nil {
		return err
	}
	return f.Repository.DeleteCategory(ctx, id)
}

func (f *faultyRepo) DeleteContentByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error) {
	if f.deleteContentErr != nil {
		return 0, f.deleteContentErr
	}
	return f.Repository.DeleteContentByAuthor(ctx, authorID)
}

func (f *faultyRepo) DeleteReactionsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.deleteReactionsErr != nil {
		return 0, f.deleteReactionsErr
	}
	return f.Repository.DeleteReactionsByUser(ctx, userID)
}

func (f *faultyRepo) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	if f.deleteProfileErr != nil {
		return f.deleteProfileErr
	}
	return f.Repository.DeleteProfile(ctx, id)
}

// faultyBlobs wraps a blob store and fails selected buckets.
type faultyBlobs struct {
	*storagemem.Backend

	listErr   map[string]error
	deleteErr map[string]error
	stuckKeys map[string]error
}

func (f *faultyBlobs) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := f.listErr[bucket]; err != nil {
		return nil, err
	}
	return f.Backend.List(ctx, bucket, prefix)
}

func (f *faultyBlobs) Delete(ctx context.Context, bucket string, keys []string) error {
	if err := f.deleteErr[bucket]; err != nil {
		return err
	}
	var removable []string
	failed := make(map[string]error)
	for _, key := range keys {
		if err, ok := f.stuckKeys[key]; ok {
			failed[key] = err
			continue
		}
		removable = append(removable, key)
	}
	if err := f.Backend.Delete(ctx, bucket, removable); err != nil {
		return err
	}
	if len(failed) > 0 {
		return &simpleaccount.BlobDeleteError{Bucket: bucket, Failed: failed}
	}
	return nil
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu                 sync.Mutex
	registered         []simpleaccount.RegisterResult
	deleted            []simpleaccount.DeletionReport
	compensationFailed []uuid.UUID
}

func (r *recordingSink) AccountRegistered(ctx context.Context, result *simpleaccount.RegisterResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, *result)
	return nil
}

func (r *recordingSink) AccountDeleted(ctx context.Context, report *simpleaccount.DeletionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, *report)
	return nil
}

func (r *recordingSink) CompensationFailed(ctx context.Context, identityID uuid.UUID, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compensationFailed = append(r.compensationFailed, identityID)
	return nil
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	svc        simpleaccount.Service
	identities *faultyIdentities
	repo       *faultyRepo
	blobs      *faultyBlobs
	events     *recordingSink
	logs       *syncBuffer
}

func newHarness(t *testing.T, opts ...simpleaccount.Option) *harness {
	t.Helper()

	tokens, err := auth.NewTokenIssuer([]byte("test-secret"), time.Hour, "")
	require.NoError(t, err)

	h := &harness{
		identities: &faultyIdentities{Store: identitymem.New(tokens, identitymem.WithBcryptCost(bcrypt.MinCost))},
		repo:       &faultyRepo{Repository: repomem.New()},
		blobs:      &faultyBlobs{Backend: storagemem.New()},
		events:     &recordingSink{},
		logs:       &syncBuffer{},
	}
	logger := slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	all := append([]simpleaccount.Option{
		simpleaccount.WithIdentityStore(h.identities),
		simpleaccount.WithRepository(h.repo),
		simpleaccount.WithBlobStore(h.blobs),
		simpleaccount.WithEventSink(h.events),
		simpleaccount.WithLogger(logger),
	}, opts...)
	h.svc, err = simpleaccount.New(all...)
	require.NoError(t, err)
	return h
}

func (h *harness) register(t *testing.T, handle string) uuid.UUID {
	t.Helper()
	res, err := h.svc.Register(context.Background(), simpleaccount.RegisterRequest{
		Email:       handle + "@x.com",
		Password:    "p",
		DisplayName: strings.ToUpper(handle[:1]) + handle[1:],
		Handle:      handle,
	})
	require.NoError(t, err)
	return res.ID
}

func (h *harness) category(t *testing.T, name string, creator uuid.UUID) uuid.UUID {
	t.Helper()
	c := &simpleaccount.Category{ID: uuid.New(), Name: name, CreatorID: &creator, CreatedAt: time.Now().UTC()}
	require.NoError(t, h.repo.Repository.CreateCategory(context.Background(), c))
	return c.ID
}

func (h *harness) post(t *testing.T, author uuid.UUID, categories ...uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	c := &simpleaccount.Content{ID: uuid.New(), AuthorID: author, Title: "post", CreatedAt: time.Now().UTC()}
	require.NoError(t, h.repo.Repository.CreateContent(ctx, c))
	for _, category := range categories {
		require.NoError(t, h.repo.Repository.LinkContentCategory(ctx, simpleaccount.ContentCategoryLink{ContentID: c.ID, CategoryID: category}))
	}
	return c.ID
}

func (h *harness) like(t *testing.T, user, post uuid.UUID) {
	t.Helper()
	r := &simpleaccount.Reaction{SubjectID: post, UserID: user, SubjectType: simpleaccount.SubjectPost, CreatedAt: time.Now().UTC()}
	require.NoError(t, h.repo.Repository.CreateReaction(context.Background(), r))
}

func (h *harness) upload(t *testing.T, bucket string, owner uuid.UUID, filename string) string {
	t.Helper()
	key := objectkey.Key(owner, filename)
	require.NoError(t, h.blobs.Backend.Upload(context.Background(), bucket, key, strings.NewReader("img")))
	return key
}

func (h *harness) blobKeys(t *testing.T, bucket string, owner uuid.UUID) []string {
	t.Helper()
	keys, err := h.blobs.Backend.List(context.Background(), bucket, objectkey.OwnerPrefix(owner))
	require.NoError(t, err)
	return keys
}

func (h *harness) identityExists(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	_, err := h.identities.Store.GetIdentity(context.Background(), id)
	return err == nil
}

func (h *harness) categoryExists(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	_, err := h.repo.Repository.GetCategory(context.Background(), id)
	return err == nil
}
