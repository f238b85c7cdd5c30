package simpleaccount_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/simpleaccount"
)

func deleteOwn(id uuid.UUID) simpleaccount.DeleteAccountRequest {
	return simpleaccount.DeleteAccountRequest{RequesterID: id, TargetID: id}
}

func failedSteps(report *simpleaccount.DeletionReport) []string {
	steps := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		steps = append(steps, f.Step)
	}
	return steps
}

func TestDeleteAccount_Forbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.register(t, "ann")
	bob := h.register(t, "bob")

	tests := []struct {
		name    string
		req     simpleaccount.DeleteAccountRequest
		wantErr error
	}{
		{"OtherUser", simpleaccount.DeleteAccountRequest{RequesterID: bob, TargetID: ann}, simpleaccount.ErrForbidden},
		{"Anonymous", simpleaccount.DeleteAccountRequest{TargetID: ann}, simpleaccount.ErrForbidden},
		{"Sentinel", deleteOwn(simpleaccount.SentinelIdentityID), simpleaccount.ErrSentinelIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := h.svc.DeleteAccount(ctx, tt.req)
			require.Error(t, err)
			assert.Nil(t, report)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, simpleaccount.KindForbidden, simpleaccount.KindOf(err))

			var ae *simpleaccount.AccountError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, http.StatusForbidden, ae.Kind.HTTPStatus())
		})
	}

	assert.True(t, h.identityExists(t, ann))
	_, err := h.repo.GetProfile(ctx, ann)
	assert.NoError(t, err)
	assert.Zero(t, h.identities.deleteCalls)
}

func TestDeleteAccount_ExclusiveCategoryIsDeleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.register(t, "ann")
	travel := h.category(t, "Travel", ann)
	h.post(t, ann, travel)
	h.post(t, ann, travel)

	report, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.NoError(t, err)
	assert.False(t, report.Partial())
	assert.Equal(t, []uuid.UUID{travel}, report.ExclusiveCategories)
	assert.Empty(t, report.SharedCategories)
	assert.EqualValues(t, 2, report.ContentDeleted)

	assert.False(t, h.categoryExists(t, travel))
	n, err := h.repo.CountContentByAuthor(ctx, ann)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = h.repo.GetProfile(ctx, ann)
	assert.ErrorIs(t, err, simpleaccount.ErrProfileNotFound)
	assert.False(t, h.identityExists(t, ann))

	require.Len(t, h.events.deleted, 1)
	assert.Equal(t, ann, h.events.deleted[0].UserID)
}

func TestDeleteAccount_SharedCategoryGoesToSentinel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.register(t, "ann")
	bob := h.register(t, "bob")
	travel := h.category(t, "Travel", ann)
	h.post(t, ann, travel)
	bobPost := h.post(t, bob, travel)

	report, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{travel}, report.SharedCategories)
	assert.Empty(t, report.ExclusiveCategories)

	category, err := h.repo.GetCategory(ctx, travel)
	require.NoError(t, err)
	require.NotNil(t, category.CreatorID)
	assert.Equal(t, simpleaccount.SentinelIdentityID, *category.CreatorID)

	links, err := h.repo.ListContentCategoryLinks(ctx, bobPost)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, travel, links[0].CategoryID)

	n, err := h.repo.CountContentByAuthor(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDeleteAccount_MixedCategories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.register(t, "ann")
	bob := h.register(t, "bob")

	shared := h.category(t, "Travel", ann)
	exclusive := h.category(t, "Diary", ann)
	unused := h.category(t, "Someday", ann)
	bobs := h.category(t, "Cooking", bob)

	h.post(t, ann, shared, exclusive, bobs)
	h.post(t, bob, shared, bobs)

	report, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{shared}, report.SharedCategories)
	assert.ElementsMatch(t, []uuid.UUID{exclusive, unused}, report.ExclusiveCategories)

	assert.True(t, h.categoryExists(t, shared))
	assert.False(t, h.categoryExists(t, exclusive))
	assert.False(t, h.categoryExists(t, unused))

	cooking, err := h.repo.GetCategory(ctx, bobs)
	require.NoError(t, err)
	assert.Equal(t, bob, *cooking.CreatorID)

	remaining, err := h.repo.ListCategoryIDsByCreator(ctx, ann)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDeleteAccount_RemovesReactionsAndBlobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.register(t, "ann")
	bob := h.register(t, "bob")

	annPost := h.post(t, ann)
	bobPost := h.post(t, bob)
	h.like(t, ann, bobPost)
	h.like(t, bob, annPost)

	h.upload(t, simpleaccount.BucketProfileImages, ann, "avatar.png")
	h.upload(t, simpleaccount.BucketPostImages, ann, "a.png")
	h.upload(t, simpleaccount.BucketPostImages, ann, "b.png")
	bobKey := h.upload(t, simpleaccount.BucketPostImages, bob, "a.png")

	report, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.ReactionsDeleted)
	assert.Equal(t, map[string]int{
		simpleaccount.BucketProfileImages: 1,
		simpleaccount.BucketPostImages:    2,
		simpleaccount.BucketCoverImages:   0,
	}, report.BlobsDeleted)

	for _, bucket := range simpleaccount.DefaultBuckets {
		assert.Empty(t, h.blobKeys(t, bucket, ann), bucket)
	}
	assert.Equal(t, []string{bobKey}, h.blobKeys(t, simpleaccount.BucketPostImages, bob))

	n, err := h.repo.CountReactionsByUser(ctx, ann)
	require.NoError(t, err)
	assert.Zero(t, n)
	// Bob's like on Ann's post went with the post.
	n, err = h.repo.CountReactionsByUser(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteAccount_IdentityFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.register(t, "ann")
	travel := h.category(t, "Travel", ann)
	h.post(t, ann, travel)
	h.upload(t, simpleaccount.BucketPostImages, ann, "a.png")
	h.identities.deleteErr = errors.New("provider unavailable")

	report, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.Error(t, err)
	assert.Equal(t, simpleaccount.KindIdentityDeletionFailed, simpleaccount.KindOf(err))

	var ae *simpleaccount.AccountError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusInternalServerError, ae.Kind.HTTPStatus())
	assert.Equal(t, "account could not be deleted", ae.PublicMessage())

	// Earlier steps ran and are reported.
	require.NotNil(t, report)
	assert.EqualValues(t, 1, report.ContentDeleted)
	assert.False(t, h.categoryExists(t, travel))
	assert.Empty(t, h.blobKeys(t, simpleaccount.BucketPostImages, ann))
	_, err = h.repo.GetProfile(ctx, ann)
	assert.ErrorIs(t, err, simpleaccount.ErrProfileNotFound)

	assert.True(t, h.identityExists(t, ann))
	assert.Empty(t, h.events.deleted)
	assert.Contains(t, h.logs.String(), "identity deletion failed")
}

func TestDeleteAccount_UnrelatedNotFoundErrorIsFatal(t *testing.T) {
	h := newHarness(t)
	ann := h.register(t, "ann")
	h.identities.deleteErr = errors.New("identity provider: admin endpoint not found (404)")

	report, err := h.svc.DeleteAccount(context.Background(), deleteOwn(ann))
	require.Error(t, err)
	assert.Equal(t, simpleaccount.KindIdentityDeletionFailed, simpleaccount.KindOf(err))
	require.NotNil(t, report)
	assert.True(t, h.identityExists(t, ann))
	assert.Empty(t, h.events.deleted)
}

func TestDeleteAccount_MissingIdentityCountsAsDeleted(t *testing.T) {
	h := newHarness(t)
	ann := h.register(t, "ann")
	h.identities.deleteErr = errors.New("user not found")

	_, err := h.svc.DeleteAccount(context.Background(), deleteOwn(ann))
	require.NoError(t, err)
	require.Len(t, h.events.deleted, 1)
}

func TestDeleteAccount_BlobFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.register(t, "ann")
	h.upload(t, simpleaccount.BucketProfileImages, ann, "avatar.png")
	h.upload(t, simpleaccount.BucketPostImages, ann, "a.png")
	h.blobs.listErr = map[string]error{simpleaccount.BucketProfileImages: errors.New("storage unavailable")}

	report, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.NoError(t, err)
	require.True(t, report.Partial())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, simpleaccount.StepPurgeBlobs, report.Failures[0].Step)
	assert.Equal(t, simpleaccount.BucketProfileImages, report.Failures[0].Subject)

	assert.Empty(t, h.blobKeys(t, simpleaccount.BucketPostImages, ann))
	assert.Len(t, h.blobKeys(t, simpleaccount.BucketProfileImages, ann), 1)
	assert.False(t, h.identityExists(t, ann))

	logs := h.logs.String()
	assert.Contains(t, logs, `"outcome":"deletion_partial_failure"`)
	require.Len(t, h.events.deleted, 1)
	assert.True(t, h.events.deleted[0].Partial())
}

func TestDeleteAccount_PartialBlobDelete(t *testing.T) {
	h := newHarness(t)
	ann := h.register(t, "ann")
	h.upload(t, simpleaccount.BucketPostImages, ann, "a.png")
	stuck := h.upload(t, simpleaccount.BucketPostImages, ann, "b.png")
	h.upload(t, simpleaccount.BucketPostImages, ann, "c.png")
	h.blobs.stuckKeys = map[string]error{stuck: errors.New("access denied")}

	report, err := h.svc.DeleteAccount(context.Background(), deleteOwn(ann))
	require.NoError(t, err)
	assert.Equal(t, 2, report.BlobsDeleted[simpleaccount.BucketPostImages])
	require.Len(t, report.Failures, 1)

	var partial *simpleaccount.BlobDeleteError
	require.ErrorAs(t, report.Failures[0].Err, &partial)
	assert.Contains(t, partial.Failed, stuck)
	assert.Equal(t, []string{stuck}, h.blobKeys(t, simpleaccount.BucketPostImages, ann))
}

func TestDeleteAccount_BestEffortSteps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ann := h.register(t, "ann")
	bob := h.register(t, "bob")

	sharedA := h.category(t, "Travel", ann)
	sharedB := h.category(t, "Food", ann)
	h.post(t, ann, sharedA, sharedB)
	h.post(t, bob, sharedA, sharedB)

	h.repo.reassignErr = map[uuid.UUID]error{sharedA: errors.New("deadlock detected")}
	h.repo.deleteContentErr = errors.New("statement timeout")
	h.repo.deleteReactionsErr = errors.New("statement timeout")
	h.repo.deleteProfileErr = errors.New("connection reset")

	report, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.NoError(t, err)
	assert.Equal(t, []string{
		simpleaccount.StepReassignCategory,
		simpleaccount.StepDeleteContent,
		simpleaccount.StepDeleteReactions,
		simpleaccount.StepDeleteProfile,
	}, failedSteps(report))
	assert.Equal(t, sharedA.String(), report.Failures[0].Subject)

	// The other shared category was still reassigned.
	food, err := h.repo.GetCategory(ctx, sharedB)
	require.NoError(t, err)
	assert.Equal(t, simpleaccount.SentinelIdentityID, *food.CreatorID)

	assert.False(t, h.identityExists(t, ann))
	assert.ErrorContains(t, report.Err(), "deadlock detected")
	assert.ErrorContains(t, report.Err(), "connection reset")
}

func TestDeleteAccount_OwnershipFailureSkipsCategories(t *testing.T) {
	h := newHarness(t)
	ann := h.register(t, "ann")
	travel := h.category(t, "Travel", ann)
	h.repo.listCategoriesErr = errors.New("relation does not exist")

	report, err := h.svc.DeleteAccount(context.Background(), deleteOwn(ann))
	require.NoError(t, err)
	assert.Equal(t, []string{simpleaccount.StepResolveOwnership}, failedSteps(report))
	assert.True(t, h.categoryExists(t, travel))
	assert.False(t, h.identityExists(t, ann))
}

func TestDeleteAccount_RepeatIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ann := h.register(t, "ann")
	h.post(t, ann)

	_, err := h.svc.DeleteAccount(context.Background(), deleteOwn(ann))
	require.NoError(t, err)

	report, err := h.svc.DeleteAccount(context.Background(), deleteOwn(ann))
	require.NoError(t, err)
	assert.False(t, report.Partial())
	assert.Zero(t, report.ContentDeleted)
}

func TestDeleteAccount_ConcurrentCleanup(t *testing.T) {
	h := newHarness(t, simpleaccount.WithConcurrentCleanup(true))
	ctx := context.Background()
	ann := h.register(t, "ann")
	bob := h.register(t, "bob")

	var shared, exclusive []uuid.UUID
	for _, name := range []string{"A", "B", "C"} {
		s := h.category(t, "shared"+name, ann)
		e := h.category(t, "exclusive"+name, ann)
		h.post(t, ann, s, e)
		h.post(t, bob, s)
		shared = append(shared, s)
		exclusive = append(exclusive, e)
	}
	for _, bucket := range simpleaccount.DefaultBuckets {
		h.upload(t, bucket, ann, "x.png")
	}
	h.blobs.listErr = map[string]error{simpleaccount.BucketCoverImages: errors.New("storage unavailable")}

	report, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.NoError(t, err)
	assert.ElementsMatch(t, shared, report.SharedCategories)
	assert.ElementsMatch(t, exclusive, report.ExclusiveCategories)
	assert.Equal(t, []string{simpleaccount.StepPurgeBlobs}, failedSteps(report))
	assert.Equal(t, 1, report.BlobsDeleted[simpleaccount.BucketProfileImages])
	assert.Equal(t, 1, report.BlobsDeleted[simpleaccount.BucketPostImages])

	for _, id := range shared {
		c, err := h.repo.GetCategory(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, simpleaccount.SentinelIdentityID, *c.CreatorID)
	}
	for _, id := range exclusive {
		assert.False(t, h.categoryExists(t, id))
	}
}

func TestDeleteAccount_ConcurrentRequestsForSameUser(t *testing.T) {
	h := newHarness(t)
	ann := h.register(t, "ann")
	travel := h.category(t, "Travel", ann)
	h.post(t, ann, travel)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.DeleteAccount(context.Background(), deleteOwn(ann))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.False(t, h.identityExists(t, ann))
	assert.False(t, h.categoryExists(t, travel))
}

func TestDeleteAccount_IgnoresCallerCancellation(t *testing.T) {
	h := newHarness(t)
	ann := h.register(t, "ann")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.NoError(t, err)
	assert.False(t, h.identityExists(t, ann))
}

func TestDeleteAccount_CustomSentinelAndBuckets(t *testing.T) {
	keeper := uuid.New()
	h := newHarness(t,
		simpleaccount.WithSentinelIdentity(keeper),
		simpleaccount.WithBuckets("avatars"),
	)
	ctx := context.Background()
	ann := h.register(t, "ann")
	bob := h.register(t, "bob")
	travel := h.category(t, "Travel", ann)
	h.post(t, ann, travel)
	h.post(t, bob, travel)
	h.upload(t, "avatars", ann, "me.png")
	h.upload(t, simpleaccount.BucketPostImages, ann, "kept.png")

	report, err := h.svc.DeleteAccount(ctx, deleteOwn(ann))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"avatars": 1}, report.BlobsDeleted)
	assert.Len(t, h.blobKeys(t, simpleaccount.BucketPostImages, ann), 1)

	c, err := h.repo.GetCategory(ctx, travel)
	require.NoError(t, err)
	assert.Equal(t, keeper, *c.CreatorID)

	_, err = h.svc.DeleteAccount(ctx, deleteOwn(keeper))
	assert.ErrorIs(t, err, simpleaccount.ErrSentinelIdentity)
}
