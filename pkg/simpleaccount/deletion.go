package simpleaccount

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-account/pkg/simpleaccount/objectkey"
)

func (s *service) DeleteAccount(ctx context.Context, req DeleteAccountRequest) (*DeletionReport, error) {
	if err := s.authorizeDeletion(req); err != nil {
		s.logger.Warn("account deletion forbidden",
			"requester_id", req.RequesterID,
			"user_id", req.TargetID,
			"err", err,
		)
		return nil, err
	}
	// Once authorized the saga runs to completion.
	ctx = context.WithoutCancel(ctx)

	target := req.TargetID
	rec := &deletionRecorder{
		log: s.logger.With("op", "delete_account", "user_id", target),
		report: &DeletionReport{
			UserID:              target,
			SharedCategories:    []uuid.UUID{},
			ExclusiveCategories: []uuid.UUID{},
			BlobsDeleted:        make(map[string]int, len(s.buckets)),
		},
	}
	report := rec.report

	ownership, err := s.ResolveCategoryOwnership(ctx, target)
	if err != nil {
		rec.fail(StepResolveOwnership, "", err)
	} else {
		report.SharedCategories = ownership.Shared
		report.ExclusiveCategories = ownership.Exclusive
		s.cleanupCategories(ctx, ownership, rec)
	}

	if n, err := s.repository.DeleteContentByAuthor(ctx, target); err != nil {
		rec.fail(StepDeleteContent, "", err)
	} else {
		report.ContentDeleted = n
	}

	if n, err := s.repository.DeleteReactionsByUser(ctx, target); err != nil {
		rec.fail(StepDeleteReactions, "", err)
	} else {
		report.ReactionsDeleted = n
	}

	s.purgeBlobs(ctx, target, rec)

	if err := s.repository.DeleteProfile(ctx, target); err != nil {
		rec.fail(StepDeleteProfile, "", err)
	}

	if err := s.identities.DeleteIdentity(ctx, target); err != nil && !isNotFoundErr(err) {
		rec.log.Error("identity deletion failed",
			"step", StepDeleteIdentity,
			"failed_steps", len(report.Failures),
			"err", err,
		)
		return report, &AccountError{Kind: KindIdentityDeletionFailed, Op: "delete_account", UserID: target, Err: err}
	}

	if report.Partial() {
		rec.log.Warn("account deleted with failures",
			"outcome", KindDeletionPartialFailure,
			"failed_steps", len(report.Failures),
			"err", report.Err(),
		)
	} else {
		rec.log.Info("account deleted",
			"content_deleted", report.ContentDeleted,
			"reactions_deleted", report.ReactionsDeleted,
			"shared_categories", len(report.SharedCategories),
			"exclusive_categories", len(report.ExclusiveCategories),
		)
	}

	if err := s.eventSink.AccountDeleted(ctx, report); err != nil {
		rec.log.Warn("account deleted event failed", "err", err)
	}
	return report, nil
}

func (s *service) authorizeDeletion(req DeleteAccountRequest) error {
	if req.RequesterID == uuid.Nil || req.RequesterID != req.TargetID {
		return &AccountError{Kind: KindForbidden, Op: "delete_account", UserID: req.TargetID, Err: ErrForbidden}
	}
	if req.TargetID == s.sentinelID {
		return &AccountError{Kind: KindForbidden, Op: "delete_account", UserID: req.TargetID, Err: ErrSentinelIdentity}
	}
	return nil
}

// cleanupCategories hands shared categories to the sentinel identity and
// deletes exclusive ones. Each category is handled on its own; a failure is
// recorded and the loop moves on.
func (s *service) cleanupCategories(ctx context.Context, ownership *CategoryOwnership, rec *deletionRecorder) {
	reassign := func() {
		for _, id := range ownership.Shared {
			if err := s.repository.ReassignCategoryCreator(ctx, id, s.sentinelID); err != nil {
				rec.fail(StepReassignCategory, id.String(), err)
			}
		}
	}
	remove := func() {
		for _, id := range ownership.Exclusive {
			if err := s.repository.DeleteCategory(ctx, id); err != nil {
				rec.fail(StepDeleteCategory, id.String(), err)
			}
		}
	}

	if !s.concurrentCleanup {
		reassign()
		remove()
		return
	}

	var g errgroup.Group
	g.Go(func() error { reassign(); return nil })
	g.Go(func() error { remove(); return nil })
	_ = g.Wait()
}

// purgeBlobs removes everything under the user's prefix in every bucket.
// Buckets are independent of each other.
func (s *service) purgeBlobs(ctx context.Context, userID uuid.UUID, rec *deletionRecorder) {
	prefix := objectkey.OwnerPrefix(userID)

	if !s.concurrentCleanup {
		for _, bucket := range s.buckets {
			s.purgeBucket(ctx, bucket, prefix, rec)
		}
		return
	}

	var g errgroup.Group
	for _, bucket := range s.buckets {
		g.Go(func() error {
			s.purgeBucket(ctx, bucket, prefix, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *service) purgeBucket(ctx context.Context, bucket, prefix string, rec *deletionRecorder) {
	keys, err := s.blobs.List(ctx, bucket, prefix)
	if err != nil {
		rec.fail(StepPurgeBlobs, bucket, err)
		return
	}
	if len(keys) == 0 {
		rec.blobsDeleted(bucket, 0)
		return
	}

	err = s.blobs.Delete(ctx, bucket, keys)
	deleted := len(keys)
	var partial *BlobDeleteError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		deleted -= len(partial.Failed)
	default:
		deleted = 0
	}
	rec.blobsDeleted(bucket, deleted)
	if err != nil {
		rec.fail(StepPurgeBlobs, bucket, err)
	}
}

// deletionRecorder collects step outcomes. It is safe for concurrent use.
type deletionRecorder struct {
	mu     sync.Mutex
	log    *slog.Logger
	report *DeletionReport
}

func (r *deletionRecorder) fail(step, subject string, err error) {
	r.log.Warn("deletion step failed", "step", step, "subject", subject, "err", err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Failures = append(r.report.Failures, StepFailure{Step: step, Subject: subject, Err: err})
}

func (r *deletionRecorder) blobsDeleted(bucket string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.BlobsDeleted[bucket] = n
}
