package simpleaccount

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RegisterRequest is the input of Service.Register. Handle is optional; when
// empty one is derived from DisplayName.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle,omitempty"`
}

// RegisterResult is returned for a created account.
type RegisterResult struct {
	ID     uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Handle string    `json:"handle"`
}

// DeleteAccountRequest is the input of Service.DeleteAccount. RequesterID is
// the authenticated identity and must equal TargetID.
type DeleteAccountRequest struct {
	RequesterID uuid.UUID
	TargetID    uuid.UUID
}

// Deletion steps, in execution order.
const (
	StepResolveOwnership = "resolve_category_ownership"
	StepReassignCategory = "reassign_shared_category"
	StepDeleteCategory   = "delete_exclusive_category"
	StepDeleteContent    = "delete_content"
	StepDeleteReactions  = "delete_reactions"
	StepPurgeBlobs       = "purge_blobs"
	StepDeleteProfile    = "delete_profile"
	StepDeleteIdentity   = "delete_identity"
)

// StepFailure records a non-fatal deletion step that did not complete.
// Subject names the category id or bucket the step was working on, if any.
type StepFailure struct {
	Step    string `json:"step"`
	Subject string `json:"subject,omitempty"`
	Err     error  `json:"-"`
}

func (f StepFailure) Error() string {
	if f.Subject == "" {
		return fmt.Sprintf("%s: %v", f.Step, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Step, f.Subject, f.Err)
}

// DeletionReport summarizes what DeleteAccount did.
type DeletionReport struct {
	UserID              uuid.UUID      `json:"user_id"`
	SharedCategories    []uuid.UUID    `json:"shared_categories"`
	ExclusiveCategories []uuid.UUID    `json:"exclusive_categories"`
	ContentDeleted      int64          `json:"content_deleted"`
	ReactionsDeleted    int64          `json:"reactions_deleted"`
	BlobsDeleted        map[string]int `json:"blobs_deleted"`
	Failures            []StepFailure  `json:"failures,omitempty"`
}

// Partial reports whether any best-effort step failed.
func (r *DeletionReport) Partial() bool {
	return len(r.Failures) > 0
}

// Err joins the step failures, or returns nil when there were none.
func (r *DeletionReport) Err() error {
	if !r.Partial() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
