package simpleaccount

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrIdentityNotFound indicates the identity provider has no such principal
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrEmailAlreadyRegistered is returned by identity stores for a duplicate email
	ErrEmailAlreadyRegistered = errors.New("a user with this email address has already been registered")

	// ErrInvalidCredentials indicates a failed sign-in
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken indicates a bearer token that is malformed, expired or unknown
	ErrInvalidToken = errors.New("invalid token")

	// ErrProfileNotFound indicates a profile was not found
	ErrProfileNotFound = errors.New("profile not found")

	// ErrHandleTaken indicates the handle unique constraint was violated
	ErrHandleTaken = errors.New("handle is already taken")

	// ErrCategoryNotFound indicates a category was not found
	ErrCategoryNotFound = errors.New("category not found")

	// ErrCategoryNameTaken indicates the category name unique constraint was violated
	ErrCategoryNameTaken = errors.New("category name is already taken")

	// ErrContentNotFound indicates a content row was not found
	ErrContentNotFound = errors.New("content not found")

	// ErrBlobNotFound indicates a blob key does not exist in its bucket
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidBlobKey indicates a bucket or key that escapes its namespace
	ErrInvalidBlobKey = errors.New("invalid blob key")

	// ErrSentinelIdentity indicates an attempt to delete the sentinel identity
	ErrSentinelIdentity = errors.New("sentinel identity cannot be deleted")

	// ErrForbidden indicates a requester acting on another account
	ErrForbidden = errors.New("requester may only delete their own account")
)

// ErrorKind is the closed set of outcomes reported by the account sagas.
type ErrorKind string

const (
	KindHandleTaken            ErrorKind = "handle_taken"
	KindEmailTaken             ErrorKind = "email_taken"
	KindForbidden              ErrorKind = "forbidden"
	KindIdentityCreationFailed ErrorKind = "identity_creation_failed"
	KindProfileCreationFailed  ErrorKind = "profile_creation_failed"
	KindDeletionPartialFailure ErrorKind = "deletion_partial_failure"
	KindIdentityDeletionFailed ErrorKind = "identity_deletion_failed"
	KindUnexpected             ErrorKind = "unexpected"
)

// IsClientError reports whether the caller caused the failure. Client errors
// are surfaced verbatim and never retried.
func (k ErrorKind) IsClientError() bool {
	switch k {
	case KindHandleTaken, KindEmailTaken, KindForbidden:
		return true
	}
	return false
}

// HTTPStatus maps the kind to a response status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindHandleTaken, KindEmailTaken:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// AccountError is the error returned by Register and DeleteAccount.
type AccountError struct {
	Kind   ErrorKind
	Op     string
	UserID uuid.UUID
	Err    error
}

func (e *AccountError) Error() string {
	if e.UserID == uuid.Nil {
		return fmt.Sprintf("account operation %s failed (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("account operation %s failed for user %s (%s): %v", e.Op, e.UserID, e.Kind, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}

// PublicMessage is the text safe to show a caller. Server-side failures are
// reduced to a generic message so provider details do not leak.
func (e *AccountError) PublicMessage() string {
	if e.Kind.IsClientError() && e.Err != nil {
		return e.Err.Error()
	}
	switch e.Kind {
	case KindIdentityCreationFailed, KindProfileCreationFailed:
		return "account could not be created"
	case KindIdentityDeletionFailed:
		return "account could not be deleted"
	}
	return "internal error"
}

// KindOf extracts the ErrorKind from err. Errors not produced by this package
// are KindUnexpected.
func KindOf(err error) ErrorKind {
	var ae *AccountError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}

// ValidationError reports a malformed request, rejected before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BlobDeleteError lists the keys a BlobStore could not delete.
type BlobDeleteError struct {
	Bucket string
	Failed map[string]error
}

func (e *BlobDeleteError) Error() string {
	return fmt.Sprintf("failed to delete %d object(s) from bucket %s", len(e.Failed), e.Bucket)
}

func (e *BlobDeleteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// IsDuplicateEmail reports whether an identity provider error means the email
// is already registered. Providers do not share an error code for this, so the
// message text is inspected as well.
func IsDuplicateEmail(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmailAlreadyRegistered) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already been registered") ||
		strings.Contains(msg, "already registered") ||
		(strings.Contains(msg, "email") && strings.Contains(msg, "already exists"))
}

// providerUserNotFound is the message identity providers return for an
// unknown user id when they do not wrap ErrIdentityNotFound.
const providerUserNotFound = "user not found"

// isNotFoundErr reports whether an identity deletion failed only because the
// identity is already gone. Other errors mentioning "not found" do not count.
func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrIdentityNotFound) {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return msg == providerUserNotFound || strings.HasSuffix(msg, ": "+providerUserNotFound)
}
