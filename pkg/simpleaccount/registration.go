package simpleaccount

import (
	"context"
	"errors"
	"strings"
	"time"
)

func (s *service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req, err := s.prepareRegistration(req)
	if err != nil {
		return nil, err
	}
	// Once started the saga runs to completion, compensation included.
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With("op", "register", "handle", req.Handle)

	exists, err := s.repository.HandleExists(ctx, req.Handle)
	if err != nil {
		log.Error("handle lookup failed", "err", err)
		return nil, &AccountError{Kind: KindUnexpected, Op: "register", Err: err}
	}
	if exists {
		return nil, &AccountError{Kind: KindHandleTaken, Op: "register", Err: ErrHandleTaken}
	}

	identity, err := s.identities.CreateIdentity(ctx, req.Email, req.Password)
	if err != nil {
		if IsDuplicateEmail(err) {
			return nil, &AccountError{Kind: KindEmailTaken, Op: "register", Err: ErrEmailAlreadyRegistered}
		}
		log.Error("identity creation failed", "err", err)
		return nil, &AccountError{Kind: KindIdentityCreationFailed, Op: "register", Err: err}
	}
	log = log.With("user_id", identity.ID)

	now := time.Now().UTC()
	profile := &Profile{
		ID:          identity.ID,
		Handle:      req.Handle,
		DisplayName: req.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repository.CreateProfile(ctx, profile); err != nil {
		s.compensateIdentity(ctx, identity, err)

		if errors.Is(err, ErrHandleTaken) {
			return nil, &AccountError{Kind: KindHandleTaken, Op: "register", UserID: identity.ID, Err: ErrHandleTaken}
		}
		log.Error("profile creation failed", "err", err)
		return nil, &AccountError{Kind: KindProfileCreationFailed, Op: "register", UserID: identity.ID, Err: err}
	}

	result := &RegisterResult{
		ID:     identity.ID,
		Email:  identity.Email,
		Handle: profile.Handle,
	}
	log.Info("account registered")

	if err := s.eventSink.AccountRegistered(ctx, result); err != nil {
		log.Warn("account registered event failed", "err", err)
	}
	return result, nil
}

// compensateIdentity removes an identity whose profile could not be written.
// A failure is not retried; it is logged at error level under its own message
// so orphaned identities can be found and reconciled.
func (s *service) compensateIdentity(ctx context.Context, identity *Identity, cause error) {
	err := s.identities.DeleteIdentity(ctx, identity.ID)
	if err == nil || isNotFoundErr(err) {
		s.logger.Warn("registration compensated",
			"identity_id", identity.ID,
			"cause", cause,
		)
		return
	}

	s.logger.Error("registration compensation failed",
		"identity_id", identity.ID,
		"email", identity.Email,
		"orphaned_identity", true,
		"cause", cause,
		"err", err,
	)
	if sinkErr := s.eventSink.CompensationFailed(ctx, identity.ID, err); sinkErr != nil {
		s.logger.Warn("compensation failed event failed", "identity_id", identity.ID, "err", sinkErr)
	}
}

func (s *service) prepareRegistration(req RegisterRequest) (RegisterRequest, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return req, &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if req.Password == "" {
		return req, &ValidationError{Field: "password", Reason: "must not be empty"}
	}
	if req.DisplayName == "" {
		return req, &ValidationError{Field: "display_name", Reason: "must not be empty"}
	}

	if strings.TrimSpace(req.Handle) == "" {
		req.Handle = s.handleGenerator(req.DisplayName)
	}
	req.Handle = NormalizeHandle(req.Handle)
	if err := ValidateHandle(req.Handle); err != nil {
		return req, err
	}
	return req, nil
}
