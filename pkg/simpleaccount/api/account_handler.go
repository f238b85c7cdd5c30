package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-account/pkg/simpleaccount"
	"github.com/tendant/simple-account/pkg/simpleaccount/objectkey"
)

const (
	defaultMaxUploadBytes    = 10 << 20
	defaultRegisterPerMinute = 10
)

// AccountHandler handles HTTP requests for account lifecycle operations
type AccountHandler struct {
	service simpleaccount.Service
	logger  *slog.Logger

	blobs          simpleaccount.BlobStore
	buckets        map[string]bool
	keys           objectkey.Generator
	maxUploadBytes int64

	registerPerMinute int
}

// HandlerOption configures an AccountHandler
type HandlerOption func(*AccountHandler)

// WithUploads enables image uploads into the given buckets
func WithUploads(blobs simpleaccount.BlobStore, buckets ...string) HandlerOption {
	return func(h *AccountHandler) {
		h.blobs = blobs
		h.buckets = make(map[string]bool, len(buckets))
		for _, b := range buckets {
			h.buckets[b] = true
		}
	}
}

// WithKeyGenerator sets how uploaded objects are keyed. Keys must start with
// objectkey.OwnerPrefix so DeleteAccount can find them.
func WithKeyGenerator(g objectkey.Generator) HandlerOption {
	return func(h *AccountHandler) {
		h.keys = g
	}
}

// WithMaxUploadBytes limits upload request bodies
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *AccountHandler) {
		h.maxUploadBytes = n
	}
}

// WithRegisterRateLimit sets registrations allowed per client and minute.
// Zero disables the limit.
func WithRegisterRateLimit(perMinute int) HandlerOption {
	return func(h *AccountHandler) {
		h.registerPerMinute = perMinute
	}
}

// WithHandlerLogger sets the handler logger
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *AccountHandler) {
		h.logger = logger
	}
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service simpleaccount.Service, opts ...HandlerOption) *AccountHandler {
	h := &AccountHandler{
		service:           service,
		logger:            slog.Default(),
		keys:              objectkey.NewDefaultGenerator(),
		maxUploadBytes:    defaultMaxUploadBytes,
		registerPerMinute: defaultRegisterPerMinute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the routes for accounts
func (h *AccountHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.registerPerMinute > 0 {
			r.Use(RateLimitMiddleware(h.registerPerMinute, time.Minute))
		}
		r.Post("/", h.Register)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthenticationMiddleware(h.service))
		r.Delete("/{id}", h.DeleteAccount)
		r.Get("/{id}/categories/ownership", h.CategoryOwnership)
		if h.blobs != nil {
			r.With(RequestSizeLimitMiddleware(h.maxUploadBytes)).Post("/{id}/images/{bucket}", h.UploadImage)
		}
	})

	return r
}

// RegisterRequest is the request body for creating an account
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle,omitempty"`
}

// RegisterResponse is the response body for a created account
type RegisterResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Handle  string `json:"handle"`
}

// DeleteAccountResponse is the response body for a deleted account
type DeleteAccountResponse struct {
	Success     bool `json:"success"`
	FailedSteps int  `json:"failedSteps,omitempty"`
}

// OwnershipResponse is the response body for category ownership
type OwnershipResponse struct {
	Success   bool        `json:"success"`
	Exclusive []uuid.UUID `json:"exclusive"`
	Shared    []uuid.UUID `json:"shared"`
}

// UploadResponse is the response body for an uploaded image
type UploadResponse struct {
	Success bool   `json:"success"`
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
}

// Register creates a new account
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	res, err := h.service.Register(r.Context(), simpleaccount.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Handle:      req.Handle,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RegisterResponse{
		Success: true,
		ID:      res.ID.String(),
		Email:   res.Email,
		Handle:  res.Handle,
	})
}

// DeleteAccount deletes the authenticated account. {id} is the account id or "me".
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity, targetID, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	report, err := h.service.DeleteAccount(r.Context(), simpleaccount.DeleteAccountRequest{
		RequesterID: identity.ID,
		TargetID:    targetID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, DeleteAccountResponse{
		Success:     true,
		FailedSteps: len(report.Failures),
	})
}

// CategoryOwnership reports which of the account's categories are shared
func (h *AccountHandler) CategoryOwnership(w http.ResponseWriter, r *http.Request) {
	identity, targetID, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}
	if identity.ID != targetID {
		writeError(w, r, forbidden("category_ownership", targetID, "requester may only inspect their own categories"))
		return
	}

	ownership, err := h.service.ResolveCategoryOwnership(r.Context(), targetID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, OwnershipResponse{
		Success:   true,
		Exclusive: ownership.Exclusive,
		Shared:    ownership.Shared,
	})
}

// UploadImage stores a multipart "file" under the account's prefix
func (h *AccountHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	identity, targetID, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}
	if identity.ID != targetID {
		writeError(w, r, forbidden("upload_image", targetID, "requester may only upload to their own account"))
		return
	}

	bucket := chi.URLParam(r, "bucket")
	if !h.buckets[bucket] {
		renderError(w, r, http.StatusBadRequest, CodeInvalidRequest, "unknown bucket")
		return
	}

	if r.ContentLength > h.maxUploadBytes {
		renderError(w, r, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			renderError(w, r, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "file too large")
			return
		}
		renderError(w, r, http.StatusBadRequest, CodeInvalidRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	key := h.keys.GenerateKey(targetID, header.Filename)
	if err := h.blobs.Upload(r.Context(), bucket, key, file); err != nil {
		writeError(w, r, err)
		return
	}
	h.logger.Info("image uploaded", "user_id", targetID, "bucket", bucket, "key", key, "size", header.Size)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{Success: true, Bucket: bucket, Key: key})
}

// resolveTarget returns the authenticated identity and the account named by
// the {id} path parameter. It writes the error response when ok is false.
func (h *AccountHandler) resolveTarget(w http.ResponseWriter, r *http.Request) (identity *simpleaccount.Identity, targetID uuid.UUID, ok bool) {
	identity, ok = IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, simpleaccount.ErrInvalidToken)
		return nil, uuid.Nil, false
	}

	idStr := chi.URLParam(r, "id")
	if idStr == "me" {
		return identity, identity.ID, true
	}
	targetID, err := uuid.Parse(idStr)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid account id")
		return nil, uuid.Nil, false
	}
	return identity, targetID, true
}

func forbidden(op string, userID uuid.UUID, message string) error {
	return &simpleaccount.AccountError{
		Kind:   simpleaccount.KindForbidden,
		Op:     op,
		UserID: userID,
		Err:    errors.New(message),
	}
}
