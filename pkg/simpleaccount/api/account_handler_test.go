package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/simpleaccount"
	"github.com/tendant/simple-account/pkg/simpleaccount/objectkey"
)

func TestAccountHandler_Register_Success(t *testing.T) {
	env := setupTestEnv(t)
	router := NewAccountHandler(env.service).Routes()

	w := doJSON(t, router, http.MethodPost, "/", "", RegisterRequest{
		Email:       "ann@example.com",
		Password:    "secret",
		DisplayName: "Ann Lee",
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ann@example.com", resp.Email)
	assert.True(t, strings.HasPrefix(resp.Handle, "ann_lee_"), resp.Handle)

	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	profile, err := env.repo.GetProfile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, resp.Handle, profile.Handle)
}

func TestAccountHandler_Register_Errors(t *testing.T) {
	env := setupTestEnv(t)
	env.signUp(t, "taken")
	router := NewAccountHandler(env.service, WithRegisterRateLimit(0)).Routes()

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "handle taken",
			body:       RegisterRequest{Email: "new@example.com", Password: "secret", DisplayName: "New", Handle: "taken"},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(simpleaccount.KindHandleTaken),
		},
		{
			name:       "email taken",
			body:       RegisterRequest{Email: "taken@example.com", Password: "secret", DisplayName: "Other", Handle: "other"},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(simpleaccount.KindEmailTaken),
		},
		{
			name:       "missing password",
			body:       RegisterRequest{Email: "x@example.com", DisplayName: "X"},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "not json",
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/", "", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.ErrorCode)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAccountHandler_Register_RateLimited(t *testing.T) {
	env := setupTestEnv(t)
	router := NewAccountHandler(env.service, WithRegisterRateLimit(1)).Routes()

	first := doJSON(t, router, http.MethodPost, "/", "", RegisterRequest{Email: "a@example.com", Password: "secret", DisplayName: "Aaa"})
	assert.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/", "", RegisterRequest{Email: "b@example.com", Password: "secret", DisplayName: "Bbb"})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, CodeRateLimited, decodeError(t, second).ErrorCode)
}

func TestAccountHandler_DeleteAccount(t *testing.T) {
	env := setupTestEnv(t)
	router := NewAccountHandler(env.service).Routes()
	ctx := context.Background()

	annID, annToken := env.signUp(t, "ann")
	_, bobToken := env.signUp(t, "bob")
	require.NoError(t, env.blobs.Upload(ctx, "profile_images", objectkey.Key(annID, "me.png"), strings.NewReader("png")))

	t.Run("requires token", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, CodeUnauthorized, decodeError(t, w).ErrorCode)
	})

	t.Run("rejects malformed id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/not-a-uuid", annToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("forbids other accounts", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/"+annID.String(), bobToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, string(simpleaccount.KindForbidden), decodeError(t, w).ErrorCode)

		_, err := env.identities.GetIdentity(ctx, annID)
		assert.NoError(t, err)
	})

	t.Run("deletes own account", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/"+annID.String(), annToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp DeleteAccountResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Zero(t, resp.FailedSteps)

		_, err := env.identities.GetIdentity(ctx, annID)
		assert.ErrorIs(t, err, simpleaccount.ErrIdentityNotFound)
		keys, err := env.blobs.List(ctx, "profile_images", objectkey.OwnerPrefix(annID))
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("token is useless afterwards", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/me", annToken, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAccountHandler_CategoryOwnership(t *testing.T) {
	env := setupTestEnv(t)
	router := NewAccountHandler(env.service).Routes()
	ctx := context.Background()

	annID, annToken := env.signUp(t, "ann")
	bobID, bobToken := env.signUp(t, "bob")

	travel := &simpleaccount.Category{ID: uuid.New(), Name: "Travel", CreatorID: &annID, CreatedAt: time.Now().UTC()}
	food := &simpleaccount.Category{ID: uuid.New(), Name: "Food", CreatorID: &annID, CreatedAt: time.Now().UTC()}
	require.NoError(t, env.repo.CreateCategory(ctx, travel))
	require.NoError(t, env.repo.CreateCategory(ctx, food))

	post := &simpleaccount.Content{ID: uuid.New(), AuthorID: bobID, Title: "tapas", CreatedAt: time.Now().UTC()}
	require.NoError(t, env.repo.CreateContent(ctx, post))
	require.NoError(t, env.repo.LinkContentCategory(ctx, simpleaccount.ContentCategoryLink{ContentID: post.ID, CategoryID: food.ID}))

	w := doJSON(t, router, http.MethodGet, "/me/categories/ownership", annToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp OwnershipResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, []uuid.UUID{travel.ID}, resp.Exclusive)
	assert.Equal(t, []uuid.UUID{food.ID}, resp.Shared)

	w = doJSON(t, router, http.MethodGet, "/"+annID.String()+"/categories/ownership", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func newUploadRequest(t *testing.T, path, token, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAccountHandler_UploadImage(t *testing.T) {
	env := setupTestEnv(t)
	router := NewAccountHandler(env.service,
		WithUploads(env.blobs, simpleaccount.DefaultBuckets...),
		WithMaxUploadBytes(1024),
	).Routes()

	annID, annToken := env.signUp(t, "ann")
	_, bobToken := env.signUp(t, "bob")

	t.Run("stores under owner prefix", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, "/me/images/profile_images", annToken, "avatar.png", []byte("png-bytes")))
		require.Equal(t, http.StatusCreated, w.Code)

		var resp UploadResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "profile_images", resp.Bucket)
		assert.True(t, strings.HasPrefix(resp.Key, objectkey.OwnerPrefix(annID)))

		data, err := env.blobs.Download(context.Background(), "profile_images", resp.Key)
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), data)
	})

	t.Run("unknown bucket", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, "/me/images/secrets", annToken, "a.png", []byte("x")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("other account", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, "/"+annID.String()+"/images/profile_images", bobToken, "a.png", []byte("x")))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newUploadRequest(t, "/me/images/profile_images", annToken, "big.png", bytes.Repeat([]byte("x"), 4096)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestAccountHandler_UploadsDisabled(t *testing.T) {
	env := setupTestEnv(t)
	router := NewAccountHandler(env.service).Routes()
	_, token := env.signUp(t, "ann")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, newUploadRequest(t, "/me/images/profile_images", token, "a.png", []byte("x")))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
