package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/simpleaccount"
	identitymem "github.com/tendant/simple-account/pkg/simpleaccount/identity/memory"
	"github.com/tendant/simple-account/pkg/simpleaccount/presets"
	storagemem "github.com/tendant/simple-account/pkg/simpleaccount/storage/memory"
)

type testEnv struct {
	service    simpleaccount.Service
	identities *identitymem.Store
	repo       simpleaccount.Repository
	blobs      *storagemem.Backend
}

// setupTestEnv wires a service over in-memory stores
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stack := presets.NewTesting(t, presets.WithTestSecret("api-test-secret"))

	blobs, ok := stack.Blobs.(*storagemem.Backend)
	require.True(t, ok)
	return &testEnv{
		service:    stack.Service,
		identities: stack.Identities,
		repo:       stack.Repository,
		blobs:      blobs,
	}
}

// signUp registers an account and returns its id and a bearer token
func (e *testEnv) signUp(t *testing.T, handle string) (uuid.UUID, string) {
	t.Helper()
	ctx := context.Background()
	email := handle + "@example.com"

	res, err := e.service.Register(ctx, simpleaccount.RegisterRequest{
		Email:       email,
		Password:    "secret",
		DisplayName: handle,
		Handle:      handle,
	})
	require.NoError(t, err)

	token, err := e.identities.SignIn(ctx, email, "secret")
	require.NoError(t, err)
	return res.ID, token
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
