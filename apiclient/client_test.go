package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/api/", UserAgent: "test"}), &calls
}

// TestFetchSetsHeaders verifies the script marker and bearer token
func TestFetchSetsHeaders(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/api/users/create", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"username":"anna"}`, string(body))
		w.Write([]byte(`{"success":true,"message":"ok"}`))
	})

	var out Mutation
	err := c.WithToken("tok").Post(context.Background(), "/users/create", map[string]string{"username": "anna"}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, "", c.Token(), "WithToken must not modify the original client")
}

// TestFetchUnauthorized verifies 401 is a terminal session error redirecting to the entry page
func TestFetchUnauthorized(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Not authenticated"}`))
	})

	err := c.Get(context.Background(), "/users/me", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionExpired(err))
	assert.Equal(t, "/", apperrors.RedirectTarget(err))
}

// TestFetchBackendErrorMessage verifies the error field becomes the message
func TestFetchBackendErrorMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	})

	err := c.Get(context.Background(), "/items/get/1", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrClassBackend, apperrors.GetClass(err))
	assert.Equal(t, "boom", apperrors.UserMessage(err, ""))
}

// TestFetchBackendDetailMessage verifies FastAPI detail strings are used
func TestFetchBackendDetailMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Company not found"}`))
	})

	err := c.Get(context.Background(), "/companies/get/9", nil)
	assert.Equal(t, "Company not found", apperrors.UserMessage(err, ""))
}

// TestFetchBackendNonJSON verifies the generic fallback message
func TestFetchBackendNonJSON(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	})

	err := c.Get(context.Background(), "/items/get/1", nil)
	assert.Equal(t, "Request failed (HTTP 502)", apperrors.UserMessage(err, ""))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "requests are never retried")
}

// TestFetchNetworkError verifies transport failures are classified
func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(Config{BaseURL: url}).Get(context.Background(), "/users/me", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrClassNetwork, apperrors.GetClass(err))
}

// TestPaginate verifies the paginate body and decoding
func TestPaginate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/paginate", r.URL.Path)
		var req PageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.Limit)
		assert.Equal(t, 10, req.Offset)
		assert.Equal(t, false, req.Filters["include_self"])
		w.Write([]byte(`{"data":[{"id":11,"username":"x"}],"total":12}`))
	})

	resp, err := c.Paginate(context.Background(), "users", PageRequest{Limit: 5, Offset: 10, Filters: map[string]any{"include_self": false}})
	require.NoError(t, err)
	assert.Equal(t, 12, resp.Total)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "x", resp.Data[0]["username"])
}

// TestMutateRejected verifies success false surfaces the backend message
func TestMutateRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"SKU exists"}`))
	})

	_, err := c.Mutate(context.Background(), http.MethodPost, "/items/create", map[string]any{"name": "a"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrClassBackend, apperrors.GetClass(err))
	assert.Equal(t, "SKU exists", apperrors.UserMessage(err, ""))
}

// TestMutateWithoutSuccessField verifies plain message answers count as success
func TestMutateWithoutSuccessField(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Order cancelled"}`))
	})

	m, err := c.Mutate(context.Background(), http.MethodPost, "/orders/cancel/3", nil)
	require.NoError(t, err)
	assert.Equal(t, "Order cancelled", m.Message)
}
