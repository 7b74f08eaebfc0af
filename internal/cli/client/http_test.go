package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &APIClient{
		baseURL:    srv.URL,
		apiKey:     "test-key",
		httpClient: srv.Client(),
	}
}

func TestAPIClient_Post(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hi", req.Message)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{Reply: "hello", SessionID: "sess-1"})
	})

	resp, err := sendMessage(api, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Reply)
	assert.Equal(t, "sess-1", resp.SessionID)
}

func TestAPIClient_CarriesSessionID(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sess-1", req.SessionID)

		json.NewEncoder(w).Encode(chatResponse{Reply: "again", SessionID: "sess-1"})
	})

	resp, err := sendMessage(api, "and more", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", resp.SessionID)
}

func TestAPIClient_DetailError(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "invalid api key"})
	})

	_, err := sendMessage(api, "hi", "")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid api key", apiErr.Message)
}

func TestAPIClient_NonJSONError(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream blew up"))
	})

	var out chatResponse
	err := api.Get("/health", &out)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream blew up", apiErr.Message)
}

func TestAPIClient_OmitsKeyHeaderWhenUnset(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["X-Api-Key"]
		assert.False(t, present)
		json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
	})
	api.apiKey = ""

	var out healthResponse
	require.NoError(t, api.Get("/health", &out))
	assert.Equal(t, "ok", out.Status)
}
