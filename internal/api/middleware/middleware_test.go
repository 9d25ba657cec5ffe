package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/teampulse/teampulse/internal/api/middleware"
	"github.com/teampulse/teampulse/internal/cache"
	"github.com/teampulse/teampulse/internal/store"
	"github.com/teampulse/teampulse/pkg/models"
)

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func hashKey(t *testing.T, rawKey string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

// seedKey stores a hashed API key and returns the raw key plus its org id.
func seedKey(t *testing.T, s *store.MemStore, scopes ...string) (string, uuid.UUID) {
	t.Helper()
	rawKey := "tp_test_key_123456"
	orgID := uuid.New()
	s.AddAPIKey(&models.APIKey{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           "test-key",
		KeyHash:        hashKey(t, rawKey),
		KeyPrefix:      rawKey[:8],
		Scopes:         scopes,
	})
	return rawKey, orgID
}

// ========================================
// Auth Middleware Tests
// ========================================

func TestAuth_MissingAuthHeader(t *testing.T) {
	auth := mw.NewAuth(store.NewMemStore())
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_InvalidBearerFormat(t *testing.T) {
	auth := mw.NewAuth(store.NewMemStore())
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_KeyTooShort(t *testing.T) {
	auth := mw.NewAuth(store.NewMemStore())
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_UnknownKey(t *testing.T) {
	auth := mw.NewAuth(store.NewMemStore())
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer tp_does_not_exist")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_ValidKeySetsOrgContext(t *testing.T) {
	s := store.NewMemStore()
	rawKey, orgID := seedKey(t, s)
	auth := mw.NewAuth(s)

	var gotOrg uuid.UUID
	handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := mw.GetOrgID(r)
		require.True(t, ok)
		gotOrg = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orgID, gotOrg)
}

func TestAuth_WrongSecretSamePrefix(t *testing.T) {
	s := store.NewMemStore()
	rawKey, _ := seedKey(t, s)
	auth := mw.NewAuth(s)
	handler := auth.Authenticate(okHandler())

	// Same prefix, different secret: bcrypt comparison must reject it.
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey[:8]+"_wrong_secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireScope(t *testing.T) {
	s := store.NewMemStore()
	rawKey, _ := seedKey(t, s, "read")
	auth := mw.NewAuth(s)

	protected := auth.Authenticate(auth.RequireScope("admin")(okHandler()))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errBody(t, w)["code"])
}

func TestRequireScope_Allowed(t *testing.T) {
	s := store.NewMemStore()
	rawKey, _ := seedKey(t, s, "read", "admin")
	auth := mw.NewAuth(s)

	protected := auth.Authenticate(auth.RequireScope("admin")(okHandler()))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// RateLimit Middleware Tests
// ========================================

func TestRateLimit_UnderLimit(t *testing.T) {
	s := store.NewMemStore()
	rawKey, _ := seedKey(t, s)
	auth := mw.NewAuth(s)
	rl := mw.NewRateLimit(cache.NewMemCache(), 5)

	handler := auth.Authenticate(rl.Limit(okHandler()))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+rawKey)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	s := store.NewMemStore()
	rawKey, _ := seedKey(t, s)
	auth := mw.NewAuth(s)
	rl := mw.NewRateLimit(cache.NewMemCache(), 2)

	handler := auth.Authenticate(rl.Limit(okHandler()))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+rawKey)
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errBody(t, last)["code"])
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
}

func TestRateLimit_NoPrefixPassesThrough(t *testing.T) {
	rl := mw.NewRateLimit(cache.NewMemCache(), 1)
	handler := rl.Limit(okHandler())

	// Without auth middleware there is no key prefix; requests pass through.
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
