package radius

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"strand/internal/lifecycle"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemSessions(t *testing.T) {
	s := NewMemSessions()

	_, ok, err := s.ActiveSession("sub-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upsert(lifecycle.Session{SubscriberID: "sub-1", Username: "u1", NASAddress: "192.0.2.1"}))
	got, ok, err := s.ActiveSession("sub-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", got.Username)

	// interim-обновление перетирает поля
	require.NoError(t, s.Upsert(lifecycle.Session{SubscriberID: "sub-1", Username: "u1", NASAddress: "192.0.2.7"}))
	got, _, _ = s.ActiveSession("sub-1")
	assert.Equal(t, "192.0.2.7", got.NASAddress)

	require.NoError(t, s.Remove("sub-1"))
	_, ok, _ = s.ActiveSession("sub-1")
	assert.False(t, ok)
}

func TestSessionHandlers(t *testing.T) {
	r := mux.NewRouter()
	NewHTTP(NewMemSessions()).RegisterRoutes(r)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/radius/sessions", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	// неполный фид отбрасываем
	rec := post(`{"subscriber_id": "sub-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(`{"subscriber_id": "sub-1", "username": "u1", "acct_session_id": "a1", "nas_address": "192.0.2.1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/radius/sessions/sub-1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "u1", got["username"])
	assert.Equal(t, "192.0.2.1", got["nas_address"])

	// Accounting-Stop
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/radius/sessions/sub-1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/radius/sessions/sub-1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
