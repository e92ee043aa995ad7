package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_Controller(t *testing.T) {
	s := NewSessions(&mockGenerator{}, time.Hour)

	rec := httptest.NewRecorder()
	first := s.Controller(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	t.Run("same cookie returns the same controller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookies[0])
		rec := httptest.NewRecorder()

		assert.Same(t, first, s.Controller(rec, req))
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("unknown cookie gets a new session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "expired"})
		rec := httptest.NewRecorder()

		assert.NotSame(t, first, s.Controller(rec, req))
		assert.Len(t, rec.Result().Cookies(), 1)
		assert.Equal(t, 2, s.Len())
	})
}

func TestSessions_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessions(&mockGenerator{}, 30*time.Minute)
	s.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	s.Controller(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	idle := rec.Result().Cookies()[0]

	now = now.Add(20 * time.Minute)
	s.Controller(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, 2, s.Len())

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(idle)
	rec = httptest.NewRecorder()
	s.Controller(rec, req)
	assert.Len(t, rec.Result().Cookies(), 1, "swept session must be recreated")
}

func TestSessions_Lookup(t *testing.T) {
	s := NewSessions(&mockGenerator{}, time.Hour)

	_, ok := s.Lookup(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Zero(t, s.Len())

	rec := httptest.NewRecorder()
	ctrl := s.Controller(rec, httptest.NewRequest(http.MethodPost, "/upload/child", nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	got, ok := s.Lookup(req)
	require.True(t, ok)
	assert.Same(t, ctrl, got)
}
