package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/cantorbot/cantor/internal/db"
	"github.com/cantorbot/cantor/internal/session"
)

func testServer(t *testing.T) (*Server, *db.Store) {
	t.Helper()
	store, err := db.NewStore(db.Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		MaxConns: 2,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := New(store, db.NewSongStore(store), db.NewMessageLogStore(store), session.NewManager(time.Hour), "test")
	return srv, store
}

func TestHealthz(t *testing.T) {
	srv, store := testServer(t)

	songs := db.NewSongStore(store)
	_, err := songs.Create(context.Background(),
		&db.Song{Title: "A", Artist: "X", OriginalKey: "C", IsActive: true},
		[]string{"grace"}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, float64(1), body["songs"])
	assert.Equal(t, float64(1), body["themes"])
}

func TestHealthz_EmptyCatalogIsDegraded(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestStats(t *testing.T) {
	srv, store := testServer(t)
	ctx := context.Background()

	songs := db.NewSongStore(store)
	_, err := songs.Create(ctx, &db.Song{Title: "A", Artist: "X", OriginalKey: "C", IsActive: true}, nil, nil)
	require.NoError(t, err)

	logs := db.NewMessageLogStore(store)
	require.NoError(t, logs.Create(ctx, "u1", "search", "q", "r", "{}"))
	require.NoError(t, logs.Create(ctx, "u2", "greeting", "hi", "hello", "{}"))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Songs       int64            `json:"songs"`
		ActiveUsers int64            `json:"active_users_7d"`
		Messages    map[string]int64 `json:"messages_7d"`
		Sessions    int              `json:"live_sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Songs)
	assert.Equal(t, int64(2), body.ActiveUsers)
	assert.Equal(t, int64(1), body.Messages["search"])
	assert.Zero(t, body.Sessions)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	srv, _ := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
