package bot

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/cantorbot/cantor/internal/db"
	"github.com/cantorbot/cantor/internal/familiarity"
	"github.com/cantorbot/cantor/internal/feedback"
	"github.com/cantorbot/cantor/internal/search"
	"github.com/cantorbot/cantor/internal/session"
	"github.com/cantorbot/cantor/pkg/models"
)

// fakeParser returns canned queries keyed by raw message, so handler tests
// exercise routing without a model.
type fakeParser struct {
	queries map[string]*models.ParsedQuery
}

func (f *fakeParser) Parse(_ context.Context, query string, _ *models.ParsedQuery) *models.ParsedQuery {
	if q, ok := f.queries[query]; ok {
		q.RawQuery = query
		return q
	}
	return &models.ParsedQuery{Intent: models.IntentUnknown, RawQuery: query}
}

type handlerFixture struct {
	handler *Handler
	store   *db.Store
	songs   *db.SongStore
	usage   *db.UsageStore
	parser  *fakeParser
}

func newFixture(t *testing.T, sessionTTL time.Duration) *handlerFixture {
	t.Helper()

	store, err := db.NewStore(db.Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		MaxConns: 2,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	songs := db.NewSongStore(store)
	usage := db.NewUsageStore(store)
	scorer := familiarity.NewScorer(usage)
	p := &fakeParser{queries: make(map[string]*models.ParsedQuery)}

	handler := NewHandler(
		p,
		search.NewResolver(songs, 10),
		search.NewRanker(scorer, 5),
		session.NewManager(sessionTTL),
		feedback.NewRecorder(songs, db.NewFeedbackStore(store), scorer),
		scorer,
		db.NewMessageLogStore(store),
	)

	return &handlerFixture{handler: handler, store: store, songs: songs, usage: usage, parser: p}
}

func (f *handlerFixture) addSong(t *testing.T, title string, bpm int64, key string, themes ...string) int64 {
	t.Helper()
	row := &db.Song{
		Title:       title,
		Artist:      "Test Artist",
		OriginalKey: key,
		IsActive:    true,
	}
	if bpm > 0 {
		row.BPM = sql.NullInt64{Int64: bpm, Valid: true}
	}
	id, err := f.songs.Create(context.Background(), row, themes, nil)
	require.NoError(t, err)
	return id
}

func TestHandleMessage_Greeting(t *testing.T) {
	f := newFixture(t, time.Hour)

	replies := f.handler.HandleMessage(context.Background(), "u1", "/start")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "worship leaders")

	var count int64
	require.NoError(t, f.store.DB.Model(&db.MessageLog{}).Where("message_type = ?", "greeting").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHandleMessage_SearchReturnsBubbles(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addSong(t, "Amazing Grace", 72, "G", "grace")
	f.addSong(t, "Grace Abounds", 95, "C", "grace")

	f.parser.queries["songs about grace"] = &models.ParsedQuery{
		Intent: models.IntentSearch,
		Themes: []string{"grace"},
	}

	replies := f.handler.HandleMessage(context.Background(), "u1", "songs about grace")
	require.Len(t, replies, 3, "intro plus one bubble per song")
	assert.Equal(t, "Here are some songs about grace:", replies[0])
	assert.Contains(t, replies[1], "matched: 'grace'")
	assert.Contains(t, replies[1], "Test Artist")
}

func TestHandleMessage_RanksFamiliarFirst(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addSong(t, "Cold Song", 100, "G", "worship")
	familiarID := f.addSong(t, "Familiar Song", 100, "C", "worship")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.usage.Append(ctx, familiarID, time.Now(), models.UsageWorship, ""))
	}

	f.parser.queries["worship songs"] = &models.ParsedQuery{
		Intent: models.IntentSearch,
		Themes: []string{"worship"},
	}

	replies := f.handler.HandleMessage(ctx, "u1", "worship songs")
	require.Len(t, replies, 3)
	assert.Contains(t, replies[1], "Familiar Song")
	assert.Contains(t, replies[2], "Cold Song")
}

func TestHandleMessage_NoResults(t *testing.T) {
	f := newFixture(t, time.Hour)

	f.parser.queries["songs about joy"] = &models.ParsedQuery{
		Intent: models.IntentSearch,
		Themes: []string{"joy"},
	}

	replies := f.handler.HandleMessage(context.Background(), "u1", "songs about joy")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "couldn't find any songs about joy")
}

func TestHandleMessage_MorePagesWithoutRepeats(t *testing.T) {
	f := newFixture(t, time.Hour)
	names := []string{"S1", "S2", "S3", "S4", "S5", "S6", "S7"}
	for _, name := range names {
		f.addSong(t, name, 100, "G", "grace")
	}

	f.parser.queries["grace songs"] = &models.ParsedQuery{
		Intent: models.IntentSearch,
		Themes: []string{"grace"},
	}
	f.parser.queries["more"] = &models.ParsedQuery{Intent: models.IntentMore}

	ctx := context.Background()
	first := f.handler.HandleMessage(ctx, "u1", "grace songs")
	require.Len(t, first, 6, "intro plus five songs")

	more := f.handler.HandleMessage(ctx, "u1", "more")
	require.Len(t, more, 2)
	for _, bubble := range more {
		for _, shown := range first[1:] {
			assert.NotEqual(t, shown, bubble)
		}
	}

	done := f.handler.HandleMessage(ctx, "u1", "more")
	require.Len(t, done, 1)
	assert.Contains(t, done[0], "No more songs found")
}

func TestHandleMessage_MoreWithoutSearch(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.parser.queries["more"] = &models.ParsedQuery{Intent: models.IntentMore}

	replies := f.handler.HandleMessage(context.Background(), "u1", "more")
	require.Len(t, replies, 1)
	assert.Equal(t, msgNeverSearched, replies[0])
}

func TestHandleMessage_MoreAfterExpiry(t *testing.T) {
	f := newFixture(t, time.Nanosecond)
	f.addSong(t, "Song", 100, "G", "grace")

	f.parser.queries["grace songs"] = &models.ParsedQuery{
		Intent: models.IntentSearch,
		Themes: []string{"grace"},
	}
	f.parser.queries["more"] = &models.ParsedQuery{Intent: models.IntentMore}

	ctx := context.Background()
	f.handler.HandleMessage(ctx, "u1", "grace songs")
	time.Sleep(time.Millisecond)

	replies := f.handler.HandleMessage(ctx, "u1", "more")
	require.Len(t, replies, 1)
	assert.Equal(t, msgSessionExpired, replies[0])

	// The expired record is gone; the next attempt reads as never
	// searched, not expired again.
	replies = f.handler.HandleMessage(ctx, "u1", "more")
	assert.Equal(t, msgNeverSearched, replies[0])
}

func TestHandleMessage_FeedbackFlow(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addSong(t, "First Song", 100, "G", "grace")
	f.addSong(t, "Second Song", 90, "C", "grace")

	f.parser.queries["grace songs"] = &models.ParsedQuery{
		Intent: models.IntentSearch,
		Themes: []string{"grace"},
	}
	f.parser.queries["👍 2"] = &models.ParsedQuery{Intent: models.IntentFeedback}

	ctx := context.Background()
	first := f.handler.HandleMessage(ctx, "u1", "grace songs")
	require.Len(t, first, 3)

	// Position 2 refers to the second bubble after the intro.
	secondTitle := strings.SplitN(first[2], " — ", 2)[0]

	replies := f.handler.HandleMessage(ctx, "u1", "👍 2")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], secondTitle)

	var feedbackCount int64
	require.NoError(t, f.store.DB.Model(&db.UserFeedback{}).Count(&feedbackCount).Error)
	assert.Equal(t, int64(1), feedbackCount)

	var usageCount int64
	require.NoError(t, f.store.DB.Model(&db.SongUsage{}).
		Where("category = ?", string(models.UsagePositiveFeedback)).
		Count(&usageCount).Error)
	assert.Equal(t, int64(1), usageCount)
}

func TestHandleMessage_FeedbackOutOfRange(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addSong(t, "Only Song", 100, "G", "grace")

	f.parser.queries["grace songs"] = &models.ParsedQuery{
		Intent: models.IntentSearch,
		Themes: []string{"grace"},
	}
	f.parser.queries["👍 4"] = &models.ParsedQuery{Intent: models.IntentFeedback}

	ctx := context.Background()
	f.handler.HandleMessage(ctx, "u1", "grace songs")

	replies := f.handler.HandleMessage(ctx, "u1", "👍 4")
	require.Len(t, replies, 1)
	assert.Equal(t, feedbackRangeMessage(1), replies[0])
}

func TestHandleMessage_FeedbackWithoutSearch(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.parser.queries["👍 1"] = &models.ParsedQuery{Intent: models.IntentFeedback}

	replies := f.handler.HandleMessage(context.Background(), "u1", "👍 1")
	require.Len(t, replies, 1)
	assert.Equal(t, msgNoFeedbackContext, replies[0])
}

func TestHandleMessage_UnknownIntent(t *testing.T) {
	f := newFixture(t, time.Hour)

	replies := f.handler.HandleMessage(context.Background(), "u1", "blarg")
	require.Len(t, replies, 1)
	assert.Equal(t, msgUnclear, replies[0])
}

func TestHandleMessage_ExcludeRecentDropsRecentlyUsed(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addSong(t, "Fresh Song", 80, "G", "grace")
	usedID := f.addSong(t, "Used Song", 90, "C", "grace")

	require.NoError(t, f.usage.Append(context.Background(), usedID,
		time.Now().AddDate(0, 0, -1), models.UsageWorship, ""))

	f.parser.queries["grace songs we haven't used lately"] = &models.ParsedQuery{
		Intent:        models.IntentSearch,
		Themes:        []string{"grace"},
		ExcludeRecent: true,
	}

	replies := f.handler.HandleMessage(context.Background(), "u1", "grace songs we haven't used lately")
	joined := strings.Join(replies, "\n")
	assert.Contains(t, joined, "Fresh Song")
	assert.NotContains(t, joined, "Used Song")
}

func TestHandleMessage_MoreRebuildsFromContext(t *testing.T) {
	f := newFixture(t, time.Hour)

	f.parser.queries["songs about hope"] = &models.ParsedQuery{
		Intent: models.IntentSearch,
		Themes: []string{"hope"},
	}
	f.parser.queries["more"] = &models.ParsedQuery{
		Intent:     models.IntentMore,
		Confidence: 0.95,
	}

	// The first search finds nothing, so no session exists afterwards but
	// the parsed themes stay in conversation context.
	replies := f.handler.HandleMessage(context.Background(), "u1", "songs about hope")
	require.Len(t, replies, 1)
	assert.Equal(t, noResultsMessage([]string{"hope"}), replies[0])

	f.addSong(t, "Hope Rising", 80, "D", "hope")

	replies = f.handler.HandleMessage(context.Background(), "u1", "more")
	require.Len(t, replies, 2)
	assert.Equal(t, searchIntro([]string{"hope"}), replies[0])
	assert.Contains(t, replies[1], "Hope Rising")
}

func TestHandleMessage_LogsParserMetadata(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addSong(t, "Song", 100, "G", "grace")

	f.parser.queries["grace songs"] = &models.ParsedQuery{
		Intent:     models.IntentSearch,
		Themes:     []string{"grace"},
		Confidence: 0.9,
	}

	f.handler.HandleMessage(context.Background(), "u1", "grace songs")

	var row db.MessageLog
	require.NoError(t, f.store.DB.Where("user_id = ?", "u1").First(&row).Error)
	assert.Equal(t, "search", row.MessageType)
	assert.True(t, row.SessionContext.Valid)
	assert.Contains(t, row.SessionContext.String, `"confidence":0.9`)
	assert.NotEmpty(t, row.InteractionID)
}

func TestHandleMessage_RedactsLoggedText(t *testing.T) {
	f := newFixture(t, time.Hour)

	msg := "blarg, reach me at pastor@church.org"
	f.handler.HandleMessage(context.Background(), "u1", msg)

	var row db.MessageLog
	require.NoError(t, f.store.DB.Where("user_id = ?", "u1").First(&row).Error)
	assert.NotContains(t, row.Message, "pastor@church.org")
	assert.Contains(t, row.Message, "[email]")
}
