package feedback

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/cantorbot/cantor/internal/db"
	"github.com/cantorbot/cantor/internal/familiarity"
	"github.com/cantorbot/cantor/pkg/models"
)

func TestParseReaction_Positions(t *testing.T) {
	tests := []struct {
		input    string
		position int
		polarity models.FeedbackPolarity
	}{
		{"👍 2", 2, models.FeedbackPositive},
		{"👍2", 2, models.FeedbackPositive},
		{"👎 1", 1, models.FeedbackNegative},
		{"the second one was perfect", 2, models.FeedbackPositive},
		{"loved the first song", 1, models.FeedbackPositive},
		{"the 3rd one", 3, models.FeedbackPositive},
		{"song 4 was great", 4, models.FeedbackPositive},
		{"didn't like number 2", 2, models.FeedbackNegative},
		{"thumbs down on the third one", 3, models.FeedbackNegative},
	}
	for _, tc := range tests {
		position, polarity, ok := ParseReaction(tc.input)
		require.True(t, ok, "input %q", tc.input)
		assert.Equal(t, tc.position, position, "input %q", tc.input)
		assert.Equal(t, tc.polarity, polarity, "input %q", tc.input)
	}
}

func TestParseReaction_NoPosition(t *testing.T) {
	for _, input := range []string{"loved it", "👍", "that was perfect"} {
		_, _, ok := ParseReaction(input)
		assert.False(t, ok, "input %q", input)
	}
}

func testRecorder(t *testing.T) (*Recorder, *db.Store, *db.SongStore, *db.UsageStore) {
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
	recorder := NewRecorder(songs, db.NewFeedbackStore(store), familiarity.NewScorer(usage))
	return recorder, store, songs, usage
}

func TestRecord_WritesFeedbackAndUsage(t *testing.T) {
	recorder, store, songs, usage := testRecorder(t)
	ctx := context.Background()

	songID, err := songs.Create(ctx, &db.Song{Title: "Oceans", Artist: "Hillsong", OriginalKey: "D", IsActive: true}, nil, nil)
	require.NoError(t, err)

	recorder.Record(ctx, models.FeedbackEvent{
		UserID:    "u1",
		Position:  1,
		Polarity:  models.FeedbackPositive,
		Timestamp: time.Now(),
		SongTitle: "Oceans",
	})

	var feedbackCount int64
	require.NoError(t, store.DB.Model(&db.UserFeedback{}).Where("song_id = ?", songID).Count(&feedbackCount).Error)
	assert.Equal(t, int64(1), feedbackCount)

	events, err := usage.Recent(ctx, songID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.UsagePositiveFeedback, events[0].Category)
	assert.Equal(t, "feedback", events[0].Note)
}

func TestRecord_NegativeFeedbackStillAppendsUsage(t *testing.T) {
	recorder, _, songs, usage := testRecorder(t)
	ctx := context.Background()

	songID, err := songs.Create(ctx, &db.Song{Title: "Meh", Artist: "Artist", OriginalKey: "C", IsActive: true}, nil, nil)
	require.NoError(t, err)

	recorder.Record(ctx, models.FeedbackEvent{
		UserID:    "u1",
		Position:  1,
		Polarity:  models.FeedbackNegative,
		Timestamp: time.Now(),
		SongTitle: "Meh",
	})

	events, err := usage.Recent(ctx, songID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.UsageNegativeFeedback, events[0].Category)
}

func TestRecord_UnknownSongIsSilentlyLogged(t *testing.T) {
	recorder, store, _, _ := testRecorder(t)

	recorder.Record(context.Background(), models.FeedbackEvent{
		UserID:    "u1",
		Position:  1,
		Polarity:  models.FeedbackPositive,
		Timestamp: time.Now(),
		SongTitle: "Not In Catalog",
	})

	var count int64
	require.NoError(t, store.DB.Model(&db.UserFeedback{}).Count(&count).Error)
	assert.Zero(t, count)
}
