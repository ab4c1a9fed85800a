// Package feedback records thumbs-up/down reactions against the songs shown
// in a user's last search.
package feedback

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cantorbot/cantor/internal/db"
	"github.com/cantorbot/cantor/internal/familiarity"
	"github.com/cantorbot/cantor/pkg/models"
)

var (
	emojiPositionRe  = regexp.MustCompile(`[👍👎]\s*(\d+)`)
	numberPositionRe = regexp.MustCompile(`(?:song|number)\s*(\d+)`)
)

var ordinals = []struct {
	words    []string
	position int
}{
	{[]string{"first", "1st"}, 1},
	{[]string{"second", "2nd"}, 2},
	{[]string{"third", "3rd"}, 3},
	{[]string{"fourth", "4th"}, 4},
	{[]string{"fifth", "5th"}, 5},
}

// ParseReaction extracts a 1-based song position and a polarity from a
// feedback message. ok is false when no position can be found; validation
// against the shown list is the caller's job.
func ParseReaction(message string) (position int, polarity models.FeedbackPolarity, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(message))

	polarity = models.FeedbackPositive
	if strings.Contains(lower, "👎") || strings.Contains(lower, "thumbs down") ||
		strings.Contains(lower, "didn't like") || strings.Contains(lower, "did not like") ||
		strings.Contains(lower, "didn't work") {
		polarity = models.FeedbackNegative
	}

	if m := emojiPositionRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, polarity, true
	}
	for _, ord := range ordinals {
		for _, word := range ord.words {
			if strings.Contains(lower, word) {
				return ord.position, polarity, true
			}
		}
	}
	if m := numberPositionRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, polarity, true
	}
	return 0, polarity, false
}

// Recorder persists feedback events and feeds them into the familiarity
// ledger.
type Recorder struct {
	songs    *db.SongStore
	feedback *db.FeedbackStore
	scorer   *familiarity.Scorer
	now      func() time.Time
}

// NewRecorder wires a recorder over the song and feedback stores and the
// familiarity scorer.
func NewRecorder(songs *db.SongStore, feedback *db.FeedbackStore, scorer *familiarity.Scorer) *Recorder {
	return &Recorder{
		songs:    songs,
		feedback: feedback,
		scorer:   scorer,
		now:      time.Now,
	}
}

// Record stores a reaction to the named song. The feedback row and the
// usage micro-event are written independently: a failure in one never
// blocks the other, and neither failure reaches the user. A song missing
// from the catalog is logged and otherwise ignored so synced-out titles do
// not break the conversation.
func (r *Recorder) Record(ctx context.Context, event models.FeedbackEvent) {
	song, err := r.songs.GetByTitle(ctx, event.SongTitle)
	if err != nil {
		log.Error().Err(err).Str("title", event.SongTitle).Msg("Failed to look up feedback target")
		return
	}
	if song == nil {
		log.Warn().Str("title", event.SongTitle).Msg("Feedback for a song not in the catalog")
		return
	}

	if err := r.feedback.Create(ctx, event.UserID, song.ID, event.Polarity, event.Timestamp, nil); err != nil {
		log.Error().Err(err).Str("title", event.SongTitle).Msg("Failed to store feedback event")
	}
	if err := r.scorer.RecordFeedback(ctx, song.ID, event.Polarity); err != nil {
		log.Error().Err(err).Str("title", event.SongTitle).Msg("Failed to record feedback usage event")
	}
}
