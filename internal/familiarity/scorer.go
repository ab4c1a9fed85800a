// Package familiarity computes recency-weighted popularity scores from the
// usage ledger.
package familiarity

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cantorbot/cantor/internal/db"
	"github.com/cantorbot/cantor/pkg/models"
)

const (
	// maxEvents bounds how many ledger rows one score reads.
	maxEvents = 20

	// halfLife is the decay constant: exp(-days/halfLife) halves roughly
	// every 60 days.
	halfLife = 86.4

	// maxScore is the upper bound of the familiarity scale.
	maxScore = 10.0
)

// Ledger is the slice of the usage store the scorer needs.
type Ledger interface {
	Append(ctx context.Context, songID int64, usedAt time.Time, category models.UsageCategory, note string) error
	Recent(ctx context.Context, songID int64, limit int) ([]db.UsageEvent, error)
	CountForSong(ctx context.Context, songID int64) (int64, error)
}

// Scorer computes familiarity scores on demand. Scores are never persisted.
type Scorer struct {
	ledger Ledger
	now    func() time.Time
}

// NewScorer creates a scorer over the given ledger.
func NewScorer(ledger Ledger) *Scorer {
	return &Scorer{ledger: ledger, now: time.Now}
}

// Score returns the song's familiarity in [0.0, 10.0], rounded to one
// decimal. A song with no ledger rows scores exactly 0.0, as does a song
// whose ledger read fails; scoring degrades rather than propagating store
// errors into ranking.
//
// Every ledger row contributes exp(-daysAgo/halfLife), including rows
// written for negative feedback: the ledger is additive and can never lower
// a score.
func (s *Scorer) Score(ctx context.Context, songID int64) float64 {
	events, err := s.ledger.Recent(ctx, songID, maxEvents)
	if err != nil {
		log.Warn().Err(err).Int64("song_id", songID).Msg("Usage ledger read failed, scoring 0.0")
		return 0.0
	}
	if len(events) == 0 {
		return 0.0
	}

	now := s.now()
	total := 0.0
	for _, ev := range events {
		daysAgo := int(now.Sub(ev.UsedAt).Hours() / 24)
		if daysAgo < 0 {
			daysAgo = 0
		}
		total += math.Exp(-float64(daysAgo) / halfLife)
	}

	score := math.Round(total*10) / 10
	if score > maxScore {
		return maxScore
	}
	return score
}

// UsedWithin reports whether the song has any usage event inside the last
// `days` days. Ledger read failures count as not used, matching Score's
// degradation.
func (s *Scorer) UsedWithin(ctx context.Context, songID int64, days int) bool {
	events, err := s.ledger.Recent(ctx, songID, 1)
	if err != nil || len(events) == 0 {
		return false
	}
	return s.now().Sub(events[0].UsedAt) < time.Duration(days)*24*time.Hour
}

// RecordUse appends an ordinary usage event for the song.
func (s *Scorer) RecordUse(ctx context.Context, songID int64, usedAt time.Time, note string) error {
	return s.ledger.Append(ctx, songID, usedAt, models.UsageWorship, note)
}

// RecordFeedback appends a micro usage event for a feedback signal. The
// event lands "today" so a positive signal nudges the score by roughly one
// fresh contribution.
func (s *Scorer) RecordFeedback(ctx context.Context, songID int64, polarity models.FeedbackPolarity) error {
	category := models.UsagePositiveFeedback
	if polarity == models.FeedbackNegative {
		category = models.UsageNegativeFeedback
	}
	return s.ledger.Append(ctx, songID, s.now(), category, "feedback")
}
