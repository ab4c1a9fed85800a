package search

import (
	"context"
	"sort"

	"github.com/cantorbot/cantor/pkg/models"
)

// Scorer yields a familiarity score for a song.
type Scorer interface {
	Score(ctx context.Context, songID int64) float64
}

// Ranker orders candidates by familiarity and truncates to one page.
type Ranker struct {
	scorer   Scorer
	pageSize int
}

// NewRanker creates a ranker with the canonical page size.
func NewRanker(scorer Scorer, pageSize int) *Ranker {
	return &Ranker{scorer: scorer, pageSize: pageSize}
}

// Rank sorts songs by familiarity score descending. The sort is stable:
// equal scores keep the resolver's candidate order. The result is truncated
// to the page size.
func (r *Ranker) Rank(ctx context.Context, songs []models.Song) []models.Song {
	if len(songs) == 0 {
		return nil
	}

	scores := make([]float64, len(songs))
	for i, song := range songs {
		scores[i] = r.scorer.Score(ctx, song.ID)
	}

	indices := make([]int, len(songs))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})

	out := make([]models.Song, 0, len(songs))
	for _, idx := range indices {
		out = append(out, songs[idx])
	}
	if len(out) > r.pageSize {
		out = out[:r.pageSize]
	}
	return out
}
