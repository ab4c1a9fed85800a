// Package bot routes incoming chat messages through parsing, search,
// ranking, session state, and feedback recording.
package bot

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/cantorbot/cantor/internal/db"
	"github.com/cantorbot/cantor/internal/familiarity"
	"github.com/cantorbot/cantor/internal/feedback"
	"github.com/cantorbot/cantor/internal/parser"
	"github.com/cantorbot/cantor/internal/privacy"
	"github.com/cantorbot/cantor/internal/search"
	"github.com/cantorbot/cantor/internal/session"
	"github.com/cantorbot/cantor/pkg/models"
)

// Handler turns one user message into one or more reply messages. Replies
// are returned as a slice; the transport sends each element as its own
// bubble.
type Handler struct {
	parser   parser.Parser
	resolver *search.Resolver
	ranker   *search.Ranker
	sessions *session.Manager
	recorder *feedback.Recorder
	scorer   *familiarity.Scorer
	messages *db.MessageLogStore
	now      func() time.Time
}

// NewHandler wires the message pipeline together.
func NewHandler(
	p parser.Parser,
	resolver *search.Resolver,
	ranker *search.Ranker,
	sessions *session.Manager,
	recorder *feedback.Recorder,
	scorer *familiarity.Scorer,
	messages *db.MessageLogStore,
) *Handler {
	return &Handler{
		parser:   p,
		resolver: resolver,
		ranker:   ranker,
		sessions: sessions,
		recorder: recorder,
		scorer:   scorer,
		messages: messages,
		now:      time.Now,
	}
}

// HandleMessage processes a single message and returns the replies. It
// never returns an error: every failure degrades to a user-facing message
// and a log line, so the conversation keeps moving.
func (h *Handler) HandleMessage(ctx context.Context, userID, text string) []string {
	start := h.now()

	var (
		replies     []string
		messageType string
		parsed      *models.ParsedQuery
	)

	// Greetings skip the parser so /start responds even when the model is
	// down.
	if isGreeting(text) {
		replies = []string{msgWelcome}
		messageType = "greeting"
	} else {
		var prior *models.ParsedQuery
		if c, ok := h.sessions.LookupContext(userID); ok {
			prior = &models.ParsedQuery{Themes: c.Themes, Intent: c.Intent}
		}

		parsed = h.parser.Parse(ctx, text, prior)
		log.Info().
			Str("user_id", userID).
			Str("intent", string(parsed.Intent)).
			Strs("themes", parsed.Themes).
			Float64("confidence", parsed.Confidence).
			Msg("Parsed query")

		h.sessions.RememberContext(userID, parsed.Themes, parsed.Intent)

		switch parsed.Intent {
		case models.IntentSearch:
			replies = h.handleSearch(ctx, userID, parsed)
			messageType = "search"
		case models.IntentMore:
			replies = h.handleMore(ctx, userID)
			messageType = "more"
		case models.IntentFeedback:
			replies = []string{h.handleFeedback(ctx, userID, text)}
			messageType = "feedback"
		default:
			replies = []string{h.handleUnknown(parsed)}
			messageType = "unknown"
		}
	}

	h.logInteraction(ctx, userID, messageType, text, replies, parsed, h.now().Sub(start))
	return replies
}

// handleSearch runs a fresh search and replaces the user's session.
func (h *Handler) handleSearch(ctx context.Context, userID string, parsed *models.ParsedQuery) []string {
	// Previously shown songs stay excluded so repeated searches keep the
	// recommendations fresh.
	var excluded []string
	if sess, state := h.sessions.Lookup(userID); state == session.StateActive {
		excluded = sess.ShownTitles
	}

	songs, matched := h.resolver.Resolve(ctx, *parsed, excluded)

	if parsed.ExcludeRecent {
		songs = h.dropRecentlyUsed(ctx, songs)
	}

	if len(songs) == 0 && len(parsed.Themes) > 0 {
		// Retry on the leading themes alone, dropping tempo and key
		// constraints that may have filtered everything out.
		themes := parsed.Themes
		if len(themes) > 2 {
			themes = themes[:2]
		}
		songs, matched = h.resolver.Resolve(ctx, models.ParsedQuery{
			Intent:   models.IntentSearch,
			Themes:   themes,
			RawQuery: parsed.RawQuery,
		}, excluded)
		if parsed.ExcludeRecent {
			songs = h.dropRecentlyUsed(ctx, songs)
		}
	}

	if len(songs) == 0 {
		return []string{noResultsMessage(parsed.Themes)}
	}

	ranked := h.ranker.Rank(ctx, songs)
	result := &models.SearchResult{
		Songs:       ranked,
		MatchedTerm: matched,
		Theme:       strings.Join(parsed.Themes, ", "),
	}
	h.sessions.StartSearch(userID, result)

	replies := FormatSongs(result)
	if intro := searchIntro(parsed.Themes); intro != "" {
		replies = append([]string{intro}, replies...)
	}
	return replies
}

// handleMore pages deeper into the user's last search, excluding everything
// already shown.
func (h *Handler) handleMore(ctx context.Context, userID string) []string {
	sess, state := h.sessions.Lookup(userID)
	switch state {
	case session.StateAbsent, session.StateExpired:
		// No pageable session, but a live conversation context can still
		// rebuild the query. Covers "more" after a no-result search.
		if c, ok := h.sessions.LookupContext(userID); ok && len(c.Themes) > 0 {
			return h.handleSearch(ctx, userID, &models.ParsedQuery{
				Intent: models.IntentSearch,
				Themes: c.Themes,
			})
		}
		if state == session.StateExpired {
			return []string{msgSessionExpired}
		}
		return []string{msgNeverSearched}
	}

	last := sess.LastSearch
	var themes []string
	if last.Theme != "" {
		themes = strings.Split(last.Theme, ", ")
	}

	songs, matched := h.resolver.Resolve(ctx, models.ParsedQuery{
		Intent: models.IntentSearch,
		Themes: themes,
	}, sess.ShownTitles)
	if len(songs) == 0 {
		h.sessions.Touch(userID)
		return []string{noMoreSongsMessage(last.Theme)}
	}

	ranked := h.ranker.Rank(ctx, songs)
	titles := make([]string, 0, len(ranked))
	for _, song := range ranked {
		titles = append(titles, song.Title)
	}
	h.sessions.AppendResults(userID, titles)

	return FormatSongs(&models.SearchResult{
		Songs:       ranked,
		MatchedTerm: matched,
		Theme:       last.Theme,
	})
}

// handleFeedback records a reaction against the last search's song list.
// Positions are 1-based against that list, not the cumulative shown set.
func (h *Handler) handleFeedback(ctx context.Context, userID, text string) string {
	sess, state := h.sessions.Lookup(userID)
	switch state {
	case session.StateAbsent:
		return msgNoFeedbackContext
	case session.StateExpired:
		return msgFeedbackExpired
	}

	numSongs := len(sess.LastSearch.Songs)
	position, polarity, ok := feedback.ParseReaction(text)
	if !ok {
		return invalidFeedbackMessage(numSongs)
	}
	if position < 1 || position > numSongs {
		return feedbackRangeMessage(numSongs)
	}

	title := sess.LastSearch.Songs[position-1].Title
	h.recorder.Record(ctx, models.FeedbackEvent{
		UserID:    userID,
		Position:  position,
		Polarity:  polarity,
		Timestamp: h.now(),
		SongTitle: title,
	})
	h.sessions.Touch(userID)

	return feedbackConfirmation(title, polarity)
}

// recentUseWindowDays is the rotation window behind "songs we haven't used
// lately".
const recentUseWindowDays = 30

func (h *Handler) dropRecentlyUsed(ctx context.Context, songs []models.Song) []models.Song {
	kept := make([]models.Song, 0, len(songs))
	for _, song := range songs {
		if h.scorer.UsedWithin(ctx, song.ID, recentUseWindowDays) {
			continue
		}
		kept = append(kept, song)
	}
	return kept
}

func (h *Handler) handleUnknown(parsed *models.ParsedQuery) string {
	if len(parsed.Themes) > 0 {
		return "I think you're looking for songs about " + strings.Join(parsed.Themes, ", ") +
			", but I need a clearer request. Try 'find songs on " + parsed.Themes[0] + "'."
	}
	return msgUnclear
}

var exactGreetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "hiya": true, "howdy": true,
	"greetings": true, "start": true, "/start": true, "begin": true,
	"good morning": true, "good afternoon": true, "good evening": true,
}

// isGreeting matches short salutations and the /start command.
func isGreeting(text string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if exactGreetings[cleaned] {
		return true
	}
	words := strings.Fields(cleaned)
	if len(words) <= 2 {
		for _, starter := range []string{"hi", "hello", "hey", "hiya", "howdy"} {
			if strings.HasPrefix(cleaned, starter) {
				return true
			}
		}
	}
	return false
}

// logInteraction persists one message-log row with parser metadata. Logging
// failures never surface to the user.
func (h *Handler) logInteraction(ctx context.Context, userID, messageType, text string, replies []string, parsed *models.ParsedQuery, elapsed time.Duration) {
	meta := map[string]any{
		"intent":             messageType,
		"confidence":         1.0,
		"themes":             []string{},
		"processing_time_ms": elapsed.Milliseconds(),
	}
	if parsed != nil {
		meta["intent"] = string(parsed.Intent)
		meta["confidence"] = parsed.Confidence
		meta["themes"] = parsed.Themes
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	if err := h.messages.Create(ctx, userID, messageType, privacy.Redact(text), strings.Join(replies, "\n---\n"), string(metaJSON)); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to log interaction")
	}
}
