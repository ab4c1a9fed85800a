package bot

import (
	"fmt"
	"strings"

	"github.com/cantorbot/cantor/pkg/models"
)

// adjacentThemes suggests related themes when a search comes up empty.
var adjacentThemes = map[string][]string{
	"joy":       {"celebration", "praise", "thanksgiving"},
	"peace":     {"rest", "comfort", "calm"},
	"love":      {"grace", "mercy", "compassion"},
	"strength":  {"power", "courage", "victory"},
	"healing":   {"restoration", "breakthrough", "hope"},
	"faith":     {"trust", "confidence", "hope"},
	"hope":      {"faith", "trust", "future"},
	"salvation": {"redemption", "grace", "cross"},
	"worship":   {"praise", "adoration", "reverence"},
	"praise":    {"worship", "celebration", "thanksgiving"},
}

// FormatSongs renders one message per song so each recommendation arrives
// as its own chat bubble.
func FormatSongs(result *models.SearchResult) []string {
	lines := make([]string, 0, len(result.Songs))
	for _, song := range result.Songs {
		lines = append(lines, formatSongLine(song, result.MatchedTerm))
	}
	return lines
}

// formatSongLine renders a song as a single pipe-delimited line:
//
//	Title — Artist | Key G | 72 BPM | tags: altar-call | link: URL | matched: 'surrender'
func formatSongLine(song models.Song, matchedTerm string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s — %s", song.Title, song.Artist)
	if song.Key != "" {
		fmt.Fprintf(&b, " | Key %s", song.Key)
	}
	if song.HasBPM() {
		fmt.Fprintf(&b, " | %d BPM", song.BPM)
	}
	if len(song.Tags) > 0 {
		fmt.Fprintf(&b, " | tags: %s", strings.Join(song.Tags, ", "))
	}
	if song.URL != "" {
		fmt.Fprintf(&b, " | link: %s", song.URL)
	}
	if matchedTerm != "" {
		fmt.Fprintf(&b, " | matched: '%s'", matchedTerm)
	}
	return b.String()
}

// searchIntro acknowledges what the user asked for before the song bubbles.
func searchIntro(themes []string) string {
	if len(themes) == 0 {
		return ""
	}
	return fmt.Sprintf("Here are some songs about %s:", strings.Join(themes, ", "))
}

// noResultsMessage explains an empty search and offers adjacent themes to
// try next.
func noResultsMessage(themes []string) string {
	if len(themes) == 0 {
		return "No songs found. Try something like 'find songs on surrender' or 'worship songs'."
	}
	shown := themes
	if len(shown) > 2 {
		shown = shown[:2]
	}
	suggestions, ok := adjacentThemes[strings.ToLower(themes[0])]
	if !ok {
		suggestions = []string{"worship", "praise", "grace"}
	}
	return fmt.Sprintf("I couldn't find any songs about %s. Maybe try %s instead?",
		strings.Join(shown, ", "), strings.Join(suggestions, ", "))
}

const (
	msgNeverSearched = "I don't have a previous search to build on. Try something like 'find songs on worship'."

	msgSessionExpired = "Your search session has expired. Please search again before requesting more songs."

	msgNoFeedbackContext = "Please search for songs first before giving feedback."

	msgFeedbackExpired = "Your search session has expired, so I can't tell which song you mean. Please search again."

	msgUnclear = "I'm not sure what you're looking for. Try something like:\n" +
		"• 'Find songs on surrender'\n" +
		"• 'Upbeat songs for celebration'\n" +
		"• 'Songs like Amazing Grace'\n" +
		"• 'more' (after a search)"

	msgError = "Sorry, something went wrong handling that. Please try again."

	msgWelcome = "Hello! I help worship leaders find songs. Tell me what you're looking for:\n" +
		"• 'Find slow songs about surrender for altar call'\n" +
		"• 'Upbeat celebration songs in the key of G'\n" +
		"• 'Songs like Amazing Grace'\n\n" +
		"I understand themes, BPM, and keys, and I learn from your feedback.\n" +
		"What kind of songs are you looking for today?"
)

func invalidFeedbackMessage(numSongs int) string {
	return fmt.Sprintf("Please tell me which song you mean, e.g. '👍 2' or 'the second one was perfect' (1-%d).", numSongs)
}

func feedbackRangeMessage(numSongs int) string {
	return fmt.Sprintf("Please choose a number between 1 and %d.", numSongs)
}

func feedbackConfirmation(title string, polarity models.FeedbackPolarity) string {
	if polarity == models.FeedbackNegative {
		return fmt.Sprintf("Got it, '%s' didn't fit. I'll keep that in mind.", title)
	}
	return fmt.Sprintf("Thanks! I've noted that you liked '%s'. This helps me learn your preferences.", title)
}

func noMoreSongsMessage(theme string) string {
	if theme == "" {
		return "No more songs found for your last search."
	}
	return fmt.Sprintf("No more songs found for '%s'.", theme)
}
