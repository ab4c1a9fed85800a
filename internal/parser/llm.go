package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/cantorbot/cantor/pkg/models"
)

const systemPrompt = `You are an assistant for worship leaders preparing song sets. Parse the user's request into search parameters.

Common themes: surrender, worship, praise, grace, love, peace, hope, faith, joy, redemption, salvation, healing, consecration.
BPM guidance: slow/contemplative 60-85, moderate 86-120, upbeat 121-160+.
Keys: A, Bb, B, C, C#, D, Eb, E, F, F#, G, Ab.

Respond with ONLY valid JSON, no explanations, no markdown:
{
  "themes": ["theme1"],
  "bpm_min": null,
  "bpm_max": null,
  "key_preference": null,
  "mood": null,
  "intent": "search|more|feedback|unknown",
  "similarity_song": null,
  "exclude_recent": false,
  "confidence": 0.9
}

Rules:
- "under X BPM" means bpm_max X; "over X BPM" means bpm_min X; "fast" means bpm_min 120; "slow" means bpm_max 85
- "in G" or "key of G" means key_preference "G"
- "like [Title]" or "similar to [Title]" means similarity_song "[Title]"
- If unsure, use confidence 0.5 and intent "unknown"`

// llmResponse mirrors the JSON object the model is instructed to emit.
type llmResponse struct {
	Themes        []string `json:"themes"`
	BPMMin        *int     `json:"bpm_min"`
	BPMMax        *int     `json:"bpm_max"`
	KeyPreference *string  `json:"key_preference"`
	Mood          *string  `json:"mood"`
	Intent        string   `json:"intent"`
	SimilaritySo  *string  `json:"similarity_song"`
	ExcludeRecent bool     `json:"exclude_recent"`
	Confidence    float64  `json:"confidence"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopK        int     `json:"top_k"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// LLMParser parses queries with a local Ollama model. Every failure path
// (transport, HTTP status, malformed JSON) degrades to the deterministic
// fallback parser, so callers always get a usable query.
type LLMParser struct {
	baseURL  string
	model    string
	client   *http.Client
	fallback *FallbackParser
}

// NewLLMParser builds a parser against the Ollama endpoint at baseURL. The
// timeout bounds a single generate call.
func NewLLMParser(baseURL, model string, timeout time.Duration, fallback *FallbackParser) *LLMParser {
	return &LLMParser{
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
	}
}

// Parse sends the query to the model and decodes its JSON reply. Prior
// themes, when present, are included in the prompt so vague follow-ups stay
// on topic.
func (p *LLMParser) Parse(ctx context.Context, query string, prior *models.ParsedQuery) *models.ParsedQuery {
	start := time.Now()

	parsed, err := p.generate(ctx, query, prior)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("LLM parse failed, using fallback")
		q := p.fallback.Parse(ctx, query, prior)
		q.Confidence = 0.5
		return q
	}

	log.Info().
		Dur("elapsed", time.Since(start)).
		Int("themes", len(parsed.Themes)).
		Str("intent", string(parsed.Intent)).
		Msg("Query parsed")
	return parsed
}

func (p *LLMParser) generate(ctx context.Context, query string, prior *models.ParsedQuery) (*models.ParsedQuery, error) {
	prompt := systemPrompt
	if prior != nil && len(prior.Themes) > 0 {
		prompt += fmt.Sprintf("\n\nEarlier in this conversation the user asked about: %s.", strings.Join(prior.Themes, ", "))
	}

	body, err := json.Marshal(generateRequest{
		Model:  p.model,
		Prompt: fmt.Sprintf("%s\n\nUser: %s\n\nAssistant:", prompt, query),
		Stream: false,
		Options: generateOptions{
			Temperature: 0.1,
			NumPredict:  200,
			TopK:        20,
			TopP:        0.9,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var gen generateResponse
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}

	text := stripFences(gen.Response)
	var out llmResponse
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	return p.toQuery(&out, query), nil
}

func (p *LLMParser) toQuery(out *llmResponse, raw string) *models.ParsedQuery {
	q := &models.ParsedQuery{
		Themes:        out.Themes,
		Intent:        normalizeIntent(out.Intent),
		ExcludeRecent: out.ExcludeRecent,
		Confidence:    out.Confidence,
		RawQuery:      raw,
	}
	if out.BPMMin != nil {
		q.BPMMin = *out.BPMMin
	}
	if out.BPMMax != nil {
		q.BPMMax = *out.BPMMax
	}
	if out.KeyPreference != nil {
		q.KeyPreference = *out.KeyPreference
	}
	if out.Mood != nil {
		q.Mood = *out.Mood
	}
	if out.SimilaritySo != nil {
		q.SimilarTo = *out.SimilaritySo
	}
	return q
}

func normalizeIntent(s string) models.Intent {
	switch models.Intent(strings.ToLower(strings.TrimSpace(s))) {
	case models.IntentSearch:
		return models.IntentSearch
	case models.IntentMore:
		return models.IntentMore
	case models.IntentFeedback:
		return models.IntentFeedback
	default:
		return models.IntentUnknown
	}
}

// stripFences removes a markdown code fence the model may wrap its JSON in
// despite the prompt's instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
