// Package parser turns free-text worship queries into structured search
// parameters. The primary implementation calls a local Ollama model; a
// deterministic rule-based parser backs it up and serves tests.
package parser

import (
	"context"

	"github.com/cantorbot/cantor/pkg/models"
)

// Parser extracts themes, tempo and key constraints, and intent from a raw
// user message. prior is the previous parsed query for the same user, or
// nil; it lets ambiguous follow-ups inherit earlier themes. Implementations
// never fail the caller: on any internal error the query degrades to a
// low-confidence best effort.
type Parser interface {
	Parse(ctx context.Context, query string, prior *models.ParsedQuery) *models.ParsedQuery
}
