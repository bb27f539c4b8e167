// Package extract pulls structured facts out of free-text claim
// descriptions using the LLM. Output is constrained to fixed JSON schemas
// and falls back to safe defaults when the model wanders off them.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClaimSightAI/claimsight-mvp/pkg/resilience"
)

// Generator produces a completion for a prompt. Satisfied by ollama.Client.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Keywords is the structured extraction from an accident description.
type Keywords struct {
	IncidentType   string   `json:"incident_type"`
	DamageSeverity string   `json:"damage_severity"`
	Keywords       []string `json:"keywords"`
}

const keywordSystemPrompt = `You are an insurance domain information extractor.

Your task:
- Extract structured information from an accident description.
- Do NOT explain.
- Do NOT make decisions.
- Output ONLY valid JSON.

JSON schema:
{
  "incident_type": string,
  "damage_severity": "minor" | "moderate" | "major",
  "keywords": [string]
}

Rules:
- keywords must be concrete vehicle parts or damage indicators
- incident_type must be one word
- damage_severity must be inferred conservatively`

// KeywordExtractor extracts damage keywords from claim descriptions.
type KeywordExtractor struct {
	llm     Generator
	model   string
	breaker *resilience.Breaker
	log     *slog.Logger
}

func NewKeywordExtractor(llm Generator, model string, log *slog.Logger) *KeywordExtractor {
	return &KeywordExtractor{
		llm:     llm,
		model:   model,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		log:     log,
	}
}

// Extract asks the LLM for structured keywords. Transport failures are
// returned so the caller can degrade; a response that is not valid JSON
// degrades in place to an unknown extraction.
func (e *KeywordExtractor) Extract(ctx context.Context, description string) (Keywords, error) {
	prompt := fmt.Sprintf("SYSTEM:\n%s\n\nUSER:\nAccident description:\n\"\"\"%s\"\"\"\n\nReturn JSON only.",
		keywordSystemPrompt, description)

	var raw string
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = e.llm.Generate(ctx, e.model, prompt)
		return err
	})
	if err != nil {
		return Keywords{}, fmt.Errorf("keyword extraction: %w", err)
	}

	var out Keywords
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		e.log.Warn("keyword extraction returned non-JSON output", "error", err)
		return Keywords{IncidentType: "unknown", DamageSeverity: "unknown", Keywords: []string{}}, nil
	}
	return out, nil
}
