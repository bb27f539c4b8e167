// Package explain turns a decision and its supporting evidence into a
// human-readable claim assessment via the LLM.
package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/resilience"
)

// FallbackText is returned whenever the LLM cannot produce an explanation.
const FallbackText = "Explanation unavailable at this time."

// Generator produces a completion for a prompt. Satisfied by ollama.Client.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Writer generates claim assessments. It never fails: any LLM problem
// yields FallbackText so persistence and the API response can proceed.
type Writer struct {
	llm     Generator
	model   string
	breaker *resilience.Breaker
	log     *slog.Logger
}

func NewWriter(llm Generator, model string, log *slog.Logger) *Writer {
	return &Writer{
		llm:     llm,
		model:   model,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		log:     log,
	}
}

// Request carries everything the explanation prompt needs.
type Request struct {
	Insurer  string
	Category string
	Reasons  []string
	Clauses  []domain.Clause
	Findings *domain.ImageFindings
}

// Generate writes the claim assessment for req.
func (w *Writer) Generate(ctx context.Context, req Request) string {
	prompt := buildPrompt(req)

	var raw string
	err := w.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = w.llm.Generate(ctx, w.model, prompt)
		return err
	})
	if err != nil {
		w.log.Warn("explanation generation failed", "error", err)
		return FallbackText
	}
	if strings.TrimSpace(raw) == "" {
		return FallbackText
	}
	return raw
}

// buildPrompt assembles the analyst prompt. The visual evidence block is
// included only when image findings exist.
func buildPrompt(req Request) string {
	var clauseLines []string
	for _, c := range req.Clauses {
		clauseLines = append(clauseLines, "- "+c.Text)
	}

	visualContext := ""
	if f := req.Findings; f != nil {
		var details []string
		if f.Severity != "" && f.Severity != domain.SeverityNone {
			details = append(details, fmt.Sprintf("Severity: %s", f.Severity))
		}
		if f.DamageDetected {
			details = append(details, "Damage Detected: YES")
		}
		if f.Claimability != "" {
			details = append(details, fmt.Sprintf("Claimability Status: %s", f.Claimability))
		}
		if len(f.Reasoning) > 0 {
			details = append(details, fmt.Sprintf("Visual Observations: %s", strings.Join(f.Reasoning, ", ")))
		}
		if len(details) > 0 {
			visualContext = "\nVisual Evidence Analysis:\n" + strings.Join(details, "\n")
		}
	}

	return fmt.Sprintf(`You are an expert insurance claim analyst.

Claim Context:
Company: %s
Policy: %s
Decision Factors: %s

%s

Relevant Policy Clauses:
%s

Task:
Generate a professional claim assessment.
1. Synthesize the decision factors and visual evidence into a clear explanation.
2. If visuals are provided, explicitly mention what the AI "saw" (e.g., "The image analysis confirms major damage...").
3. Cite the specific policy clauses that justify the decision.

Output Format (STRICTLY follow these headers):

## Explanation
<A detailed 3-4 sentence paragraph explaining the decision, citing policy and visual evidence.>

## Visual Analysis
<A specific note on what the image analysis found (e.g., "The AI detected a major dent on the front bumper which aligns with the incident report...").>

## Evidence Used
- <Bullet points of the exact policy clauses or rules applied>`,
		req.Insurer,
		req.Category,
		strings.Join(req.Reasons, "; "),
		visualContext,
		strings.Join(clauseLines, "\n"),
	)
}
