package explain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubLLM struct {
	response string
	err      error
	prompt   string
}

func (s *stubLLM) Generate(_ context.Context, _, prompt string) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

func baseRequest() Request {
	return Request{
		Insurer:  "Acko",
		Category: "Two Wheeler",
		Reasons:  []string{"Driver Alcohol Intoxication Detected"},
		Clauses: []domain.Clause{
			{Text: "Claims arising under the influence of alcohol are excluded."},
		},
	}
}

func TestGenerateReturnsLLMOutput(t *testing.T) {
	llm := &stubLLM{response: "## Explanation\nThe claim was rejected."}
	w := NewWriter(llm, "llama3", discardLogger())

	got := w.Generate(context.Background(), baseRequest())
	if got != llm.response {
		t.Fatalf("got %q", got)
	}
	for _, want := range []string{
		"Company: Acko",
		"Policy: Two Wheeler",
		"Driver Alcohol Intoxication Detected",
		"- Claims arising under the influence of alcohol are excluded.",
		"## Evidence Used",
	} {
		if !strings.Contains(llm.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerateFallbackOnError(t *testing.T) {
	w := NewWriter(&stubLLM{err: errors.New("down")}, "llama3", discardLogger())
	if got := w.Generate(context.Background(), baseRequest()); got != FallbackText {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateFallbackOnEmptyResponse(t *testing.T) {
	w := NewWriter(&stubLLM{response: "  \n"}, "llama3", discardLogger())
	if got := w.Generate(context.Background(), baseRequest()); got != FallbackText {
		t.Fatalf("got %q", got)
	}
}

func TestPromptIncludesVisualBlockOnlyWithFindings(t *testing.T) {
	req := baseRequest()
	if prompt := buildPrompt(req); strings.Contains(prompt, "Visual Evidence Analysis") {
		t.Error("visual block present without findings")
	}

	req.Findings = &domain.ImageFindings{
		DamageDetected: true,
		Severity:       domain.SeverityMajor,
		Claimability:   domain.Claimable,
		Reasoning:      []string{"Major damage detected", "High confidence predictions"},
	}
	prompt := buildPrompt(req)
	for _, want := range []string{
		"Visual Evidence Analysis:",
		"Severity: MAJOR",
		"Damage Detected: YES",
		"Claimability Status: Claimable",
		"Visual Observations: Major damage detected, High confidence predictions",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
