package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClaimSightAI/claimsight-mvp/engine/reason"
	"github.com/ClaimSightAI/claimsight-mvp/pkg/resilience"
)

// ReasonFinding is one extracted rejection reason with the model's
// confidence in it.
type ReasonFinding struct {
	ReasonCode reason.Code `json:"reason_code"`
	Confidence string      `json:"confidence"`
}

type reasonsEnvelope struct {
	RejectionReasons []ReasonFinding `json:"rejection_reasons"`
}

const reasonPromptTemplate = `You are an insurance claim analysis assistant specializing in motor insurance.

Task:
Identify the reason(s) for claim rejection from the given text.

STRICT RULES:
- Choose reason_code ONLY from the allowed list
- Do NOT guess or assume
- If no clear reason is found, return ONLY "UNKNOWN"
- Multiple reasons may be returned only if clearly stated
- Return VALID JSON only (no explanation text)

Allowed reason_code values:
%s

Output JSON format:
{
  "rejection_reasons": [
    {
      "reason_code": "<CODE>",
      "confidence": "HIGH | MEDIUM | LOW"
    }
  ]
}

Claim Text:
"""
%s
"""`

// ReasonExtractor identifies canonical rejection reasons in claim text.
// It never fails: any transport or parse problem yields a single UNKNOWN
// finding with LOW confidence.
type ReasonExtractor struct {
	llm     Generator
	model   string
	breaker *resilience.Breaker
	log     *slog.Logger
}

func NewReasonExtractor(llm Generator, model string, log *slog.Logger) *ReasonExtractor {
	return &ReasonExtractor{
		llm:     llm,
		model:   model,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		log:     log,
	}
}

func unknownFinding() []ReasonFinding {
	return []ReasonFinding{{ReasonCode: reason.Unknown, Confidence: "LOW"}}
}

// ExtractRejectionReasons returns the rejection reasons the model found in
// text, constrained to the canonical taxonomy.
func (e *ReasonExtractor) ExtractRejectionReasons(ctx context.Context, text string) []ReasonFinding {
	codes := reason.AllCodes()
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = string(c)
	}
	prompt := fmt.Sprintf(reasonPromptTemplate, strings.Join(names, ", "), strings.TrimSpace(text))

	var raw string
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = e.llm.Generate(ctx, e.model, prompt)
		return err
	})
	if err != nil {
		e.log.Warn("reason extraction failed", "error", err)
		return unknownFinding()
	}

	findings, err := parseReasons(raw)
	if err != nil {
		e.log.Warn("reason extraction returned invalid output", "error", err)
		return unknownFinding()
	}
	return findings
}

// parseReasons validates the LLM output: non-empty, every code in the
// allowed taxonomy.
func parseReasons(raw string) ([]ReasonFinding, error) {
	var env reasonsEnvelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &env); err != nil {
		return nil, err
	}
	if len(env.RejectionReasons) == 0 {
		return nil, fmt.Errorf("empty rejection_reasons")
	}
	allowed := make(map[reason.Code]bool)
	for _, c := range reason.AllCodes() {
		allowed[c] = true
	}
	for _, f := range env.RejectionReasons {
		if !allowed[f.ReasonCode] {
			return nil, fmt.Errorf("reason code %q not in taxonomy", f.ReasonCode)
		}
	}
	return env.RejectionReasons, nil
}
