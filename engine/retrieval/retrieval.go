// Package retrieval selects the policy clauses that justify a verdict. It
// restricts the evidence index to the claim's insurer and policy category
// (with case-insensitive and demo-placeholder fallback tiers), ranks the
// survivors by embedding similarity, and partitions them into a primary
// tier (reason- or topic-matched) and a capped secondary tier of generic
// supporting context.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClaimSightAI/claimsight-mvp/engine/domain"
	"github.com/ClaimSightAI/claimsight-mvp/engine/evidence"
	"github.com/ClaimSightAI/claimsight-mvp/engine/reason"
)

// Embedder turns query text into the index's vector space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures the retrieval engine.
type Options struct {
	// TopK is the candidate pool size fed into the partition step.
	TopK int
	// SecondaryCap bounds the generic supporting-context tier.
	SecondaryCap int
	// DefaultInsurer/DefaultCategory is the demo fallback pair used when a
	// generic placeholder insurer has no clauses of its own.
	DefaultInsurer  string
	DefaultCategory string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            15,
		SecondaryCap:    5,
		DefaultInsurer:  "Acko",
		DefaultCategory: "Two Wheeler",
	}
}

// genericInsurers are placeholder names demo/test traffic sends when the
// caller has no real insurer; they are allowed to fall back to the default
// clause set.
var genericInsurers = map[string]bool{
	"":                 true,
	"General":          true,
	"SafeGuard Insure": true,
}

// supportKeywords gate the secondary tier: a clause with none of these is
// dropped as irrelevant boilerplate. "licence"/"repudiat" are deliberate
// stems covering both spellings and all inflections.
var supportKeywords = []string{
	"driver", "licence", "license", "condition",
	"claim", "policy", "insured", "repudiat",
	"intimation", "accident",
}

// Engine is the reason-aware clause retrieval engine.
type Engine struct {
	index    *evidence.Index
	searcher evidence.Searcher
	embedder Embedder
	opts     Options
	logger   *slog.Logger
}

// New creates a retrieval engine over a loaded evidence index.
func New(index *evidence.Index, searcher evidence.Searcher, embedder Embedder, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SecondaryCap <= 0 {
		opts.SecondaryCap = DefaultOptions().SecondaryCap
	}
	return &Engine{index: index, searcher: searcher, embedder: embedder, opts: opts, logger: logger}
}

// Retrieve returns the k clauses nearest to query within the insurer/
// category restriction. An insurer/category pair absent from the index
// yields an empty result, never an error.
func (e *Engine) Retrieve(ctx context.Context, query, insurer, category string, k int) ([]domain.Clause, error) {
	candidates := e.restrict(insurer, category)
	if len(candidates) == 0 {
		return nil, nil
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	if k > len(candidates) {
		k = len(candidates)
	}
	hits, err := e.searcher.Search(ctx, vec, candidates, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	out := make([]domain.Clause, len(hits))
	for i, h := range hits {
		out[i] = e.index.Clause(h.Ordinal)
	}
	return out, nil
}

// restrict applies the three fallback tiers: exact match, case-insensitive
// match, then the fixed default pair for generic placeholder insurers.
func (e *Engine) restrict(insurer, category string) []int {
	candidates := e.index.Restrict(insurer, category, false)
	if len(candidates) == 0 {
		candidates = e.index.Restrict(insurer, category, true)
	}
	if len(candidates) == 0 && genericInsurers[insurer] {
		e.logger.Info("retrieval: falling back to default clause set",
			"company", insurer, "policy_type", category)
		candidates = e.index.Restrict(e.opts.DefaultInsurer, e.opts.DefaultCategory, false)
	}
	return candidates
}

// ReasonAware runs the full reason-aware selection: detect rejection
// reasons in the query, retrieve the candidate pool, and split it into
// primary and secondary tiers. Both tiers preserve similarity-rank order.
func (e *Engine) ReasonAware(ctx context.Context, query, insurer, category string) (domain.RetrievalResult, error) {
	detected := reason.Detect(query)

	candidates, err := e.Retrieve(ctx, query, insurer, category, e.opts.TopK)
	if err != nil {
		return domain.RetrievalResult{}, err
	}

	primary, secondary := partition(candidates, detected, query)
	secondary = filterSupportContext(secondary)
	if len(secondary) > e.opts.SecondaryCap {
		secondary = secondary[:e.opts.SecondaryCap]
	}

	return domain.RetrievalResult{Primary: primary, Secondary: secondary}, nil
}

// partition is a stable split of the ranked candidates. A clause is primary
// when its text contains a keyword of a detected reason, or when any word
// (> 3 chars) of its topic label appears in the query. The topic test is a
// substring match against the whole lowercased query, not tokenized; short
// topic words can match inside unrelated query words, and that behavior is
// load-bearing for existing rankings.
func partition(candidates []domain.Clause, detected []reason.Code, query string) (primary, secondary []domain.Clause) {
	queryLower := strings.ToLower(query)

	for _, c := range candidates {
		if reason.MatchesAny(c.Text, detected) || topicMatch(c.TopicLabel, queryLower) {
			primary = append(primary, c)
		} else {
			secondary = append(secondary, c)
		}
	}
	return primary, secondary
}

func topicMatch(topic, queryLower string) bool {
	topic = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(topic), "topic:"))
	for _, w := range strings.Fields(topic) {
		if len(w) > 3 && strings.Contains(queryLower, w) {
			return true
		}
	}
	return false
}

// filterSupportContext keeps secondary clauses that mention at least one
// generic support keyword, in their original rank order.
func filterSupportContext(secondary []domain.Clause) []domain.Clause {
	var out []domain.Clause
	for _, c := range secondary {
		text := strings.ToLower(c.Text)
		for _, kw := range supportKeywords {
			if strings.Contains(text, kw) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
