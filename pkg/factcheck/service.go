// Package factcheck verifies short factual claims against web search
// results and returns a structured verdict.
package factcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sidlabs/docchat/pkg/logger"
	"github.com/sidlabs/docchat/pkg/providers"
	"github.com/sidlabs/docchat/pkg/tools"
)

// Verdict is the assessment of a claim.
type Verdict string

const (
	VerdictTrue       Verdict = "True"
	VerdictFalse      Verdict = "False"
	VerdictPartlyTrue Verdict = "Partly True"
	VerdictUnverified Verdict = "Unverified"
)

// Source is a page that supports the verdict.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Report is the structured fact-check result.
type Report struct {
	Claim       string   `json:"claim"`
	Verdict     Verdict  `json:"verdict"`
	Explanation string   `json:"explanation"`
	Sources     []Source `json:"sources"`
}

const systemPrompt = `You are a careful fact checker. You are given a claim and web search results.
Assess the claim using only the evidence provided. If the evidence is insufficient or conflicting, say so.

Respond with a single JSON object, no other text, matching this schema:
{
  "claim": "the claim being checked",
  "verdict": "True" | "False" | "Partly True" | "Unverified",
  "explanation": "a short explanation of the verdict",
  "sources": [{"title": "page title", "url": "page url"}]
}`

// Service checks claims using a search provider and a model.
type Service struct {
	provider   providers.LLMProvider
	search     tools.SearchProvider
	model      string
	maxResults int
}

func NewService(provider providers.LLMProvider, search tools.SearchProvider, model string, maxResults int) *Service {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Service{
		provider:   provider,
		search:     search,
		model:      model,
		maxResults: maxResults,
	}
}

// Check verifies one claim. The raw model output travels inside the
// error when it cannot be decoded, so callers can show it.
func (s *Service) Check(ctx context.Context, claim string) (*Report, error) {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return nil, fmt.Errorf("claim is empty")
	}

	results, err := s.search.Search(ctx, claim, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("search for claim: %w", err)
	}

	evidence := "No search results were found."
	if len(results) > 0 {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode search results: %w", err)
		}
		evidence = string(data)
	}

	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Claim: %s\n\nSearch results:\n%s", claim, evidence)},
	}
	options := map[string]interface{}{
		"temperature":     0.0,
		"response_format": map[string]interface{}{"type": "json_object"},
	}

	response, err := s.provider.Chat(ctx, messages, nil, s.model, options)
	if err != nil {
		return nil, err
	}

	var report Report
	if err := providers.DecodeJSON(response.Content, &report); err != nil {
		return nil, err
	}
	if report.Claim == "" {
		report.Claim = claim
	}
	report.Verdict = normalizeVerdict(report.Verdict)

	logger.InfoCF("factcheck", "Claim checked",
		map[string]interface{}{
			"verdict": string(report.Verdict),
			"sources": len(report.Sources),
		})
	return &report, nil
}

// normalizeVerdict maps model output onto the four allowed verdicts,
// defaulting to Unverified.
func normalizeVerdict(v Verdict) Verdict {
	switch strings.ToLower(strings.TrimSpace(string(v))) {
	case "true":
		return VerdictTrue
	case "false":
		return VerdictFalse
	case "partly true", "partially true", "mixed":
		return VerdictPartlyTrue
	default:
		return VerdictUnverified
	}
}
