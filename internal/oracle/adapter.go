package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Adapter turns a text-completion transport into a similarity oracle. It
// owns the prompt, the tolerant response decode, and the boundary contract:
// any transport or parse failure is logged and yields zero candidates,
// never an error past Compare.
type Adapter struct {
	completer Completer
}

// NewAdapter wraps a completion transport.
func NewAdapter(c Completer) *Adapter {
	return &Adapter{completer: c}
}

// Compare asks the oracle for similar pairs within the batch. Candidates
// referencing ids outside the batch or carrying an out-of-range similarity
// are dropped rather than surfaced.
func (a *Adapter) Compare(ctx context.Context, batch []ConceptRef, threshold float64) ([]MatchCandidate, error) {
	if len(batch) < 2 {
		return nil, nil
	}

	resp, err := a.completer.Complete(ctx, ComparisonPrompt(batch, threshold))
	if err != nil {
		log.Warn("oracle call failed", "err", err, "batch", len(batch))
		return nil, nil
	}

	candidates, err := parseComparisonResponse(resp.Content)
	if err != nil {
		log.Warn("oracle response unparseable", "err", err)
		return nil, nil
	}

	known := make(map[int64]bool, len(batch))
	for _, c := range batch {
		known[c.ID] = true
	}

	valid := candidates[:0]
	for _, c := range candidates {
		if !known[c.ID1] || !known[c.ID2] || c.ID1 == c.ID2 {
			continue
		}
		if c.Similarity < 0 || c.Similarity > 1 {
			continue
		}
		valid = append(valid, c)
	}
	return valid, nil
}

// parseComparisonResponse extracts a JSON array from the oracle response.
// The response might contain markdown code fences or other wrapper text.
func parseComparisonResponse(content string) ([]MatchCandidate, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	content = strings.TrimSpace(content)

	// Find the JSON array
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	jsonStr := content[start : end+1]

	var candidates []MatchCandidate
	if err := json.Unmarshal([]byte(jsonStr), &candidates); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}

	return candidates, nil
}
