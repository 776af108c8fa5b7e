package oracle

import (
	"fmt"
	"strings"
)

// ComparisonPrompt generates the prompt asking the oracle to find
// semantically equivalent concept pairs within a batch.
func ComparisonPrompt(batch []ConceptRef, threshold float64) string {
	var b strings.Builder
	for _, c := range batch {
		fmt.Fprintf(&b, "- id %d: %q (category: %s)\n", c.ID, c.Name, c.Category)
	}

	return fmt.Sprintf(`You are a semantic comparison system. Below is a list of concepts from a knowledge graph.

CONCEPTS:
%s
Find pairs of concepts that mean essentially the same thing: the same idea under
a different name, a spelling variant, or a strict synonym. Do NOT pair concepts
that are merely related or belong to the same field.

Rules:
- Only report pairs with similarity >= %.2f (0 = unrelated, 1 = identical meaning)
- Use the numeric ids from the list above
- Each pair needs a short machine-readable reason
- Return ONLY a JSON array, no other text

Return a JSON array:
[{"id1": 1, "id2": 2, "similarity": 0.95, "reason": "spelling variant"}]

If no pairs qualify, return: []`, b.String(), threshold)
}
