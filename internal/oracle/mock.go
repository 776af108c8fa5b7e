package oracle

import "context"

// MockCompleter is a test double for the Completer interface.
type MockCompleter struct {
	Response *Response
	Err      error
	Calls    []string // records prompts sent
}

// Complete records the call and returns the mock response.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (*Response, error) {
	m.Calls = append(m.Calls, prompt)
	return m.Response, m.Err
}

// StaticClient is a Client returning a fixed candidate list, for tests that
// drive the convergence engine directly.
type StaticClient struct {
	Candidates []MatchCandidate
	Err        error
	Batches    [][]ConceptRef // records batches received
}

// Compare records the batch and returns the fixed candidates.
func (s *StaticClient) Compare(ctx context.Context, batch []ConceptRef, threshold float64) ([]MatchCandidate, error) {
	s.Batches = append(s.Batches, batch)
	if s.Err != nil {
		return nil, s.Err
	}
	var out []MatchCandidate
	for _, c := range s.Candidates {
		if c.Similarity >= threshold {
			out = append(out, c)
		}
	}
	return out, nil
}
