package oracle

import (
	"context"
	"fmt"

	"github.com/mindfold/coalesce/internal/config"
)

// Client is the similarity oracle consumed by the convergence engine. A
// batch of concept refs goes in; merge candidates at or above the threshold
// come out. Implementations must not propagate transport or parse failures:
// a failed comparison yields an empty candidate list.
type Client interface {
	Compare(ctx context.Context, batch []ConceptRef, threshold float64) ([]MatchCandidate, error)
}

// ConceptRef is the minimal concept view sent to the oracle.
type ConceptRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// MatchCandidate is one similar pair as judged by the oracle.
type MatchCandidate struct {
	ID1        int64   `json:"id1"`
	ID2        int64   `json:"id2"`
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason"`
}

// Completer is the underlying text-completion transport. The adapter wraps
// one of these into a Client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*Response, error)
}

// Response holds the result of a completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// NewCompleter creates a completion transport based on the config provider
// setting.
func NewCompleter(cfg config.OracleConfig) (Completer, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.AnthropicKey, model), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.OllamaModel
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider: %q", cfg.Provider)
	}
}

// New creates the standard oracle: a comparison adapter over the configured
// completion transport.
func New(cfg config.OracleConfig) (Client, error) {
	completer, err := NewCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return NewAdapter(completer), nil
}
