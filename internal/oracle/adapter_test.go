package oracle

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

var testBatch = []ConceptRef{
	{ID: 1, Name: "gravity", Category: "physics"},
	{ID: 2, Name: "gravitation", Category: "physics"},
	{ID: 3, Name: "entropy", Category: "physics"},
}

func TestCompareParsesPlainArray(t *testing.T) {
	mock := &MockCompleter{Response: &Response{
		Content: `[{"id1": 1, "id2": 2, "similarity": 0.95, "reason": "synonym"}]`,
	}}
	adapter := NewAdapter(mock)

	got, err := adapter.Compare(context.Background(), testBatch, 0.85)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].ID1 != 1 || got[0].ID2 != 2 {
		t.Errorf("pair = (%d, %d), want (1, 2)", got[0].ID1, got[0].ID2)
	}
	if got[0].Similarity != 0.95 {
		t.Errorf("similarity = %f, want 0.95", got[0].Similarity)
	}

	if len(mock.Calls) != 1 {
		t.Fatalf("completer called %d times, want 1", len(mock.Calls))
	}
	if !strings.Contains(mock.Calls[0], `"gravitation"`) {
		t.Error("prompt missing concept name")
	}
}

func TestCompareStripsCodeFences(t *testing.T) {
	mock := &MockCompleter{Response: &Response{
		Content: "```json\n[{\"id1\": 1, \"id2\": 2, \"similarity\": 0.9, \"reason\": \"same\"}]\n```",
	}}
	adapter := NewAdapter(mock)

	got, err := adapter.Compare(context.Background(), testBatch, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
}

func TestCompareTolerantOfWrapperText(t *testing.T) {
	mock := &MockCompleter{Response: &Response{
		Content: `Here are the similar pairs I found:
[{"id1": 2, "id2": 3, "similarity": 0.88, "reason": "overlap"}]
Let me know if you need anything else.`,
	}}
	adapter := NewAdapter(mock)

	got, err := adapter.Compare(context.Background(), testBatch, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
}

func TestCompareMalformedResponseYieldsEmpty(t *testing.T) {
	for _, content := range []string{
		"I cannot help with that.",
		`{"id1": 1}`, // object, not array
		"[{broken json",
		"",
	} {
		mock := &MockCompleter{Response: &Response{Content: content}}
		adapter := NewAdapter(mock)

		got, err := adapter.Compare(context.Background(), testBatch, 0.85)
		if err != nil {
			t.Errorf("content %q: err = %v, want nil", content, err)
		}
		if len(got) != 0 {
			t.Errorf("content %q: got %d candidates, want 0", content, len(got))
		}
	}
}

func TestCompareTransportFailureYieldsEmpty(t *testing.T) {
	mock := &MockCompleter{Err: fmt.Errorf("connection refused")}
	adapter := NewAdapter(mock)

	got, err := adapter.Compare(context.Background(), testBatch, 0.85)
	if err != nil {
		t.Fatalf("transport failure must not propagate, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
}

func TestCompareDropsInvalidCandidates(t *testing.T) {
	mock := &MockCompleter{Response: &Response{
		Content: `[
			{"id1": 1, "id2": 99, "similarity": 0.9, "reason": "unknown id"},
			{"id1": 1, "id2": 1, "similarity": 0.9, "reason": "self pair"},
			{"id1": 1, "id2": 2, "similarity": 1.7, "reason": "out of range"},
			{"id1": 2, "id2": 3, "similarity": 0.91, "reason": "valid"}
		]`,
	}}
	adapter := NewAdapter(mock)

	got, err := adapter.Compare(context.Background(), testBatch, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].Reason != "valid" {
		t.Errorf("surviving candidate = %+v", got[0])
	}
}

func TestCompareTinyBatchSkipsOracle(t *testing.T) {
	mock := &MockCompleter{Response: &Response{Content: "[]"}}
	adapter := NewAdapter(mock)

	got, err := adapter.Compare(context.Background(), testBatch[:1], 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expected nil for single-concept batch")
	}
	if len(mock.Calls) != 0 {
		t.Error("oracle should not be called for a single-concept batch")
	}
}
