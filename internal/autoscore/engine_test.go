package autoscore

import (
	"testing"

	"github.com/langprep/langprep/internal/content"
)

func q(kind string, points float64, key ...string) content.Question {
	return content.Question{ID: "q", Kind: kind, Points: points, AnswerKey: key}
}

func TestMCQSingle(t *testing.T) {
	e := NewEngine()
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"correct", "b", 2},
		{"wrong", "a", 0},
		{"alternate key", "c", 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.ScoreAnswer(q("mcq_single", 2, "b", "c"), tc.value)
			if err != nil {
				t.Fatalf("ScoreAnswer: %v", err)
			}
			if res.Points != tc.want {
				t.Errorf("points = %g, want %g", res.Points, tc.want)
			}
		})
	}

	if _, err := e.ScoreAnswer(q("mcq_single", 1, "b"), 42); err == nil {
		t.Error("non-string answer should error")
	}
}

func TestMCQMultiPartialCredit(t *testing.T) {
	e := NewEngine()
	key := q("mcq_multi", 4, "a", "b", "c", "d")

	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"exact", []string{"d", "c", "b", "a"}, 4},
		{"half", []string{"a", "b"}, 2},
		{"false positive kills credit", []string{"a", "b", "x"}, 0},
		{"empty", []string{}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.ScoreAnswer(key, tc.value)
			if err != nil {
				t.Fatalf("ScoreAnswer: %v", err)
			}
			if res.Points != tc.want {
				t.Errorf("points = %g, want %g", res.Points, tc.want)
			}
		})
	}
}

func TestMCQMultiNoPartial(t *testing.T) {
	e := NewEngine(WithPartialCredit(false))
	res, err := e.ScoreAnswer(q("mcq_multi", 4, "a", "b"), []string{"a"})
	if err != nil {
		t.Fatalf("ScoreAnswer: %v", err)
	}
	if res.Points != 0 {
		t.Errorf("points = %g, want 0 with partial credit off", res.Points)
	}
}

func TestGapFillFuzzy(t *testing.T) {
	e := NewEngine()
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"exact", "harbour", 1},
		{"case and punctuation", "  Harbour. ", 1},
		{"one edit away", "harbor", 1},
		{"two edits away", "hrbor", 0},
		{"unrelated", "ship", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.ScoreAnswer(q("gap_fill", 1, "harbour"), tc.value)
			if err != nil {
				t.Fatalf("ScoreAnswer: %v", err)
			}
			if res.Points != tc.want {
				t.Errorf("points = %g, want %g", res.Points, tc.want)
			}
		})
	}
}

func TestManualKinds(t *testing.T) {
	e := NewEngine()
	for _, kind := range []string{"essay", "speaking", "unknown_kind"} {
		res, err := e.ScoreAnswer(q(kind, 5), "anything")
		if err != nil {
			t.Fatalf("ScoreAnswer(%s): %v", kind, err)
		}
		if !res.NeedsManual || res.Points != 0 {
			t.Errorf("%s: got points=%g manual=%v, want 0/true", kind, res.Points, res.NeedsManual)
		}
	}
}

func TestSuggestPercent(t *testing.T) {
	e := NewEngine()
	g := content.TestGraph{
		Questions: map[string][]content.Question{
			"sec": {
				{ID: "q1", Kind: "mcq_single", AnswerKey: []string{"a"}, Points: 1},
				{ID: "q2", Kind: "mcq_single", AnswerKey: []string{"b"}, Points: 1},
				{ID: "q3", Kind: "gap_fill", AnswerKey: []string{"tide"}, Points: 2},
			},
		},
	}
	pct, manual := e.SuggestPercent(g, map[string]any{
		"q1": "a",    // 1 point
		"q2": "x",    // 0
		"q3": "tide", // 2 points
	})
	if pct != 75 {
		t.Errorf("pct = %g, want 75", pct)
	}
	if manual {
		t.Error("no manual kinds in graph")
	}

	pct, _ = e.SuggestPercent(g, nil)
	if pct != 0 {
		t.Errorf("unanswered pct = %g, want 0", pct)
	}
}
