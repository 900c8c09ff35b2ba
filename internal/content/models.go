package content

import "github.com/langprep/langprep/internal/family"

// MediaRef is an opaque handle into the blob store; sections never own
// raw bytes.
type MediaRef struct {
	Kind string `json:"kind"` // audio|image|pdf
	Key  string `json:"key"`
}

type Question struct {
	ID        string   `json:"id"`
	SectionID string   `json:"section_id"`
	Kind      string   `json:"kind"` // mcq_single, mcq_multi, gap_fill, essay, speaking
	Prompt    string   `json:"prompt,omitempty"`
	Choices   []string `json:"choices,omitempty"`
	AnswerKey []string `json:"answer_key,omitempty"`
	Points    float64  `json:"points"`
	CreatedAt int64    `json:"created_at,omitempty"`
}

type Section struct {
	ID          string     `json:"id"`
	TestID      string     `json:"test_id"`
	Title       string     `json:"title"`
	QuestionIDs []string   `json:"question_ids"`
	Media       []MediaRef `json:"media,omitempty"`
	// QuestionCount, when >0, pins the exact number of questions the
	// section must hold to be publishable (PTE reading uses this).
	QuestionCount int   `json:"question_count,omitempty"`
	CreatedAt     int64 `json:"created_at,omitempty"`
	UpdatedAt     int64 `json:"updated_at,omitempty"`
}

type Test struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Family     family.Tag `json:"family"`
	CreatedBy  string     `json:"created_by"`
	SectionIDs []string   `json:"section_ids"`
	CreatedAt  int64      `json:"created_at,omitempty"`
	UpdatedAt  int64      `json:"updated_at,omitempty"`
}

type TestSummary struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Family       family.Tag `json:"family"`
	CreatedBy    string     `json:"created_by"`
	SectionCount int        `json:"section_count"`
	CreatedAt    int64      `json:"created_at"`
}

// TestGraph is a test with its owned sections and questions resolved, in
// document order. Loaded explicitly (one pass per level) instead of lazy
// per-field joins.
type TestGraph struct {
	Test      Test                  `json:"test"`
	Sections  []Section             `json:"sections"`
	Questions map[string][]Question `json:"questions"` // section id -> ordered questions
}

// QuestionIDSet returns every question id reachable from the graph.
func (g TestGraph) QuestionIDSet() map[string]struct{} {
	out := map[string]struct{}{}
	for _, qs := range g.Questions {
		for _, q := range qs {
			out[q.ID] = struct{}{}
		}
	}
	return out
}
