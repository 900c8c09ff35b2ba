package submission

import "github.com/langprep/langprep/internal/family"

type Status string

const (
	StatusPending Status = "pending"
	StatusGraded  Status = "graded" // terminal
)

type Answer struct {
	QuestionID string `json:"question_id"`
	Value      any    `json:"value"`
}

// Submission is one learner attempt at a test. Created in pending by
// Submit, mutated exactly once by Grade, never mutated afterward.
type Submission struct {
	ID      string     `json:"id"`
	UserID  string     `json:"user_id"`
	TestID  string     `json:"test_id"`
	Family  family.Tag `json:"family"`
	Answers []Answer   `json:"answers"`
	Status  Status     `json:"status"`

	// Score is meaningful only once Status is graded; its scale is the
	// family's (percent, band, or PTE points).
	Score float64 `json:"score"`
	// SuggestedScore is the auto-scored percentage computed at submit time
	// for listening/reading families; nil otherwise.
	SuggestedScore *float64 `json:"suggested_score,omitempty"`
	// NeedsManual marks a suggestion that could not cover every answered
	// question (unknown kinds, essay/speaking items mixed in).
	NeedsManual bool `json:"needs_manual,omitempty"`

	Feedback    string `json:"feedback,omitempty"`
	GradedBy    string `json:"graded_by,omitempty"`
	GradedAt    int64  `json:"graded_at,omitempty"`
	SubmittedAt int64  `json:"submitted_at"`
}
