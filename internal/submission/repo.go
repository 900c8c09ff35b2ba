package submission

import "context"

type ListOpts struct {
	TestID string
	UserID string
	Family string
	Status string
	Limit  int
	Offset int
}

// Store is the persistence boundary for submissions. Grade is a single
// conditional update: it transitions pending -> graded and reports whether
// the transition matched a pending row. Two concurrent graders cannot both
// see true.
type Store interface {
	Put(ctx context.Context, sub Submission) error
	Get(ctx context.Context, id string) (Submission, error)
	List(ctx context.Context, opts ListOpts) ([]Submission, error)
	CountForUserTest(ctx context.Context, userID, testID string) (int, error)
	Grade(ctx context.Context, id string, score float64, feedback, gradedBy string, gradedAt int64) (bool, error)
}
