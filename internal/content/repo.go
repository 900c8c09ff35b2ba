package content

import "context"

type ListOpts struct {
	Family string
	Q      string
	Limit  int
	Offset int
}

// Store is the persistence boundary for the content hierarchy. The Swap,
// Attach, and Detach methods are compare-and-set: the parent's child-id list
// is replaced only if the stored list still equals prev, and the return
// value reports whether the write matched. Attach additionally claims the
// child's back-reference in the same atomic step, conditional on the child
// being unowned; Detach releases it. A false return means nothing changed.
// Reorder/add/remove build on these to stay atomic under concurrent
// structural writes.
type Store interface {
	PutTest(ctx context.Context, t Test) error
	GetTest(ctx context.Context, id string) (Test, error)
	ListTests(ctx context.Context, opts ListOpts) ([]TestSummary, error)

	PutSection(ctx context.Context, s Section) error
	GetSection(ctx context.Context, id string) (Section, error)

	PutQuestion(ctx context.Context, q Question) error
	GetQuestion(ctx context.Context, id string) (Question, error)

	SwapTestSections(ctx context.Context, testID string, prev, next []string) (bool, error)
	SwapSectionQuestions(ctx context.Context, sectionID string, prev, next []string) (bool, error)

	AttachSection(ctx context.Context, testID string, prev, next []string, sectionID string) (bool, error)
	DetachSection(ctx context.Context, testID string, prev, next []string, sectionID string) (bool, error)
	AttachQuestion(ctx context.Context, sectionID string, prev, next []string, questionID string) (bool, error)
	DetachQuestion(ctx context.Context, sectionID string, prev, next []string, questionID string) (bool, error)

	// DeleteTestCascade removes the test, its sections, and their questions.
	// Child deletes are idempotent so a partial failure can be retried.
	DeleteTestCascade(ctx context.Context, testID string) error

	// LoadWithChildren resolves the full graph in a fixed number of reads.
	LoadWithChildren(ctx context.Context, testID string) (TestGraph, error)
}
