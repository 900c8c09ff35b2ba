package content

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/langprep/langprep/internal/apperr"
	"github.com/langprep/langprep/internal/family"
)

// casAttempts bounds the retry loop around compare-and-set structural
// writes. A miss means another writer changed the same parent between our
// read and write; the invariants are re-checked on every attempt.
const casAttempts = 3

// Service owns the structural invariants of the Test -> Section -> Question
// hierarchy. It performs no scoring and no authorization decisions.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

type CreateTestInput struct {
	Title     string     `json:"title"`
	Family    family.Tag `json:"family"`
	CreatedBy string     `json:"-"`
}

func (s *Service) CreateTest(ctx context.Context, in CreateTestInput) (Test, error) {
	if in.Title == "" {
		return Test{}, apperr.Validationf("title is required")
	}
	if !in.Family.Valid() {
		return Test{}, apperr.Validationf("unknown family %q", in.Family)
	}
	now := s.now().Unix()
	t := Test{
		ID:         uuid.NewString(),
		Title:      in.Title,
		Family:     in.Family,
		CreatedBy:  in.CreatedBy,
		SectionIDs: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.PutTest(ctx, t); err != nil {
		return Test{}, err
	}
	return t, nil
}

type CreateSectionInput struct {
	Title         string     `json:"title"`
	QuestionCount int        `json:"question_count,omitempty"`
	Media         []MediaRef `json:"media,omitempty"`
}

func (s *Service) CreateSection(ctx context.Context, in CreateSectionInput) (Section, error) {
	if in.Title == "" {
		return Section{}, apperr.Validationf("title is required")
	}
	if in.QuestionCount < 0 {
		return Section{}, apperr.Validationf("question_count must not be negative")
	}
	now := s.now().Unix()
	sec := Section{
		ID:            uuid.NewString(),
		Title:         in.Title,
		QuestionIDs:   []string{},
		Media:         in.Media,
		QuestionCount: in.QuestionCount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.PutSection(ctx, sec); err != nil {
		return Section{}, err
	}
	return sec, nil
}

type CreateQuestionInput struct {
	Kind      string   `json:"kind"`
	Prompt    string   `json:"prompt,omitempty"`
	Choices   []string `json:"choices,omitempty"`
	AnswerKey []string `json:"answer_key,omitempty"`
	Points    float64  `json:"points"`
}

func (s *Service) CreateQuestion(ctx context.Context, in CreateQuestionInput) (Question, error) {
	if in.Kind == "" {
		return Question{}, apperr.Validationf("kind is required")
	}
	if in.Points < 0 {
		return Question{}, apperr.Validationf("points must not be negative")
	}
	q := Question{
		ID:        uuid.NewString(),
		Kind:      in.Kind,
		Prompt:    in.Prompt,
		Choices:   in.Choices,
		AnswerKey: in.AnswerKey,
		Points:    in.Points,
		CreatedAt: s.now().Unix(),
	}
	if err := s.store.PutQuestion(ctx, q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *Service) GetTest(ctx context.Context, id string) (Test, error) {
	return s.store.GetTest(ctx, id)
}

func (s *Service) ListTests(ctx context.Context, opts ListOpts) ([]TestSummary, error) {
	return s.store.ListTests(ctx, opts)
}

func (s *Service) LoadWithChildren(ctx context.Context, testID string) (TestGraph, error) {
	return s.store.LoadWithChildren(ctx, testID)
}

// AddSection attaches an existing section to the end of the test's order.
// The list swap and the ownership claim are one atomic store operation, so
// a failure leaves both the test and the section untouched.
func (s *Service) AddSection(ctx context.Context, testID, sectionID string) (Test, error) {
	for i := 0; i < casAttempts; i++ {
		sec, err := s.store.GetSection(ctx, sectionID)
		if err != nil {
			return Test{}, err
		}
		if sec.TestID != "" && sec.TestID != testID {
			return Test{}, apperr.Conflictf("section %s already belongs to test %s", sectionID, sec.TestID)
		}
		t, err := s.store.GetTest(ctx, testID)
		if err != nil {
			return Test{}, err
		}
		if contains(t.SectionIDs, sectionID) {
			return Test{}, apperr.Conflictf("section %s already in test %s", sectionID, testID)
		}
		max := t.Family.Meta().MaxSections
		if len(t.SectionIDs)+1 > max {
			return Test{}, apperr.Invariantf("test %s allows at most %d sections", testID, max)
		}
		next := append(append([]string{}, t.SectionIDs...), sectionID)
		ok, err := s.store.AttachSection(ctx, testID, t.SectionIDs, next, sectionID)
		if err != nil {
			return Test{}, err
		}
		if ok {
			t.SectionIDs = next
			return t, nil
		}
		// Either the list moved or another attacher claimed the section;
		// the next iteration re-reads both and reports the right conflict.
	}
	return Test{}, apperr.Conflictf("test %s is being modified concurrently", testID)
}

func (s *Service) RemoveSection(ctx context.Context, testID, sectionID string) (Test, error) {
	for i := 0; i < casAttempts; i++ {
		t, err := s.store.GetTest(ctx, testID)
		if err != nil {
			return Test{}, err
		}
		if !contains(t.SectionIDs, sectionID) {
			return Test{}, apperr.NotFoundf("section %s not in test %s", sectionID, testID)
		}
		min := t.Family.Meta().MinSections
		if len(t.SectionIDs)-1 < min {
			return Test{}, apperr.Invariantf("test %s requires at least %d section(s)", testID, min)
		}
		next := without(t.SectionIDs, sectionID)
		ok, err := s.store.DetachSection(ctx, testID, t.SectionIDs, next, sectionID)
		if err != nil {
			return Test{}, err
		}
		if ok {
			t.SectionIDs = next
			return t, nil
		}
	}
	return Test{}, apperr.Conflictf("test %s is being modified concurrently", testID)
}

// ReorderSections adopts newOrder wholesale, or changes nothing. newOrder
// must be a permutation of the current section ids: same multiset, no
// additions or omissions.
func (s *Service) ReorderSections(ctx context.Context, testID string, newOrder []string) (Test, error) {
	for i := 0; i < casAttempts; i++ {
		t, err := s.store.GetTest(ctx, testID)
		if err != nil {
			return Test{}, err
		}
		if err := checkPermutation(t.SectionIDs, newOrder); err != nil {
			return Test{}, err
		}
		ok, err := s.store.SwapTestSections(ctx, testID, t.SectionIDs, newOrder)
		if err != nil {
			return Test{}, err
		}
		if ok {
			t.SectionIDs = append([]string{}, newOrder...)
			return t, nil
		}
	}
	return Test{}, apperr.Conflictf("test %s is being modified concurrently", testID)
}

// AddQuestion attaches an existing question to the end of the section's
// order. Section-level count requirements (QuestionCount) are deferred to
// ValidateSection so authoring can proceed incrementally. As with sections,
// the swap and the claim are one atomic store write.
func (s *Service) AddQuestion(ctx context.Context, sectionID, questionID string) (Section, error) {
	for i := 0; i < casAttempts; i++ {
		q, err := s.store.GetQuestion(ctx, questionID)
		if err != nil {
			return Section{}, err
		}
		if q.SectionID != "" && q.SectionID != sectionID {
			return Section{}, apperr.Conflictf("question %s already belongs to section %s", questionID, q.SectionID)
		}
		sec, err := s.store.GetSection(ctx, sectionID)
		if err != nil {
			return Section{}, err
		}
		if contains(sec.QuestionIDs, questionID) {
			return Section{}, apperr.Conflictf("question %s already in section %s", questionID, sectionID)
		}
		next := append(append([]string{}, sec.QuestionIDs...), questionID)
		ok, err := s.store.AttachQuestion(ctx, sectionID, sec.QuestionIDs, next, questionID)
		if err != nil {
			return Section{}, err
		}
		if ok {
			sec.QuestionIDs = next
			return sec, nil
		}
	}
	return Section{}, apperr.Conflictf("section %s is being modified concurrently", sectionID)
}

func (s *Service) RemoveQuestion(ctx context.Context, sectionID, questionID string) (Section, error) {
	for i := 0; i < casAttempts; i++ {
		sec, err := s.store.GetSection(ctx, sectionID)
		if err != nil {
			return Section{}, err
		}
		if !contains(sec.QuestionIDs, questionID) {
			return Section{}, apperr.NotFoundf("question %s not in section %s", questionID, sectionID)
		}
		next := without(sec.QuestionIDs, questionID)
		ok, err := s.store.DetachQuestion(ctx, sectionID, sec.QuestionIDs, next, questionID)
		if err != nil {
			return Section{}, err
		}
		if ok {
			sec.QuestionIDs = next
			return sec, nil
		}
	}
	return Section{}, apperr.Conflictf("section %s is being modified concurrently", sectionID)
}

func (s *Service) ReorderQuestions(ctx context.Context, sectionID string, newOrder []string) (Section, error) {
	for i := 0; i < casAttempts; i++ {
		sec, err := s.store.GetSection(ctx, sectionID)
		if err != nil {
			return Section{}, err
		}
		if err := checkPermutation(sec.QuestionIDs, newOrder); err != nil {
			return Section{}, err
		}
		ok, err := s.store.SwapSectionQuestions(ctx, sectionID, sec.QuestionIDs, newOrder)
		if err != nil {
			return Section{}, err
		}
		if ok {
			sec.QuestionIDs = append([]string{}, newOrder...)
			return sec, nil
		}
	}
	return Section{}, apperr.Conflictf("section %s is being modified concurrently", sectionID)
}

// ValidateSection enforces the publish-time question-count requirement.
func (s *Service) ValidateSection(ctx context.Context, sectionID string) error {
	sec, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}
	if sec.QuestionCount > 0 && len(sec.QuestionIDs) != sec.QuestionCount {
		return apperr.Invariantf("section %s requires exactly %d questions, has %d",
			sectionID, sec.QuestionCount, len(sec.QuestionIDs))
	}
	return nil
}

// DeleteTest cascades: owned sections and their questions go with the test.
func (s *Service) DeleteTest(ctx context.Context, testID string) error {
	if _, err := s.store.GetTest(ctx, testID); err != nil {
		return err
	}
	return s.store.DeleteTestCascade(ctx, testID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// checkPermutation rejects any newOrder that is not the same multiset as
// current.
func checkPermutation(current, newOrder []string) error {
	if len(newOrder) != len(current) {
		return apperr.Invariantf("new order has %d ids, expected %d", len(newOrder), len(current))
	}
	counts := make(map[string]int, len(current))
	for _, id := range current {
		counts[id]++
	}
	for _, id := range newOrder {
		counts[id]--
		if counts[id] < 0 {
			return apperr.Invariantf("id %s is not part of the current order", id)
		}
	}
	return nil
}
