package content

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/langprep/langprep/internal/apperr"
)

// memoryStore backs unit tests and single-process dev runs. The mutex makes
// each Store call atomic, which is what the SQL store's conditional updates
// provide in production.
type memoryStore struct {
	mu        sync.RWMutex
	tests     map[string]Test
	sections  map[string]Section
	questions map[string]Question
}

func NewInMemoryStore() Store {
	return &memoryStore{
		tests:     map[string]Test{},
		sections:  map[string]Section{},
		questions: map[string]Question{},
	}
}

func (m *memoryStore) PutTest(_ context.Context, t Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[t.ID] = t
	return nil
}

func (m *memoryStore) GetTest(_ context.Context, id string) (Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok {
		return Test{}, apperr.NotFoundf("test %s not found", id)
	}
	return t, nil
}

func (m *memoryStore) ListTests(_ context.Context, opts ListOpts) ([]TestSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []TestSummary{}
	for _, t := range m.tests {
		if opts.Family != "" && string(t.Family) != opts.Family {
			continue
		}
		if opts.Q != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(opts.Q)) {
			continue
		}
		out = append(out, TestSummary{
			ID: t.ID, Title: t.Title, Family: t.Family, CreatedBy: t.CreatedBy,
			SectionCount: len(t.SectionIDs), CreatedAt: t.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) PutSection(_ context.Context, s Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections[s.ID] = s
	return nil
}

func (m *memoryStore) GetSection(_ context.Context, id string) (Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sections[id]
	if !ok {
		return Section{}, apperr.NotFoundf("section %s not found", id)
	}
	return s, nil
}

func (m *memoryStore) PutQuestion(_ context.Context, q Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, apperr.NotFoundf("question %s not found", id)
	}
	return q, nil
}

func (m *memoryStore) SwapTestSections(_ context.Context, testID string, prev, next []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return false, apperr.NotFoundf("test %s not found", testID)
	}
	if !equalIDs(t.SectionIDs, prev) {
		return false, nil
	}
	t.SectionIDs = append([]string{}, next...)
	m.tests[testID] = t
	return true, nil
}

func (m *memoryStore) SwapSectionQuestions(_ context.Context, sectionID string, prev, next []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[sectionID]
	if !ok {
		return false, apperr.NotFoundf("section %s not found", sectionID)
	}
	if !equalIDs(s.QuestionIDs, prev) {
		return false, nil
	}
	s.QuestionIDs = append([]string{}, next...)
	m.sections[sectionID] = s
	return true, nil
}

// AttachSection performs the list swap and the ownership claim as one step
// under the lock. A section already owned by any test fails the claim, so a
// stale TestID=="" read cannot attach the same section twice.
func (m *memoryStore) AttachSection(_ context.Context, testID string, prev, next []string, sectionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return false, apperr.NotFoundf("test %s not found", testID)
	}
	sec, ok := m.sections[sectionID]
	if !ok {
		return false, apperr.NotFoundf("section %s not found", sectionID)
	}
	if !equalIDs(t.SectionIDs, prev) || sec.TestID != "" {
		return false, nil
	}
	t.SectionIDs = append([]string{}, next...)
	sec.TestID = testID
	m.tests[testID] = t
	m.sections[sectionID] = sec
	return true, nil
}

func (m *memoryStore) DetachSection(_ context.Context, testID string, prev, next []string, sectionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return false, apperr.NotFoundf("test %s not found", testID)
	}
	if !equalIDs(t.SectionIDs, prev) {
		return false, nil
	}
	t.SectionIDs = append([]string{}, next...)
	m.tests[testID] = t
	if sec, ok := m.sections[sectionID]; ok && sec.TestID == testID {
		sec.TestID = ""
		m.sections[sectionID] = sec
	}
	return true, nil
}

func (m *memoryStore) AttachQuestion(_ context.Context, sectionID string, prev, next []string, questionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[sectionID]
	if !ok {
		return false, apperr.NotFoundf("section %s not found", sectionID)
	}
	q, ok := m.questions[questionID]
	if !ok {
		return false, apperr.NotFoundf("question %s not found", questionID)
	}
	if !equalIDs(s.QuestionIDs, prev) || q.SectionID != "" {
		return false, nil
	}
	s.QuestionIDs = append([]string{}, next...)
	q.SectionID = sectionID
	m.sections[sectionID] = s
	m.questions[questionID] = q
	return true, nil
}

func (m *memoryStore) DetachQuestion(_ context.Context, sectionID string, prev, next []string, questionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[sectionID]
	if !ok {
		return false, apperr.NotFoundf("section %s not found", sectionID)
	}
	if !equalIDs(s.QuestionIDs, prev) {
		return false, nil
	}
	s.QuestionIDs = append([]string{}, next...)
	m.sections[sectionID] = s
	if q, ok := m.questions[questionID]; ok && q.SectionID == sectionID {
		q.SectionID = ""
		m.questions[questionID] = q
	}
	return true, nil
}

func (m *memoryStore) DeleteTestCascade(_ context.Context, testID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return nil // already gone, retry-safe
	}
	for _, sid := range t.SectionIDs {
		if s, ok := m.sections[sid]; ok {
			for _, qid := range s.QuestionIDs {
				delete(m.questions, qid)
			}
			delete(m.sections, sid)
		}
	}
	delete(m.tests, testID)
	return nil
}

func (m *memoryStore) LoadWithChildren(_ context.Context, testID string) (TestGraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[testID]
	if !ok {
		return TestGraph{}, apperr.NotFoundf("test %s not found", testID)
	}
	g := TestGraph{Test: t, Questions: map[string][]Question{}}
	for _, sid := range t.SectionIDs {
		s, ok := m.sections[sid]
		if !ok {
			continue
		}
		g.Sections = append(g.Sections, s)
		qs := make([]Question, 0, len(s.QuestionIDs))
		for _, qid := range s.QuestionIDs {
			if q, ok := m.questions[qid]; ok {
				qs = append(qs, q)
			}
		}
		g.Questions[sid] = qs
	}
	return g, nil
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func paginate[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
