package submission

import (
	"context"
	"sort"
	"sync"

	"github.com/langprep/langprep/internal/apperr"
)

type memoryStore struct {
	mu   sync.RWMutex
	subs map[string]Submission
}

func NewInMemoryStore() Store {
	return &memoryStore{subs: map[string]Submission{}}
}

func (m *memoryStore) Put(_ context.Context, sub Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[id]
	if !ok {
		return Submission{}, apperr.NotFoundf("submission %s not found", id)
	}
	return sub, nil
}

func (m *memoryStore) List(_ context.Context, opts ListOpts) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Submission{}
	for _, sub := range m.subs {
		if opts.TestID != "" && sub.TestID != opts.TestID {
			continue
		}
		if opts.UserID != "" && sub.UserID != opts.UserID {
			continue
		}
		if opts.Family != "" && string(sub.Family) != opts.Family {
			continue
		}
		if opts.Status != "" && string(sub.Status) != opts.Status {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt != out[j].SubmittedAt {
			return out[i].SubmittedAt > out[j].SubmittedAt
		}
		return out[i].ID < out[j].ID
	})
	if opts.Offset >= len(out) {
		return []Submission{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) CountForUserTest(_ context.Context, userID, testID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sub := range m.subs {
		if sub.UserID == userID && sub.TestID == testID {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) Grade(_ context.Context, id string, score float64, feedback, gradedBy string, gradedAt int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return false, apperr.NotFoundf("submission %s not found", id)
	}
	if sub.Status != StatusPending {
		return false, nil
	}
	sub.Status = StatusGraded
	sub.Score = score
	sub.Feedback = feedback
	sub.GradedBy = gradedBy
	sub.GradedAt = gradedAt
	m.subs[id] = sub
	return true, nil
}
