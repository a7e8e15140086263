package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pavelanni/ytlearner/internal/model"
)

// Memory is a volatile store. Expired quizzes are dropped on read.
type Memory struct {
	creator

	mu       sync.RWMutex
	quizzes  map[string]*model.Quiz
	attempts map[string]model.Attempt
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory(ttl time.Duration, opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		quizzes:  make(map[string]*model.Quiz),
		attempts: make(map[string]model.Attempt),
		ttl:      ttl,
		now:      o.now,
	}
}

func (m *Memory) expired(q *model.Quiz) bool {
	return !m.now().Before(q.CreatedAt.Add(m.ttl))
}

func (m *Memory) GetOrCreate(ctx context.Context, id string, create CreateFunc) (*model.Quiz, error) {
	return m.getOrCreate(ctx, m, id, create)
}

func (m *Memory) Get(_ context.Context, id string) (*model.Quiz, error) {
	m.mu.RLock()
	q, ok := m.quizzes[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	if m.expired(q) {
		m.mu.Lock()
		if cur, ok := m.quizzes[id]; ok && cur == q {
			delete(m.quizzes, id)
		}
		m.mu.Unlock()
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return q, nil
}

func (m *Memory) insertQuiz(_ context.Context, q *model.Quiz) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.quizzes[q.ID]; ok && !m.expired(cur) {
		return cur, nil
	}
	m.quizzes[q.ID] = q
	return q, nil
}

func (m *Memory) SaveAttempt(_ context.Context, a *model.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[a.ID]; ok {
		return fmt.Errorf("attempt %s: %w", a.ID, ErrAttemptExists)
	}
	m.attempts[a.ID] = *a
	return nil
}

func (m *Memory) GetAttempt(_ context.Context, id string) (*model.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (m *Memory) ListAttempts(_ context.Context) ([]model.Attempt, error) {
	m.mu.RLock()
	out := make([]model.Attempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		out = append(out, a)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) clock() time.Time { return m.now() }
