package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a simple in-process store for local/dev use and tests. It
// honors the same optimistic-guard semantics as the postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]*Task
	users  map[int64]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		tasks:  make(map[int64]*Task),
		users:  make(map[int64]User),
	}
}

func (s *MemoryStore) CreateTask(_ context.Context, task Task) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = s.nextID
	s.nextID++
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	stored := task.Clone()
	s.tasks[task.ID] = &stored
	return task.ID, nil
}

func (s *MemoryStore) GetTask(_ context.Context, id int64) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return task.Clone(), nil
}

func (s *MemoryStore) ListTasksForUser(_ context.Context, userID int64) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, 8)
	for _, task := range s.tasks {
		if task.CreatorID == userID || task.AssignedTo(userID) {
			out = append(out, task.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := statusOrder(out[i].Status), statusOrder(out[j].Status)
		if ri != rj {
			return ri < rj
		}
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func statusOrder(st Status) int {
	switch st {
	case StatusPending:
		return 0
	case StatusCompleted:
		return 1
	default:
		return 2
	}
}

func (s *MemoryStore) UpdateTaskStatus(_ context.Context, id int64, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if task.Status != from {
		return ErrAlreadyTerminal
	}
	task.Status = to
	return nil
}

func (s *MemoryStore) ListDueTasks(_ context.Context, from, to time.Time) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, 8)
	for _, task := range s.tasks {
		if task.Status != StatusPending {
			continue
		}
		if task.Deadline.Before(from) || task.Deadline.After(to) {
			continue
		}
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) MarkReminded(_ context.Context, id int64, prev, next Bucket, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return false, nil
	}
	if task.Status != StatusPending || task.LastBucket != prev {
		return false, nil
	}
	task.LastBucket = next
	stamp := at
	task.LastRemindedAt = &stamp
	return true, nil
}

func (s *MemoryStore) UpsertUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.ID]; ok {
		existing.Username = user.Username
		s.users[user.ID] = existing
		return nil
	}
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
