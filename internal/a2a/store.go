package a2a

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStore tracks tasks in process memory for the lifetime of the server.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*Task)}
}

func (s *TaskStore) Create(contextID, message string) *Task {
	now := time.Now()
	task := &Task{
		ID:        uuid.NewString(),
		ContextID: contextID,
		State:     TaskStateSubmitted,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()
	return task
}

func (s *TaskStore) Get(id string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	return task, ok
}

func (s *TaskStore) Update(id string, mutate func(*Task)) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	mutate(task)
	task.UpdatedAt = time.Now()
	return task, true
}

// List returns tasks optionally filtered by contextID, newest first, capped
// at limit (0 means unbounded).
func (s *TaskStore) List(contextID string, limit int) []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if contextID != "" && task.ContextID != contextID {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
