package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/apryandito/taskrelay/internal/auth"
	"github.com/apryandito/taskrelay/internal/notify"
	"github.com/apryandito/taskrelay/internal/observability"
	"github.com/apryandito/taskrelay/internal/store"
)

// Manager applies task status transitions with authorization checks. The
// store's optimistic prior-status guard resolves races between two principals
// acting on the same task: the loser sees ErrAlreadyTerminal.
type Manager struct {
	store      store.Store
	guard      *auth.Guard
	dispatcher notify.Dispatcher
	metrics    *observability.Metrics
}

func NewManager(st store.Store, guard *auth.Guard, dispatcher notify.Dispatcher, metrics *observability.Metrics) *Manager {
	return &Manager{
		store:      st,
		guard:      guard,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

// Complete transitions pending -> completed. Permitted to the creator or any
// recipient. When the actor is not the creator, the creator is notified.
func (m *Manager) Complete(ctx context.Context, actor int64, taskID int64) (store.Task, error) {
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	if actor != task.CreatorID && !task.AssignedTo(actor) {
		return store.Task{}, auth.ErrUnauthorized
	}
	if task.Terminal() {
		return store.Task{}, store.ErrAlreadyTerminal
	}

	if err := m.store.UpdateTaskStatus(ctx, taskID, store.StatusPending, store.StatusCompleted); err != nil {
		if errors.Is(err, store.ErrAlreadyTerminal) || errors.Is(err, store.ErrNotFound) {
			return store.Task{}, err
		}
		if m.metrics != nil {
			m.metrics.StoreErrors.WithLabelValues("update_status").Inc()
		}
		return store.Task{}, fmt.Errorf("complete task #%d: %w", taskID, err)
	}
	task.Status = store.StatusCompleted

	if actor != task.CreatorID {
		text := fmt.Sprintf("Task #%d %q was marked done by %d.", task.ID, task.Title, actor)
		if err := m.dispatcher.Send(ctx, task.CreatorID, text); err != nil {
			log.Printf("lifecycle: notify creator %d about task #%d failed: %v", task.CreatorID, task.ID, err)
			if m.metrics != nil {
				m.metrics.NotifyErrors.WithLabelValues("completion").Inc()
			}
		}
	}
	return task, nil
}

// Cancel transitions pending -> cancelled. Permitted to the creator only, and
// notifies nobody beyond the direct reply to the actor.
func (m *Manager) Cancel(ctx context.Context, actor int64, taskID int64) (store.Task, error) {
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	if actor != task.CreatorID {
		return store.Task{}, auth.ErrUnauthorized
	}
	if task.Terminal() {
		return store.Task{}, store.ErrAlreadyTerminal
	}

	if err := m.store.UpdateTaskStatus(ctx, taskID, store.StatusPending, store.StatusCancelled); err != nil {
		if errors.Is(err, store.ErrAlreadyTerminal) || errors.Is(err, store.ErrNotFound) {
			return store.Task{}, err
		}
		if m.metrics != nil {
			m.metrics.StoreErrors.WithLabelValues("update_status").Inc()
		}
		return store.Task{}, fmt.Errorf("cancel task #%d: %w", taskID, err)
	}
	task.Status = store.StatusCancelled
	return task, nil
}
