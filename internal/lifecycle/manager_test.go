package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/apryandito/taskrelay/internal/auth"
	"github.com/apryandito/taskrelay/internal/notify"
	"github.com/apryandito/taskrelay/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore, *notify.Recorder) {
	t.Helper()
	st := store.NewMemoryStore()
	rec := notify.NewRecorder()
	m := NewManager(st, auth.NewGuard(1, st), rec, nil)
	return m, st, rec
}

func seedPending(t *testing.T, st *store.MemoryStore, creator int64, recipients []int64) int64 {
	t.Helper()
	id, err := st.CreateTask(context.Background(), store.Task{
		CreatorID:  creator,
		Title:      "water the plants",
		Recipients: recipients,
		Deadline:   time.Now().Add(24 * time.Hour),
		Status:     store.StatusPending,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return id
}

func TestCompleteByRecipientNotifiesCreator(t *testing.T) {
	m, st, rec := newTestManager(t)
	id := seedPending(t, st, 7, []int64{42})

	task, err := m.Complete(context.Background(), 42, id)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if task.Status != store.StatusCompleted {
		t.Fatalf("Status = %q, want completed", task.Status)
	}

	sent := rec.SentTo(7)
	if len(sent) != 1 {
		t.Fatalf("creator notifications = %d, want 1", len(sent))
	}
	if !strings.Contains(sent[0], "42") {
		t.Fatalf("completion notice %q does not name the actor", sent[0])
	}
}

func TestCompleteByCreatorSendsNoNotification(t *testing.T) {
	m, st, rec := newTestManager(t)
	id := seedPending(t, st, 7, []int64{42})

	if _, err := m.Complete(context.Background(), 7, id); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := len(rec.Sent()); got != 0 {
		t.Fatalf("self-completion sent %d notifications", got)
	}
}

func TestCompleteRejectsOutsiders(t *testing.T) {
	m, st, _ := newTestManager(t)
	id := seedPending(t, st, 7, []int64{42})

	if _, err := m.Complete(context.Background(), 99, id); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("Complete(outsider) error = %v, want ErrUnauthorized", err)
	}

	task, err := st.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if task.Status != store.StatusPending {
		t.Fatalf("rejected completion changed status to %q", task.Status)
	}
}

func TestCompleteIsIdempotentlyRejected(t *testing.T) {
	m, st, rec := newTestManager(t)
	id := seedPending(t, st, 7, []int64{42})

	if _, err := m.Complete(context.Background(), 42, id); err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}
	before := len(rec.Sent())

	if _, err := m.Complete(context.Background(), 42, id); !errors.Is(err, store.ErrAlreadyTerminal) {
		t.Fatalf("second Complete() error = %v, want ErrAlreadyTerminal", err)
	}
	if got := len(rec.Sent()); got != before {
		t.Fatalf("repeated completion sent %d extra notifications", got-before)
	}
}

func TestCompleteMissingTask(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Complete(context.Background(), 42, 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Complete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCancelIsCreatorOnlyAndSilent(t *testing.T) {
	m, st, rec := newTestManager(t)
	id := seedPending(t, st, 7, []int64{42})

	if _, err := m.Cancel(context.Background(), 42, id); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("Cancel(recipient) error = %v, want ErrUnauthorized", err)
	}

	task, err := m.Cancel(context.Background(), 7, id)
	if err != nil {
		t.Fatalf("Cancel(creator) error = %v", err)
	}
	if task.Status != store.StatusCancelled {
		t.Fatalf("Status = %q, want cancelled", task.Status)
	}
	if got := len(rec.Sent()); got != 0 {
		t.Fatalf("cancellation sent %d notifications, want 0", got)
	}

	if _, err := m.Cancel(context.Background(), 7, id); !errors.Is(err, store.ErrAlreadyTerminal) {
		t.Fatalf("repeated Cancel() error = %v, want ErrAlreadyTerminal", err)
	}
}
