package intake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State names the step of the guided task-creation dialogue a session is
// waiting on.
type State string

const (
	StateAwaitTitle           State = "await_title"
	StateAwaitRecipientChoice State = "await_recipient_choice"
	StateAwaitRecipientList   State = "await_recipient_list"
	StateAwaitDeadlineChoice  State = "await_deadline_choice"
	StateAwaitDeadlineValue   State = "await_deadline_value"
	StateAwaitNote            State = "await_note"
)

// Draft holds the task fields collected so far.
type Draft struct {
	Title         string
	Recipients    []int64
	HasRecipients bool
	Deadline      time.Time
	HasDeadline   bool
	Note          string
}

// Session is the ephemeral per-principal state of an in-progress dialogue.
type Session struct {
	ID             string
	UserID         int64
	Username       string
	State          State
	Draft          Draft
	StartedAt      time.Time
	LastActivityAt time.Time
}

// Arena owns intake sessions, at most one per principal. Beginning a new
// session silently replaces an open one, and a janitor evicts sessions idle
// past the configured timeout so abandoned dialogues do not accumulate.
type Arena struct {
	mu          sync.RWMutex
	sessions    map[int64]*Session
	idleTimeout time.Duration
	onEvict     func(*Session)
}

func NewArena(idleTimeout time.Duration) *Arena {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	return &Arena{
		sessions:    make(map[int64]*Session),
		idleTimeout: idleTimeout,
	}
}

// SetEvictHook registers a callback invoked for sessions the janitor evicts.
func (a *Arena) SetEvictHook(hook func(*Session)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEvict = hook
}

// Begin opens a session for the principal, replacing any open one
// (last-writer-wins). It reports whether a prior session was discarded.
func (a *Arena) Begin(userID int64, username string) (*Session, bool) {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Username:       username,
		State:          StateAwaitTitle,
		StartedAt:      now,
		LastActivityAt: now,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, replaced := a.sessions[userID]
	a.sessions[userID] = s
	return clone(s), replaced
}

func (a *Arena) Get(userID int64) (*Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[userID]
	if !ok {
		return nil, false
	}
	return clone(s), true
}

// Save writes back an advanced session and refreshes its activity stamp. The
// write is dropped if the session was replaced or evicted meanwhile.
func (a *Arena) Save(s *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	current, ok := a.sessions[s.UserID]
	if !ok || current.ID != s.ID {
		return
	}
	saved := clone(s)
	saved.LastActivityAt = time.Now().UTC()
	a.sessions[s.UserID] = saved
}

// End removes the principal's session, reporting whether one was open.
func (a *Arena) End(userID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.sessions[userID]
	delete(a.sessions, userID)
	return ok
}

func (a *Arena) ActiveCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

// StartJanitor launches the idle-eviction loop until ctx is cancelled.
func (a *Arena) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.evictIdle()
			}
		}
	}()
}

func (a *Arena) evictIdle() {
	now := time.Now().UTC()
	var evicted []*Session

	a.mu.Lock()
	for userID, s := range a.sessions {
		if now.Sub(s.LastActivityAt) < a.idleTimeout {
			continue
		}
		evicted = append(evicted, clone(s))
		delete(a.sessions, userID)
	}
	hook := a.onEvict
	a.mu.Unlock()

	if hook != nil {
		for _, s := range evicted {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	if s.Draft.Recipients != nil {
		c.Draft.Recipients = make([]int64, len(s.Draft.Recipients))
		copy(c.Draft.Recipients, s.Draft.Recipients)
	}
	return &c
}
