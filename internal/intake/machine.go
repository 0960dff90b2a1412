package intake

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/apryandito/taskrelay/internal/auth"
	"github.com/apryandito/taskrelay/internal/notify"
	"github.com/apryandito/taskrelay/internal/observability"
	"github.com/apryandito/taskrelay/internal/store"
)

const (
	// DeadlineLayout is the single accepted deadline input pattern, in UTC.
	DeadlineLayout = "2006-01-02 15:04"

	// NotePlaceholder is stored when the note step is skipped.
	NotePlaceholder = "no note"

	maxTitleRunes         = 100
	defaultDeadlineOffset = 7 * 24 * time.Hour
)

// Policy names the validation choices the observed variants disagree on.
type Policy struct {
	// IncludeCreator appends the creator to an explicit recipient list.
	IncludeCreator bool
	// RequireRegisteredRecipients rejects recipient ids without a user row.
	RequireRegisteredRecipients bool
}

// Machine drives the guided task-creation dialogue: one message per step,
// validation with re-prompt on every step, cancellation in every state, and a
// single commit that persists the task and fans out creation notifications.
type Machine struct {
	arena      *Arena
	store      store.Store
	guard      *auth.Guard
	dispatcher notify.Dispatcher
	policy     Policy
	metrics    *observability.Metrics

	now func() time.Time
}

func NewMachine(arena *Arena, st store.Store, guard *auth.Guard, dispatcher notify.Dispatcher, policy Policy, metrics *observability.Metrics) *Machine {
	return &Machine{
		arena:      arena,
		store:      st,
		guard:      guard,
		dispatcher: dispatcher,
		policy:     policy,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Tests only.
func (m *Machine) SetClock(now func() time.Time) {
	m.now = now
}

// Active reports whether the principal has an open session.
func (m *Machine) Active(userID int64) bool {
	_, ok := m.arena.Get(userID)
	return ok
}

// Start opens a session for a registered principal and returns the first
// prompt. An open session is silently replaced.
func (m *Machine) Start(ctx context.Context, userID int64, username string) (string, error) {
	if err := m.guard.RequireRegistered(ctx, userID); err != nil {
		return "", err
	}
	_, replaced := m.arena.Begin(userID, username)
	if m.metrics != nil {
		if replaced {
			m.metrics.IntakeSessions.WithLabelValues("replaced").Inc()
		}
		m.metrics.ActiveIntakeSessions.Set(float64(m.arena.ActiveCount()))
	}
	return "Creating a new task. Send the task title.", nil
}

// Cancel discards the principal's session. It reports whether one was open.
func (m *Machine) Cancel(userID int64) (string, bool) {
	if !m.arena.End(userID) {
		return "", false
	}
	if m.metrics != nil {
		m.metrics.IntakeSessions.WithLabelValues("cancelled").Inc()
		m.metrics.ActiveIntakeSessions.Set(float64(m.arena.ActiveCount()))
	}
	return "Task creation cancelled.", true
}

// Advance consumes one message for the principal's open session and returns
// the reply. Validation failures re-prompt and keep the session in the same
// state.
func (m *Machine) Advance(ctx context.Context, userID int64, text string) (string, bool) {
	sess, ok := m.arena.Get(userID)
	if !ok {
		return "", false
	}

	input := strings.TrimSpace(text)
	switch sess.State {
	case StateAwaitTitle:
		return m.stepTitle(sess, input), true
	case StateAwaitRecipientChoice:
		return m.stepRecipientChoice(sess, input), true
	case StateAwaitRecipientList:
		return m.stepRecipientList(ctx, sess, input), true
	case StateAwaitDeadlineChoice:
		return m.stepDeadlineChoice(sess, input), true
	case StateAwaitDeadlineValue:
		return m.stepDeadlineValue(sess, input), true
	case StateAwaitNote:
		return m.stepNote(ctx, sess, input), true
	default:
		// Unknown state means the session is corrupt; drop it.
		m.arena.End(userID)
		return "Something went wrong, task creation cancelled. Use /addtask to start over.", true
	}
}

func (m *Machine) stepTitle(sess *Session, input string) string {
	if input == "" {
		return "The title cannot be empty. Send the task title."
	}
	if utf8.RuneCountInString(input) > maxTitleRunes {
		return fmt.Sprintf("The title is limited to %d characters. Send a shorter title.", maxTitleRunes)
	}
	sess.Draft.Title = input
	sess.State = StateAwaitRecipientChoice
	m.arena.Save(sess)
	return "Assign the task to specific people? Answer yes or no (no = just you)."
}

func (m *Machine) stepRecipientChoice(sess *Session, input string) string {
	switch parseYesNo(input) {
	case yes:
		sess.State = StateAwaitRecipientList
		m.arena.Save(sess)
		return "Send the recipient ids, separated by spaces."
	case no:
		sess.Draft.Recipients = []int64{sess.UserID}
		sess.Draft.HasRecipients = true
		sess.State = StateAwaitDeadlineChoice
		m.arena.Save(sess)
		return "Set an explicit deadline? Answer yes or no (no = 7 days from now)."
	default:
		return "Please answer yes or no. Assign the task to specific people?"
	}
}

func (m *Machine) stepRecipientList(ctx context.Context, sess *Session, input string) string {
	tokens := strings.Fields(input)
	if len(tokens) == 0 {
		return "Send at least one recipient id, separated by spaces."
	}

	ids := make([]int64, 0, len(tokens))
	for _, tok := range tokens {
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return fmt.Sprintf("%q is not a numeric id. Send the recipient ids, separated by spaces.", tok)
		}
		ids = append(ids, id)
	}

	if m.policy.RequireRegisteredRecipients {
		var unknown []string
		for _, id := range ids {
			ok, err := m.guard.IsRegistered(ctx, id)
			if err != nil {
				log.Printf("intake: registration check failed for %d: %v", id, err)
				return "Could not verify the recipients right now. Send the recipient ids again."
			}
			if !ok {
				unknown = append(unknown, strconv.FormatInt(id, 10))
			}
		}
		if len(unknown) > 0 {
			return fmt.Sprintf("These ids are not registered: %s. Send the recipient ids, separated by spaces.", strings.Join(unknown, " "))
		}
	}

	if m.policy.IncludeCreator {
		ids = append(ids, sess.UserID)
	}
	sess.Draft.Recipients = dedupeIDs(ids)
	sess.Draft.HasRecipients = true
	sess.State = StateAwaitDeadlineChoice
	m.arena.Save(sess)
	return "Set an explicit deadline? Answer yes or no (no = 7 days from now)."
}

func (m *Machine) stepDeadlineChoice(sess *Session, input string) string {
	switch parseYesNo(input) {
	case yes:
		sess.State = StateAwaitDeadlineValue
		m.arena.Save(sess)
		return "Send the deadline as YYYY-MM-DD HH:MM (UTC)."
	case no:
		sess.Draft.Deadline = m.now().Add(defaultDeadlineOffset)
		sess.Draft.HasDeadline = true
		sess.State = StateAwaitNote
		m.arena.Save(sess)
		return "Add a note? Send the text, or \"skip\"."
	default:
		return "Please answer yes or no. Set an explicit deadline?"
	}
}

func (m *Machine) stepDeadlineValue(sess *Session, input string) string {
	deadline, err := time.ParseInLocation(DeadlineLayout, input, time.UTC)
	if err != nil {
		return "Could not read that deadline. Send it as YYYY-MM-DD HH:MM (UTC)."
	}
	if !deadline.After(m.now()) {
		return "The deadline must be in the future. Send it as YYYY-MM-DD HH:MM (UTC)."
	}
	sess.Draft.Deadline = deadline
	sess.Draft.HasDeadline = true
	sess.State = StateAwaitNote
	m.arena.Save(sess)
	return "Add a note? Send the text, or \"skip\"."
}

func (m *Machine) stepNote(ctx context.Context, sess *Session, input string) string {
	note := input
	if note == "" || strings.EqualFold(note, "skip") || note == "-" {
		note = NotePlaceholder
	}
	sess.Draft.Note = note
	return m.commit(ctx, sess)
}

// commit persists the collected task, fans out one creation notification per
// recipient, and destroys the session regardless of outcome.
func (m *Machine) commit(ctx context.Context, sess *Session) string {
	defer func() {
		m.arena.End(sess.UserID)
		if m.metrics != nil {
			m.metrics.ActiveIntakeSessions.Set(float64(m.arena.ActiveCount()))
		}
	}()

	now := m.now()
	recipients := sess.Draft.Recipients
	if !sess.Draft.HasRecipients || len(recipients) == 0 {
		recipients = []int64{sess.UserID}
	}
	deadline := sess.Draft.Deadline
	if !sess.Draft.HasDeadline {
		deadline = now.Add(defaultDeadlineOffset)
	}

	task := store.Task{
		CreatorID:  sess.UserID,
		Title:      sess.Draft.Title,
		Recipients: dedupeIDs(recipients),
		Deadline:   deadline,
		Note:       sess.Draft.Note,
		Status:     store.StatusPending,
		CreatedAt:  now,
	}

	id, err := m.store.CreateTask(ctx, task)
	if err != nil {
		log.Printf("intake: persist task for %d failed: %v", sess.UserID, err)
		if m.metrics != nil {
			m.metrics.StoreErrors.WithLabelValues("create_task").Inc()
			m.metrics.IntakeSessions.WithLabelValues("failed").Inc()
		}
		return "Could not save the task. Nothing was created; use /addtask to try again."
	}

	text := CreationNotice(id, task.Title, task.Deadline, task.Note)
	for _, recipient := range task.Recipients {
		if err := m.dispatcher.Send(ctx, recipient, text); err != nil {
			log.Printf("intake: notify %d about task #%d failed: %v", recipient, id, err)
			if m.metrics != nil {
				m.metrics.NotifyErrors.WithLabelValues("creation").Inc()
			}
		}
	}

	if m.metrics != nil {
		m.metrics.IntakeSessions.WithLabelValues("committed").Inc()
	}
	return fmt.Sprintf("Task #%d created, due %s. The recipients have been notified.", id, task.Deadline.Format(DeadlineLayout))
}

// CreationNotice is the message recipients receive when a task is assigned to
// them, including the exact reply token to mark it done.
func CreationNotice(id int64, title string, deadline time.Time, note string) string {
	return fmt.Sprintf("New task #%d: %s\nDeadline: %s (UTC)\nNote: %s\nReply /done%d when it is finished.",
		id, title, deadline.Format(DeadlineLayout), note, id)
}

type yesNo int

const (
	unclear yesNo = iota
	yes
	no
)

func parseYesNo(input string) yesNo {
	switch strings.ToLower(input) {
	case "yes", "y":
		return yes
	case "no", "n":
		return no
	default:
		return unclear
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
