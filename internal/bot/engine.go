package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/apryandito/taskrelay/internal/auth"
	"github.com/apryandito/taskrelay/internal/command"
	"github.com/apryandito/taskrelay/internal/intake"
	"github.com/apryandito/taskrelay/internal/lifecycle"
	"github.com/apryandito/taskrelay/internal/observability"
	"github.com/apryandito/taskrelay/internal/store"
)

// Principal identifies the sender of an inbound chat message.
type Principal struct {
	ID       int64
	Username string
}

// Engine routes inbound chat text: plain text feeds an open intake dialogue,
// commands go through a single dispatch table. Expected outcomes such as
// unauthorized or not-found come back as plain reply text; only store faults
// reach the log.
type Engine struct {
	store     store.Store
	guard     *auth.Guard
	machine   *intake.Machine
	lifecycle *lifecycle.Manager
	metrics   *observability.Metrics
}

func NewEngine(st store.Store, guard *auth.Guard, machine *intake.Machine, lc *lifecycle.Manager, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:     st,
		guard:     guard,
		machine:   machine,
		lifecycle: lc,
		metrics:   metrics,
	}
}

// HandleMessage consumes one inbound message and returns the reply text.
func (e *Engine) HandleMessage(ctx context.Context, from Principal, text string) string {
	cmd, isCommand := command.Parse(text)
	if !isCommand {
		if reply, ok := e.machine.Advance(ctx, from.ID, text); ok {
			return reply
		}
		return "I did not understand that. Use /start to see what I can do."
	}

	if e.metrics != nil {
		e.metrics.Commands.WithLabelValues(string(cmd.Kind)).Inc()
	}

	switch cmd.Kind {
	case command.KindStart:
		return e.handleStart(ctx, from)
	case command.KindAddTask:
		return e.handleAddTask(ctx, from)
	case command.KindCancel:
		if reply, ok := e.machine.Cancel(from.ID); ok {
			return reply
		}
		return "There is no task creation in progress. Use /cancel <id> to cancel a task."
	case command.KindCancelTask:
		return e.handleCancelTask(ctx, from, cmd.ID)
	case command.KindDone:
		return e.handleDone(ctx, from, cmd.ID)
	case command.KindListTasks:
		return e.handleListTasks(ctx, from)
	case command.KindAddUser:
		return e.handleAddUser(ctx, from, cmd.ID)
	case command.KindRemoveUser:
		return e.handleRemoveUser(ctx, from, cmd.ID)
	case command.KindListUsers:
		return e.handleListUsers(ctx, from)
	default:
		return fmt.Sprintf("Unknown command %s. Use /start to see what I can do.", cmd.Token)
	}
}

func (e *Engine) handleStart(ctx context.Context, from Principal) string {
	registered, err := e.guard.IsRegistered(ctx, from.ID)
	if err != nil {
		return e.storeFault("start", err)
	}
	if !registered {
		return "Hello! You are not registered yet; ask the owner to add you with /adduser."
	}

	// Refresh display-name metadata for an already-registered caller. The
	// owner is implicitly registered and needs no row.
	if !e.guard.IsOwner(from.ID) {
		if err := e.store.UpsertUser(ctx, store.User{
			ID:           from.ID,
			Username:     from.Username,
			RegisteredAt: time.Now().UTC(),
		}); err != nil {
			return e.storeFault("start", err)
		}
	}

	return "Ready.\n" +
		"/addtask - create a task step by step\n" +
		"/listtasks - your tasks, grouped by status\n" +
		"/done <id> - mark a task done\n" +
		"/cancel <id> - cancel a task you created\n" +
		"/cancel - abort task creation"
}

func (e *Engine) handleAddTask(ctx context.Context, from Principal) string {
	reply, err := e.machine.Start(ctx, from.ID, from.Username)
	if errors.Is(err, auth.ErrUnauthorized) {
		return "You are not registered. Ask the owner to add you with /adduser."
	}
	if err != nil {
		return e.storeFault("addtask", err)
	}
	return reply
}

func (e *Engine) handleDone(ctx context.Context, from Principal, taskID int64) string {
	if taskID == 0 {
		return "Usage: /done <task id>"
	}
	task, err := e.lifecycle.Complete(ctx, from.ID, taskID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("Task #%d does not exist.", taskID)
	case errors.Is(err, store.ErrAlreadyTerminal):
		return fmt.Sprintf("Task #%d is already completed or cancelled.", taskID)
	case errors.Is(err, auth.ErrUnauthorized):
		return fmt.Sprintf("Task #%d is not yours to complete.", taskID)
	case err != nil:
		return e.storeFault("done", err)
	}
	return fmt.Sprintf("Task #%d %q marked done.", task.ID, task.Title)
}

func (e *Engine) handleCancelTask(ctx context.Context, from Principal, taskID int64) string {
	task, err := e.lifecycle.Cancel(ctx, from.ID, taskID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("Task #%d does not exist.", taskID)
	case errors.Is(err, store.ErrAlreadyTerminal):
		return fmt.Sprintf("Task #%d is already completed or cancelled.", taskID)
	case errors.Is(err, auth.ErrUnauthorized):
		return fmt.Sprintf("Only the creator can cancel task #%d.", taskID)
	case err != nil:
		return e.storeFault("cancel", err)
	}
	return fmt.Sprintf("Task #%d %q cancelled.", task.ID, task.Title)
}

func (e *Engine) handleListTasks(ctx context.Context, from Principal) string {
	if err := e.guard.RequireRegistered(ctx, from.ID); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			return "You are not registered. Ask the owner to add you with /adduser."
		}
		return e.storeFault("listtasks", err)
	}

	tasks, err := e.store.ListTasksForUser(ctx, from.ID)
	if err != nil {
		return e.storeFault("listtasks", err)
	}
	if len(tasks) == 0 {
		return "You have no tasks. Use /addtask to create one."
	}

	var b strings.Builder
	b.WriteString("Your tasks:")
	writeGroup(&b, "Pending", tasks, store.StatusPending)
	writeGroup(&b, "Completed", tasks, store.StatusCompleted)
	writeGroup(&b, "Cancelled", tasks, store.StatusCancelled)
	return b.String()
}

func writeGroup(b *strings.Builder, heading string, tasks []store.Task, status store.Status) {
	wrote := false
	for _, task := range tasks {
		if task.Status != status {
			continue
		}
		if !wrote {
			fmt.Fprintf(b, "\n\n%s:", heading)
			wrote = true
		}
		fmt.Fprintf(b, "\n#%d %s - due %s (UTC)", task.ID, task.Title, task.Deadline.Format(intake.DeadlineLayout))
	}
}

func (e *Engine) handleAddUser(ctx context.Context, from Principal, userID int64) string {
	if err := e.guard.RequireOwner(from.ID); err != nil {
		return "Only the owner can manage users."
	}
	if userID == 0 {
		return "Usage: /adduser <user id>"
	}
	if err := e.store.UpsertUser(ctx, store.User{ID: userID, RegisteredAt: time.Now().UTC()}); err != nil {
		return e.storeFault("adduser", err)
	}
	return fmt.Sprintf("User %d is registered.", userID)
}

func (e *Engine) handleRemoveUser(ctx context.Context, from Principal, userID int64) string {
	if err := e.guard.RequireOwner(from.ID); err != nil {
		return "Only the owner can manage users."
	}
	if userID == 0 {
		return "Usage: /removeuser <user id>"
	}
	err := e.store.DeleteUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("User %d is not registered.", userID)
	}
	if err != nil {
		return e.storeFault("removeuser", err)
	}
	return fmt.Sprintf("User %d removed. Their existing tasks are untouched.", userID)
}

func (e *Engine) handleListUsers(ctx context.Context, from Principal) string {
	if err := e.guard.RequireOwner(from.ID); err != nil {
		return "Only the owner can manage users."
	}
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return e.storeFault("listusers", err)
	}
	if len(users) == 0 {
		return "No registered users yet. Use /adduser <id>."
	}

	var b strings.Builder
	b.WriteString("Registered users:")
	for _, user := range users {
		if user.Username != "" {
			fmt.Fprintf(&b, "\n%d (%s)", user.ID, user.Username)
		} else {
			fmt.Fprintf(&b, "\n%d", user.ID)
		}
	}
	return b.String()
}

func (e *Engine) storeFault(op string, err error) string {
	log.Printf("bot: %s failed: %v", op, err)
	if e.metrics != nil {
		e.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	return "Something went wrong on my side. Please try again later."
}
