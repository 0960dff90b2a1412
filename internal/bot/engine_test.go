package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/apryandito/taskrelay/internal/auth"
	"github.com/apryandito/taskrelay/internal/intake"
	"github.com/apryandito/taskrelay/internal/lifecycle"
	"github.com/apryandito/taskrelay/internal/notify"
	"github.com/apryandito/taskrelay/internal/store"
)

const ownerID = int64(1)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore, *notify.Recorder) {
	t.Helper()
	st := store.NewMemoryStore()
	guard := auth.NewGuard(ownerID, st)
	rec := notify.NewRecorder()
	machine := intake.NewMachine(intake.NewArena(time.Minute), st, guard, rec, intake.Policy{}, nil)
	lc := lifecycle.NewManager(st, guard, rec, nil)
	return NewEngine(st, guard, machine, lc, nil), st, rec
}

func register(t *testing.T, st *store.MemoryStore, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		if err := st.UpsertUser(context.Background(), store.User{ID: id}); err != nil {
			t.Fatalf("UpsertUser(%d) error = %v", id, err)
		}
	}
}

func TestAdminCommandsAreOwnerOnly(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	notOwner := Principal{ID: 7}

	for _, text := range []string{"/adduser 99", "/removeuser 99", "/listusers"} {
		reply := e.HandleMessage(ctx, notOwner, text)
		if !strings.Contains(reply, "owner") {
			t.Fatalf("HandleMessage(%q) = %q, want owner-only refusal", text, reply)
		}
	}
	if _, err := st.GetUser(ctx, 99); err != store.ErrNotFound {
		t.Fatalf("unauthorized /adduser inserted a row: err = %v", err)
	}
}

func TestOwnerManagesUsers(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	owner := Principal{ID: ownerID}

	if reply := e.HandleMessage(ctx, owner, "/adduser 42"); !strings.Contains(reply, "42") {
		t.Fatalf("/adduser reply = %q", reply)
	}
	if _, err := st.GetUser(ctx, 42); err != nil {
		t.Fatalf("GetUser(42) after /adduser error = %v", err)
	}

	if reply := e.HandleMessage(ctx, owner, "/listusers"); !strings.Contains(reply, "42") {
		t.Fatalf("/listusers reply = %q", reply)
	}

	if reply := e.HandleMessage(ctx, owner, "/removeuser 42"); !strings.Contains(reply, "42") {
		t.Fatalf("/removeuser reply = %q", reply)
	}
	if reply := e.HandleMessage(ctx, owner, "/removeuser 42"); !strings.Contains(reply, "not registered") {
		t.Fatalf("repeated /removeuser reply = %q", reply)
	}
}

func TestStartUnregisteredDoesNotRegister(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	reply := e.HandleMessage(ctx, Principal{ID: 7, Username: "dina"}, "/start")
	if !strings.Contains(reply, "not registered") {
		t.Fatalf("/start reply = %q, want registration hint", reply)
	}
	if _, err := st.GetUser(ctx, 7); err != store.ErrNotFound {
		t.Fatalf("/start self-registered the caller: err = %v", err)
	}
}

func TestStartRefreshesRegisteredProfile(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, st, 7)

	reply := e.HandleMessage(ctx, Principal{ID: 7, Username: "dina"}, "/start")
	if !strings.Contains(reply, "/addtask") {
		t.Fatalf("/start reply = %q, want capability summary", reply)
	}
	user, err := st.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.Username != "dina" {
		t.Fatalf("Username = %q, want refreshed %q", user.Username, "dina")
	}
}

func TestPlainTextFeedsOpenSessionOnly(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, st, 7)
	from := Principal{ID: 7}

	reply := e.HandleMessage(ctx, from, "hello there")
	if !strings.Contains(reply, "/start") {
		t.Fatalf("stray text reply = %q, want hint", reply)
	}

	if reply := e.HandleMessage(ctx, from, "/addtask"); !strings.Contains(reply, "title") {
		t.Fatalf("/addtask reply = %q, want title prompt", reply)
	}
	if reply := e.HandleMessage(ctx, from, "Ship report"); !strings.Contains(strings.ToLower(reply), "yes or no") {
		t.Fatalf("title step reply = %q, want recipient choice prompt", reply)
	}
	if reply := e.HandleMessage(ctx, from, "/cancel"); !strings.Contains(reply, "cancelled") {
		t.Fatalf("/cancel reply = %q", reply)
	}
}

func TestDoneCompactAndSpacedForms(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, st, 7)

	mk := func() int64 {
		id, err := st.CreateTask(ctx, store.Task{
			CreatorID:  7,
			Title:      "report",
			Recipients: []int64{7},
			Deadline:   time.Now().Add(time.Hour),
			Status:     store.StatusPending,
		})
		if err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
		return id
	}
	first, second := mk(), mk()

	if reply := e.HandleMessage(ctx, Principal{ID: 7}, "/done 1"); !strings.Contains(reply, "marked done") {
		t.Fatalf("/done 1 reply = %q", reply)
	}
	if reply := e.HandleMessage(ctx, Principal{ID: 7}, "/done2"); !strings.Contains(reply, "marked done") {
		t.Fatalf("/done2 reply = %q", reply)
	}
	for _, id := range []int64{first, second} {
		task, err := st.GetTask(ctx, id)
		if err != nil {
			t.Fatalf("GetTask(%d) error = %v", id, err)
		}
		if task.Status != store.StatusCompleted {
			t.Fatalf("task #%d status = %q, want completed", id, task.Status)
		}
	}

	if reply := e.HandleMessage(ctx, Principal{ID: 7}, "/done 1"); !strings.Contains(reply, "already") {
		t.Fatalf("repeated /done reply = %q", reply)
	}
	if reply := e.HandleMessage(ctx, Principal{ID: 7}, "/done 999"); !strings.Contains(reply, "does not exist") {
		t.Fatalf("/done missing reply = %q", reply)
	}
	if reply := e.HandleMessage(ctx, Principal{ID: 7}, "/done"); !strings.Contains(reply, "Usage") {
		t.Fatalf("bare /done reply = %q", reply)
	}
}

func TestListTasksGroupsByStatus(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, st, 7)

	deadline := time.Date(2099, 1, 1, 10, 0, 0, 0, time.UTC)
	mk := func(title string, status store.Status) {
		if _, err := st.CreateTask(ctx, store.Task{
			CreatorID:  7,
			Title:      title,
			Recipients: []int64{7},
			Deadline:   deadline,
			Status:     status,
		}); err != nil {
			t.Fatalf("CreateTask(%q) error = %v", title, err)
		}
	}
	mk("open item", store.StatusPending)
	mk("finished item", store.StatusCompleted)
	mk("dropped item", store.StatusCancelled)

	reply := e.HandleMessage(ctx, Principal{ID: 7}, "/listtasks")
	pending := strings.Index(reply, "Pending:")
	completed := strings.Index(reply, "Completed:")
	cancelled := strings.Index(reply, "Cancelled:")
	if pending < 0 || completed < 0 || cancelled < 0 {
		t.Fatalf("missing group headings in %q", reply)
	}
	if !(pending < completed && completed < cancelled) {
		t.Fatalf("group order wrong in %q", reply)
	}
	if !strings.Contains(reply, "open item") || !strings.Contains(reply, "2099-01-01 10:00") {
		t.Fatalf("task line missing details: %q", reply)
	}
}

func TestListTasksRequiresRegistration(t *testing.T) {
	e, _, _ := newTestEngine(t)
	reply := e.HandleMessage(context.Background(), Principal{ID: 99}, "/listtasks")
	if !strings.Contains(reply, "not registered") {
		t.Fatalf("/listtasks reply = %q, want registration refusal", reply)
	}
}

func TestCancelTaskCommand(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	register(t, st, 7)

	id, err := st.CreateTask(ctx, store.Task{
		CreatorID:  7,
		Title:      "report",
		Recipients: []int64{42},
		Deadline:   time.Now().Add(time.Hour),
		Status:     store.StatusPending,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if reply := e.HandleMessage(ctx, Principal{ID: 42}, "/cancel 1"); !strings.Contains(reply, "creator") {
		t.Fatalf("recipient /cancel reply = %q", reply)
	}
	if reply := e.HandleMessage(ctx, Principal{ID: 7}, "/cancel 1"); !strings.Contains(reply, "cancelled") {
		t.Fatalf("creator /cancel reply = %q", reply)
	}
	task, err := st.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if task.Status != store.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", task.Status)
	}
}

func TestUnknownCommand(t *testing.T) {
	e, _, _ := newTestEngine(t)
	reply := e.HandleMessage(context.Background(), Principal{ID: 7}, "/frobnicate")
	if !strings.Contains(reply, "/frobnicate") {
		t.Fatalf("unknown command reply = %q", reply)
	}
}
