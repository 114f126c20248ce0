package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/productif/internal/backend"
	"github.com/zulandar/productif/internal/llm"
	"github.com/zulandar/productif/internal/models"
	"github.com/zulandar/productif/internal/state"
)

var errDown = errors.New("backend down")

// fakeBackend is an in-memory Backend that records every call.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	tasksForDate []backend.Task
	searchResult []backend.Task
	sessions     map[string][]backend.DeepWorkSession // by status
	habits       []backend.Habit
	batch        backend.BatchResult
	updateResult *backend.DeepWorkSession

	createdTasks    []backend.NewTask
	createdSessions []backend.NewSession
	taskPatches     map[string]backend.TaskPatch
	sessionActions  []string // "id:action"
	batchInputs     []string
	loggedHabits    []string
	datesQueried    []time.Time

	failOps    map[string]bool // op name → fail
	failTitles map[string]bool // CreateTask titles that fail
	idOnly     bool            // CreateTask answers with only the new ID
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sessions:    make(map[string][]backend.DeepWorkSession),
		taskPatches: make(map[string]backend.TaskPatch),
		failOps:     make(map[string]bool),
		failTitles:  make(map[string]bool),
	}
}

func (f *fakeBackend) record(op string) error {
	f.calls = append(f.calls, op)
	if f.failOps[op] {
		return errDown
	}
	return nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) CreateTask(_ context.Context, _ string, t backend.NewTask) (backend.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateTask"); err != nil {
		return backend.Task{}, err
	}
	f.createdTasks = append(f.createdTasks, t)
	if f.failTitles[t.Title] {
		return backend.Task{}, errDown
	}
	if f.idOnly {
		return backend.Task{ID: fmt.Sprintf("t%d", len(f.createdTasks))}, nil
	}
	return backend.Task{ID: t.Title, Title: t.Title, Priority: t.Priority, DueDate: t.DueDate}, nil
}

func (f *fakeBackend) SearchTasks(_ context.Context, _, _ string) ([]backend.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SearchTasks"); err != nil {
		return nil, err
	}
	return f.searchResult, nil
}

func (f *fakeBackend) UpdateTask(_ context.Context, _, id string, p backend.TaskPatch) (backend.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateTask"); err != nil {
		return backend.Task{}, err
	}
	f.taskPatches[id] = p
	return backend.Task{ID: id, Completed: p.Completed != nil && *p.Completed}, nil
}

func (f *fakeBackend) TasksForDate(_ context.Context, _ string, d time.Time) ([]backend.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("TasksForDate"); err != nil {
		return nil, err
	}
	f.datesQueried = append(f.datesQueried, d)
	return f.tasksForDate, nil
}

func (f *fakeBackend) BatchCreate(_ context.Context, _, input string) (backend.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("BatchCreate"); err != nil {
		return backend.BatchResult{}, err
	}
	f.batchInputs = append(f.batchInputs, input)
	return f.batch, nil
}

func (f *fakeBackend) Sessions(_ context.Context, _ string, q backend.SessionQuery) ([]backend.DeepWorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Sessions"); err != nil {
		return nil, err
	}
	out := f.sessions[q.Status]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeBackend) CreateSession(_ context.Context, _ string, s backend.NewSession) (backend.DeepWorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateSession"); err != nil {
		return backend.DeepWorkSession{}, err
	}
	f.createdSessions = append(f.createdSessions, s)
	return backend.DeepWorkSession{ID: "new", Status: backend.SessionActive, PlannedDuration: s.PlannedDuration}, nil
}

func (f *fakeBackend) UpdateSession(_ context.Context, _, id, action string) (backend.DeepWorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateSession"); err != nil {
		return backend.DeepWorkSession{}, err
	}
	f.sessionActions = append(f.sessionActions, id+":"+action)
	if f.updateResult != nil {
		return *f.updateResult, nil
	}
	return backend.DeepWorkSession{ID: id}, nil
}

func (f *fakeBackend) Habits(_ context.Context, _ string) ([]backend.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Habits"); err != nil {
		return nil, err
	}
	return f.habits, nil
}

func (f *fakeBackend) LogHabit(_ context.Context, _, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("LogHabit"); err != nil {
		return err
	}
	f.loggedHabits = append(f.loggedHabits, id)
	return nil
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMessenger) Send(_ context.Context, to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+": "+text)
	return nil
}

type fakeCompleter struct {
	out  string
	err  error
	reqs []llm.Request
}

func (c *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	c.reqs = append(c.reqs, req)
	return c.out, c.err
}

// fixedNow is Friday 16 October 2026, 09:00 UTC.
var fixedNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

var testUser = User{ID: "u1", Address: "+33600000000", Token: "tok", Name: "Lina"}

type harness struct {
	agent     *Agent
	backend   *fakeBackend
	states    state.Store
	messenger *fakeMessenger
	completer *fakeCompleter
}

func testStore(t *testing.T) state.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.ConversationState{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return state.NewGormStore(db, 30*time.Minute)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend:   newFakeBackend(),
		states:    testStore(t),
		messenger: &fakeMessenger{},
		completer: &fakeCompleter{out: "1. Fais une liste.\n2. Commence par la plus courte."},
	}
	a, err := New(Opts{
		Backend:   h.backend,
		States:    h.states,
		Completer: h.completer,
		Messenger: h.messenger,
		Location:  time.UTC,
		Now:       func() time.Time { return fixedNow },
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.agent = a
	return h
}

func (h *harness) currentState(t *testing.T) (state.Name, bool) {
	t.Helper()
	e, ok, err := h.states.Get(context.Background(), testUser.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	return e.State, ok
}
