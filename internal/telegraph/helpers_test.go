package telegraph

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/productif/internal/agent"
	"github.com/zulandar/productif/internal/intent"
	"github.com/zulandar/productif/internal/models"
	"github.com/zulandar/productif/internal/state"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// A single connection keeps every goroutine on the same in-memory db.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Contact{}, &models.Exchange{}, &models.ConversationState{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func addContact(t *testing.T, cs *Contacts, c models.Contact) *models.Contact {
	t.Helper()
	if err := cs.Add(context.Background(), &c); err != nil {
		t.Fatalf("add contact: %v", err)
	}
	return &c
}

// fakeResponder echoes messages and records calls.
type fakeResponder struct {
	mu       sync.Mutex
	messages []string
	users    []agent.User
	checkIns []agent.CheckIn
	failFor  map[string]bool // user IDs whose check-in fails
	delay    map[string]time.Duration
}

func (f *fakeResponder) HandleMessage(_ context.Context, u agent.User, text string) agent.Result {
	if d := f.delay[text]; d > 0 {
		time.Sleep(d)
	}
	f.mu.Lock()
	f.messages = append(f.messages, text)
	f.users = append(f.users, u)
	f.mu.Unlock()
	return agent.Result{
		Handled:        true,
		Response:       "echo: " + text,
		ActionExecuted: agent.ActionListTasks,
		Category:       intent.ListTasks,
	}
}

func (f *fakeResponder) CheckIn(_ context.Context, u agent.User, k agent.CheckIn) (agent.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkIns = append(f.checkIns, k)
	if f.failFor[u.ID] {
		return agent.Result{}, fmt.Errorf("backend down")
	}
	return agent.Result{Handled: true, Response: string(k) + " " + u.ID, ActionExecuted: agent.ActionStatusCheck}, nil
}

func (f *fakeResponder) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func newTestStates(db *gorm.DB) state.Store {
	return state.NewGormStore(db, 30*time.Minute)
}
