package telegraph

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/productif/internal/agent"
	"github.com/zulandar/productif/internal/config"
	"github.com/zulandar/productif/internal/models"
)

func newTestCheckIns(t *testing.T, schedule config.CheckInsConfig) (*CheckIns, *MockAdapter, *fakeResponder, *Contacts, *ExchangeLog) {
	t.Helper()
	db := openTestDB(t)
	cs, _ := NewContacts(db)
	ex, _ := NewExchangeLog(db)
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())
	responder := &fakeResponder{failFor: map[string]bool{}}
	s, err := NewCheckIns(CheckInsOpts{
		Responder: responder,
		Contacts:  cs,
		Exchanges: ex,
		Adapter:   adapter,
		Platform:  PlatformWhatsApp,
		Schedule:  schedule,
		Location:  time.UTC,
	})
	if err != nil {
		t.Fatalf("NewCheckIns: %v", err)
	}
	return s, adapter, responder, cs, ex
}

func TestNewCheckIns_Validation(t *testing.T) {
	if _, err := NewCheckIns(CheckInsOpts{}); err == nil {
		t.Fatal("expected error for empty opts")
	}
}

func TestCheckIns_FireSkipsFailuresAndOptOuts(t *testing.T) {
	s, adapter, responder, cs, ex := newTestCheckIns(t, config.CheckInsConfig{})
	ctx := context.Background()
	addContact(t, cs, models.Contact{Platform: "whatsapp", SenderID: "+331", UserID: "a", CheckIns: true})
	addContact(t, cs, models.Contact{Platform: "whatsapp", SenderID: "+332", UserID: "b", CheckIns: true})
	addContact(t, cs, models.Contact{Platform: "whatsapp", SenderID: "+333", UserID: "c", CheckIns: false})
	responder.failFor["a"] = true

	if n := s.Fire(ctx, agent.MorningCheckIn); n != 1 {
		t.Fatalf("sent = %d, want 1", n)
	}
	got, _ := adapter.LastSent()
	if got.ChannelID != "+332" || !strings.HasPrefix(got.Text, "morning") {
		t.Errorf("sent = %+v", got)
	}
	if len(responder.checkIns) != 2 {
		t.Errorf("check-ins built = %d, want 2 (opted-out contact skipped)", len(responder.checkIns))
	}

	recent, _ := ex.Recent(ctx, 0, 10)
	if len(recent) != 1 || recent[0].Inbound != "checkin:morning" {
		t.Errorf("exchanges = %+v", recent)
	}
}

func TestCheckIns_RunDisabledReturns(t *testing.T) {
	s, _, _, _, _ := newTestCheckIns(t, config.CheckInsConfig{})
	if s.Enabled() {
		t.Fatal("no schedule should be disabled")
	}
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when disabled")
	}
}

func TestCheckIns_RunStopsOnCancel(t *testing.T) {
	s, _, _, _, _ := newTestCheckIns(t, config.CheckInsConfig{Morning: "0 8 * * *", Evening: "0 21 * * *"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
