package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/messaging"
	"github.com/vikasavnish/gymledger/internal/metrics"
	"github.com/vikasavnish/gymledger/internal/models"
)

type sentMessage struct {
	to       string
	body     string
	template string
	lang     string
	params   []string
}

type fakeGateway struct {
	mu         sync.Mutex
	configured bool
	fail       map[string]bool
	sent       []sentMessage
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{configured: true, fail: map[string]bool{}}
}

func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) SendText(ctx context.Context, to, body string) error {
	return g.record(sentMessage{to: to, body: body})
}

func (g *fakeGateway) SendTemplate(ctx context.Context, to, name, lang string, params []string) error {
	return g.record(sentMessage{to: to, template: name, lang: lang, params: params})
}

func (g *fakeGateway) record(msg sentMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail[msg.to] {
		return &messaging.SendError{Status: 400, Detail: "rejected"}
	}
	g.sent = append(g.sent, msg)
	return nil
}

func newTestReminders(t *testing.T, s *testServices, gw messaging.Gateway, cfg config.MessagingConfig) (*ReminderService, *MemoryRunStore, *recordingNotifier) {
	t.Helper()
	store := NewMemoryRunStore()
	notifier := &recordingNotifier{}
	svc := NewReminderService(s.db, s.settings, gw, cfg, store, notifier, metrics.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC) }
	return svc, store, notifier
}

func seedUnpaid(t *testing.T, s *testServices, phones ...string) []*models.Member {
	t.Helper()
	var out []*models.Member
	for _, phone := range phones {
		m := addMember(t, s.db, "Member "+phone, phone, date(2024, 1, 1))
		if err := s.ledger.EnsureYear(context.Background(), m.ID, 2024); err != nil {
			t.Fatalf("EnsureYear() error = %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestDispatchAggregateCounts(t *testing.T) {
	s := newTestServices(t)
	gw := newFakeGateway()
	svc, store, notifier := newTestReminders(t, s, gw, config.MessagingConfig{Mode: config.ModeText, SendTimeout: time.Second})
	ctx := context.Background()

	members := seedUnpaid(t, s, "3001111111", "", "3002222222", "   ", "+443333333")
	// A paid member is not reminded.
	paid := seedUnpaid(t, s, "3009999999")[0]
	if _, err := s.payments.RecordPayment(ctx, RecordPaymentInput{MemberID: paid.ID, Period: models.Period{Year: 2024, Month: 5}}); err != nil {
		t.Fatalf("RecordPayment() error = %v", err)
	}

	result, err := svc.Run(ctx, models.Period{Year: 2024, Month: 5}, config.ModeText)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Sent != 3 || result.Failed != 2 || !result.OK {
		t.Errorf("result = %+v, want sent 3 failed 2", result)
	}
	if result.RunID == "" || result.Trigger != TriggerManual {
		t.Errorf("run metadata = %+v", result)
	}

	if len(gw.sent) != 3 {
		t.Fatalf("gateway got %d messages, want 3", len(gw.sent))
	}
	first := gw.sent[0]
	if first.to != "+923001111111" {
		t.Errorf("destination = %q", first.to)
	}
	want := "Hi Member 3001111111, your Test Gym fee (8 PKR) for 5/2024 is pending. Please pay to stay active."
	if first.body != want {
		t.Errorf("body = %q, want %q", first.body, want)
	}

	var contacted models.Member
	s.db.First(&contacted, members[0].ID)
	if contacted.LastContactAt == nil {
		t.Error("last_contact_at not stamped after a successful send")
	}
	var skipped models.Member
	s.db.First(&skipped, members[1].ID)
	if skipped.LastContactAt != nil {
		t.Error("last_contact_at stamped for a member that was not reached")
	}

	last, _ := store.Last(ctx)
	if last == nil || last.RunID != result.RunID {
		t.Errorf("stored result = %+v", last)
	}
	if got := notifier.types(); len(got) != 1 || got[0] != models.EventRemindersDispatched {
		t.Errorf("events = %v", got)
	}
}

func TestDispatchGatewayFailuresCountAsFailed(t *testing.T) {
	s := newTestServices(t)
	gw := newFakeGateway()
	gw.fail["+923002222222"] = true
	svc, _, _ := newTestReminders(t, s, gw, config.MessagingConfig{Mode: config.ModeText})

	seedUnpaid(t, s, "3001111111", "3002222222")

	result, err := svc.Run(context.Background(), models.Period{Year: 2024, Month: 5}, config.ModeText)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Sent != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want sent 1 failed 1", result)
	}
}

func TestDispatchMissingMemberCountsAsFailed(t *testing.T) {
	s := newTestServices(t)
	gw := newFakeGateway()
	svc, _, _ := newTestReminders(t, s, gw, config.MessagingConfig{Mode: config.ModeText})

	seedUnpaid(t, s, "3001111111")
	orphan := models.Payment{MemberID: 777, Year: 2024, Month: 5, Status: models.StatusUnpaid}
	s.db.Create(&orphan)

	result, err := svc.Run(context.Background(), models.Period{Year: 2024, Month: 5}, config.ModeText)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Sent != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want sent 1 failed 1", result)
	}
}

func TestDispatchTemplateMode(t *testing.T) {
	s := newTestServices(t)
	gw := newFakeGateway()
	svc, _, _ := newTestReminders(t, s, gw, config.MessagingConfig{
		Mode:         config.ModeTemplate,
		TemplateName: "fee_reminder",
		TemplateLang: "en",
	})
	seedUnpaid(t, s, "3001111111")

	result, err := svc.RunDaily(context.Background())
	if err != nil {
		t.Fatalf("RunDaily() error = %v", err)
	}
	if result.Year != 2024 || result.Month != 5 || result.Mode != config.ModeTemplate || result.Trigger != TriggerDaily {
		t.Errorf("result = %+v", result)
	}
	if len(gw.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(gw.sent))
	}
	msg := gw.sent[0]
	if msg.template != "fee_reminder" || msg.lang != "en" {
		t.Errorf("template = %q lang = %q", msg.template, msg.lang)
	}
	if strings.Join(msg.params, "|") != "Member 3001111111|May|2024" {
		t.Errorf("params = %v", msg.params)
	}
}

func TestDispatchConfigurationErrors(t *testing.T) {
	s := newTestServices(t)
	seedUnpaid(t, s, "3001111111")
	period := models.Period{Year: 2024, Month: 5}

	unconfigured := newFakeGateway()
	unconfigured.configured = false
	svc, store, _ := newTestReminders(t, s, unconfigured, config.MessagingConfig{Mode: config.ModeText})
	result, err := svc.Run(context.Background(), period, config.ModeText)
	if !errors.Is(err, messaging.ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
	if result.OK || result.Error == "" || result.Sent != 0 || result.Failed != 0 {
		t.Errorf("result = %+v", result)
	}
	if last, _ := store.Last(context.Background()); last == nil || last.OK {
		t.Errorf("failed run not stored: %+v", last)
	}

	gw := newFakeGateway()
	svc, _, _ = newTestReminders(t, s, gw, config.MessagingConfig{Mode: config.ModeText})
	if _, err := svc.Run(context.Background(), period, config.ModeTemplate); !errors.Is(err, ErrTemplateNotConfigured) {
		t.Errorf("error = %v, want ErrTemplateNotConfigured", err)
	}
	if len(gw.sent) != 0 {
		t.Errorf("configuration failure still sent %d messages", len(gw.sent))
	}
}

func TestDispatchIsNotDeduplicated(t *testing.T) {
	s := newTestServices(t)
	gw := newFakeGateway()
	svc, _, _ := newTestReminders(t, s, gw, config.MessagingConfig{Mode: config.ModeText})
	seedUnpaid(t, s, "3001111111")
	period := models.Period{Year: 2024, Month: 5}

	for i := 0; i < 2; i++ {
		if _, err := svc.Run(context.Background(), period, config.ModeText); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}
	if len(gw.sent) != 2 {
		t.Errorf("sent = %d, want 2", len(gw.sent))
	}
}

func TestMemoryRunStore(t *testing.T) {
	store := NewMemoryRunStore()
	ctx := context.Background()
	if last, err := store.Last(ctx); last != nil || err != nil {
		t.Fatalf("empty store Last() = %+v, %v", last, err)
	}
	in := &DispatchResult{RunID: "r1", Sent: 2}
	store.Save(ctx, in)
	in.Sent = 99

	last, _ := store.Last(ctx)
	if last.RunID != "r1" || last.Sent != 2 {
		t.Errorf("Last() = %+v", last)
	}
}
