package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/doorlink/doorlink/internal/domain"
	"github.com/doorlink/doorlink/internal/service"
	"github.com/doorlink/doorlink/pkg/events"
)

func statusEvent(status string, duration int) *domain.StatusEvent {
	return &domain.StatusEvent{
		CallSID:    "CA1",
		From:       "+15550001111",
		To:         "+15559990000",
		CallStatus: status,
		Duration:   duration,
		Timestamp:  time.Now(),
	}
}

func TestReconcileDeniedCall(t *testing.T) {
	accounts := newMockAccountRepo()
	acct := activeAccount("+15559990000")
	accounts.accounts[acct.DialedNumber] = acct

	eph := newMockEphemeralRepo()
	eph.outcomes["CA1"] = &domain.OutcomeFlags{EnteredCode: "0000", Denied: true}

	logs := newMockCallLogRepo()
	pub := &mockPublisher{}
	svc := service.NewReconcileService(accounts, logs, eph, pub)

	if err := svc.HandleStatus(context.Background(), statusEvent(domain.ProviderCompleted, 24)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := logs.logs["CA1"]
	if entry == nil || entry.Status != domain.CallDenied {
		t.Fatalf("expected denied log, got %+v", entry)
	}
	if entry.EnteredCode == nil || *entry.EnteredCode != "0000" {
		t.Fatalf("expected entered code recorded, got %+v", entry.EnteredCode)
	}
	if entry.Duration != 24 {
		t.Fatalf("expected duration 24, got %d", entry.Duration)
	}

	if len(eph.outcomes) != 0 {
		t.Fatal("outcome flags should be consumed")
	}

	var sawWrongCode bool
	for _, p := range pub.published {
		if p.subject == events.NotifySend {
			if n := p.data.(events.NotificationEvent); n.Type == events.NotifyWrongCode {
				sawWrongCode = true
			}
		}
	}
	if !sawWrongCode {
		t.Fatal("expected wrong-code notification")
	}
}

func TestReconcileAnsweredWithPasscode(t *testing.T) {
	accounts := newMockAccountRepo()
	acct := activeAccount("+15559990000")
	accounts.accounts[acct.DialedNumber] = acct

	eph := newMockEphemeralRepo()
	eph.outcomes["CA1"] = &domain.OutcomeFlags{EnteredCode: "1111", PasscodeLabel: "Dog walker"}

	logs := newMockCallLogRepo()
	pub := &mockPublisher{}
	svc := service.NewReconcileService(accounts, logs, eph, pub)

	if err := svc.HandleStatus(context.Background(), statusEvent(domain.ProviderCompleted, 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := logs.logs["CA1"]
	if entry == nil || entry.Status != domain.CallAnswered {
		t.Fatalf("expected answered log, got %+v", entry)
	}
	if entry.PasscodeLabel == nil || *entry.PasscodeLabel != "Dog walker" {
		t.Fatalf("expected passcode label recorded, got %+v", entry.PasscodeLabel)
	}
}

func TestReconcileAnsweredWithoutVerification(t *testing.T) {
	accounts := newMockAccountRepo()
	acct := activeAccount("+15559990000")
	accounts.accounts[acct.DialedNumber] = acct

	logs := newMockCallLogRepo()
	svc := service.NewReconcileService(accounts, logs, newMockEphemeralRepo(), &mockPublisher{})

	if err := svc.HandleStatus(context.Background(), statusEvent(domain.ProviderCompleted, 12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := logs.logs["CA1"]
	if entry == nil || entry.Status != domain.CallAnswered {
		t.Fatalf("expected answered log, got %+v", entry)
	}
	if entry.EnteredCode != nil || entry.PasscodeLabel != nil {
		t.Fatalf("auto-unlock log should carry no code fields, got %+v", entry)
	}
}

func TestReconcileMissedCall(t *testing.T) {
	accounts := newMockAccountRepo()
	acct := activeAccount("+15559990000")
	accounts.accounts[acct.DialedNumber] = acct

	logs := newMockCallLogRepo()
	pub := &mockPublisher{}
	svc := service.NewReconcileService(accounts, logs, newMockEphemeralRepo(), pub)

	if err := svc.HandleStatus(context.Background(), statusEvent(domain.ProviderNoAnswer, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := logs.logs["CA1"]
	if entry == nil || entry.Status != domain.CallMissed {
		t.Fatalf("expected missed log, got %+v", entry)
	}

	for _, p := range pub.published {
		if p.subject == events.NotifySend {
			t.Fatalf("missed call should not notify, got %+v", p.data)
		}
	}
}

func TestReconcileUnknownNumberIsNoop(t *testing.T) {
	logs := newMockCallLogRepo()
	svc := service.NewReconcileService(newMockAccountRepo(), logs, newMockEphemeralRepo(), &mockPublisher{})

	if err := svc.HandleStatus(context.Background(), statusEvent(domain.ProviderCompleted, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs.logs) != 0 {
		t.Fatal("nothing should be logged for an unknown number")
	}
}

func TestReconcileRedeliveryIsIdempotent(t *testing.T) {
	accounts := newMockAccountRepo()
	acct := activeAccount("+15559990000")
	accounts.accounts[acct.DialedNumber] = acct

	eph := newMockEphemeralRepo()
	eph.outcomes["CA1"] = &domain.OutcomeFlags{EnteredCode: "0000", Denied: true}

	logs := newMockCallLogRepo()
	pub := &mockPublisher{}
	svc := service.NewReconcileService(accounts, logs, eph, pub)

	event := statusEvent(domain.ProviderCompleted, 24)
	if err := svc.HandleStatus(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.HandleStatus(context.Background(), event); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	entries, _ := logs.ListByAccount(context.Background(), acct.ID, 100, 0)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log row after redelivery, got %d", len(entries))
	}
	// The first delivery consumed the flags, so the redelivered event must
	// keep the denied row, not rewrite it as answered.
	if entries[0].Status != domain.CallDenied {
		t.Fatalf("expected denied row to stand, got %s", entries[0].Status)
	}

	var notifications int
	for _, p := range pub.published {
		if p.subject == events.NotifySend {
			notifications++
		}
	}
	if notifications != 1 {
		t.Fatalf("expected one notification across redeliveries, got %d", notifications)
	}
}

func TestReconcileQuietHoursSuppressNotification(t *testing.T) {
	accounts := newMockAccountRepo()
	acct := activeAccount("+15559990000")
	// One-hour window starting at the current hour, so the test does not
	// depend on the wall clock.
	h := time.Now().Hour()
	acct.QuietStartHour = intPtr(h)
	acct.QuietEndHour = intPtr((h + 1) % 24)
	accounts.accounts[acct.DialedNumber] = acct

	eph := newMockEphemeralRepo()
	eph.outcomes["CA1"] = &domain.OutcomeFlags{EnteredCode: "4321", PasscodeLabel: domain.AccessCodeLabel}

	logs := newMockCallLogRepo()
	pub := &mockPublisher{}
	svc := service.NewReconcileService(accounts, logs, eph, pub)

	if err := svc.HandleStatus(context.Background(), statusEvent(domain.ProviderCompleted, 18)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if logs.logs["CA1"] == nil {
		t.Fatal("quiet hours must not suppress the log write")
	}
	for _, p := range pub.published {
		if p.subject == events.NotifySend {
			t.Fatalf("expected notification suppressed during quiet hours, got %+v", p.data)
		}
	}
}
