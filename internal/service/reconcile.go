package service

import (
	"context"
	"fmt"
	"time"

	"github.com/doorlink/doorlink/internal/domain"
	"github.com/doorlink/doorlink/internal/repo/postgres"
	"github.com/doorlink/doorlink/internal/repo/redisstore"
	"github.com/doorlink/doorlink/pkg/events"
	"github.com/doorlink/doorlink/pkg/logger"
)

// ReconcileService turns the provider's terminal status event plus any
// outcome flags left by the verification phase into the durable access
// log, then fires account-owner notifications.
type ReconcileService interface {
	HandleStatus(ctx context.Context, event *domain.StatusEvent) error
}

type reconcileService struct {
	accounts  postgres.AccountRepository
	callLogs  postgres.CallLogRepository
	ephemeral redisstore.EphemeralRepository
	bus       events.Publisher
	now       func() time.Time
}

func NewReconcileService(
	accounts postgres.AccountRepository,
	callLogs postgres.CallLogRepository,
	ephemeral redisstore.EphemeralRepository,
	bus events.Publisher,
) ReconcileService {
	return &reconcileService{
		accounts:  accounts,
		callLogs:  callLogs,
		ephemeral: ephemeral,
		bus:       bus,
		now:       time.Now,
	}
}

func (s *reconcileService) HandleStatus(ctx context.Context, event *domain.StatusEvent) error {
	account, err := s.accounts.GetByDialedNumber(ctx, event.To)
	if err != nil {
		return fmt.Errorf("failed to resolve account for status event: %w", err)
	}
	if account == nil {
		// Nothing to attribute.
		logger.DebugContext(ctx, "Status event for unknown number", "dialed_number", event.To)
		return nil
	}

	entry := &domain.CallLog{
		CallSID:      event.CallSID,
		AccountID:    account.ID,
		CallerNumber: event.From,
		Duration:     event.Duration,
	}

	switch event.CallStatus {
	case domain.ProviderCompleted:
		flags, err := s.ephemeral.TakeOutcome(ctx, event.CallSID)
		if err != nil {
			// Flags are a best-effort hand-off; log the call as answered
			// rather than dropping the record.
			logger.ErrorContext(ctx, "Failed to read outcome flags", "call_sid", event.CallSID, "error", err)
			flags = nil
		}
		switch {
		case flags != nil && flags.Denied:
			entry.Status = domain.CallDenied
			entry.EnteredCode = &flags.EnteredCode
		case flags != nil:
			entry.Status = domain.CallAnswered
			if flags.EnteredCode != "" {
				entry.EnteredCode = &flags.EnteredCode
			}
			if flags.PasscodeLabel != "" {
				entry.PasscodeLabel = &flags.PasscodeLabel
			}
		default:
			// No verification step ran: unconditional auto-unlock, or the
			// flags were already consumed by an earlier delivery.
			entry.Status = domain.CallAnswered
		}
	default:
		entry.Status = domain.CallMissed
	}

	created, err := s.callLogs.Upsert(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to persist call log: %w", err)
	}
	if !created {
		// Redelivered terminal event, or the gateway logged this call
		// eagerly; the existing row stands.
		logger.DebugContext(ctx, "Call already logged", "call_sid", event.CallSID)
		return nil
	}

	s.publishLogged(ctx, account, entry)
	s.notify(ctx, account, entry)
	return nil
}

func (s *reconcileService) publishLogged(ctx context.Context, account *domain.Account, entry *domain.CallLog) {
	err := s.bus.Publish(ctx, events.CallLogged, events.CallLoggedEvent{
		CallSID:      entry.CallSID,
		AccountID:    account.ID,
		CallerNumber: entry.CallerNumber,
		Status:       string(entry.Status),
		Duration:     entry.Duration,
		LoggedAt:     s.now(),
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish call logged event", "call_sid", entry.CallSID, "error", err)
	}
}

func (s *reconcileService) notify(ctx context.Context, account *domain.Account, entry *domain.CallLog) {
	if account.InQuietHours(s.now()) {
		logger.DebugContext(ctx, "Notification suppressed by quiet hours", "account_id", account.ID)
		return
	}

	var notification events.NotificationEvent
	switch entry.Status {
	case domain.CallAnswered:
		notification = events.NotificationEvent{
			Type:      events.NotifyUnlockGranted,
			Recipient: account.OwnerEmail,
			Subject:   "Door unlocked",
			Data: map[string]interface{}{
				"caller_number": entry.CallerNumber,
				"account_name":  account.Name,
				"passcode":      derefOr(entry.PasscodeLabel, ""),
			},
		}
	case domain.CallDenied:
		notification = events.NotificationEvent{
			Type:      events.NotifyWrongCode,
			Recipient: account.OwnerEmail,
			Subject:   "A caller entered a wrong code",
			Data: map[string]interface{}{
				"caller_number": entry.CallerNumber,
				"account_name":  account.Name,
				"entered_code":  derefOr(entry.EnteredCode, ""),
			},
		}
	default:
		return
	}

	if err := s.bus.Publish(ctx, events.NotifySend, notification); err != nil {
		logger.ErrorContext(ctx, "Failed to publish notification", "call_sid", entry.CallSID, "error", err)
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
