package service

import (
	"context"
	"time"

	"github.com/doorlink/doorlink/internal/domain"
	"github.com/doorlink/doorlink/internal/repo/postgres"
	"github.com/doorlink/doorlink/internal/repo/redisstore"
	"github.com/doorlink/doorlink/pkg/config"
	"github.com/doorlink/doorlink/pkg/events"
	"github.com/doorlink/doorlink/pkg/logger"
)

// GatewayService decides the initial response to an inbound call: an
// immediate outcome, or a code prompt backed by a stored verification
// context. It never writes the durable log for answered calls; the
// reconciler does that once the provider reports the call finished.
type GatewayService interface {
	HandleInbound(ctx context.Context, event *domain.CallEvent) domain.Outcome
}

type gatewayService struct {
	accounts  postgres.AccountRepository
	callLogs  postgres.CallLogRepository
	ephemeral redisstore.EphemeralRepository
	bus       events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewGatewayService(
	accounts postgres.AccountRepository,
	callLogs postgres.CallLogRepository,
	ephemeral redisstore.EphemeralRepository,
	bus events.Publisher,
	cfg *config.Config,
) GatewayService {
	return &gatewayService{
		accounts:  accounts,
		callLogs:  callLogs,
		ephemeral: ephemeral,
		bus:       bus,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *gatewayService) HandleInbound(ctx context.Context, event *domain.CallEvent) domain.Outcome {
	account, err := s.accounts.GetByDialedNumber(ctx, event.To)
	if err != nil {
		logger.ErrorContext(ctx, "Account lookup failed", "dialed_number", event.To, "error", err)
		return domain.Outcome{Kind: domain.OutcomeError}
	}
	if account == nil {
		// Nothing to attribute; the terminal status event alone will
		// decide whether anything gets logged.
		return domain.Outcome{Kind: domain.OutcomeNotConfigured}
	}

	if !account.SubscriptionStatus.InGoodStanding() {
		s.notifyServiceDisabled(ctx, account, event)
		// Logged eagerly: the provider's terminal event cannot
		// distinguish "disabled" from a generic failure.
		s.writeLog(ctx, &domain.CallLog{
			CallSID:      event.CallSID,
			AccountID:    account.ID,
			CallerNumber: event.From,
			Status:       domain.CallDenied,
		})
		return domain.Outcome{Kind: domain.OutcomeServiceDisabled}
	}

	if account.Paused {
		if account.PauseForwardNumber != nil && *account.PauseForwardNumber != "" {
			forward := *account.PauseForwardNumber
			s.writeLog(ctx, &domain.CallLog{
				CallSID:      event.CallSID,
				AccountID:    account.ID,
				CallerNumber: event.From,
				Status:       domain.CallForwarded,
				ForwardedTo:  &forward,
			})
			return domain.Outcome{Kind: domain.OutcomeForward, ForwardTo: []string{forward}}
		}
		s.writeLog(ctx, &domain.CallLog{
			CallSID:      event.CallSID,
			AccountID:    account.ID,
			CallerNumber: event.From,
			Status:       domain.CallPaused,
		})
		return domain.Outcome{Kind: domain.OutcomePaused}
	}

	if account.DoorCode == nil || *account.DoorCode == "" {
		// Misconfiguration, not an access event.
		logger.WarnContext(ctx, "Account has no door code configured", "account_id", account.ID)
		return domain.Outcome{Kind: domain.OutcomeNotConfigured}
	}

	now := s.now()
	if !account.RequiresVerification(now) {
		return domain.Outcome{Kind: domain.OutcomeAutoUnlock, DoorCode: *account.DoorCode}
	}

	vc := &domain.VerificationContext{
		CallSID:      event.CallSID,
		AccountID:    account.ID,
		CallerNumber: event.From,
		DoorCode:     *account.DoorCode,
	}
	if account.AccessCode != nil {
		vc.AccessCode = *account.AccessCode
	}
	for _, p := range account.EligiblePasscodes(now) {
		vc.Passcodes = append(vc.Passcodes, domain.PasscodeSnapshot{ID: p.ID, Code: p.Code, Label: p.Label})
	}

	if err := s.ephemeral.PutContext(ctx, vc, s.cfg.Verify.ContextTTL); err != nil {
		// Fail open: a caller stuck at a prompt that can never resolve is
		// worse than skipping verification for this one call.
		logger.ErrorContext(ctx, "Failed to store verification context, unlocking without code",
			"account_id", account.ID, "error", err)
		return domain.Outcome{Kind: domain.OutcomeAutoUnlock, DoorCode: *account.DoorCode}
	}

	return domain.Outcome{
		Kind:           domain.OutcomePrompt,
		AccessCodeFlow: vc.AccessCode != "",
	}
}

func (s *gatewayService) writeLog(ctx context.Context, entry *domain.CallLog) {
	if _, err := s.callLogs.Upsert(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "Failed to write call log",
			"call_sid", entry.CallSID, "status", entry.Status, "error", err)
	}
}

func (s *gatewayService) notifyServiceDisabled(ctx context.Context, account *domain.Account, event *domain.CallEvent) {
	err := s.bus.Publish(ctx, events.NotifySend, events.NotificationEvent{
		Type:      events.NotifyServiceDisabled,
		Recipient: account.OwnerEmail,
		Subject:   "A caller reached your intercom while service was disabled",
		Data: map[string]interface{}{
			"caller_number": event.From,
			"account_name":  account.Name,
		},
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish notification", "error", err)
	}
}
