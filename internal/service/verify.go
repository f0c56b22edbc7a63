package service

import (
	"context"

	"github.com/doorlink/doorlink/internal/domain"
	"github.com/doorlink/doorlink/internal/repo/postgres"
	"github.com/doorlink/doorlink/internal/repo/redisstore"
	"github.com/doorlink/doorlink/pkg/config"
	"github.com/doorlink/doorlink/pkg/logger"
)

// VerifyService judges the code a caller entered at the gateway's prompt.
// It leaves outcome flags behind for the reconciler instead of writing the
// durable log itself: only the provider's terminal event knows how the
// call actually ended.
type VerifyService interface {
	HandleFollowUp(ctx context.Context, event *domain.CallEvent) domain.Outcome
}

type verifyService struct {
	accounts   postgres.AccountRepository
	ephemeral  redisstore.EphemeralRepository
	rateLimits redisstore.RateLimitRepository
	cfg        *config.Config
}

func NewVerifyService(
	accounts postgres.AccountRepository,
	ephemeral redisstore.EphemeralRepository,
	rateLimits redisstore.RateLimitRepository,
	cfg *config.Config,
) VerifyService {
	return &verifyService{
		accounts:   accounts,
		ephemeral:  ephemeral,
		rateLimits: rateLimits,
		cfg:        cfg,
	}
}

func (s *verifyService) HandleFollowUp(ctx context.Context, event *domain.CallEvent) domain.Outcome {
	entered := event.EnteredCode()

	// The limiter gates before any comparison work and regardless of which
	// account is targeted; it guards the caller number, not the door.
	limit, err := s.rateLimits.Check(ctx, event.From)
	if err != nil {
		logger.WarnContext(ctx, "Rate limit check errored, allowing attempt", "error", err)
	} else if limit.Limited {
		logger.WarnContext(ctx, "Caller rate limited",
			"caller", event.From, "reset_at", limit.ResetAt)
		s.leaveOutcome(ctx, event.CallSID, &domain.OutcomeFlags{EnteredCode: entered, Denied: true})
		return domain.Outcome{Kind: domain.OutcomeRateLimited}
	}

	vc, err := s.ephemeral.GetContext(ctx, event.CallSID)
	if err != nil {
		// Fail closed: unlocking without the context would mean unlocking
		// blind.
		logger.ErrorContext(ctx, "Failed to load verification context", "error", err)
		return domain.Outcome{Kind: domain.OutcomeSessionExpired}
	}
	if vc == nil {
		return domain.Outcome{Kind: domain.OutcomeSessionExpired}
	}

	matchLabel, passcodeID := match(vc, entered)
	if matchLabel == "" {
		s.leaveOutcome(ctx, event.CallSID, &domain.OutcomeFlags{EnteredCode: entered, Denied: true})
		s.deleteContext(ctx, event.CallSID)
		return domain.Outcome{Kind: domain.OutcomeInvalidCode}
	}

	if passcodeID != 0 {
		if err := s.accounts.IncrementPasscodeUsage(ctx, passcodeID); err != nil {
			logger.ErrorContext(ctx, "Failed to increment passcode usage",
				"passcode_id", passcodeID, "error", err)
		}
	}

	// A correct code should not count against the limiter going forward.
	if err := s.rateLimits.Reset(ctx, event.From); err != nil {
		logger.WarnContext(ctx, "Failed to reset rate limit", "caller", event.From, "error", err)
	}

	s.leaveOutcome(ctx, event.CallSID, &domain.OutcomeFlags{EnteredCode: entered, PasscodeLabel: matchLabel})
	s.deleteContext(ctx, event.CallSID)

	return domain.Outcome{Kind: domain.OutcomeAutoUnlock, DoorCode: vc.DoorCode}
}

// match returns the matched label ("Access Code" or the passcode label)
// and the passcode id when a guest passcode matched. The access code is
// always checked first; passcodes are scanned in list order.
func match(vc *domain.VerificationContext, entered string) (string, int64) {
	if entered == "" {
		return "", 0
	}
	if vc.AccessCode != "" && domain.NormalizeCode(vc.AccessCode) == entered {
		return domain.AccessCodeLabel, 0
	}
	for _, p := range vc.Passcodes {
		if domain.NormalizeCode(p.Code) == entered {
			return p.Label, p.ID
		}
	}
	return "", 0
}

func (s *verifyService) leaveOutcome(ctx context.Context, callSID string, flags *domain.OutcomeFlags) {
	if err := s.ephemeral.PutOutcome(ctx, callSID, flags, s.cfg.Verify.OutcomeTTL); err != nil {
		logger.ErrorContext(ctx, "Failed to store outcome flags", "call_sid", callSID, "error", err)
	}
}

func (s *verifyService) deleteContext(ctx context.Context, callSID string) {
	if err := s.ephemeral.DeleteContext(ctx, callSID); err != nil {
		logger.WarnContext(ctx, "Failed to delete verification context", "call_sid", callSID, "error", err)
	}
}
