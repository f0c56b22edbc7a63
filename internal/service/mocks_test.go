package service_test

import (
	"context"
	"time"

	"github.com/doorlink/doorlink/internal/domain"
	"github.com/doorlink/doorlink/pkg/config"
)

// ---------- Mocks ----------

type mockAccountRepo struct {
	accounts     map[string]*domain.Account // dialed number -> account
	getErr       error
	incremented  []int64
	incrementErr error
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[string]*domain.Account)}
}

func (m *mockAccountRepo) GetByDialedNumber(_ context.Context, number string) (*domain.Account, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.accounts[number], nil
}

func (m *mockAccountRepo) IncrementPasscodeUsage(_ context.Context, passcodeID int64) error {
	if m.incrementErr != nil {
		return m.incrementErr
	}
	m.incremented = append(m.incremented, passcodeID)
	return nil
}

func (m *mockAccountRepo) UpdateSubscriptionByCustomer(_ context.Context, _ string, _ domain.SubscriptionStatus) (bool, error) {
	return false, nil
}

type mockCallLogRepo struct {
	logs      map[string]*domain.CallLog // call SID -> row
	order     []string
	upsertErr error
}

func newMockCallLogRepo() *mockCallLogRepo {
	return &mockCallLogRepo{logs: make(map[string]*domain.CallLog)}
}

func (m *mockCallLogRepo) Upsert(_ context.Context, entry *domain.CallLog) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	if existing, ok := m.logs[entry.CallSID]; ok {
		if entry.Duration > existing.Duration {
			existing.Duration = entry.Duration
		}
		return false, nil
	}
	copied := *entry
	m.logs[entry.CallSID] = &copied
	m.order = append(m.order, entry.CallSID)
	return true, nil
}

func (m *mockCallLogRepo) ListByAccount(_ context.Context, accountID int64, _, _ int) ([]domain.CallLog, error) {
	var out []domain.CallLog
	for _, sid := range m.order {
		if m.logs[sid].AccountID == accountID {
			out = append(out, *m.logs[sid])
		}
	}
	return out, nil
}

type mockEphemeralRepo struct {
	contexts map[string]*domain.VerificationContext
	outcomes map[string]*domain.OutcomeFlags

	putContextErr  error
	getContextErr  error
	putOutcomeErr  error
	takeOutcomeErr error
}

func newMockEphemeralRepo() *mockEphemeralRepo {
	return &mockEphemeralRepo{
		contexts: make(map[string]*domain.VerificationContext),
		outcomes: make(map[string]*domain.OutcomeFlags),
	}
}

func (m *mockEphemeralRepo) PutContext(_ context.Context, vc *domain.VerificationContext, _ time.Duration) error {
	if m.putContextErr != nil {
		return m.putContextErr
	}
	m.contexts[vc.CallSID] = vc
	return nil
}

func (m *mockEphemeralRepo) GetContext(_ context.Context, callSID string) (*domain.VerificationContext, error) {
	if m.getContextErr != nil {
		return nil, m.getContextErr
	}
	return m.contexts[callSID], nil
}

func (m *mockEphemeralRepo) DeleteContext(_ context.Context, callSID string) error {
	delete(m.contexts, callSID)
	return nil
}

func (m *mockEphemeralRepo) PutOutcome(_ context.Context, callSID string, flags *domain.OutcomeFlags, _ time.Duration) error {
	if m.putOutcomeErr != nil {
		return m.putOutcomeErr
	}
	m.outcomes[callSID] = flags
	return nil
}

func (m *mockEphemeralRepo) TakeOutcome(_ context.Context, callSID string) (*domain.OutcomeFlags, error) {
	if m.takeOutcomeErr != nil {
		return nil, m.takeOutcomeErr
	}
	flags := m.outcomes[callSID]
	delete(m.outcomes, callSID)
	return flags, nil
}

type mockRateLimitRepo struct {
	result   domain.RateLimitResult
	checkErr error
	checks   int
	resets   []string
}

func (m *mockRateLimitRepo) Check(_ context.Context, _ string) (domain.RateLimitResult, error) {
	m.checks++
	if m.checkErr != nil {
		return domain.RateLimitResult{}, m.checkErr
	}
	return m.result, nil
}

func (m *mockRateLimitRepo) Reset(_ context.Context, caller string) error {
	m.resets = append(m.resets, caller)
	return nil
}

type publishedEvent struct {
	subject string
	data    interface{}
}

type mockPublisher struct {
	published  []publishedEvent
	publishErr error
}

func (m *mockPublisher) Publish(_ context.Context, subject string, data interface{}) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishedEvent{subject: subject, data: data})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

// ---------- Fixtures ----------

func testConfig() *config.Config {
	return &config.Config{
		Verify: config.VerifyConfig{
			ContextTTL:      5 * time.Minute,
			OutcomeTTL:      5 * time.Minute,
			RateLimitMax:    5,
			RateLimitWindow: 15 * time.Minute,
		},
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func activeAccount(dialed string) *domain.Account {
	return &domain.Account{
		ID:                 1,
		Name:               "100 Main St",
		OwnerEmail:         "owner@example.com",
		DialedNumber:       dialed,
		SubscriptionStatus: domain.SubscriptionActive,
		DoorCode:           strPtr("1"),
	}
}
