package domain_test

import (
	"testing"
	"time"

	"github.com/doorlink/doorlink/internal/domain"
)

func intPtr(i int) *int              { return &i }
func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func TestPasscodeEligible(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		p    domain.Passcode
		want bool
	}{
		{"active unlimited", domain.Passcode{Active: true}, true},
		{"inactive", domain.Passcode{Active: false}, false},
		{"expired", domain.Passcode{Active: true, ExpiresAt: timePtr(now.Add(-time.Minute))}, false},
		{"not yet expired", domain.Passcode{Active: true, ExpiresAt: timePtr(now.Add(time.Minute))}, true},
		{"usages left", domain.Passcode{Active: true, MaxUsages: intPtr(3), UsageCount: 2}, true},
		{"used up", domain.Passcode{Active: true, MaxUsages: intPtr(3), UsageCount: 3}, false},
		{"over used", domain.Passcode{Active: true, MaxUsages: intPtr(1), UsageCount: 5}, false},
	}

	for _, tc := range cases {
		if got := tc.p.Eligible(now); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRequiresVerification(t *testing.T) {
	now := time.Now()

	bare := domain.Account{DoorCode: strPtr("1")}
	if bare.RequiresVerification(now) {
		t.Error("account without codes should auto-unlock")
	}

	withAccess := domain.Account{DoorCode: strPtr("1"), AccessCode: strPtr("4321")}
	if !withAccess.RequiresVerification(now) {
		t.Error("access code should require verification")
	}

	withPasscode := domain.Account{
		DoorCode:  strPtr("1"),
		Passcodes: []domain.Passcode{{Active: true, Code: "1111"}},
	}
	if !withPasscode.RequiresVerification(now) {
		t.Error("eligible passcode should require verification")
	}

	withDeadPasscode := domain.Account{
		DoorCode:  strPtr("1"),
		Passcodes: []domain.Passcode{{Active: true, Code: "1111", MaxUsages: intPtr(1), UsageCount: 1}},
	}
	if withDeadPasscode.RequiresVerification(now) {
		t.Error("exhausted passcode alone should not require verification")
	}
}

func TestEligiblePasscodesPreservesOrder(t *testing.T) {
	now := time.Now()
	a := domain.Account{
		Passcodes: []domain.Passcode{
			{ID: 1, Active: true},
			{ID: 2, Active: false},
			{ID: 3, Active: true},
		},
	}

	got := a.EligiblePasscodes(now)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected eligible set %+v", got)
	}
}

func TestInQuietHours(t *testing.T) {
	at := func(hour int) time.Time {
		return time.Date(2026, 3, 10, hour, 30, 0, 0, time.UTC)
	}

	a := domain.Account{QuietStartHour: intPtr(22), QuietEndHour: intPtr(7)}
	if !a.InQuietHours(at(23)) || !a.InQuietHours(at(3)) {
		t.Error("wrap-around window should cover late night")
	}
	if a.InQuietHours(at(12)) {
		t.Error("noon is outside the 22-7 window")
	}

	day := domain.Account{QuietStartHour: intPtr(9), QuietEndHour: intPtr(17)}
	if !day.InQuietHours(at(12)) || day.InQuietHours(at(18)) {
		t.Error("non-wrapping window misjudged")
	}

	none := domain.Account{}
	if none.InQuietHours(at(3)) {
		t.Error("unset window should never suppress")
	}
}

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		" 4321 ":    "4321",
		"4321#":     "4321",
		"4 3 2 1":   "4321",
		"43-21.":    "4321",
		"ABCD":      "abcd",
		"4, 3, 2 1": "4321",
	}
	for in, want := range cases {
		if got := domain.NormalizeCode(in); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCallEventEnteredCodePrefersDigits(t *testing.T) {
	e := domain.CallEvent{Digits: "1234", SpeechResult: "9999"}
	if got := e.EnteredCode(); got != "1234" {
		t.Fatalf("expected digits preferred, got %q", got)
	}

	speechOnly := domain.CallEvent{SpeechResult: "one two"}
	if got := speechOnly.EnteredCode(); got != "onetwo" {
		t.Fatalf("expected normalized speech, got %q", got)
	}

	if !e.IsFollowUp() {
		t.Error("event with digits is a follow-up")
	}
	initial := domain.CallEvent{CallSID: "CA1"}
	if initial.IsFollowUp() {
		t.Error("event without input is not a follow-up")
	}
}
