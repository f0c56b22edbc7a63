package domain

import (
	"strings"
	"time"
)

// CallLogStatus is the final disposition of an inbound call.
type CallLogStatus string

const (
	CallAnswered  CallLogStatus = "answered"
	CallDenied    CallLogStatus = "denied"
	CallForwarded CallLogStatus = "forwarded"
	CallMissed    CallLogStatus = "missed"
	CallPaused    CallLogStatus = "paused"
)

// CallLog is the durable access-log record. Rows are written once, keyed
// by the provider call SID, and never mutated afterwards.
type CallLog struct {
	ID            int64         `json:"id"`
	CallSID       string        `json:"call_sid"`
	AccountID     int64         `json:"account_id"`
	CallerNumber  string        `json:"caller_number"`
	Status        CallLogStatus `json:"status"`
	Duration      int           `json:"duration"`
	ForwardedTo   *string       `json:"forwarded_to,omitempty"`
	PasscodeLabel *string       `json:"passcode_label,omitempty"`
	EnteredCode   *string       `json:"entered_code,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CallEvent is an inbound voice webhook: the initial call event, or the
// follow-up carrying gathered input for the same call SID.
type CallEvent struct {
	CallSID      string
	From         string
	To           string
	Digits       string
	SpeechResult string
}

// IsFollowUp reports whether the event carries gathered caller input.
func (e *CallEvent) IsFollowUp() bool {
	return e.Digits != "" || e.SpeechResult != ""
}

// EnteredCode returns the caller's input as a single normalized code
// string, preferring keyed digits over recognized speech.
func (e *CallEvent) EnteredCode() string {
	if e.Digits != "" {
		return NormalizeCode(e.Digits)
	}
	return NormalizeCode(e.SpeechResult)
}

// NormalizeCode reduces caller input to a comparable form: trimmed,
// lowercased, with separator punctuation and the gather finish key removed.
func NormalizeCode(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "#")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', ',':
			return -1
		}
		return r
	}, s)
}

// StatusEvent is the provider's terminal call-status webhook.
type StatusEvent struct {
	CallSID    string
	From       string
	To         string
	CallStatus string
	Duration   int
	Timestamp  time.Time
}

// Provider terminal statuses.
const (
	ProviderCompleted = "completed"
	ProviderFailed    = "failed"
	ProviderNoAnswer  = "no-answer"
	ProviderBusy      = "busy"
)

// AccessCodeLabel marks an outcome matched against the account access
// code rather than a guest passcode.
const AccessCodeLabel = "Access Code"

// PasscodeSnapshot is the slice of a passcode captured into a
// VerificationContext; matching runs against the snapshot, not live rows.
type PasscodeSnapshot struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Label string `json:"label"`
}

// VerificationContext links a call SID to everything needed to judge the
// caller's entered code. Short-lived; expiry means the caller abandoned
// the prompt.
type VerificationContext struct {
	CallSID      string             `json:"call_sid"`
	AccountID    int64              `json:"account_id"`
	CallerNumber string             `json:"caller_number"`
	AccessCode   string             `json:"access_code,omitempty"`
	DoorCode     string             `json:"door_code"`
	Passcodes    []PasscodeSnapshot `json:"passcodes,omitempty"`
}

// OutcomeFlags is the hand-off from the verification phase to the
// reconciliation phase, consumed exactly once.
type OutcomeFlags struct {
	EnteredCode   string `json:"entered_code"`
	Denied        bool   `json:"denied,omitempty"`
	PasscodeLabel string `json:"passcode_label,omitempty"`
}

// OutcomeKind names the decision a voice webhook resolves to.
type OutcomeKind string

const (
	OutcomeNotConfigured   OutcomeKind = "not_configured"
	OutcomeServiceDisabled OutcomeKind = "service_disabled"
	OutcomeForward         OutcomeKind = "forward"
	OutcomePaused          OutcomeKind = "paused"
	OutcomePrompt          OutcomeKind = "prompt"
	OutcomeAutoUnlock      OutcomeKind = "auto_unlock"
	OutcomeSessionExpired  OutcomeKind = "session_expired"
	OutcomeInvalidCode     OutcomeKind = "invalid_code"
	OutcomeRateLimited     OutcomeKind = "rate_limited"
	OutcomeError           OutcomeKind = "error"
)

// Outcome is the tagged decision handed to the response renderer.
type Outcome struct {
	Kind           OutcomeKind
	DoorCode       string   // auto_unlock
	ForwardTo      []string // forward
	AccessCodeFlow bool     // prompt wording: access code vs guest passcode
}
