package domain

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

func ParseSubscriptionStatus(s string) (SubscriptionStatus, bool) {
	switch SubscriptionStatus(s) {
	case SubscriptionActive, SubscriptionTrialing, SubscriptionPastDue, SubscriptionCanceled:
		return SubscriptionStatus(s), true
	default:
		return "", false
	}
}

// InGoodStanding reports whether the subscription still entitles the
// account to call handling.
func (s SubscriptionStatus) InGoodStanding() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

type Account struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	OwnerEmail         string             `json:"owner_email"`
	DialedNumber       string             `json:"dialed_number"`
	StripeCustomerID   *string            `json:"stripe_customer_id,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	Paused             bool               `json:"paused"`
	PauseForwardNumber *string            `json:"pause_forward_number,omitempty"`
	DoorCode           *string            `json:"door_code,omitempty"`
	AccessCode         *string            `json:"access_code,omitempty"`
	QuietStartHour     *int               `json:"quiet_start_hour,omitempty"`
	QuietEndHour       *int               `json:"quiet_end_hour,omitempty"`
	Passcodes          []Passcode         `json:"passcodes,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// EligiblePasscodes returns the passcodes a caller could match right now,
// preserving list order.
func (a *Account) EligiblePasscodes(now time.Time) []Passcode {
	var out []Passcode
	for _, p := range a.Passcodes {
		if p.Eligible(now) {
			out = append(out, p)
		}
	}
	return out
}

// RequiresVerification reports whether a caller must enter a code before
// the door code is transmitted.
func (a *Account) RequiresVerification(now time.Time) bool {
	if a.AccessCode != nil && *a.AccessCode != "" {
		return true
	}
	return len(a.EligiblePasscodes(now)) > 0
}

// InQuietHours reports whether t falls inside the account's configured
// quiet-hours window. The window may wrap past midnight (22 -> 7).
func (a *Account) InQuietHours(t time.Time) bool {
	if a.QuietStartHour == nil || a.QuietEndHour == nil {
		return false
	}
	start, end := *a.QuietStartHour, *a.QuietEndHour
	if start == end {
		return false
	}
	h := t.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

type Passcode struct {
	ID         int64      `json:"id"`
	AccountID  int64      `json:"account_id"`
	Code       string     `json:"code"`
	Label      string     `json:"label"`
	Active     bool       `json:"active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	MaxUsages  *int       `json:"max_usages,omitempty"`
	UsageCount int        `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Eligible reports whether the passcode can still be matched: active, not
// expired, and not used up.
func (p *Passcode) Eligible(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	if p.MaxUsages != nil && p.UsageCount >= *p.MaxUsages {
		return false
	}
	return true
}
