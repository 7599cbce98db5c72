package contacts

import (
	"strings"
	"time"
)

// Contact is a person reachable at a single msisdn, scoped to an account.
//
// Invariant: msisdn is unique per account. Deletion is restricted while the
// contact has callout participations.
type Contact struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`

	// Msisdn is the contact's profile phone number. Participations may dial a
	// different number for a specific campaign.
	Msisdn string `json:"msisdn" db:"msisdn"`

	Metadata    map[string]string `json:"metadata,omitempty" db:"metadata"`
	LocationIDs []string          `json:"location_ids,omitempty" db:"location_ids"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeMsisdn strips formatting noise from a dialable number.
// A leading "+" is preserved; short codes pass through untouched.
func NormalizeMsisdn(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Filter selects contacts for population jobs. Zero values mean "no
// constraint"; set fields combine conjunctively.
type Filter struct {
	AccountID string

	// Metadata entries must all match exactly.
	Metadata map[string]string

	// HasLocationIn matches contacts whose location id list overlaps the
	// given set.
	HasLocationIn []string
}

func (f Filter) Matches(c Contact) bool {
	if f.AccountID != "" && c.AccountID != f.AccountID {
		return false
	}
	for k, v := range f.Metadata {
		if c.Metadata[k] != v {
			return false
		}
	}
	if len(f.HasLocationIn) > 0 && !overlaps(c.LocationIDs, f.HasLocationIn) {
		return false
	}
	return true
}

func overlaps(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}
