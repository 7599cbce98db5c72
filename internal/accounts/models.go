package accounts

import "time"

// Account owns callouts, contacts and batch operations.
//
// PlatformAccountSID/PlatformAuthToken identify the account at the telephony
// provider. Inbound webhooks carry the account SID in the payload and are
// authenticated against the auth token; the token must never appear in logs
// or API responses.
type Account struct {
	ID string `json:"id" db:"id"`

	PlatformAccountSID string `json:"platform_account_sid" db:"platform_account_sid"`
	PlatformAuthToken  string `json:"-" db:"platform_auth_token"`

	// DefaultCallFlowLogic is the fallback flow for calls whose participation
	// and callout do not name one.
	DefaultCallFlowLogic string `json:"default_call_flow_logic,omitempty" db:"default_call_flow_logic"`

	Metadata map[string]string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
