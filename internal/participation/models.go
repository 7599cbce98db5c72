package participation

import "time"

// CalloutParticipation binds one contact to one callout and owns that
// contact's phone call attempts for the campaign.
//
// Uniqueness invariants (also database unique indexes):
//   - one participation per (callout, contact)
//   - one participation per (callout, msisdn)
//
// Deletion is restricted while phone calls exist.
type CalloutParticipation struct {
	ID        string `json:"id" db:"id"`
	CalloutID string `json:"callout_id" db:"callout_id"`
	ContactID string `json:"contact_id" db:"contact_id"`

	// CalloutPopulationID references the population batch operation that
	// enrolled this contact, when one did.
	CalloutPopulationID string `json:"callout_population_id,omitempty" db:"callout_population_id"`

	// Msisdn is the number dialed for this campaign. Defaults to the
	// contact's profile msisdn at enrollment; may differ from it.
	Msisdn string `json:"msisdn" db:"msisdn"`

	// CallFlowLogic overrides the callout's flow for this participation.
	CallFlowLogic string `json:"call_flow_logic,omitempty" db:"call_flow_logic"`

	Metadata map[string]string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Filter is the attribute filter over participations. Set fields combine
// conjunctively; targeting predicates compose with it as set intersections.
type Filter struct {
	CalloutID           string
	ContactID           string
	CalloutPopulationID string
	CallFlowLogic       string
	Metadata            map[string]string
}

func (f Filter) Matches(p CalloutParticipation) bool {
	if f.CalloutID != "" && p.CalloutID != f.CalloutID {
		return false
	}
	if f.ContactID != "" && p.ContactID != f.ContactID {
		return false
	}
	if f.CalloutPopulationID != "" && p.CalloutPopulationID != f.CalloutPopulationID {
		return false
	}
	if f.CallFlowLogic != "" && p.CallFlowLogic != f.CallFlowLogic {
		return false
	}
	for k, v := range f.Metadata {
		if p.Metadata[k] != v {
			return false
		}
	}
	return true
}
