package targeting

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"callout-engine/internal/participation"
)

// PostgresStore evaluates targeting queries in SQL so selection scales with an
// index scan instead of loading every attempt into memory.
//
// The "most recent attempt" predicate is the classic anti-join: a phone call
// is the latest for its participation when no other call for the same
// participation has a strictly later created_at, with equal timestamps broken
// by the greatest id.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Select(ctx context.Context, q Query) ([]participation.CalloutParticipation, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []participation.CalloutParticipation
	for rows.Next() {
		var (
			p        participation.CalloutParticipation
			metadata []byte
			created  time.Time
			updated  time.Time
		)
		if err := rows.Scan(
			&p.ID, &p.CalloutID, &p.ContactID,
			&p.CalloutPopulationID,
			&p.Msisdn, &p.CallFlowLogic, &metadata,
			&created, &updated,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
				return nil, err
			}
		}
		p.CreatedAt = created.UTC()
		p.UpdatedAt = updated.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// buildSelect renders the query and its positional args.
func buildSelect(q Query) (string, []any, error) {
	var (
		where []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Attrs.CalloutID != "" {
		where = append(where, "cp.callout_id = "+arg(q.Attrs.CalloutID))
	}
	if q.Attrs.ContactID != "" {
		where = append(where, "cp.contact_id = "+arg(q.Attrs.ContactID))
	}
	if q.Attrs.CalloutPopulationID != "" {
		where = append(where, "cp.callout_population_id = "+arg(q.Attrs.CalloutPopulationID))
	}
	if q.Attrs.CallFlowLogic != "" {
		where = append(where, "cp.call_flow_logic = "+arg(q.Attrs.CallFlowLogic))
	}
	if len(q.Attrs.Metadata) > 0 {
		b, err := json.Marshal(q.Attrs.Metadata)
		if err != nil {
			return "", nil, err
		}
		where = append(where, "cp.metadata @> "+arg(string(b))+"::jsonb")
	}

	const noPhoneCalls = `NOT EXISTS (
		SELECT 1 FROM phone_calls pc WHERE pc.callout_participation_id = cp.id
	)`

	lastAttemptIn := func(statuses []string) string {
		return `EXISTS (
		SELECT 1 FROM phone_calls pc
		LEFT OUTER JOIN phone_calls future
			ON future.callout_participation_id = pc.callout_participation_id
			AND (pc.created_at < future.created_at
				OR (pc.created_at = future.created_at AND pc.id < future.id))
		WHERE pc.callout_participation_id = cp.id
			AND future.id IS NULL
			AND pc.status = ANY(` + arg(pqStringArray(statuses)) + `)
	)`
	}

	if q.NoPhoneCalls {
		where = append(where, noPhoneCalls)
	}
	if q.HasPhoneCalls {
		where = append(where, `EXISTS (
		SELECT 1 FROM phone_calls pc WHERE pc.callout_participation_id = cp.id
	)`)
	}
	if len(q.LastAttemptStatuses) > 0 {
		where = append(where, lastAttemptIn(statusStrings(q.LastAttemptStatuses)))
	}
	if len(q.NoAttemptsOrLastAttempt) > 0 {
		cond := lastAttemptIn(statusStrings(q.NoAttemptsOrLastAttempt))
		where = append(where, "("+noPhoneCalls+" OR "+cond+")")
	}
	if q.MaxPhoneCallsCount != nil {
		where = append(where, `(
		SELECT COUNT(*) FROM phone_calls pc WHERE pc.callout_participation_id = cp.id
	) < `+arg(*q.MaxPhoneCallsCount))
	}

	query := `SELECT cp.id, cp.callout_id, cp.contact_id,
		COALESCE(cp.callout_population_id, ''),
		cp.msisdn, COALESCE(cp.call_flow_logic, ''), cp.metadata,
		cp.created_at, cp.updated_at
	FROM callout_participations cp`
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, "\n\tAND ")
	}
	query += "\n\tORDER BY cp.created_at, cp.id"
	return query, args, nil
}

func statusStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// pqStringArray renders a text[] literal for ANY(). Values are statuses from
// a fixed internal enum, never caller input.
func pqStringArray(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}"
}
