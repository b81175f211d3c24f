package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/audit"
)

func (t *tx) AppendAudit(ctx context.Context, r *audit.Record) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("encoding audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_log (actor, action, target_id, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	err = t.tx.QueryRowContext(ctx, query, r.Actor.String(), string(r.Action), r.TargetID, string(payload)).
		Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending audit record: %w", translate(err))
	}

	return nil
}

func (s *Store) ListAudit(ctx context.Context, filter audit.ListFilter) ([]*audit.Record, error) {
	query := `SELECT id, actor, action, target_id, payload, created_at FROM audit_log WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.Action != nil {
		query += fmt.Sprintf(" AND action = $%d", argIdx)

		args = append(args, string(*filter.Action))
		argIdx++
	}

	if filter.TargetID != "" {
		query += fmt.Sprintf(" AND target_id = $%d", argIdx)

		args = append(args, filter.TargetID)
		argIdx++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	var records []*audit.Record

	for rows.Next() {
		var (
			r       audit.Record
			by      string
			action  string
			payload []byte
		)

		if err := rows.Scan(&r.ID, &by, &action, &r.TargetID, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}

		if r.Actor, err = actor.Parse(by); err != nil {
			return nil, fmt.Errorf("audit record %s: %w", r.ID, err)
		}

		if err := json.Unmarshal(payload, &r.Payload); err != nil {
			return nil, fmt.Errorf("decoding audit payload %s: %w", r.ID, err)
		}

		r.Action = audit.Action(action)
		records = append(records, &r)
	}

	return records, rows.Err()
}
