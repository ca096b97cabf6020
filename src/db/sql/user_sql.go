package db

import (
	"context"
	"fmt"
)

// GetLedgerUserIDsSQL lists every user that owns ledger data. Identities
// live with the auth provider, so this is derived from owned rows.
func GetLedgerUserIDsSQL(ctx context.Context, q Querier) ([]int64, error) {
	query := `
		SELECT user_id FROM accounts
		UNION
		SELECT user_id FROM envelopes
		UNION
		SELECT user_id FROM plaid_items
		ORDER BY user_id
	`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	return GetLedgerUserIDsSQL(ctx, s.pool)
}
