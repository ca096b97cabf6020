package db

import (
	"context"
	"fmt"
	"strings"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"

	"github.com/jackc/pgx/v5"
)

const transferColumns = `id, user_id, from_envelope_id, to_envelope_id, amount, reason, kind, automated,
	transaction_id, reversal_of, created_at`

func scanTransfer(row pgx.Row) (models.Transfer, error) {
	var t models.Transfer
	err := row.Scan(&t.ID, &t.UserID, &t.FromEnvelopeID, &t.ToEnvelopeID, &t.Amount, &t.Reason, &t.Kind, &t.Automated,
		&t.TransactionID, &t.ReversalOf, &t.CreatedAt)
	return t, err
}

func CreateTransferSQL(ctx context.Context, q Querier, t *models.Transfer) (*models.Transfer, error) {
	query := `
		INSERT INTO transfers (user_id, from_envelope_id, to_envelope_id, amount, reason, kind, automated,
			transaction_id, reversal_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + transferColumns
	created, err := scanTransfer(q.QueryRow(ctx, query, t.UserID, t.FromEnvelopeID, t.ToEnvelopeID, t.Amount, t.Reason,
		string(t.Kind), t.Automated, t.TransactionID, t.ReversalOf))
	if err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}
	return &created, nil
}

// GetTransfersSQL lists transfers oldest first. Nil id slices do not filter;
// empty ones match nothing.
func GetTransfersSQL(ctx context.Context, q Querier, userID int64, f ledger.TransferFilter) ([]models.Transfer, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.FromEnvelopeID != nil {
		where = append(where, "from_envelope_id = "+arg(*f.FromEnvelopeID))
	}
	if f.ToEnvelopeID != nil {
		where = append(where, "to_envelope_id = "+arg(*f.ToEnvelopeID))
	}
	if f.TransactionIDs != nil {
		where = append(where, "transaction_id = ANY("+arg(f.TransactionIDs)+")")
	}
	if f.ReversalOf != nil {
		where = append(where, "reversal_of = ANY("+arg(f.ReversalOf)+")")
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		where = append(where, "kind = ANY("+arg(kinds)+")")
	}

	query := `SELECT ` + transferColumns + ` FROM transfers WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (tx *Tx) CreateTransfer(ctx context.Context, t *models.Transfer) (*models.Transfer, error) {
	in := *t
	in.UserID = tx.userID
	return CreateTransferSQL(ctx, tx.q, &in)
}

func (tx *Tx) ListTransfers(ctx context.Context, f ledger.TransferFilter) ([]models.Transfer, error) {
	return GetTransfersSQL(ctx, tx.q, tx.userID, f)
}
