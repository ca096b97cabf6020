package db

import (
	"context"
	"fmt"
	"strings"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `t.id, t.user_id, t.account_id, t.envelope_id, t.external_id, t.amount, t.description,
	t.merchant_name, t.category, t.date, t.cleared, t.approved, t.is_manual, t.pending, t.flag_color,
	t.created_at, t.updated_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.EnvelopeID, &t.ExternalID, &t.Amount, &t.Description,
		&t.MerchantName, &t.Category, &t.Date, &t.Cleared, &t.Approved, &t.IsManual, &t.Pending, &t.FlagColor,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// GetTransactionsSQL lists a user's transactions newest first.
func GetTransactionsSQL(ctx context.Context, q Querier, userID int64, f ledger.TransactionFilter) ([]models.Transaction, error) {
	where := []string{"t.user_id = $1"}
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Period != nil {
		start := f.Period.Start()
		where = append(where, "t.date >= "+arg(start)+" AND t.date < "+arg(f.Period.Next().Start()))
	}
	if f.AccountID != nil {
		where = append(where, "t.account_id = "+arg(*f.AccountID))
	}
	if f.EnvelopeID != nil {
		where = append(where, "t.envelope_id = "+arg(*f.EnvelopeID))
	}
	if f.Category != "" {
		where = append(where, "LOWER(TRIM(t.category)) = LOWER(TRIM("+arg(f.Category)+"))")
	}
	if f.OutflowsOnly {
		where = append(where, "t.amount < 0")
	}
	join := ""
	if f.AccountType != "" {
		join = " JOIN accounts a ON a.id = t.account_id"
		where = append(where, "a.type = "+arg(string(f.AccountType)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions t` + join +
		` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY t.date DESC, t.id DESC`
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func GetTransactionSQL(ctx context.Context, q Querier, userID, id int64) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.id = $1 AND t.user_id = $2`
	t, err := scanTransaction(q.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return &t, nil
}

func GetTransactionByExternalIDSQL(ctx context.Context, q Querier, userID int64, externalID string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t
		WHERE t.user_id = $1 AND t.external_id = $2 AND t.external_id <> ''`
	t, err := scanTransaction(q.QueryRow(ctx, query, userID, externalID))
	if err != nil {
		return nil, notFoundBy(err, "transaction", "external id %q not found", externalID)
	}
	return &t, nil
}

func CreateTransactionSQL(ctx context.Context, q Querier, t *models.Transaction) (*models.Transaction, error) {
	query := `
		WITH t AS (
			INSERT INTO transactions (user_id, account_id, envelope_id, external_id, amount, description,
				merchant_name, category, date, cleared, approved, is_manual, pending, flag_color)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING *
		)
		SELECT ` + transactionColumns + ` FROM t`
	created, err := scanTransaction(q.QueryRow(ctx, query, t.UserID, t.AccountID, t.EnvelopeID, t.ExternalID, t.Amount,
		t.Description, t.MerchantName, t.Category, t.Date, t.Cleared, t.Approved, t.IsManual, t.Pending, t.FlagColor))
	if isUniqueViolation(err) {
		return nil, ledger.Conflict("transaction", "external id %q already exists", t.ExternalID)
	}
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return &created, nil
}

func UpdateTransactionSQL(ctx context.Context, q Querier, t *models.Transaction) (*models.Transaction, error) {
	query := `
		WITH t AS (
			UPDATE transactions
			SET account_id = $3, envelope_id = $4, amount = $5, description = $6, merchant_name = $7,
				category = $8, date = $9, cleared = $10, approved = $11, pending = $12, flag_color = $13,
				updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING *
		)
		SELECT ` + transactionColumns + ` FROM t`
	updated, err := scanTransaction(q.QueryRow(ctx, query, t.ID, t.UserID, t.AccountID, t.EnvelopeID, t.Amount,
		t.Description, t.MerchantName, t.Category, t.Date, t.Cleared, t.Approved, t.Pending, t.FlagColor))
	if err != nil {
		return nil, notFound(err, "transaction", t.ID)
	}
	return &updated, nil
}

// DeleteTransactionSQL relies on ON DELETE SET NULL to detach transfers.
func DeleteTransactionSQL(ctx context.Context, q Querier, userID, id int64) error {
	query := `DELETE FROM transactions WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID)
	return affected(tag, err, "transaction", id)
}

func (tx *Tx) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]models.Transaction, error) {
	return GetTransactionsSQL(ctx, tx.q, tx.userID, f)
}

func (tx *Tx) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return GetTransactionSQL(ctx, tx.q, tx.userID, id)
}

func (tx *Tx) GetTransactionByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	return GetTransactionByExternalIDSQL(ctx, tx.q, tx.userID, externalID)
}

func (tx *Tx) CreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	in := *t
	in.UserID = tx.userID
	return CreateTransactionSQL(ctx, tx.q, &in)
}

func (tx *Tx) UpdateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	in := *t
	in.UserID = tx.userID
	return UpdateTransactionSQL(ctx, tx.q, &in)
}

func (tx *Tx) DeleteTransaction(ctx context.Context, id int64) error {
	return DeleteTransactionSQL(ctx, tx.q, tx.userID, id)
}
