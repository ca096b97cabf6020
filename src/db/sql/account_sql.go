package db

import (
	"context"
	"fmt"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, user_id, item_id, external_id, name, official_name, mask, type, subtype,
	balance, available_balance, just_watching, created_at, updated_at`

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserID, &a.ItemID, &a.ExternalID, &a.Name, &a.OfficialName, &a.Mask, &a.Type, &a.Subtype,
		&a.Balance, &a.AvailableBalance, &a.JustWatching, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func GetAccountsSQL(ctx context.Context, q Querier, userID int64) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY id`

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func GetAccountSQL(ctx context.Context, q Querier, userID, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND user_id = $2`
	a, err := scanAccount(q.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, notFound(err, "account", id)
	}
	return &a, nil
}

func GetAccountByExternalIDSQL(ctx context.Context, q Querier, userID int64, externalID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND external_id = $2 AND external_id <> ''`
	a, err := scanAccount(q.QueryRow(ctx, query, userID, externalID))
	if err != nil {
		return nil, notFoundBy(err, "account", "external id %q not found", externalID)
	}
	return &a, nil
}

func CreateAccountSQL(ctx context.Context, q Querier, a *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (user_id, item_id, external_id, name, official_name, mask, type, subtype,
			balance, available_balance, just_watching)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + accountColumns
	created, err := scanAccount(q.QueryRow(ctx, query, a.UserID, a.ItemID, a.ExternalID, a.Name, a.OfficialName, a.Mask,
		a.Type, a.Subtype, a.Balance, a.AvailableBalance, a.JustWatching))
	if isUniqueViolation(err) {
		return nil, ledger.Conflict("account", "external id %q already exists", a.ExternalID)
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &created, nil
}

func UpdateAccountSQL(ctx context.Context, q Querier, a *models.Account) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET item_id = $3, external_id = $4, name = $5, official_name = $6, mask = $7, type = $8, subtype = $9,
			balance = $10, available_balance = $11, just_watching = $12, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + accountColumns
	updated, err := scanAccount(q.QueryRow(ctx, query, a.ID, a.UserID, a.ItemID, a.ExternalID, a.Name, a.OfficialName,
		a.Mask, a.Type, a.Subtype, a.Balance, a.AvailableBalance, a.JustWatching))
	if err != nil {
		return nil, notFound(err, "account", a.ID)
	}
	return &updated, nil
}

func AdjustAccountBalanceSQL(ctx context.Context, q Querier, userID, id int64, delta models.Cents) error {
	query := `UPDATE accounts SET balance = balance + $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID, delta)
	return affected(tag, err, "account", id)
}

func (tx *Tx) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return GetAccountsSQL(ctx, tx.q, tx.userID)
}

func (tx *Tx) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	return GetAccountSQL(ctx, tx.q, tx.userID, id)
}

func (tx *Tx) GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	return GetAccountByExternalIDSQL(ctx, tx.q, tx.userID, externalID)
}

func (tx *Tx) CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	in := *a
	in.UserID = tx.userID
	return CreateAccountSQL(ctx, tx.q, &in)
}

func (tx *Tx) UpdateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	in := *a
	in.UserID = tx.userID
	return UpdateAccountSQL(ctx, tx.q, &in)
}

func (tx *Tx) AdjustAccountBalance(ctx context.Context, id int64, delta models.Cents) error {
	return AdjustAccountBalanceSQL(ctx, tx.q, tx.userID, id, delta)
}
