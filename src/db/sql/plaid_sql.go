package db

import (
	"context"
	"fmt"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"

	"github.com/jackc/pgx/v5"
)

const itemColumns = `id, user_id, access_token, item_id, institution_id, institution_name, status, sync_cursor, created_at`

func scanItem(row pgx.Row) (models.PlaidItem, error) {
	var item models.PlaidItem
	err := row.Scan(&item.ID, &item.UserID, &item.AccessToken, &item.ItemID, &item.InstitutionID,
		&item.InstitutionName, &item.Status, &item.SyncCursor, &item.CreatedAt)
	return item, err
}

func SavePlaidItemSQL(ctx context.Context, q Querier, item *models.PlaidItem) (*models.PlaidItem, error) {
	status := item.Status
	if status == "" {
		status = "active"
	}
	query := `
		INSERT INTO plaid_items (user_id, access_token, item_id, institution_id, institution_name, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + itemColumns
	created, err := scanItem(q.QueryRow(ctx, query, item.UserID, item.AccessToken, item.ItemID, item.InstitutionID,
		item.InstitutionName, status))
	if isUniqueViolation(err) {
		return nil, ledger.Conflict("plaid_item", "item %q is already linked", item.ItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("save plaid item: %w", err)
	}
	return &created, nil
}

func GetPlaidItemsSQL(ctx context.Context, q Querier, userID int64) ([]models.PlaidItem, error) {
	query := `SELECT ` + itemColumns + ` FROM plaid_items WHERE user_id = $1 ORDER BY id`

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list plaid items: %w", err)
	}
	defer rows.Close()

	var items []models.PlaidItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func GetPlaidItemSQL(ctx context.Context, q Querier, userID, id int64) (*models.PlaidItem, error) {
	query := `SELECT ` + itemColumns + ` FROM plaid_items WHERE id = $1 AND user_id = $2`
	item, err := scanItem(q.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, notFound(err, "plaid_item", id)
	}
	return &item, nil
}

// GetPlaidItemByItemIDSQL looks an item up by Plaid's id. Webhooks carry no
// user, so this is the one unscoped lookup.
func GetPlaidItemByItemIDSQL(ctx context.Context, q Querier, itemID string) (*models.PlaidItem, error) {
	query := `SELECT ` + itemColumns + ` FROM plaid_items WHERE item_id = $1`
	item, err := scanItem(q.QueryRow(ctx, query, itemID))
	if err != nil {
		return nil, notFoundBy(err, "plaid_item", "item %q not found", itemID)
	}
	return &item, nil
}

func UpdateSyncCursorSQL(ctx context.Context, q Querier, userID, id int64, cursor string) error {
	query := `UPDATE plaid_items SET sync_cursor = $3 WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID, cursor)
	return affected(tag, err, "plaid_item", id)
}

// DeletePlaidItemSQL keeps imported accounts; their item_id is set null.
func DeletePlaidItemSQL(ctx context.Context, q Querier, userID, id int64) error {
	query := `DELETE FROM plaid_items WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID)
	return affected(tag, err, "plaid_item", id)
}

func (s *Store) CreateItem(ctx context.Context, item *models.PlaidItem) (*models.PlaidItem, error) {
	return SavePlaidItemSQL(ctx, s.pool, item)
}

func (s *Store) ListItems(ctx context.Context, userID int64) ([]models.PlaidItem, error) {
	return GetPlaidItemsSQL(ctx, s.pool, userID)
}

func (s *Store) GetItem(ctx context.Context, userID, id int64) (*models.PlaidItem, error) {
	return GetPlaidItemSQL(ctx, s.pool, userID, id)
}

func (s *Store) FindItemByExternalID(ctx context.Context, itemID string) (*models.PlaidItem, error) {
	return GetPlaidItemByItemIDSQL(ctx, s.pool, itemID)
}

func (s *Store) UpdateItemCursor(ctx context.Context, userID, id int64, cursor string) error {
	return UpdateSyncCursorSQL(ctx, s.pool, userID, id, cursor)
}

func (s *Store) DeleteItem(ctx context.Context, userID, id int64) error {
	return DeletePlaidItemSQL(ctx, s.pool, userID, id)
}
