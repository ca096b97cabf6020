package db

import (
	"context"
	"fmt"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"

	"github.com/jackc/pgx/v5"
)

const envelopeColumns = `id, user_id, name, category_group, allocated, spent, month, year, created_at, updated_at`

func scanEnvelope(row pgx.Row) (models.Envelope, error) {
	var e models.Envelope
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.CategoryGroup, &e.Allocated, &e.Spent, &e.Month, &e.Year,
		&e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func GetEnvelopesForPeriodSQL(ctx context.Context, q Querier, userID int64, p models.Period) ([]models.Envelope, error) {
	query := `SELECT ` + envelopeColumns + ` FROM envelopes WHERE user_id = $1 AND year = $2 AND month = $3 ORDER BY id`

	rows, err := q.Query(ctx, query, userID, p.Year, int(p.Month))
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	defer rows.Close()

	var envelopes []models.Envelope
	for rows.Next() {
		e, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, e)
	}
	return envelopes, rows.Err()
}

func GetEnvelopeByIDSQL(ctx context.Context, q Querier, userID, id int64) (*models.Envelope, error) {
	query := `SELECT ` + envelopeColumns + ` FROM envelopes WHERE id = $1 AND user_id = $2`
	e, err := scanEnvelope(q.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, notFound(err, "envelope", id)
	}
	return &e, nil
}

// GetEnvelopeByNameSQL matches names the way the unique index does.
func GetEnvelopeByNameSQL(ctx context.Context, q Querier, userID int64, name string, p models.Period) (*models.Envelope, error) {
	query := `
		SELECT ` + envelopeColumns + `
		FROM envelopes
		WHERE user_id = $1 AND LOWER(TRIM(name)) = LOWER(TRIM($2)) AND year = $3 AND month = $4
	`
	e, err := scanEnvelope(q.QueryRow(ctx, query, userID, name, p.Year, int(p.Month)))
	if err != nil {
		return nil, notFoundBy(err, "envelope", "%q not found in %s", name, p)
	}
	return &e, nil
}

func CreateEnvelopeSQL(ctx context.Context, q Querier, e *models.Envelope) (*models.Envelope, error) {
	query := `
		INSERT INTO envelopes (user_id, name, category_group, allocated, spent, month, year)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + envelopeColumns
	created, err := scanEnvelope(q.QueryRow(ctx, query, e.UserID, e.Name, e.CategoryGroup, e.Allocated, e.Spent, e.Month, e.Year))
	if isUniqueViolation(err) {
		return nil, ledger.Conflict("envelope", "%q already exists for %s", e.Name, e.Period())
	}
	if err != nil {
		return nil, fmt.Errorf("create envelope: %w", err)
	}
	return &created, nil
}

func SetEnvelopeAllocatedSQL(ctx context.Context, q Querier, userID, id int64, allocated models.Cents) error {
	query := `UPDATE envelopes SET allocated = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID, allocated)
	return affected(tag, err, "envelope", id)
}

func AdjustEnvelopeSpentSQL(ctx context.Context, q Querier, userID, id int64, delta models.Cents) error {
	query := `UPDATE envelopes SET spent = spent + $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID, delta)
	return affected(tag, err, "envelope", id)
}

// DeleteEnvelopeSQL relies on ON DELETE SET NULL to unlink transactions and transfers.
func DeleteEnvelopeSQL(ctx context.Context, q Querier, userID, id int64) error {
	query := `DELETE FROM envelopes WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID)
	return affected(tag, err, "envelope", id)
}

func (tx *Tx) ListEnvelopes(ctx context.Context, p models.Period) ([]models.Envelope, error) {
	return GetEnvelopesForPeriodSQL(ctx, tx.q, tx.userID, p)
}

func (tx *Tx) GetEnvelope(ctx context.Context, id int64) (*models.Envelope, error) {
	return GetEnvelopeByIDSQL(ctx, tx.q, tx.userID, id)
}

func (tx *Tx) FindEnvelope(ctx context.Context, name string, p models.Period) (*models.Envelope, error) {
	return GetEnvelopeByNameSQL(ctx, tx.q, tx.userID, name, p)
}

func (tx *Tx) CreateEnvelope(ctx context.Context, e *models.Envelope) (*models.Envelope, error) {
	in := *e
	in.UserID = tx.userID
	return CreateEnvelopeSQL(ctx, tx.q, &in)
}

func (tx *Tx) SetEnvelopeAllocated(ctx context.Context, id int64, allocated models.Cents) error {
	return SetEnvelopeAllocatedSQL(ctx, tx.q, tx.userID, id, allocated)
}

func (tx *Tx) AdjustEnvelopeSpent(ctx context.Context, id int64, delta models.Cents) error {
	return AdjustEnvelopeSpentSQL(ctx, tx.q, tx.userID, id, delta)
}

func (tx *Tx) DeleteEnvelope(ctx context.Context, id int64) error {
	return DeleteEnvelopeSQL(ctx, tx.q, tx.userID, id)
}
