package db

import (
	"context"
	"fmt"
	"time"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"

	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, user_id, envelope_id, year, month, allocated_before, delta, status, attempts, last_error,
	next_attempt_at, created_at, updated_at`

func scanTask(row pgx.Row) (models.AutomationTask, error) {
	var t models.AutomationTask
	err := row.Scan(&t.ID, &t.UserID, &t.EnvelopeID, &t.Year, &t.Month, &t.AllocatedBefore, &t.Delta, &t.Status,
		&t.Attempts, &t.LastError, &t.NextAttemptAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// EnqueueAutomationTaskSQL merges into the pending task for the same
// envelope and period, keeping its allocated_before.
func EnqueueAutomationTaskSQL(ctx context.Context, q Querier, t models.AutomationTask) (*models.AutomationTask, error) {
	query := `
		INSERT INTO automation_tasks (user_id, envelope_id, year, month, allocated_before, delta, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, envelope_id, year, month) WHERE status = 'pending'
		DO UPDATE SET delta = automation_tasks.delta + EXCLUDED.delta,
			next_attempt_at = EXCLUDED.next_attempt_at,
			updated_at = NOW()
		RETURNING ` + taskColumns
	task, err := scanTask(q.QueryRow(ctx, query, t.UserID, t.EnvelopeID, t.Year, t.Month, t.AllocatedBefore, t.Delta, t.NextAttemptAt))
	if err != nil {
		return nil, fmt.Errorf("enqueue automation task: %w", err)
	}
	return &task, nil
}

func GetAutomationTaskSQL(ctx context.Context, q Querier, userID, id int64) (*models.AutomationTask, error) {
	query := `SELECT ` + taskColumns + ` FROM automation_tasks WHERE id = $1 AND user_id = $2`
	t, err := scanTask(q.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, notFound(err, "automation task", id)
	}
	return &t, nil
}

func CompleteAutomationTaskSQL(ctx context.Context, q Querier, userID, id int64) error {
	query := `UPDATE automation_tasks SET status = 'done', updated_at = NOW() WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID)
	return affected(tag, err, "automation task", id)
}

func RecordRolloverSQL(ctx context.Context, q Querier, r models.Rollover) error {
	query := `
		INSERT INTO rollovers (user_id, from_year, from_month, to_year, to_month, carried_envelopes,
			cash_overspending, to_be_assigned_deduction)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.Exec(ctx, query, r.UserID, r.From.Year, int(r.From.Month), r.To.Year, int(r.To.Month),
		r.CarriedEnvelopes, r.CashOverspending, r.ToBeAssignedDeduction)
	if isUniqueViolation(err) {
		return ledger.Conflict("rollover", "%s to %s already recorded", r.From, r.To)
	}
	if err != nil {
		return fmt.Errorf("record rollover: %w", err)
	}
	return nil
}

func (tx *Tx) EnqueueAutomationTask(ctx context.Context, task models.AutomationTask) (*models.AutomationTask, error) {
	task.UserID = tx.userID
	return EnqueueAutomationTaskSQL(ctx, tx.q, task)
}

func (tx *Tx) GetAutomationTask(ctx context.Context, id int64) (*models.AutomationTask, error) {
	return GetAutomationTaskSQL(ctx, tx.q, tx.userID, id)
}

func (tx *Tx) CompleteAutomationTask(ctx context.Context, id int64) error {
	return CompleteAutomationTaskSQL(ctx, tx.q, tx.userID, id)
}

func (tx *Tx) RecordRollover(ctx context.Context, r models.Rollover) error {
	r.UserID = tx.userID
	return RecordRolloverSQL(ctx, tx.q, r)
}

func HasRolloverSQL(ctx context.Context, q Querier, userID int64, from, to models.Period) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM rollovers
			WHERE user_id = $1 AND from_year = $2 AND from_month = $3 AND to_year = $4 AND to_month = $5
		)
	`
	var ok bool
	if err := q.QueryRow(ctx, query, userID, from.Year, int(from.Month), to.Year, int(to.Month)).Scan(&ok); err != nil {
		return false, fmt.Errorf("check rollover: %w", err)
	}
	return ok, nil
}

func (tx *Tx) HasRollover(ctx context.Context, from, to models.Period) (bool, error) {
	return HasRolloverSQL(ctx, tx.q, tx.userID, from, to)
}

// Queue bookkeeping runs outside user units of work.

func (s *Store) DueAutomationTasks(ctx context.Context, now time.Time, limit int) ([]models.AutomationTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM automation_tasks
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at, id
		LIMIT NULLIF($2, 0)
	`
	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.AutomationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) RetryAutomationTask(ctx context.Context, id int64, lastErr string, next time.Time) error {
	query := `
		UPDATE automation_tasks
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, lastErr, next)
	return affected(tag, err, "automation task", id)
}

func (s *Store) FailAutomationTask(ctx context.Context, id int64, lastErr string) error {
	query := `
		UPDATE automation_tasks
		SET attempts = attempts + 1, last_error = $2, status = 'failed', updated_at = NOW()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, lastErr)
	return affected(tag, err, "automation task", id)
}

func (s *Store) PurgeAutomationTasks(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM automation_tasks WHERE status <> 'pending' AND updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}
