package db

import (
	"context"
	"fmt"

	"budgee-ledger/src/models"
)

func GetGoalsSQL(ctx context.Context, q Querier, userID int64) ([]models.Goal, error) {
	query := `
		SELECT id, user_id, name, envelope_name, target_amount, target_date, created_at, updated_at
		FROM goals
		WHERE user_id = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []models.Goal
	for rows.Next() {
		var g models.Goal
		err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.EnvelopeName, &g.TargetAmount, &g.TargetDate, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func CreateGoalSQL(ctx context.Context, q Querier, g *models.Goal) (*models.Goal, error) {
	query := `
		INSERT INTO goals (user_id, name, envelope_name, target_amount, target_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, name, envelope_name, target_amount, target_date, created_at, updated_at
	`
	var created models.Goal
	err := q.QueryRow(ctx, query, g.UserID, g.Name, g.EnvelopeName, g.TargetAmount, g.TargetDate).
		Scan(&created.ID, &created.UserID, &created.Name, &created.EnvelopeName, &created.TargetAmount,
			&created.TargetDate, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return &created, nil
}

func DeleteGoalSQL(ctx context.Context, q Querier, userID, id int64) error {
	query := `DELETE FROM goals WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID)
	return affected(tag, err, "goal", id)
}

func (tx *Tx) ListGoals(ctx context.Context) ([]models.Goal, error) {
	return GetGoalsSQL(ctx, tx.q, tx.userID)
}

func (tx *Tx) CreateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error) {
	in := *g
	in.UserID = tx.userID
	return CreateGoalSQL(ctx, tx.q, &in)
}

func (tx *Tx) DeleteGoal(ctx context.Context, id int64) error {
	return DeleteGoalSQL(ctx, tx.q, tx.userID, id)
}
