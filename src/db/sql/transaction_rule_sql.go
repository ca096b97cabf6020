package db

import (
	"context"
	"fmt"

	"budgee-ledger/src/models"
)

func CreateTransactionRule(ctx context.Context, q Querier, rule *models.TransactionRule) (*models.TransactionRule, error) {
	query := `
		INSERT INTO transaction_rules (user_id, name, conditions, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, conditions, category, created_at, updated_at
	`
	var r models.TransactionRule
	err := q.QueryRow(ctx, query, rule.UserID, rule.Name, rule.Conditions, rule.Category).
		Scan(&r.ID, &r.UserID, &r.Name, &r.Conditions, &r.Category, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create transaction rule: %w", err)
	}
	return &r, nil
}

func GetTransactionRuleByID(ctx context.Context, q Querier, userID, ruleID int64) (*models.TransactionRule, error) {
	query := `
		SELECT id, user_id, name, conditions, category, created_at, updated_at
		FROM transaction_rules
		WHERE id = $1 AND user_id = $2
	`
	var r models.TransactionRule
	err := q.QueryRow(ctx, query, ruleID, userID).
		Scan(&r.ID, &r.UserID, &r.Name, &r.Conditions, &r.Category, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "transaction rule", ruleID)
	}
	return &r, nil
}

func GetAllTransactionRules(ctx context.Context, q Querier, userID int64) ([]models.TransactionRule, error) {
	query := `
		SELECT id, user_id, name, conditions, category, created_at, updated_at
		FROM transaction_rules
		WHERE user_id = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list transaction rules: %w", err)
	}
	defer rows.Close()

	var rules []models.TransactionRule
	for rows.Next() {
		var r models.TransactionRule
		err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Conditions, &r.Category, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func UpdateTransactionRule(ctx context.Context, q Querier, rule *models.TransactionRule) (*models.TransactionRule, error) {
	query := `
		UPDATE transaction_rules
		SET name = $1, conditions = $2, category = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5
		RETURNING id, user_id, name, conditions, category, created_at, updated_at
	`
	var r models.TransactionRule
	err := q.QueryRow(ctx, query, rule.Name, rule.Conditions, rule.Category, rule.ID, rule.UserID).
		Scan(&r.ID, &r.UserID, &r.Name, &r.Conditions, &r.Category, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "transaction rule", rule.ID)
	}
	return &r, nil
}

func DeleteTransactionRule(ctx context.Context, q Querier, userID, ruleID int64) error {
	query := `DELETE FROM transaction_rules WHERE id = $1 AND user_id = $2`
	cmd, err := q.Exec(ctx, query, ruleID, userID)
	return affected(cmd, err, "transaction rule", ruleID)
}

func (s *Store) ListRules(ctx context.Context, userID int64) ([]models.TransactionRule, error) {
	return GetAllTransactionRules(ctx, s.pool, userID)
}

func (s *Store) GetRule(ctx context.Context, userID, ruleID int64) (*models.TransactionRule, error) {
	return GetTransactionRuleByID(ctx, s.pool, userID, ruleID)
}

func (s *Store) CreateRule(ctx context.Context, rule *models.TransactionRule) (*models.TransactionRule, error) {
	return CreateTransactionRule(ctx, s.pool, rule)
}

func (s *Store) UpdateRule(ctx context.Context, rule *models.TransactionRule) (*models.TransactionRule, error) {
	return UpdateTransactionRule(ctx, s.pool, rule)
}

func (s *Store) DeleteRule(ctx context.Context, userID, ruleID int64) error {
	return DeleteTransactionRule(ctx, s.pool, userID, ruleID)
}
