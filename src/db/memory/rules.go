package memory

import (
	"context"
	"sort"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"
)

func (s *Store) ListRules(ctx context.Context, userID int64) ([]models.TransactionRule, error) {
	var rules []models.TransactionRule
	err := s.withState(userID, func(st *state) error {
		for _, r := range st.rules {
			rules = append(rules, r)
		}
		return nil
	})
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, err
}

func (s *Store) GetRule(ctx context.Context, userID, ruleID int64) (*models.TransactionRule, error) {
	var rule models.TransactionRule
	err := s.withState(userID, func(st *state) error {
		r, ok := st.rules[ruleID]
		if !ok {
			return ledger.NotFound("transaction rule", ruleID)
		}
		rule = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *models.TransactionRule) (*models.TransactionRule, error) {
	created := *rule
	created.ID = s.id()
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	err := s.withState(rule.UserID, func(st *state) error {
		st.rules[created.ID] = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *models.TransactionRule) (*models.TransactionRule, error) {
	var updated models.TransactionRule
	err := s.withState(rule.UserID, func(st *state) error {
		current, ok := st.rules[rule.ID]
		if !ok {
			return ledger.NotFound("transaction rule", rule.ID)
		}
		updated = *rule
		updated.CreatedAt = current.CreatedAt
		updated.UpdatedAt = s.now()
		st.rules[rule.ID] = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteRule(ctx context.Context, userID, ruleID int64) error {
	return s.withState(userID, func(st *state) error {
		if _, ok := st.rules[ruleID]; !ok {
			return ledger.NotFound("transaction rule", ruleID)
		}
		delete(st.rules, ruleID)
		return nil
	})
}
