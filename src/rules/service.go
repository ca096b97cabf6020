// Package rules assigns categories to transactions from user-defined
// condition trees.
package rules

import (
	"context"
	"encoding/json"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
	"budgee-ledger/src/util"
)

type Store interface {
	ListRules(ctx context.Context, userID int64) ([]models.TransactionRule, error)
	GetRule(ctx context.Context, userID, ruleID int64) (*models.TransactionRule, error)
	CreateRule(ctx context.Context, rule *models.TransactionRule) (*models.TransactionRule, error)
	UpdateRule(ctx context.Context, rule *models.TransactionRule) (*models.TransactionRule, error)
	DeleteRule(ctx context.Context, userID, ruleID int64) error
}

type compiled struct {
	cond     models.Condition
	category string
}

// Matcher evaluates a user's rules in id order; the first match wins.
type Matcher struct {
	rules []compiled
}

// NewMatcher compiles rules, skipping any whose conditions no longer parse.
func NewMatcher(rules []models.TransactionRule) *Matcher {
	m := &Matcher{}
	for _, r := range rules {
		cond, err := ParseCondition(r.Conditions)
		if err != nil {
			continue
		}
		m.rules = append(m.rules, compiled{cond: cond, category: r.Category})
	}
	return m
}

func (m *Matcher) Match(s Subject) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, r := range m.rules {
		if Evaluate(r.cond, s) {
			return r.category, true
		}
	}
	return "", false
}

type RuleInput struct {
	Name       string          `json:"name"`
	Conditions json.RawMessage `json:"conditions"`
	Category   string          `json:"category"`
}

type Service struct {
	store  Store
	ledger *ledger.Service
	log    *logging.Logger
}

func NewService(store Store, l *ledger.Service, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: store, ledger: l, log: log.WithComponent(logging.ComponentLedger)}
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.TransactionRule, error) {
	return s.store.ListRules(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, ruleID int64) (*models.TransactionRule, error) {
	return s.store.GetRule(ctx, userID, ruleID)
}

func (s *Service) Create(ctx context.Context, userID int64, in RuleInput) (*models.TransactionRule, error) {
	rule, err := buildRule(userID, in)
	if err != nil {
		return nil, err
	}
	return s.store.CreateRule(ctx, rule)
}

func (s *Service) Update(ctx context.Context, userID, ruleID int64, in RuleInput) (*models.TransactionRule, error) {
	if _, err := s.store.GetRule(ctx, userID, ruleID); err != nil {
		return nil, err
	}
	rule, err := buildRule(userID, in)
	if err != nil {
		return nil, err
	}
	rule.ID = ruleID
	return s.store.UpdateRule(ctx, rule)
}

func (s *Service) Delete(ctx context.Context, userID, ruleID int64) error {
	return s.store.DeleteRule(ctx, userID, ruleID)
}

// Matcher loads the user's current rules.
func (s *Service) Matcher(ctx context.Context, userID int64) (*Matcher, error) {
	rules, err := s.store.ListRules(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewMatcher(rules), nil
}

// Apply re-runs the user's rules over every transaction and moves the ones
// whose category changes. It returns the number of transactions moved.
func (s *Service) Apply(ctx context.Context, userID int64) (int, error) {
	m, err := s.Matcher(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(m.rules) == 0 {
		return 0, nil
	}
	accounts, err := s.ledger.ListAccounts(ctx, userID)
	if err != nil {
		return 0, err
	}
	names := make(map[int64]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	txns, err := s.ledger.ListTransactions(ctx, userID, ledger.TransactionFilter{})
	if err != nil {
		return 0, err
	}

	var changes []ledger.Recategorization
	for _, t := range txns {
		category, ok := m.Match(Subject{
			Name:         t.Description,
			MerchantName: t.MerchantName,
			AccountName:  names[t.AccountID],
			Amount:       t.Amount,
		})
		if !ok || models.SameName(category, t.Category) {
			continue
		}
		if t.IsOutflow() && models.IsToBeAssignedName(category) {
			continue
		}
		changes = append(changes, ledger.Recategorization{TransactionID: t.ID, Category: category})
	}
	if len(changes) == 0 {
		s.log.InfoContext(ctx, "No transactions adjusted by rules", logging.FieldUserID, userID)
		return 0, nil
	}
	changed, err := s.ledger.Recategorize(ctx, userID, changes)
	if err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "Transactions adjusted by rules",
		logging.FieldOperation, logging.OpUpdate,
		logging.FieldUserID, userID,
		"count", changed)
	return changed, nil
}

func buildRule(userID int64, in RuleInput) (*models.TransactionRule, error) {
	name := util.CleanName(in.Name)
	if err := util.ValidateName(name); err != nil {
		return nil, ledger.Validation("transaction rule", "%v", err)
	}
	if _, err := ParseCondition(in.Conditions); err != nil {
		return nil, ledger.Validation("transaction rule", "%v", err)
	}
	category, err := util.NormalizeCategory(in.Category)
	if err != nil {
		return nil, ledger.Validation("transaction rule", "%v", err)
	}
	return &models.TransactionRule{
		UserID:     userID,
		Name:       name,
		Conditions: in.Conditions,
		Category:   category,
	}, nil
}
