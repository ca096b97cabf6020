package ledger

import (
	"context"
	"fmt"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
	"budgee-ledger/src/util"
)

type EnvelopeInput struct {
	Name      string
	Group     string
	Period    models.Period
	Allocated models.Cents
}

// AutomationStatus reports what happened to the coverage step of an allocation.
type AutomationStatus string

const (
	AutomationNone    AutomationStatus = "none"
	AutomationApplied AutomationStatus = "applied"
	AutomationSkipped AutomationStatus = "skipped"
	AutomationPending AutomationStatus = "pending"
)

type AllocationResult struct {
	Envelope   models.Envelope  `json:"envelope"`
	Totals     models.Totals    `json:"totals"`
	Automation AutomationStatus `json:"automation"`
	Coverage   *CoverageOutcome `json:"coverage,omitempty"`
}

type MoveResult struct {
	Transfer models.Transfer `json:"transfer"`
	From     models.Envelope `json:"from"`
	To       models.Envelope `json:"to"`
	Totals   models.Totals   `json:"totals"`
}

func (s *Service) ListEnvelopes(ctx context.Context, userID int64, p models.Period) ([]models.Envelope, error) {
	var envelopes []models.Envelope
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		var err error
		envelopes, err = tx.ListEnvelopes(ctx, p)
		return err
	})
	return envelopes, err
}

// CreateEnvelope creates an envelope, failing with Conflict if the name is
// already used in that period. A non-zero Allocated is applied as an allocation.
func (s *Service) CreateEnvelope(ctx context.Context, userID int64, in EnvelopeInput) (*AllocationResult, error) {
	name, group, err := cleanEnvelopeNames(in.Name, in.Group)
	if err != nil {
		return nil, err
	}
	if models.IsToBeAssignedName(name) {
		return nil, Validation("envelope", "%q is reserved", models.ToBeAssignedName)
	}
	if !in.Period.Valid() {
		return nil, Validation("envelope", "invalid period %s", in.Period)
	}
	if in.Allocated < 0 {
		return nil, Validation("envelope", "allocation must not be negative")
	}

	var env *models.Envelope
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		if _, err := u.tx.FindEnvelope(ctx, name, in.Period); err == nil {
			return Conflict("envelope", "%q already exists for %s", name, in.Period)
		} else if !IsNotFound(err) {
			return err
		}
		created, err := u.tx.CreateEnvelope(ctx, &models.Envelope{
			Name:          name,
			CategoryGroup: group,
			Month:         int(in.Period.Month),
			Year:          in.Period.Year,
		})
		if err != nil {
			return err
		}
		u.touch(in.Period)
		env, err = s.allocate(ctx, u, created, in.Allocated)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.allocationResult(ctx, userID, u, env)
}

// Allocate sets an envelope's allocated amount. Credit coverage runs as a
// separate, retryable step after the allocation commits.
func (s *Service) Allocate(ctx context.Context, userID, envelopeID int64, amount models.Cents) (*AllocationResult, error) {
	if amount < 0 {
		return nil, Validation("envelope", "allocation must not be negative")
	}
	var env *models.Envelope
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		current, err := u.tx.GetEnvelope(ctx, envelopeID)
		if err != nil {
			return err
		}
		env, err = s.allocate(ctx, u, current, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.allocationResult(ctx, userID, u, env)
}

// AllocateByName allocates to the named envelope, creating it on first use.
func (s *Service) AllocateByName(ctx context.Context, userID int64, p models.Period, name, group string, amount models.Cents) (*AllocationResult, error) {
	name, group, err := cleanEnvelopeNames(name, group)
	if err != nil {
		return nil, err
	}
	if !p.Valid() {
		return nil, Validation("envelope", "invalid period %s", p)
	}
	if amount < 0 {
		return nil, Validation("envelope", "allocation must not be negative")
	}
	var env *models.Envelope
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		current, err := s.envelopeFor(ctx, u, name, group, p)
		if err != nil {
			return err
		}
		env, err = s.allocate(ctx, u, current, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.allocationResult(ctx, userID, u, env)
}

func (s *Service) allocate(ctx context.Context, u *unit, env *models.Envelope, amount models.Cents) (*models.Envelope, error) {
	if env.IsToBeAssigned() {
		return nil, Validation("envelope", "%s is computed and cannot be allocated directly", models.ToBeAssignedName)
	}
	u.touch(env.Period())
	delta := amount - env.Allocated
	if delta == 0 {
		return env, nil
	}
	if err := u.tx.SetEnvelopeAllocated(ctx, env.ID, amount); err != nil {
		return nil, fmt.Errorf("set allocation: %w", err)
	}
	before := env.Allocated
	env.Allocated = amount

	if !coversCredit(*env) {
		return env, nil
	}
	p := env.Period()
	task, err := u.tx.EnqueueAutomationTask(ctx, models.AutomationTask{
		UserID:          u.tx.UserID(),
		EnvelopeID:      env.ID,
		Year:            p.Year,
		Month:           int(p.Month),
		AllocatedBefore: before,
		Delta:           delta,
		Status:          models.AutomationPending,
		NextAttemptAt:   s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue coverage: %w", err)
	}
	u.tasks = append(u.tasks, *task)
	return env, nil
}

func (s *Service) allocationResult(ctx context.Context, userID int64, u *unit, env *models.Envelope) (*AllocationResult, error) {
	res := &AllocationResult{
		Envelope:   *env,
		Totals:     u.totals[env.Period()],
		Automation: AutomationNone,
	}
	if len(u.tasks) == 0 {
		return res, nil
	}
	res.Automation = AutomationPending
	for _, out := range u.coverage {
		if out.EnvelopeID == env.ID {
			res.Coverage = out
			res.Automation = out.Status
		}
	}
	if res.Automation != AutomationApplied {
		return res, nil
	}

	// Coverage moved money after the allocation committed; report the state it left.
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		fresh, err := tx.GetEnvelope(ctx, env.ID)
		if err != nil {
			return err
		}
		accounts, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		envelopes, err := tx.ListEnvelopes(ctx, env.Period())
		if err != nil {
			return err
		}
		res.Envelope = *fresh
		res.Totals = Calculate(accounts, envelopes)
		return nil
	})
	if err != nil {
		s.log.WarnContext(ctx, "Failed to reload envelope after coverage",
			logging.FieldUserID, userID,
			logging.FieldEnvelopeID, env.ID,
			logging.FieldError, err)
	}
	return res, nil
}

// MoveMoney records a manual transfer between two envelopes of the same period.
func (s *Service) MoveMoney(ctx context.Context, userID, fromID, toID int64, amount models.Cents, reason string) (*MoveResult, error) {
	if amount <= 0 {
		return nil, Validation("transfer", "amount must be positive")
	}
	if fromID == toID {
		return nil, Validation("transfer", "source and destination must differ")
	}
	var res MoveResult
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		from, err := u.tx.GetEnvelope(ctx, fromID)
		if err != nil {
			return err
		}
		to, err := u.tx.GetEnvelope(ctx, toID)
		if err != nil {
			return err
		}
		if from.IsToBeAssigned() || to.IsToBeAssigned() {
			return Validation("transfer", "use an allocation to move money to or from %s", models.ToBeAssignedName)
		}
		if from.Period() != to.Period() {
			return Validation("transfer", "envelopes belong to different periods")
		}
		if from.Available() < amount {
			return Validation("envelope", "insufficient funds in %q: %s available, %s requested", from.Name, from.Available(), amount)
		}
		if err := u.tx.SetEnvelopeAllocated(ctx, from.ID, from.Allocated-amount); err != nil {
			return err
		}
		if err := u.tx.SetEnvelopeAllocated(ctx, to.ID, to.Allocated+amount); err != nil {
			return err
		}
		from.Allocated -= amount
		to.Allocated += amount
		if reason == "" {
			reason = fmt.Sprintf("Moved from %s to %s", from.Name, to.Name)
		}
		transfer, err := u.tx.CreateTransfer(ctx, &models.Transfer{
			FromEnvelopeID: &from.ID,
			ToEnvelopeID:   &to.ID,
			Amount:         amount,
			Reason:         reason,
			Kind:           models.TransferKindManual,
		})
		if err != nil {
			return err
		}
		res = MoveResult{Transfer: *transfer, From: *from, To: *to}
		u.touch(from.Period())
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Totals = u.totals[res.From.Period()]
	return &res, nil
}

// DeleteEnvelope removes a user envelope. Linked transactions are unlinked
// and transfers keep their amounts with the endpoint cleared.
func (s *Service) DeleteEnvelope(ctx context.Context, userID, envelopeID int64) (*models.Totals, error) {
	var p models.Period
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		env, err := u.tx.GetEnvelope(ctx, envelopeID)
		if err != nil {
			return err
		}
		if env.IsToBeAssigned() {
			return Validation("envelope", "%s cannot be deleted", models.ToBeAssignedName)
		}
		if err := u.tx.DeleteEnvelope(ctx, env.ID); err != nil {
			return err
		}
		p = env.Period()
		u.touch(p)
		u.emit(models.EventTransactionsChanged)
		return nil
	})
	if err != nil {
		return nil, err
	}
	totals := u.totals[p]
	return &totals, nil
}

// envelopeFor finds the named envelope for a period, creating it lazily.
func (s *Service) envelopeFor(ctx context.Context, u *unit, name, group string, p models.Period) (*models.Envelope, error) {
	env, err := u.tx.FindEnvelope(ctx, name, p)
	if err == nil {
		return env, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	if models.IsToBeAssignedName(name) {
		tba, _, err := s.ensureToBeAssigned(ctx, u.tx, p)
		return tba, err
	}
	if group == "" {
		group = defaultGroupFor(name)
	}
	u.touch(p)
	return u.tx.CreateEnvelope(ctx, &models.Envelope{
		Name:          name,
		CategoryGroup: group,
		Month:         int(p.Month),
		Year:          p.Year,
	})
}

func cleanEnvelopeNames(name, group string) (string, string, error) {
	name = util.CleanName(name)
	if err := util.ValidateName(name); err != nil {
		return "", "", Validation("envelope", "%v", err)
	}
	group = util.CleanName(group)
	if group == "" {
		group = defaultGroupFor(name)
	} else if err := util.ValidateName(group); err != nil {
		return "", "", Validation("envelope", "category group: %v", err)
	}
	return name, group, nil
}

func defaultGroupFor(name string) string {
	if models.SameName(name, models.DefaultCategoryName) {
		return models.DefaultCategoryGroup
	}
	return models.DefaultGroup
}

// coversCredit reports whether allocation changes on env trigger coverage.
func coversCredit(env models.Envelope) bool {
	return !env.IsToBeAssigned() && !env.IsCardPayment()
}

func (s *Service) ListTransfers(ctx context.Context, userID int64, f TransferFilter) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		var err error
		transfers, err = tx.ListTransfers(ctx, f)
		return err
	})
	return transfers, err
}
