package ledger

import (
	"context"
	"fmt"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

const (
	reconcileTolerance   models.Cents = 1
	maxReconcileAttempts              = 3
)

func withinTolerance(a, b models.Cents) bool {
	return (a - b).Abs() <= reconcileTolerance
}

// EnsureToBeAssigned finds or creates the period's "To Be Assigned" envelope
// and brings its allocation in line with the balance calculator.
func (s *Service) EnsureToBeAssigned(ctx context.Context, userID int64, p models.Period) (*models.Envelope, error) {
	if !p.Valid() {
		return nil, Validation("period", "invalid period %s", p)
	}
	var tba *models.Envelope
	_, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		var err error
		tba, _, err = s.ensureToBeAssigned(ctx, u.tx, p)
		return err
	})
	return tba, err
}

// ensureToBeAssigned recomputes and writes back until the stored value
// settles, giving up with an Inconsistency error.
func (s *Service) ensureToBeAssigned(ctx context.Context, tx Tx, p models.Period) (*models.Envelope, models.Totals, error) {
	var (
		totals    models.Totals
		envelopes []models.Envelope
		tba       *models.Envelope
	)
	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		accounts, err := tx.ListAccounts(ctx)
		if err != nil {
			return nil, totals, fmt.Errorf("list accounts: %w", err)
		}
		envelopes, err = tx.ListEnvelopes(ctx, p)
		if err != nil {
			return nil, totals, fmt.Errorf("list envelopes: %w", err)
		}
		totals = Calculate(accounts, envelopes)

		tba, err = reconcileToBeAssigned(ctx, tx, p, envelopes, totals.ToBeAssigned)
		if err != nil {
			return nil, totals, err
		}
		if withinTolerance(tba.Allocated, totals.ToBeAssigned) {
			return tba, totals, nil
		}
		s.log.WarnContext(ctx, "To Be Assigned did not settle, recomputing",
			logging.FieldOperation, logging.OpReconcile,
			logging.FieldUserID, tx.UserID(),
			logging.FieldPeriod, p.String(),
			"attempt", attempt)
	}

	stored := models.Cents(0)
	if tba != nil {
		stored = tba.Allocated
	}
	s.log.ErrorContext(ctx, "To Be Assigned could not be reconciled",
		logging.FieldOperation, logging.OpReconcile,
		logging.FieldUserID, tx.UserID(),
		logging.FieldPeriod, p.String(),
		"stored_cents", int64(stored),
		"totals", totals,
		"envelopes", envelopes)
	return nil, totals, Inconsistency("envelope", "%s for %s stored %s, computed %s",
		models.ToBeAssignedName, p, stored, totals.ToBeAssigned)
}

func reconcileToBeAssigned(ctx context.Context, tx Tx, p models.Period, envelopes []models.Envelope, want models.Cents) (*models.Envelope, error) {
	var tba *models.Envelope
	for i := range envelopes {
		if envelopes[i].IsToBeAssigned() {
			tba = &envelopes[i]
			break
		}
	}
	if tba == nil {
		created, err := tx.CreateEnvelope(ctx, &models.Envelope{
			Name:          models.ToBeAssignedName,
			CategoryGroup: models.ToBeAssignedGroup,
			Allocated:     want,
			Month:         int(p.Month),
			Year:          p.Year,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", models.ToBeAssignedName, err)
		}
		return created, nil
	}
	if withinTolerance(tba.Allocated, want) {
		return tba, nil
	}
	if err := tx.SetEnvelopeAllocated(ctx, tba.ID, want); err != nil {
		return nil, fmt.Errorf("update %s: %w", models.ToBeAssignedName, err)
	}
	return tx.GetEnvelope(ctx, tba.ID)
}
