package ledger

import (
	"context"
	"fmt"

	"budgee-ledger/src/models"

	"github.com/shopspring/decimal"
)

type OverspendRequest struct {
	SourceID  int64
	Amount    models.Cents
	TargetIDs []int64
	Reason    string
}

type OverspendResult struct {
	Source    models.Envelope   `json:"source"`
	Targets   []models.Envelope `json:"targets"`
	Shares    []models.Cents    `json:"shares"`
	Transfers []models.Transfer `json:"transfers"`
	Totals    models.Totals     `json:"totals"`
}

// SplitProportionally divides amount across deficits in proportion to their
// size, in whole cents. Every entry but the last is capped at its deficit;
// the last takes whatever remains so the shares sum to amount exactly.
func SplitProportionally(amount models.Cents, deficits []models.Cents) []models.Cents {
	shares := make([]models.Cents, len(deficits))
	if len(deficits) == 0 {
		return shares
	}
	var total models.Cents
	for _, d := range deficits {
		total += d
	}
	if total <= 0 {
		return shares
	}

	amt := decimal.NewFromInt(int64(amount))
	tot := decimal.NewFromInt(int64(total))
	var assigned models.Cents
	last := len(deficits) - 1
	for i := 0; i < last; i++ {
		q, _ := decimal.NewFromInt(int64(deficits[i])).Mul(amt).QuoRem(tot, 0)
		share := models.MinCents(deficits[i], models.Cents(q.IntPart()))
		shares[i] = share
		assigned += share
	}
	shares[last] = amount - assigned
	return shares
}

// TransferOverspend moves amount out of one envelope into overspent
// envelopes of the same period, split by deficit.
func (s *Service) TransferOverspend(ctx context.Context, userID int64, req OverspendRequest) (*OverspendResult, error) {
	if req.Amount <= 0 {
		return nil, Validation("transfer", "amount must be positive")
	}
	if len(req.TargetIDs) == 0 {
		return nil, Validation("transfer", "at least one target envelope is required")
	}
	seen := map[int64]bool{req.SourceID: true}
	for _, id := range req.TargetIDs {
		if seen[id] {
			return nil, Validation("transfer", "envelope %d listed more than once", id)
		}
		seen[id] = true
	}

	var res OverspendResult
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		source, err := u.tx.GetEnvelope(ctx, req.SourceID)
		if err != nil {
			return err
		}
		targets := make([]models.Envelope, 0, len(req.TargetIDs))
		for _, id := range req.TargetIDs {
			t, err := u.tx.GetEnvelope(ctx, id)
			if err != nil {
				return err
			}
			if t.IsToBeAssigned() {
				return Validation("transfer", "%s cannot be a target", models.ToBeAssignedName)
			}
			if t.Period() != source.Period() {
				return Validation("transfer", "envelope %q belongs to %s, source to %s", t.Name, t.Period(), source.Period())
			}
			targets = append(targets, *t)
		}

		if source.Available() < req.Amount {
			return Validation("envelope", "insufficient funds in %q: %s available, %s requested",
				source.Name, source.Available(), req.Amount)
		}
		deficits := make([]models.Cents, len(targets))
		var totalDeficit models.Cents
		for i, t := range targets {
			deficits[i] = t.Deficit()
			totalDeficit += deficits[i]
		}
		if totalDeficit == 0 {
			return Validation("transfer", "no overspending to cover")
		}
		for i, t := range targets {
			if deficits[i] == 0 {
				return Validation("envelope", "%q is not overspent", t.Name)
			}
		}

		shares := SplitProportionally(req.Amount, deficits)
		if !source.IsToBeAssigned() {
			if err := u.tx.SetEnvelopeAllocated(ctx, source.ID, source.Allocated-req.Amount); err != nil {
				return err
			}
			source.Allocated -= req.Amount
		}
		reason := req.Reason
		transfers := make([]models.Transfer, 0, len(targets))
		for i := range targets {
			t := &targets[i]
			if shares[i] == 0 {
				continue
			}
			t.Allocated += shares[i]
			if err := u.tx.SetEnvelopeAllocated(ctx, t.ID, t.Allocated); err != nil {
				return err
			}
			if req.Reason == "" {
				reason = fmt.Sprintf("Cover overspending in %s", t.Name)
			}
			transfer, err := u.tx.CreateTransfer(ctx, &models.Transfer{
				FromEnvelopeID: &source.ID,
				ToEnvelopeID:   &t.ID,
				Amount:         shares[i],
				Reason:         reason,
				Kind:           models.TransferKindOverspend,
			})
			if err != nil {
				return err
			}
			transfers = append(transfers, *transfer)
		}
		u.touch(source.Period())
		res = OverspendResult{Source: *source, Targets: targets, Shares: shares, Transfers: transfers}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Totals = u.totals[res.Source.Period()]
	return &res, nil
}
