package ledger

import (
	"context"
	"time"

	"budgee-ledger/src/models"
	"budgee-ledger/src/util"
)

type GoalInput struct {
	Name         string
	EnvelopeName string
	TargetAmount models.Cents
	TargetDate   *time.Time
}

func (s *Service) CreateGoal(ctx context.Context, userID int64, in GoalInput) (*models.Goal, error) {
	name := util.CleanName(in.Name)
	if err := util.ValidateName(name); err != nil {
		return nil, Validation("goal", "%v", err)
	}
	envelopeName := util.CleanName(in.EnvelopeName)
	if envelopeName != "" {
		if err := util.ValidateName(envelopeName); err != nil {
			return nil, Validation("goal", "envelope: %v", err)
		}
	}
	if in.TargetAmount <= 0 {
		return nil, Validation("goal", "target amount must be positive")
	}
	var created *models.Goal
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		var err error
		created, err = tx.CreateGoal(ctx, &models.Goal{
			Name:         name,
			EnvelopeName: envelopeName,
			TargetAmount: in.TargetAmount,
			TargetDate:   in.TargetDate,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, userID, models.EventEnvelopesChanged)
	return created, nil
}

// ListGoals reports each goal's progress as the allocation of its linked
// envelope in p against the target.
func (s *Service) ListGoals(ctx context.Context, userID int64, p models.Period) ([]models.GoalProgress, error) {
	var progress []models.GoalProgress
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		goals, err := tx.ListGoals(ctx)
		if err != nil {
			return err
		}
		envelopes, err := tx.ListEnvelopes(ctx, p)
		if err != nil {
			return err
		}
		progress = goalProgress(goals, envelopes)
		return nil
	})
	return progress, err
}

func (s *Service) DeleteGoal(ctx context.Context, userID, goalID int64) error {
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		return tx.DeleteGoal(ctx, goalID)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, userID, models.EventEnvelopesChanged)
	if s.cache != nil {
		s.cache.InvalidateUser(userID)
	}
	return nil
}

func goalProgress(goals []models.Goal, envelopes []models.Envelope) []models.GoalProgress {
	out := make([]models.GoalProgress, 0, len(goals))
	for _, g := range goals {
		gp := models.GoalProgress{Goal: g, Remaining: g.TargetAmount}
		for _, e := range envelopes {
			if !models.SameName(e.Name, g.LinkedEnvelopeName()) {
				continue
			}
			gp.Linked = true
			gp.Funded = models.MaxCents(0, e.Allocated)
			gp.Remaining = models.MaxCents(0, g.TargetAmount-gp.Funded)
			gp.Percent = int(models.MinCents(100, gp.Funded*100/g.TargetAmount))
			break
		}
		out = append(out, gp)
	}
	return out
}
