package notify

import (
	"context"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	log *logging.Logger
}

func NewLogPublisher(log *logging.Logger) *LogPublisher {
	if log == nil {
		log = logging.Nop()
	}
	return &LogPublisher{log: log.WithComponent(logging.ComponentNotify)}
}

func (p *LogPublisher) Publish(ctx context.Context, userID int64, kind models.EventKind) error {
	p.log.InfoContext(ctx, "Ledger changed",
		logging.FieldUserID, userID,
		logging.FieldEventKind, string(kind))
	return nil
}

type Nop struct{}

func (Nop) Publish(context.Context, int64, models.EventKind) error { return nil }
