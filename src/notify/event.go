// Package notify tells real-time listeners that a user's ledger changed.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"budgee-ledger/src/models"

	"github.com/google/uuid"
)

// Event is the message body published for every change notification.
type Event struct {
	ID         string           `json:"id"`
	UserID     int64            `json:"user_id"`
	Kind       models.EventKind `json:"kind"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewEvent(userID int64, kind models.EventKind, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       kind,
		OccurredAt: now.UTC(),
	}
}

// RoutingKey is user.<id>.<kind>, so consumers can bind per user or per kind.
func (e Event) RoutingKey() string {
	return fmt.Sprintf("user.%d.%s", e.UserID, e.Kind)
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
