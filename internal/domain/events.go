package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type names as they appear in the audit log, the Redis event channel,
// and the WebSocket feed. Consumers can reconstruct full round history from
// these without re-querying state.
const (
	EventRoundCreated         = "round_created"
	EventBidPlaced            = "bid_placed"
	EventEqualizeRefund       = "equalize_refund"
	EventRoundEqualized       = "round_equalized"
	EventWinnerPaid           = "winner_paid"
	EventRoundProcessed       = "round_processed"
	EventFeeUpdated           = "fee_updated"
	EventAuthorityTransferred = "authority_transferred"
	EventWithdrawal           = "withdrawal"
)

// Event is the envelope published on the event bus.
type Event struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	At     time.Time      `json:"at"`
	Detail map[string]any `json:"detail"`
}

// NewEvent builds an envelope with a fresh id and the current UTC timestamp.
func NewEvent(eventType string, detail map[string]any) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   eventType,
		At:     time.Now().UTC(),
		Detail: detail,
	}
}

// Marshal encodes the event as compact JSON. An envelope built by NewEvent
// always marshals cleanly; the error is surfaced for caller-built details.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
