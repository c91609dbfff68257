package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// Relay consumes the round event feed and forwards selected events to the
// notifier. It is the bridge between the engine's event bus and the operator
// alert channels.
type Relay struct {
	bus      domain.EventBus
	notifier *Notifier
	channel  string
	logger   *slog.Logger
}

// NewRelay creates a Relay that subscribes to the given bus channel.
func NewRelay(bus domain.EventBus, notifier *Notifier, channel string, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		notifier: notifier,
		channel:  channel,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// Run subscribes to the event channel and forwards events until the context
// is cancelled. Malformed payloads are logged and skipped.
func (r *Relay) Run(ctx context.Context) error {
	events, err := r.bus.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", r.channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			r.forward(ctx, payload)
		}
	}
}

func (r *Relay) forward(ctx context.Context, payload []byte) {
	var ev domain.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.WarnContext(ctx, "malformed event payload",
			slog.String("error", err.Error()),
		)
		return
	}

	title, message := render(ev)
	if err := r.notifier.Notify(ctx, ev.Type, title, message); err != nil {
		r.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("event", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

// render builds a human-readable title and body for an event envelope.
func render(ev domain.Event) (title, message string) {
	switch ev.Type {
	case domain.EventRoundProcessed:
		title = "Round processed"
		message = fmt.Sprintf("round %v finished: result=%v total_pips=%v",
			ev.Detail["round_id"], ev.Detail["result"], ev.Detail["total_pips"])
	case domain.EventWithdrawal:
		title = "Withdrawal"
		message = fmt.Sprintf("%v paid to %v", ev.Detail["amount"], ev.Detail["receiver"])
	case domain.EventAuthorityTransferred:
		title = "Authority transferred"
		message = fmt.Sprintf("%v -> %v", ev.Detail["old_authority"], ev.Detail["new_authority"])
	default:
		title = ev.Type
		detail, err := json.Marshal(ev.Detail)
		if err != nil {
			message = ev.ID
		} else {
			message = string(detail)
		}
	}
	return title, message
}
