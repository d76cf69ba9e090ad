// Package events carries committed booking changes to the read side: the
// Redis caches, other API instances and the message broker.
package events

import (
	"context"
	"log/slog"

	"github.com/kirinyoku/tix-bus/internal/broker/rabbitmq"
	"github.com/kirinyoku/tix-bus/internal/domain"
)

type Cache interface {
	InvalidateTrip(ctx context.Context, tripID int64) error
}

type Notifier interface {
	PublishTripChanged(ctx context.Context, tripID int64, reason string) error
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

const (
	ReasonBooked   = "booked"
	ReasonReleased = "released"
	ReasonUsed     = "used"

	ReasonTripUpdated   = "trip_updated"
	ReasonTripCancelled = "trip_cancelled"
)

// Dispatcher fans every committed change out to its sinks. A failing sink is
// logged and the rest still run. Any sink may be nil.
type Dispatcher struct {
	cache     Cache
	notifier  Notifier
	publisher Publisher
	log       *slog.Logger
}

func NewDispatcher(cache Cache, notifier Notifier, publisher Publisher, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cache:     cache,
		notifier:  notifier,
		publisher: publisher,
		log:       log.With(slog.String("component", "events")),
	}
}

func (d *Dispatcher) BookingCreated(ctx context.Context, ev domain.BookingCreated) {
	d.tripChanged(ctx, ev.TripID, ReasonBooked)
	d.publish(ctx, rabbitmq.QueueBookingCreated, ev)
}

func (d *Dispatcher) TicketChanged(ctx context.Context, ev domain.TicketChanged) {
	if !ev.Released {
		d.publish(ctx, rabbitmq.QueueTicketUsed, ev)
		d.notify(ctx, ev.TripID, ReasonUsed)
		return
	}

	d.tripChanged(ctx, ev.TripID, ReasonReleased)
	d.publish(ctx, rabbitmq.QueueTicketReleased, ev)
}

// TripChanged drops cached views of the trip and tells subscribers. Admin
// changes to a trip use it directly.
func (d *Dispatcher) TripChanged(ctx context.Context, tripID int64, reason string) {
	d.tripChanged(ctx, tripID, reason)
}

func (d *Dispatcher) tripChanged(ctx context.Context, tripID int64, reason string) {
	if d.cache != nil {
		if err := d.cache.InvalidateTrip(ctx, tripID); err != nil {
			d.log.Error("invalidate trip cache",
				slog.Int64("trip_id", tripID),
				slog.String("error", err.Error()),
			)
		}
	}

	d.notify(ctx, tripID, reason)
}

func (d *Dispatcher) notify(ctx context.Context, tripID int64, reason string) {
	if d.notifier == nil {
		return
	}

	if err := d.notifier.PublishTripChanged(ctx, tripID, reason); err != nil {
		d.log.Error("publish trip change",
			slog.Int64("trip_id", tripID),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) publish(ctx context.Context, queue string, v any) {
	if d.publisher == nil {
		return
	}

	if err := d.publisher.Publish(ctx, queue, v); err != nil {
		d.log.Error("publish event",
			slog.String("queue", queue),
			slog.String("error", err.Error()),
		)
	}
}
