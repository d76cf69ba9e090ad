package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/events"
	"github.com/kirinyoku/tix-bus/internal/repository"
	"github.com/kirinyoku/tix-bus/internal/uow"
)

type TripInput struct {
	RouteID     int64
	BusID       int64
	ServiceDate time.Time
	ArrivalAt   *time.Time
}

// tripEnd is when a trip releases its bus.
func tripEnd(start time.Time, arrival *time.Time, rt *domain.Route) time.Time {
	if arrival != nil {
		return *arrival
	}
	return start.Add(rt.DefaultDuration)
}

// ensureBusFree fails with BusDoubleBooked when the bus runs another
// trip between start and end.
func ensureBusFree(ctx context.Context, r Repos, busID int64, start, end time.Time, exceptTripID int64) error {
	busy, err := r.Trips.BusBusy(ctx, busID, start, end, exceptTripID)
	if err != nil {
		return err
	}

	if busy {
		return busDoubleBooked(busID)
	}

	return nil
}

// ScheduleTrip creates a Scheduled trip. The bus must exist and be active,
// and must not run another trip in the new trip's window.
//
// Returns:
//   - error: admin.ErrNotFound if the route or bus does not exist.
//   - error: admin.ErrBusInactive if the bus is retired.
//   - error: admin.ErrBusDoubleBooked if the bus is busy then.
func (s *Service) ScheduleTrip(ctx context.Context, in TripInput) (int64, error) {
	const op = "service.admin.ScheduleTrip"

	switch {
	case in.RouteID <= 0:
		return 0, fmt.Errorf("%s:%w", op, invalid("route_id", "must be a positive id"))
	case in.BusID <= 0:
		return 0, fmt.Errorf("%s:%w", op, invalid("bus_id", "must be a positive id"))
	case in.ServiceDate.IsZero():
		return 0, fmt.Errorf("%s:%w", op, invalid("service_date", "is required"))
	case in.ArrivalAt != nil && !in.ArrivalAt.After(in.ServiceDate):
		return 0, fmt.Errorf("%s:%w", op, invalid("arrival_datetime", "must be after service_date"))
	}

	var id int64
	err := s.store.InTx(ctx, func(ctx context.Context, r Repos, _ func(uow.AfterCommit)) error {
		bus, err := r.Catalog.GetBus(ctx, in.BusID)
		if err != nil {
			return classify("Bus", in.BusID, err)
		}

		if !bus.Active {
			return busInactive(bus.ID)
		}

		rt, err := r.Catalog.GetRoute(ctx, in.RouteID)
		if err != nil {
			return classify("Route", in.RouteID, err)
		}

		if err := ensureBusFree(ctx, r, bus.ID, in.ServiceDate, tripEnd(in.ServiceDate, in.ArrivalAt, rt), 0); err != nil {
			return err
		}

		id, err = r.Trips.CreateTrip(ctx, domain.Trip{
			RouteID:     rt.ID,
			BusID:       bus.ID,
			Status:      domain.TripScheduled,
			ServiceDate: in.ServiceDate,
			ArrivalAt:   in.ArrivalAt,
		})
		if err != nil {
			return classify("Trip", 0, err)
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	s.log.Info("trip scheduled",
		slog.Int64("trip_id", id),
		slog.Int64("bus_id", in.BusID),
		slog.Time("service_date", in.ServiceDate),
	)

	return id, nil
}

func (s *Service) GetTrip(ctx context.Context, id int64) (*domain.Trip, error) {
	const op = "service.admin.GetTrip"

	t, err := s.store.Repos().Trips.GetTrip(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, classify("Trip", id, err))
	}

	return t, nil
}

func (s *Service) ListTrips(ctx context.Context, routeID *int64) ([]domain.Trip, error) {
	const op = "service.admin.ListTrips"

	out, err := s.store.Repos().Trips.ListTrips(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return nonNil(out), nil
}

// UpdateTrip applies p to a trip. Arrived and Cancelled trips only accept
// a status change. Moving a trip re-checks its bus for overlaps, and
// cancelling through a patch is refused while tickets are issued, as in
// CancelTrip.
func (s *Service) UpdateTrip(ctx context.Context, id int64, p domain.TripPatch) error {
	const op = "service.admin.UpdateTrip"

	if p.Status == nil && p.OnlyStatus() {
		return fmt.Errorf("%s:%w", op, invalid("patch", "no fields to update"))
	}

	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%s:%w", op, invalid("trip_status", "must be one of Scheduled, Departed, Arrived, Cancelled"))
	}

	err := s.store.InTx(ctx, func(ctx context.Context, r Repos, after func(uow.AfterCommit)) error {
		t, err := r.Trips.GetTrip(ctx, id, true)
		if err != nil {
			return classify("Trip", id, err)
		}

		if t.Status.Final() && !p.OnlyStatus() {
			return tripFinal(t.ID, t.Status)
		}

		if !p.OnlyStatus() {
			start := t.ServiceDate
			if p.ServiceDate != nil {
				start = *p.ServiceDate
			}

			arrival := t.ArrivalAt
			if p.ArrivalAt != nil {
				arrival = p.ArrivalAt
			}

			if arrival != nil && !arrival.After(start) {
				return invalid("arrival_datetime", "must be after service_date")
			}

			rt, err := r.Catalog.GetRoute(ctx, t.RouteID)
			if err != nil {
				return classify("Route", t.RouteID, err)
			}

			if err := ensureBusFree(ctx, r, t.BusID, start, tripEnd(start, arrival, rt), t.ID); err != nil {
				return err
			}
		}

		if p.Status != nil && *p.Status == domain.TripCancelled && t.Status != domain.TripCancelled {
			if err := ensureNoIssued(ctx, r, t.ID); err != nil {
				return err
			}
		}

		if err := r.Trips.UpdateTrip(ctx, id, p); err != nil {
			return classify("Trip", id, err)
		}

		after(func(ctx context.Context) {
			s.tripChanged(ctx, id, events.ReasonTripUpdated)
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func ensureNoIssued(ctx context.Context, r Repos, tripID int64) error {
	n, err := r.Trips.IssuedTickets(ctx, tripID)
	if err != nil {
		return err
	}

	if n > 0 {
		return tripHasTickets(tripID, n)
	}

	return nil
}

// CancelTrip marks a trip Cancelled. It is refused while the trip still has
// Issued tickets; those must be refunded or cancelled first.
//
// Returns:
//   - error: admin.ErrTripFinal if the trip already arrived or was cancelled.
//   - error: admin.ErrTripHasTickets if Issued tickets remain.
func (s *Service) CancelTrip(ctx context.Context, id int64) error {
	const op = "service.admin.CancelTrip"

	err := s.store.InTx(ctx, func(ctx context.Context, r Repos, after func(uow.AfterCommit)) error {
		t, err := r.Trips.GetTrip(ctx, id, true)
		if err != nil {
			return classify("Trip", id, err)
		}

		if t.Status.Final() {
			return tripFinal(t.ID, t.Status)
		}

		if err := ensureNoIssued(ctx, r, t.ID); err != nil {
			return err
		}

		status := domain.TripCancelled
		if err := r.Trips.UpdateTrip(ctx, id, domain.TripPatch{Status: &status}); err != nil {
			return classify("Trip", id, err)
		}

		after(func(ctx context.Context) {
			s.tripChanged(ctx, id, events.ReasonTripCancelled)
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrSerialization) {
			s.log.Warn("trip cancel lost a serialization race", slog.Int64("trip_id", id))
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
