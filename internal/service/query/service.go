package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/repository"
	redisrepo "github.com/kirinyoku/tix-bus/internal/repository/redis"
	"github.com/kirinyoku/tix-bus/internal/service/auth"
)

// DateLayout is the calendar date format accepted by Schedule.
const DateLayout = "2006-01-02"

// Reader is the read side of the store. *postgres.QueryRepo implements it.
type Reader interface {
	TripSeatMap(ctx context.Context, tripID int64) (*domain.TripSeatMap, error)
	ActiveStations(ctx context.Context) ([]domain.Station, error)
	ScheduledTrips(ctx context.Context, fromStation int64, toStation *int64, day time.Time) ([]domain.ScheduledTrip, error)
	TripDetail(ctx context.Context, tripID int64) (*domain.TripDetail, error)
	TicketDetails(ctx context.Context, ticketID uuid.UUID) (*domain.TicketDetails, error)
	TicketBySerial(ctx context.Context, serial int64, phone string) (*domain.TicketDetails, error)
	AccountTickets(ctx context.Context, accountID int64) ([]domain.TicketDetails, error)
}

type Config struct {
	SeatMapTTL  time.Duration
	StationsTTL time.Duration
	// Location is the zone schedule dates are interpreted in.
	Location *time.Location
}

type Service struct {
	reader Reader
	cache  *redisrepo.Cache
	cfg    Config
}

// New builds the query service. cache may be nil, in which case every
// read goes to the store.
func New(reader Reader, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 15 * time.Second
	}

	if cfg.StationsTTL <= 0 {
		cfg.StationsTTL = 5 * time.Minute
	}

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Service{
		reader: reader,
		cache:  cache,
		cfg:    cfg,
	}
}

// TripSeatMap returns the occupancy of a trip. The view is cached for a
// short time and dropped whenever a booking or release on the trip commits.
//
// Returns:
//   - error: query.ErrTripNotFound if the trip does not exist.
func (s *Service) TripSeatMap(ctx context.Context, tripID int64) (*domain.TripSeatMap, error) {
	const op = "service.query.TripSeatMap"

	m, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyTripSeatMap(tripID),
		s.cfg.SeatMapTTL,
		func(ctx context.Context) (domain.TripSeatMap, error) {
			m, err := s.reader.TripSeatMap(ctx, tripID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.TripSeatMap{}, tripNotFound(tripID)
				}

				return domain.TripSeatMap{}, err
			}

			return *m, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if m.BookedSeats == nil {
		m.BookedSeats = []string{}
	}

	return &m, nil
}

// ActiveStations lists the stations open for departures.
func (s *Service) ActiveStations(ctx context.Context) ([]domain.Station, error) {
	const op = "service.query.ActiveStations"

	stations, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyActiveStations(),
		s.cfg.StationsTTL,
		s.reader.ActiveStations,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if stations == nil {
		stations = []domain.Station{}
	}

	return stations, nil
}

type ScheduleQuery struct {
	FromStationID int64
	ToStationID   *int64
	// Date is a calendar day in DateLayout.
	Date string
}

// Schedule lists the Scheduled trips leaving a station on a day, optionally
// only those bound for a destination.
//
// Returns:
//   - error: query.ErrInvalidQuery if the station or date is malformed.
func (s *Service) Schedule(ctx context.Context, q ScheduleQuery) ([]domain.ScheduledTrip, error) {
	const op = "service.query.Schedule"

	if q.FromStationID <= 0 {
		return nil, fmt.Errorf("%s:%w", op, invalidQuery("station_id", "must be a positive id"))
	}

	if q.ToStationID != nil && *q.ToStationID <= 0 {
		return nil, fmt.Errorf("%s:%w", op, invalidQuery("destination_id", "must be a positive id"))
	}

	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(q.Date), s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, invalidQuery("date", "expected "+DateLayout))
	}

	trips, err := s.reader.ScheduledTrips(ctx, q.FromStationID, q.ToStationID, day)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if trips == nil {
		trips = []domain.ScheduledTrip{}
	}

	return trips, nil
}

// TripDetail returns the public view of a trip.
//
// Returns:
//   - error: query.ErrTripNotFound if the trip does not exist.
func (s *Service) TripDetail(ctx context.Context, tripID int64) (*domain.TripDetail, error) {
	const op = "service.query.TripDetail"

	if tripID <= 0 {
		return nil, fmt.Errorf("%s:%w", op, invalidQuery("trip_id", "must be a positive id"))
	}

	d, err := s.reader.TripDetail(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, tripNotFound(tripID))
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return d, nil
}

// NormalizePhone trims spaces and drops one leading zero, so "0901234567"
// and "901234567" name the same subscriber.
func NormalizePhone(phone string) string {
	return strings.TrimPrefix(strings.TrimSpace(phone), "0")
}

// LookupTicket finds a ticket by its printed serial number and the
// holder's phone number. Anyone holding both may see the ticket.
//
// Returns:
//   - error: query.ErrTicketNotFound if no ticket matches both values.
func (s *Service) LookupTicket(ctx context.Context, serial int64, phone string) (*domain.TicketDetails, error) {
	const op = "service.query.LookupTicket"

	if serial <= 0 {
		return nil, fmt.Errorf("%s:%w", op, invalidQuery("serial_number", "must be positive"))
	}

	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, fmt.Errorf("%s:%w", op, invalidQuery("phone", "is required"))
	}

	d, err := s.reader.TicketBySerial(ctx, serial, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ticketNotFound())
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return d, nil
}

// Ticket returns a ticket with its trip details. Passengers see only their
// own tickets; staff and admins see any.
//
// Returns:
//   - error: query.ErrTicketNotFound if the ticket does not exist.
//   - error: query.ErrForbidden if p may not see it.
func (s *Service) Ticket(ctx context.Context, p auth.Principal, ticketID uuid.UUID) (*domain.TicketDetails, error) {
	const op = "service.query.Ticket"

	d, err := s.reader.TicketDetails(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ticketNotFound())
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if d.Ticket.AccountID != p.AccountID && !p.HasRole(domain.RoleStaff, domain.RoleAdmin) {
		return nil, fmt.Errorf("%s:%w", op, forbidden())
	}

	return d, nil
}

// AccountTickets lists the tickets of accountID, newest service date first.
func (s *Service) AccountTickets(ctx context.Context, accountID int64) ([]domain.TicketDetails, error) {
	const op = "service.query.AccountTickets"

	out, err := s.reader.AccountTickets(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if out == nil {
		out = []domain.TicketDetails{}
	}

	return out, nil
}
