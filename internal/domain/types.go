package domain

import (
	"time"

	"github.com/google/uuid"
)

type TripStatus string

const (
	TripScheduled TripStatus = "Scheduled"
	TripDeparted  TripStatus = "Departed"
	TripArrived   TripStatus = "Arrived"
	TripCancelled TripStatus = "Cancelled"
)

func (s TripStatus) Valid() bool {
	switch s {
	case TripScheduled, TripDeparted, TripArrived, TripCancelled:
		return true
	}
	return false
}

// Final reports whether the trip can no longer change anything but its status.
func (s TripStatus) Final() bool {
	return s == TripArrived || s == TripCancelled
}

type TicketStatus string

const (
	TicketIssued    TicketStatus = "Issued"
	TicketUsed      TicketStatus = "Used"
	TicketRefunded  TicketStatus = "Refunded"
	TicketCancelled TicketStatus = "Cancelled"
)

// Active reports whether a ticket in this status occupies its seat.
func (s TicketStatus) Active() bool {
	return s == TicketIssued || s == TicketUsed
}

// CanTransition reports whether the ticket state machine allows s -> to.
func (s TicketStatus) CanTransition(to TicketStatus) bool {
	switch s {
	case TicketIssued:
		return to == TicketUsed || to == TicketRefunded || to == TicketCancelled
	case TicketUsed:
		return to == TicketRefunded
	}
	return false
}

type BookingStatus string

const (
	BookingConfirmed         BookingStatus = "Confirmed"
	BookingPartiallyReleased BookingStatus = "PartiallyReleased"
	BookingReleased          BookingStatus = "Released"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleStaff Role = "STAFF"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

type Account struct {
	ID           int64     `json:"account_id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	OperatorID   *int64    `json:"operator_id,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Station struct {
	ID       int64  `json:"station_id"`
	Name     string `json:"station_name"`
	City     string `json:"city"`
	Province string `json:"province"`
	Active   bool   `json:"active"`
}

type Operator struct {
	ID         int64  `json:"operator_id"`
	LegalName  string `json:"legal_name"`
	BrandName  string `json:"brand_name"`
	BrandEmail string `json:"brand_email"`
	TaxID      string `json:"tax_id"`
}

type Bus struct {
	ID          int64  `json:"bus_id"`
	OperatorID  int64  `json:"operator_id"`
	PlateNumber string `json:"plate_number"`
	VehicleType string `json:"vehicle_type"`
	Capacity    int    `json:"capacity"`
	Active      bool   `json:"active"`
}

// BusFilter narrows a bus listing. Nil fields match every bus.
type BusFilter struct {
	OperatorID *int64
	Active     *bool
}

type Route struct {
	ID                 int64         `json:"route_id"`
	DepartureStationID int64         `json:"departure_station_id"`
	ArrivalStationID   int64         `json:"arrival_station_id"`
	OperatorID         int64         `json:"operator_id"`
	DistanceKM         float64       `json:"distance"`
	DefaultDuration    time.Duration `json:"default_duration"`
}

type Fare struct {
	ID        int64      `json:"fare_id"`
	RouteID   int64      `json:"route_id"`
	Currency  string     `json:"currency"`
	SeatClass string     `json:"seat_class"`
	BaseFare  int64      `json:"base_fare"`
	SeatPrice int64      `json:"seat_price"`
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

// CoversDate reports whether t falls inside the fare's validity window.
// An open bound is unbounded.
func (f Fare) CoversDate(t time.Time) bool {
	if f.ValidFrom != nil && t.Before(*f.ValidFrom) {
		return false
	}
	if f.ValidTo != nil && t.After(*f.ValidTo) {
		return false
	}
	return true
}

type Trip struct {
	ID          int64      `json:"trip_id"`
	RouteID     int64      `json:"route_id"`
	BusID       int64      `json:"bus_id"`
	Status      TripStatus `json:"trip_status"`
	ServiceDate time.Time  `json:"service_date"`
	ArrivalAt   *time.Time `json:"arrival_datetime,omitempty"`
}

// TripCapacity is the trip view the booking engine needs.
type TripCapacity struct {
	TripID      int64
	RouteID     int64
	OperatorID  int64
	Status      TripStatus
	ServiceDate time.Time
	Capacity    int
}

type Booking struct {
	ID             uuid.UUID     `json:"booking_id"`
	AccountID      int64         `json:"account_id"`
	OperatorID     int64         `json:"operator_id"`
	Currency       string        `json:"currency"`
	TotalAmount    int64         `json:"total_amount"`
	RefundedAmount int64         `json:"refunded_amount"`
	Status         BookingStatus `json:"booking_status"`
	CreatedAt      time.Time     `json:"created_at"`
}

type Ticket struct {
	ID           uuid.UUID    `json:"ticket_id"`
	SerialNumber int64        `json:"serial_number"`
	BookingID    uuid.UUID    `json:"booking_id"`
	TripID       int64        `json:"trip_id"`
	FareID       int64        `json:"fare_id"`
	AccountID    int64        `json:"account_id"`
	SeatCode     string       `json:"seat_code"`
	SeatPrice    int64        `json:"seat_price"`
	Status       TicketStatus `json:"ticket_status"`
	CreatedAt    time.Time    `json:"created_at"`
}

type BookingWithTickets struct {
	Booking Booking  `json:"booking"`
	Tickets []Ticket `json:"tickets"`
}

// TripSeatMap is the occupancy view of a trip.
type TripSeatMap struct {
	TripID         int64    `json:"trip_id"`
	TotalCapacity  int      `json:"total_capacity"`
	AvailableSeats int      `json:"available_seats"`
	BookedSeats    []string `json:"booked_seats"`
	OccupancyRate  float64  `json:"occupancy_rate"`
}

type ScheduledTrip struct {
	TripID             int64     `json:"trip_id"`
	RouteID            int64     `json:"route_id"`
	ServiceDate        time.Time `json:"service_date"`
	DepartureStationID int64     `json:"departure_station_id"`
	DepartureStation   string    `json:"departure_station"`
	DepartureCity      string    `json:"departure_city"`
	ArrivalStationID   int64     `json:"arrival_station_id"`
	ArrivalStation     string    `json:"arrival_station"`
	ArrivalCity        string    `json:"arrival_city"`
	VehicleType        string    `json:"vehicle_type"`
	OperatorID         int64     `json:"operator_id"`
	OperatorBrand      string    `json:"operator_brand"`
	FareID             int64     `json:"fare_id"`
	SeatPrice          int64     `json:"seat_price"`
	Currency           string    `json:"currency"`
	AvailableSeats     int       `json:"available_seats"`
}

// TripDetail is the public view of one trip: where it runs, who runs it,
// what it costs and how many seats are left. FareID is zero when the route
// has no fare yet.
type TripDetail struct {
	TripID             int64      `json:"trip_id"`
	Status             TripStatus `json:"status"`
	ServiceDate        time.Time  `json:"service_date"`
	RouteID            int64      `json:"route_id"`
	DepartureStationID int64      `json:"departure_station_id"`
	DepartureStation   string     `json:"departure_station"`
	DepartureCity      string     `json:"departure_city"`
	ArrivalStationID   int64      `json:"arrival_station_id"`
	ArrivalStation     string     `json:"arrival_station"`
	ArrivalCity        string     `json:"arrival_city"`
	BusID              int64      `json:"bus_id"`
	PlateNumber        string     `json:"plate_number"`
	VehicleType        string     `json:"vehicle_type"`
	Capacity           int        `json:"capacity"`
	OperatorID         int64      `json:"operator_id"`
	OperatorBrand      string     `json:"operator_brand"`
	FareID             int64      `json:"fare_id"`
	SeatPrice          int64      `json:"seat_price"`
	Currency           string     `json:"currency"`
	AvailableSeats     int        `json:"available_seats"`
}

// TicketDetails joins a ticket with its trip, route, bus and owner for
// lookups and printed tickets.
type TicketDetails struct {
	Ticket           Ticket     `json:"ticket"`
	Currency         string     `json:"currency"`
	TripStatus       TripStatus `json:"trip_status"`
	ServiceDate      time.Time  `json:"service_date"`
	DepartureStation string     `json:"departure_station"`
	DepartureCity    string     `json:"departure_city"`
	ArrivalStation   string     `json:"arrival_station"`
	ArrivalCity      string     `json:"arrival_city"`
	PlateNumber      string     `json:"plate_number"`
	VehicleType      string     `json:"vehicle_type"`
	OperatorBrand    string     `json:"operator_brand"`
	AccountPhone     string     `json:"phone"`
	AccountEmail     string     `json:"email"`
}
