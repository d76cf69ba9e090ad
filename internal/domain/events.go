package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingCreated is emitted once a booking and its tickets are committed.
type BookingCreated struct {
	BookingID   uuid.UUID `json:"booking_id"`
	TripID      int64     `json:"trip_id"`
	AccountID   int64     `json:"account_id"`
	OperatorID  int64     `json:"operator_id"`
	SeatCodes   []string  `json:"seat_codes"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency"`
	At          time.Time `json:"at"`
}

// TicketChanged is emitted after a ticket leaves the Issued state.
// Released is true when the change freed the seat.
type TicketChanged struct {
	TicketID      uuid.UUID     `json:"ticket_id"`
	BookingID     uuid.UUID     `json:"booking_id"`
	TripID        int64         `json:"trip_id"`
	SeatCode      string        `json:"seat_code"`
	Status        TicketStatus  `json:"ticket_status"`
	Released      bool          `json:"released"`
	Amount        int64         `json:"amount"`
	BookingStatus BookingStatus `json:"booking_status"`
	At            time.Time     `json:"at"`
}
