package httpgin

import (
	"time"

	"github.com/kirinyoku/tix-bus/internal/domain"
)

type RegisterRequest struct {
	FullName string `json:"full_name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required,max=20"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateAccountRequest struct {
	RegisterRequest
	Role       domain.Role `json:"role" binding:"required,oneof=USER STAFF ADMIN"`
	OperatorID *int64      `json:"operator_id" binding:"omitempty,gt=0"`
}

type CreateBookingRequest struct {
	TripID     int64    `json:"trip_id" binding:"required,gt=0"`
	FareID     int64    `json:"fare_id" binding:"required,gt=0"`
	OperatorID int64    `json:"operator_id" binding:"omitempty,gt=0"`
	Currency   string   `json:"currency" binding:"required,currency"`
	SeatCodes  []string `json:"seat_list" binding:"required,min=1,dive,required,max=16"`
}

type LookupTicketRequest struct {
	SerialNumber int64  `json:"serial_number" binding:"required,gt=0"`
	Phone        string `json:"phone" binding:"required,max=20"`
}

type CreateStationRequest struct {
	Name     string `json:"station_name" binding:"required,max=120"`
	City     string `json:"city" binding:"required,max=80"`
	Province string `json:"province" binding:"max=80"`
	Active   *bool  `json:"active"`
}

type CreateOperatorRequest struct {
	LegalName  string `json:"legal_name" binding:"required,max=160"`
	BrandName  string `json:"brand_name" binding:"required,max=120"`
	BrandEmail string `json:"brand_email" binding:"omitempty,email"`
	TaxID      string `json:"tax_id" binding:"max=32"`
}

type CreateBusRequest struct {
	OperatorID  int64  `json:"operator_id" binding:"required,gt=0"`
	PlateNumber string `json:"plate_number" binding:"required,max=20"`
	VehicleType string `json:"vehicle_type" binding:"max=60"`
	Capacity    int    `json:"capacity" binding:"required,gt=0,lte=100"`
	Active      *bool  `json:"active"`
}

type CreateRouteRequest struct {
	DepartureStationID int64   `json:"departure_station_id" binding:"required,gt=0"`
	ArrivalStationID   int64   `json:"arrival_station_id" binding:"required,gt=0,nefield=DepartureStationID"`
	OperatorID         int64   `json:"operator_id" binding:"required,gt=0"`
	DistanceKM         float64 `json:"distance" binding:"required,gt=0"`
	DefaultDurationMin int     `json:"default_duration_min" binding:"required,gt=0"`
	// Price, when set, creates a Standard fare in VND valid for one year.
	Price *int64 `json:"price" binding:"omitempty,gte=0"`
}

type CreateFareRequest struct {
	RouteID   int64      `json:"route_id" binding:"required,gt=0"`
	Currency  string     `json:"currency" binding:"omitempty,currency"`
	SeatClass string     `json:"seat_class" binding:"max=40"`
	BaseFare  int64      `json:"base_fare" binding:"gte=0"`
	SeatPrice int64      `json:"seat_price" binding:"required,gt=0"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
}

type ScheduleTripRequest struct {
	RouteID     int64      `json:"route_id" binding:"required,gt=0"`
	BusID       int64      `json:"bus_id" binding:"required,gt=0"`
	ServiceDate time.Time  `json:"service_date" binding:"required"`
	ArrivalAt   *time.Time `json:"arrival_datetime"`
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type IDResponse struct {
	ID int64 `json:"id"`
}

type TripEvent struct {
	TripID int64  `json:"trip_id"`
	Reason string `json:"reason"`
	At     int64  `json:"ts"`
}
