package domain

import "time"

// Patch types carry optional updates; a nil field is left untouched.

type StationPatch struct {
	Name     *string `json:"station_name"`
	City     *string `json:"city"`
	Province *string `json:"province"`
	Active   *bool   `json:"active"`
}

type OperatorPatch struct {
	LegalName  *string `json:"legal_name"`
	BrandName  *string `json:"brand_name"`
	BrandEmail *string `json:"brand_email"`
	TaxID      *string `json:"tax_id"`
}

type BusPatch struct {
	PlateNumber *string `json:"plate_number"`
	VehicleType *string `json:"vehicle_type"`
	Capacity    *int    `json:"capacity" binding:"omitempty,gt=0"`
	Active      *bool   `json:"active"`
}

type RoutePatch struct {
	DepartureStationID *int64   `json:"departure_station_id"`
	ArrivalStationID   *int64   `json:"arrival_station_id"`
	OperatorID         *int64   `json:"operator_id"`
	DistanceKM         *float64 `json:"distance" binding:"omitempty,gt=0"`
	DefaultDurationMin *int     `json:"default_duration_min" binding:"omitempty,gt=0"`
}

type TripPatch struct {
	Status      *TripStatus `json:"trip_status"`
	ServiceDate *time.Time  `json:"service_date"`
	ArrivalAt   *time.Time  `json:"arrival_datetime"`
}

// OnlyStatus reports whether the patch touches nothing but the status.
func (p TripPatch) OnlyStatus() bool {
	return p.ServiceDate == nil && p.ArrivalAt == nil
}
