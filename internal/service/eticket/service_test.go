package eticket

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTickets struct {
	d   *domain.TicketDetails
	err error
}

func (s stubTickets) Ticket(context.Context, auth.Principal, uuid.UUID) (*domain.TicketDetails, error) {
	return s.d, s.err
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "0 VND"},
		{999, "999 VND"},
		{1000, "1.000 VND"},
		{250000, "250.000 VND"},
		{1234567, "1.234.567 VND"},
		{-45000, "-45.000 VND"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatAmount(tc.amount, "VND"))
	}

	assert.Equal(t, "12.000", FormatAmount(12000, ""))
}

func TestRender(t *testing.T) {
	d := &domain.TicketDetails{
		Ticket: domain.Ticket{
			ID:           uuid.New(),
			SerialNumber: 100042,
			SeatCode:     "12",
			SeatPrice:    250000,
			Status:       domain.TicketIssued,
		},
		Currency:         "VND",
		ServiceDate:      time.Date(2026, 11, 2, 0, 30, 0, 0, time.UTC),
		DepartureStation: "Mien Dong",
		DepartureCity:    "Ho Chi Minh",
		ArrivalStation:   "Da Lat",
		ArrivalCity:      "Lam Dong",
		PlateNumber:      "51B-123.45",
		VehicleType:      "Sleeper",
		OperatorBrand:    "Phuong Trang",
	}

	svc := New(stubTickets{d: d}, time.FixedZone("ICT", 7*3600))

	pdf, name, err := svc.Render(context.Background(), auth.Principal{AccountID: 1, Role: domain.RoleUser}, d.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "eticket-100042.pdf", name)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Greater(t, len(pdf), 500)
}

func TestRender_PropagatesAccessErrors(t *testing.T) {
	denied := errors.New("ticket belongs to another account")
	svc := New(stubTickets{err: denied}, nil)

	_, _, err := svc.Render(context.Background(), auth.Principal{}, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, denied)
}
