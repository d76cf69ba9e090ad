// Package eticket renders printable tickets.
package eticket

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/service/auth"
	"github.com/phpdave11/gofpdf"
)

// Tickets resolves a ticket the principal is allowed to see.
// *query.Service implements it.
type Tickets interface {
	Ticket(ctx context.Context, p auth.Principal, ticketID uuid.UUID) (*domain.TicketDetails, error)
}

type Service struct {
	tickets  Tickets
	location *time.Location
}

// New builds the renderer. Times are printed in loc, UTC when nil.
func New(tickets Tickets, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{tickets: tickets, location: loc}
}

// Render returns a one-page PDF for the ticket and a file name for it.
// Only the owner, staff and admins may render a ticket.
func (s *Service) Render(ctx context.Context, p auth.Principal, ticketID uuid.UUID) ([]byte, string, error) {
	const op = "service.eticket.Render"

	d, err := s.tickets.Ticket(ctx, p, ticketID)
	if err != nil {
		return nil, "", fmt.Errorf("%s:%w", op, err)
	}

	pdf, err := s.build(d)
	if err != nil {
		return nil, "", fmt.Errorf("%s:%w", op, err)
	}

	return pdf, fmt.Sprintf("eticket-%d.pdf", d.Ticket.SerialNumber), nil
}

func (s *Service) build(d *domain.TicketDetails) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle(fmt.Sprintf("E-Ticket #%d", d.Ticket.SerialNumber), false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, tr(d.OperatorBrand))
	pdf.Ln(10)

	departure := d.ServiceDate.In(s.location)
	rows := [][2]string{
		{"Serial", strconv.FormatInt(d.Ticket.SerialNumber, 10)},
		{"Ticket", d.Ticket.ID.String()},
		{"Route", fmt.Sprintf("%s (%s) -> %s (%s)", d.DepartureStation, d.DepartureCity, d.ArrivalStation, d.ArrivalCity)},
		{"Departure", departure.Format("02/01/2006 15:04")},
		{"Seat", d.Ticket.SeatCode},
		{"Bus", fmt.Sprintf("%s %s", d.PlateNumber, d.VehicleType)},
		{"Price", FormatAmount(d.Ticket.SeatPrice, d.Currency)},
		{"Status", string(d.Ticket.Status)},
	}

	pdf.SetFont("Helvetica", "", 12)
	for _, r := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(32, 8, r[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, tr(r[1]), "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Valid for one passenger on the seat shown. Present it when boarding.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// FormatAmount prints a whole-unit amount with dots between thousands, as
// 250.000 VND.
func FormatAmount(amount int64, currency string) string {
	digits := strconv.FormatInt(amount, 10)

	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}

	if currency != "" {
		b.WriteString(" " + currency)
	}

	return b.String()
}
