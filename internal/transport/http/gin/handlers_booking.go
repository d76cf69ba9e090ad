package httpgin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	redisrepo "github.com/kirinyoku/tix-bus/internal/repository/redis"
	"github.com/kirinyoku/tix-bus/internal/service/booking"
)

const idemLockTTL = 60 * time.Second

// @Summary  Book seats on a trip (idempotent)
// @Tags     bookings
// @Security BearerAuth
// @Param    Idempotency-Key  header    string                false  "client retry key"
// @Param    req              body      CreateBookingRequest  true   "payload"
// @Success  201              {object}  booking.Result
// @Failure  400              {object}  ErrorResponse
// @Failure  404              {object}  ErrorResponse  "trip or fare not found"
// @Failure  409              {object}  ErrorResponse  "seat already taken / trip not bookable / key in progress"
// @Failure  422              {object}  ErrorResponse  "invalid seat code"
// @Failure  429              {object}  ErrorResponse  "rate limited"
// @Router   /api/bookings [post]
func handleCreateBooking(svc BookingService, idem Idempotency) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principalFrom(c)

		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var storageKey string
		if idem != nil && idemKey != "" {
			storageKey = redisrepo.KeyIdemBooking(p.AccountID, idemKey)
			c.Header("Idempotency-Key", idemKey)

			if replayed := replayResult(c, idem, storageKey); replayed {
				return
			}

			locked, err := idem.AcquireLock(ctx, storageKey, idemLockTTL)
			switch {
			case err != nil:
				// Book without replay protection, as the rate limiter fails open too.
				slogFrom(c).Warn("idempotency store unavailable", slog.String("error", err.Error()))
				storageKey = ""
			case !locked:
				if replayed := replayResult(c, idem, storageKey); replayed {
					return
				}
				c.Header("Retry-After", "1")
				respondErr(c, errIdemBusy)
				return
			}
		}

		res, err := svc.CreateBooking(ctx, booking.Request{
			TripID:     req.TripID,
			FareID:     req.FareID,
			AccountID:  p.AccountID,
			OperatorID: req.OperatorID,
			Currency:   req.Currency,
			SeatCodes:  req.SeatCodes,
		})
		if err != nil {
			if storageKey != "" {
				_ = idem.Release(context.WithoutCancel(ctx), storageKey)
			}
			respondErr(c, err)
			return
		}

		b, err := json.Marshal(res)
		if err != nil {
			respondErr(c, err)
			return
		}

		if storageKey != "" {
			_ = idem.SaveResult(context.WithoutCancel(ctx), storageKey, string(b))
		}

		c.Data(http.StatusCreated, "application/json; charset=utf-8", b)
	}
}

func replayResult(c *gin.Context, idem Idempotency, key string) bool {
	payload, ok, _ := idem.GetResult(c.Request.Context(), key)
	if !ok {
		return false
	}

	c.Header("Idempotent-Replayed", "true")
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
	return true
}

// @Summary  Get a booking with its tickets
// @Tags     bookings
// @Security BearerAuth
// @Param    id   path      string  true  "Booking ID (uuid)"
// @Success  200  {object}  domain.BookingWithTickets
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /api/bookings/{id} [get]
func handleGetBooking(svc BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principalFrom(c)

		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		b, err := svc.GetBooking(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		if b.Booking.AccountID != p.AccountID && !p.HasRole(domain.RoleStaff, domain.RoleAdmin) {
			respondErr(c, errForbidden)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Refund a ticket
// @Description The seat is freed at once; the booking keeps its total and
// @Description records the seat price as refunded.
// @Tags     tickets
// @Security BearerAuth
// @Param    id   path      string  true  "Ticket ID (uuid)"
// @Success  200  {object}  booking.TicketResult
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "transition not allowed"
// @Router   /api/tickets/{id}/refund [post]
func handleRefundTicket(svc BookingService, q QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principalFrom(c)

		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		if _, err := q.Ticket(c.Request.Context(), p, id); err != nil {
			respondErr(c, err)
			return
		}

		res, err := svc.RefundTicket(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Cancel or check in a ticket
// @Tags     tickets
// @Security BearerAuth
// @Param    id   path      string  true  "Ticket ID (uuid)"
// @Success  200  {object}  booking.TicketResult
// @Failure  403  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "transition not allowed"
// @Router   /api/tickets/{id}/cancel [post]
// @Router   /api/tickets/{id}/use [post]
func handleTicketTransition(
	transition func(ctx context.Context, ticketID uuid.UUID) (*booking.TicketResult, error),
) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		res, err := transition(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Download the e-ticket PDF
// @Tags     tickets
// @Security BearerAuth
// @Produce  application/pdf
// @Param    id   path  string  true  "Ticket ID (uuid)"
// @Success  200  {file}    binary
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /api/tickets/{id}/eticket [get]
func handleETicket(svc ETicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principalFrom(c)

		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		pdf, name, err := svc.Render(c.Request.Context(), p, id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Data(http.StatusOK, "application/pdf", pdf)
	}
}

// @Summary  Profile of the caller
// @Tags     auth
// @Security BearerAuth
// @Success  200  {object}  domain.Account
// @Failure  404  {object}  ErrorResponse
// @Router   /api/me [get]
func handleMe(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principalFrom(c)

		acc, err := svc.Account(c.Request.Context(), p.AccountID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, acc)
	}
}

// @Summary  Tickets of the caller
// @Tags     tickets
// @Security BearerAuth
// @Success  200  {array}  domain.TicketDetails
// @Router   /api/me/tickets [get]
func handleMyTickets(svc QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principalFrom(c)

		out, err := svc.AccountTickets(c.Request.Context(), p.AccountID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, out)
	}
}
