package httpgin

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/service/auth"
	"github.com/kirinyoku/tix-bus/internal/service/query"
)

// handleReady answers 200 only when every backing service responds. Failures
// are logged and named, never described, in the response.
func handleReady(checks map[string]ReadyCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		failed := []string{}
		for _, name := range names {
			if err := checks[name](c.Request.Context()); err != nil {
				slogFrom(c).Warn("readiness check failed", slog.String("check", name), slog.String("error", err.Error()))
				failed = append(failed, name)
			}
		}

		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// @Summary  Register a passenger account
// @Tags     auth
// @Param    req  body      RegisterRequest  true  "payload"
// @Success  201  {object}  domain.Account
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "email already registered"
// @Router   /api/auth/register [post]
func handleRegister(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		acc, err := svc.Register(c.Request.Context(), auth.RegisterInput{
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    req.Phone,
			Password: req.Password,
			Role:     domain.RoleUser,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, acc)
	}
}

// @Summary  Log in
// @Tags     auth
// @Param    req  body      LoginRequest  true  "payload"
// @Success  200  {object}  auth.Session
// @Failure  401  {object}  ErrorResponse
// @Router   /api/auth/login [post]
func handleLogin(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		s, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, s)
	}
}

// @Summary  List stations open for departures
// @Tags     schedule
// @Success  200  {array}  domain.Station
// @Router   /api/schedule/stations [get]
func handleStations(svc QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svc.ActiveStations(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		writeCachedJSON(c, out, "public, max-age=300")
	}
}

// @Summary  Search scheduled trips
// @Tags     schedule
// @Param    station_id      query  int     true   "departure station"
// @Param    date            query  string  true   "service day, YYYY-MM-DD"
// @Param    destination_id  query  int     false  "arrival station"
// @Success  200  {array}   domain.ScheduledTrip
// @Failure  422  {object}  ErrorResponse
// @Router   /api/schedule/trips [get]
func handleSchedule(svc QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := parseInt64Query(c, "station_id")
		if !ok {
			return
		}

		q := query.ScheduleQuery{FromStationID: from, Date: c.Query("date")}
		if c.Query("destination_id") != "" {
			to, ok := parseInt64Query(c, "destination_id")
			if !ok {
				return
			}
			q.ToStationID = &to
		}

		trips, err := svc.Schedule(c.Request.Context(), q)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeCachedJSON(c, trips, "public, max-age=15")
	}
}

// @Summary  Trip detail
// @Tags     schedule
// @Param    id   path      int  true  "Trip ID"
// @Success  200  {object}  domain.TripDetail
// @Failure  404  {object}  ErrorResponse
// @Router   /api/schedule/trips/{id} [get]
func handleTripDetail(svc QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		d, err := svc.TripDetail(c.Request.Context(), tripID)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeCachedJSON(c, d, "public, max-age=15")
	}
}

// @Summary  Seat map of a trip
// @Tags     trips
// @Param    id   path      int  true  "Trip ID"
// @Success  200  {object}  domain.TripSeatMap
// @Success  304
// @Failure  404  {object}  ErrorResponse
// @Router   /api/trips/{id}/seats [get]
func handleSeatMap(svc QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		m, err := svc.TripSeatMap(c.Request.Context(), tripID)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeCachedJSON(c, m, "no-cache")
	}
}

// @Summary  Look up a ticket by serial number and phone
// @Tags     tickets
// @Param    req  body      LookupTicketRequest  true  "payload"
// @Success  200  {object}  domain.TicketDetails
// @Failure  404  {object}  ErrorResponse
// @Router   /api/tickets/lookup [post]
func handleLookupTicket(svc QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LookupTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		d, err := svc.LookupTicket(c.Request.Context(), req.SerialNumber, req.Phone)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, d)
	}
}

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseInt64Query(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(c.Query(name)), 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
