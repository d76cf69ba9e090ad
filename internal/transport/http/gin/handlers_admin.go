package httpgin

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/service/admin"
	"github.com/kirinyoku/tix-bus/internal/service/auth"
)

// handlePatch binds a typed patch body and applies it to the record at :id.
func handlePatch[P any](update func(ctx context.Context, id int64, p P) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var p P
		if err := c.ShouldBindJSON(&p); err != nil {
			bindErr(c, err)
			return
		}

		if err := update(c.Request.Context(), id, p); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func handleDelete(del func(ctx context.Context, id int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		if err := del(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func optionalInt64Query(c *gin.Context, name string) (*int64, bool) {
	if c.Query(name) == "" {
		return nil, true
	}
	v, ok := parseInt64Query(c, name)
	if !ok {
		return nil, false
	}
	return &v, true
}

func optionalBoolQuery(c *gin.Context, name string) (*bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &v, true
}

func optionalRoleQuery(c *gin.Context, name string) (*domain.Role, bool) {
	raw := strings.ToUpper(strings.TrimSpace(c.Query(name)))
	if raw == "" {
		return nil, true
	}
	role := domain.Role(raw)
	if !role.Valid() {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &role, true
}

// @Summary  Create a staff or admin account
// @Tags     admin
// @Security BearerAuth
// @Param    req  body      CreateAccountRequest  true  "payload"
// @Success  201  {object}  domain.Account
// @Failure  409  {object}  ErrorResponse
// @Router   /api/admin/accounts [post]
func handleCreateAccount(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		acc, err := svc.Register(c.Request.Context(), auth.RegisterInput{
			FullName:   req.FullName,
			Email:      req.Email,
			Phone:      req.Phone,
			Password:   req.Password,
			Role:       req.Role,
			OperatorID: req.OperatorID,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, acc)
	}
}

// @Summary  List accounts
// @Tags     admin
// @Security BearerAuth
// @Param    role  query     string  false  "USER, STAFF or ADMIN"
// @Success  200   {array}   domain.Account
// @Failure  400   {object}  ErrorResponse
// @Router   /api/admin/accounts [get]
func handleListAccounts(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := optionalRoleQuery(c, "role")
		if !ok {
			return
		}

		out, err := svc.ListAccounts(c.Request.Context(), role)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Get an account
// @Tags     admin
// @Security BearerAuth
// @Param    id   path      int  true  "Account ID"
// @Success  200  {object}  domain.Account
// @Failure  404  {object}  ErrorResponse
// @Router   /api/admin/accounts/{id} [get]
func handleGetAccount(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		acc, err := svc.Account(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, acc)
	}
}

// @Summary  List stations
// @Tags     admin
// @Security BearerAuth
// @Success  200  {array}  domain.Station
// @Router   /api/admin/stations [get]
func handleListStations(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svc.ListStations(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Create a station
// @Tags     admin
// @Security BearerAuth
// @Param    req  body      CreateStationRequest  true  "payload"
// @Success  201  {object}  IDResponse
// @Router   /api/admin/stations [post]
func handleCreateStation(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateStationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		id, err := svc.CreateStation(c.Request.Context(), domain.Station{
			Name:     req.Name,
			City:     req.City,
			Province: req.Province,
			Active:   boolOr(req.Active, true),
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, IDResponse{ID: id})
	}
}

// @Summary  List operators
// @Tags     admin
// @Security BearerAuth
// @Success  200  {array}  domain.Operator
// @Router   /api/admin/operators [get]
func handleListOperators(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svc.ListOperators(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Create an operator
// @Tags     admin
// @Security BearerAuth
// @Param    req  body      CreateOperatorRequest  true  "payload"
// @Success  201  {object}  IDResponse
// @Router   /api/admin/operators [post]
func handleCreateOperator(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOperatorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		id, err := svc.CreateOperator(c.Request.Context(), domain.Operator{
			LegalName:  req.LegalName,
			BrandName:  req.BrandName,
			BrandEmail: req.BrandEmail,
			TaxID:      req.TaxID,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, IDResponse{ID: id})
	}
}

// @Summary  List buses
// @Tags     admin
// @Security BearerAuth
// @Param    operator_id  query  int   false  "only buses of this operator"
// @Param    active       query  bool  false  "only buses in or out of service"
// @Success  200  {array}   domain.Bus
// @Failure  400  {object}  ErrorResponse
// @Router   /api/admin/buses [get]
func handleListBuses(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			f  domain.BusFilter
			ok bool
		)
		if f.OperatorID, ok = optionalInt64Query(c, "operator_id"); !ok {
			return
		}
		if f.Active, ok = optionalBoolQuery(c, "active"); !ok {
			return
		}

		out, err := svc.ListBuses(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Register a bus
// @Tags     admin
// @Security BearerAuth
// @Param    req  body      CreateBusRequest  true  "payload"
// @Success  201  {object}  IDResponse
// @Router   /api/admin/buses [post]
func handleCreateBus(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		id, err := svc.CreateBus(c.Request.Context(), domain.Bus{
			OperatorID:  req.OperatorID,
			PlateNumber: req.PlateNumber,
			VehicleType: req.VehicleType,
			Capacity:    req.Capacity,
			Active:      boolOr(req.Active, true),
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, IDResponse{ID: id})
	}
}

// @Summary  List routes
// @Tags     admin
// @Security BearerAuth
// @Success  200  {array}  domain.Route
// @Router   /api/admin/routes [get]
func handleListRoutes(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svc.ListRoutes(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Create a route, optionally with a one-year fare
// @Tags     admin
// @Security BearerAuth
// @Param    req  body      CreateRouteRequest  true  "payload"
// @Success  201  {object}  IDResponse
// @Router   /api/admin/routes [post]
func handleCreateRoute(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRouteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		id, err := svc.CreateRoute(c.Request.Context(), domain.Route{
			DepartureStationID: req.DepartureStationID,
			ArrivalStationID:   req.ArrivalStationID,
			OperatorID:         req.OperatorID,
			DistanceKM:         req.DistanceKM,
			DefaultDuration:    time.Duration(req.DefaultDurationMin) * time.Minute,
		}, req.Price)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, IDResponse{ID: id})
	}
}

// @Summary  Get a route
// @Tags     admin
// @Security BearerAuth
// @Param    id   path      int  true  "Route ID"
// @Success  200  {object}  domain.Route
// @Failure  404  {object}  ErrorResponse
// @Router   /api/admin/routes/{id} [get]
func handleGetRoute(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		rt, err := svc.GetRoute(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rt)
	}
}

// @Summary  List fares of a route
// @Tags     admin
// @Security BearerAuth
// @Param    id   path     int  true  "Route ID"
// @Success  200  {array}  domain.Fare
// @Router   /api/admin/routes/{id}/fares [get]
func handleListFares(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		out, err := svc.ListFares(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Create a fare
// @Tags     admin
// @Security BearerAuth
// @Param    req  body      CreateFareRequest  true  "payload"
// @Success  201  {object}  IDResponse
// @Router   /api/admin/fares [post]
func handleCreateFare(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateFareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		id, err := svc.CreateFare(c.Request.Context(), domain.Fare{
			RouteID:   req.RouteID,
			Currency:  req.Currency,
			SeatClass: req.SeatClass,
			BaseFare:  req.BaseFare,
			SeatPrice: req.SeatPrice,
			ValidFrom: req.ValidFrom,
			ValidTo:   req.ValidTo,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, IDResponse{ID: id})
	}
}

// @Summary  List trips
// @Tags     admin
// @Security BearerAuth
// @Param    route_id  query  int  false  "only trips of this route"
// @Success  200  {array}  domain.Trip
// @Router   /api/admin/trips [get]
func handleListTrips(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		routeID, ok := optionalInt64Query(c, "route_id")
		if !ok {
			return
		}

		out, err := svc.ListTrips(c.Request.Context(), routeID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Schedule a trip
// @Tags     admin
// @Security BearerAuth
// @Param    req  body      ScheduleTripRequest  true  "payload"
// @Success  201  {object}  IDResponse
// @Failure  409  {object}  ErrorResponse  "bus double booked / bus inactive"
// @Router   /api/admin/trips [post]
func handleScheduleTrip(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ScheduleTripRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindErr(c, err)
			return
		}

		id, err := svc.ScheduleTrip(c.Request.Context(), admin.TripInput{
			RouteID:     req.RouteID,
			BusID:       req.BusID,
			ServiceDate: req.ServiceDate,
			ArrivalAt:   req.ArrivalAt,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, IDResponse{ID: id})
	}
}

// @Summary  Get a trip
// @Tags     admin
// @Security BearerAuth
// @Param    id   path      int  true  "Trip ID"
// @Success  200  {object}  domain.Trip
// @Failure  404  {object}  ErrorResponse
// @Router   /api/admin/trips/{id} [get]
func handleGetTrip(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		t, err := svc.GetTrip(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Cancel a trip without issued tickets
// @Tags     admin
// @Security BearerAuth
// @Param    id   path  int  true  "Trip ID"
// @Success  204
// @Failure  409  {object}  ErrorResponse  "issued tickets remain / trip final"
// @Router   /api/admin/trips/{id}/cancel [post]
func handleCancelTrip(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		if err := svc.CancelTrip(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
