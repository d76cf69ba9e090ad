package postgres

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/tix-bus/internal/repository"
)

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"

	activeSeatIndex = "tickets_active_seat_uniq"
)

// Key (trip_id, seat_code)=(12, 3) already exists.
var seatKeyDetail = regexp.MustCompile(`\(trip_id, seat_code\)=\((\d+), (.+)\)`)

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		case codeUniqueViolation:
			if pge.ConstraintName == activeSeatIndex {
				return seatConflict(pge)
			}
			return repository.ErrConflict
		case codeForeignKeyViolation:
			return repository.ErrReferenced
		case codeSerializationFailure, codeDeadlockDetected:
			return errors.Join(repository.ErrSerialization, err)
		}
	}

	return err
}

func seatConflict(pge *pgconn.PgError) error {
	e := &repository.SeatConflictError{}

	m := seatKeyDetail.FindStringSubmatch(pge.Detail)
	if len(m) == 3 {
		e.TripID, _ = strconv.ParseInt(m[1], 10, 64)
		e.SeatCode = m[2]
	}

	return e
}
