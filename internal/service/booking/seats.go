package booking

import (
	"strconv"
	"strings"
)

// maxSeatDigits bounds seat numbers well below int overflow.
const maxSeatDigits = 6

// seatRequest is one requested seat code before and after normalization.
type seatRequest struct {
	raw     string
	code    string
	number  int
	numeric bool
}

// parseSeatCodes normalizes the requested codes. Numeric codes lose
// surrounding spaces and leading zeros, so "03" and "3" name the same seat.
// Non-numeric codes are kept as given and rejected later by checkRange.
func parseSeatCodes(raw []string) []seatRequest {
	out := make([]seatRequest, 0, len(raw))
	for _, r := range raw {
		out = append(out, parseSeatCode(r))
	}
	return out
}

func parseSeatCode(raw string) seatRequest {
	s := strings.TrimSpace(raw)
	req := seatRequest{raw: raw, code: s}

	if s == "" {
		return req
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return req
		}
	}

	s = strings.TrimLeft(s, "0")
	if s == "" {
		s = "0"
	}
	if len(s) > maxSeatDigits {
		return req
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return req
	}

	req.code = s
	req.number = n
	req.numeric = true

	return req
}

// checkShape validates the request before anything is read from the store.
func checkShape(seats []seatRequest, maxSeats int) error {
	if len(seats) == 0 {
		return ValidationError{Field: "seat_codes", Reason: "at least one seat is required"}
	}
	if maxSeats > 0 && len(seats) > maxSeats {
		return ValidationError{
			Field:  "seat_codes",
			Reason: "at most " + strconv.Itoa(maxSeats) + " seats per booking",
		}
	}

	seen := make(map[string]struct{}, len(seats))
	for _, s := range seats {
		if _, dup := seen[s.code]; dup {
			return ValidationError{Field: "seat_codes", Reason: "seat " + s.code + " is requested twice"}
		}
		seen[s.code] = struct{}{}
	}

	return nil
}

// checkRange returns the raw codes that are not seats 1..capacity.
func checkRange(seats []seatRequest, capacity int) []string {
	var invalid []string
	for _, s := range seats {
		if !s.numeric || s.number < 1 || s.number > capacity {
			invalid = append(invalid, s.raw)
		}
	}
	return invalid
}

func seatCodes(seats []seatRequest) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = s.code
	}
	return out
}
