package postgres

import (
	"fmt"
	"strings"

	"github.com/kirinyoku/tix-bus/internal/repository"
)

type assignment struct {
	column string
	value  any
}

// updateSpec describes one table that accepts partial updates. Only columns
// listed in allowed can ever appear in a generated statement.
type updateSpec struct {
	table   string
	key     string
	allowed map[string]struct{}
}

func newUpdateSpec(table, key string, columns ...string) updateSpec {
	allowed := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		allowed[c] = struct{}{}
	}
	return updateSpec{table: table, key: key, allowed: allowed}
}

// build renders UPDATE <table> SET ... WHERE <key> = $n.
func (u updateSpec) build(id any, set []assignment) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, repository.ErrNoFields
	}

	clauses := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+1)

	for _, a := range set {
		if _, ok := u.allowed[a.column]; !ok {
			return "", nil, fmt.Errorf("column %q is not updatable on %s", a.column, u.table)
		}
		args = append(args, a.value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", a.column, len(args)))
	}

	args = append(args, id)
	q := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d",
		u.table, strings.Join(clauses, ", "), u.key, len(args),
	)

	return q, args, nil
}

// setIf appends column = *v when v is non-nil.
func setIf[T any](set []assignment, column string, v *T) []assignment {
	if v == nil {
		return set
	}
	return append(set, assignment{column: column, value: *v})
}

var (
	stationUpdates  = newUpdateSpec("stations", "id", "name", "city", "province", "active")
	operatorUpdates = newUpdateSpec("operators", "id", "legal_name", "brand_name", "brand_email", "tax_id")
	busUpdates      = newUpdateSpec("buses", "id", "plate_number", "vehicle_type", "capacity", "active")
	routeUpdates    = newUpdateSpec("routes", "id", "departure_station_id", "arrival_station_id", "operator_id", "distance_km", "default_duration_min")
	tripUpdates     = newUpdateSpec("trips", "id", "status", "service_date", "arrival_at")
)
