package redis

import "fmt"

const ns = "busticket:v1"

func KeyTripSeatMap(tripID int64) string {
	return fmt.Sprintf("%s:trip:%d:seatmap", ns, tripID)
}

func KeyActiveStations() string {
	return ns + ":stations:active"
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemBooking(accountID int64, idemKey string) string {
	return fmt.Sprintf("%s:idem:bookings:%d:%s", ns, accountID, idemKey)
}

func ChannelTripsChanged() string {
	return ns + ":trips:changed"
}
