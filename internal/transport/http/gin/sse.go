package httpgin

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const sseHeartbeat = 25 * time.Second

// @Summary  Stream seat map changes of a trip
// @Description Server-sent events. Each trip_changed event means the seat map
// @Description should be fetched again.
// @Tags     trips
// @Produce  text/event-stream
// @Param    id  path  int  true  "Trip ID"
// @Success  200
// @Router   /api/trips/{id}/events [get]
func handleTripEvents(feed TripFeed) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		ch, unsubscribe := feed.Subscribe(tripID)
		defer unsubscribe()

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()

		done := c.Request.Context().Done()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-done:
				return false
			case msg, open := <-ch:
				if !open {
					return false
				}
				c.SSEvent("trip_changed", TripEvent{
					TripID: msg.TripID,
					Reason: msg.Reason,
					At:     msg.TsUnix,
				})
				return true
			case <-ticker.C:
				c.SSEvent("ping", "")
				return true
			}
		})
	}
}
