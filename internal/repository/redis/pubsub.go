package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// TripsPubSub fans trip occupancy changes out to every API instance.
type TripsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewTripsPubSub(rdb *redis.Client) *TripsPubSub {
	return &TripsPubSub{
		rdb:     rdb,
		channel: ChannelTripsChanged(),
	}
}

// TripChanged is the message published on the trips channel.
type TripChanged struct {
	Type   string `json:"type"`
	TripID int64  `json:"trip_id"`
	Reason string `json:"reason"`
	TsUnix int64  `json:"ts_unix"`
}

func (p *TripsPubSub) PublishTripChanged(ctx context.Context, tripID int64, reason string) error {
	msg := TripChanged{
		Type:   "trip_changed",
		TripID: tripID,
		Reason: reason,
		TsUnix: time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks until ctx is done, calling handler for every well-formed
// message.
func (p *TripsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, msg TripChanged)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg TripChanged
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil && msg.TripID != 0 {
				handler(ctx, msg)
			}
		}
	}
}
