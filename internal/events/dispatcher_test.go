package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/broker/rabbitmq"
	"github.com/kirinyoku/tix-bus/internal/domain"
	redisrepo "github.com/kirinyoku/tix-bus/internal/repository/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCache struct{ mock.Mock }

func (m *MockCache) InvalidateTrip(ctx context.Context, tripID int64) error {
	return m.Called(ctx, tripID).Error(0)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) PublishTripChanged(ctx context.Context, tripID int64, reason string) error {
	return m.Called(ctx, tripID, reason).Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, v any) error {
	return m.Called(ctx, routingKey, v).Error(0)
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestDispatcher_BookingCreated(t *testing.T) {
	cache := new(MockCache)
	notifier := new(MockNotifier)
	pub := new(MockPublisher)
	d := NewDispatcher(cache, notifier, pub, discard())

	ev := domain.BookingCreated{BookingID: uuid.New(), TripID: 4, SeatCodes: []string{"1"}}

	cache.On("InvalidateTrip", mock.Anything, int64(4)).Return(nil)
	notifier.On("PublishTripChanged", mock.Anything, int64(4), ReasonBooked).Return(nil)
	pub.On("Publish", mock.Anything, rabbitmq.QueueBookingCreated, ev).Return(nil)

	d.BookingCreated(context.Background(), ev)

	cache.AssertExpectations(t)
	notifier.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestDispatcher_FailingSinkDoesNotStopOthers(t *testing.T) {
	cache := new(MockCache)
	notifier := new(MockNotifier)
	pub := new(MockPublisher)
	d := NewDispatcher(cache, notifier, pub, discard())

	ev := domain.TicketChanged{TicketID: uuid.New(), TripID: 9, Released: true}

	cache.On("InvalidateTrip", mock.Anything, int64(9)).Return(errors.New("redis down"))
	notifier.On("PublishTripChanged", mock.Anything, int64(9), ReasonReleased).Return(errors.New("redis down"))
	pub.On("Publish", mock.Anything, rabbitmq.QueueTicketReleased, ev).Return(nil)

	d.TicketChanged(context.Background(), ev)

	cache.AssertExpectations(t)
	notifier.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestDispatcher_UsedTicketKeepsCache(t *testing.T) {
	cache := new(MockCache)
	notifier := new(MockNotifier)
	pub := new(MockPublisher)
	d := NewDispatcher(cache, notifier, pub, discard())

	ev := domain.TicketChanged{TicketID: uuid.New(), TripID: 2, Status: domain.TicketUsed}

	notifier.On("PublishTripChanged", mock.Anything, int64(2), ReasonUsed).Return(nil)
	pub.On("Publish", mock.Anything, rabbitmq.QueueTicketUsed, ev).Return(nil)

	d.TicketChanged(context.Background(), ev)

	cache.AssertNotCalled(t, "InvalidateTrip", mock.Anything, mock.Anything)
	pub.AssertExpectations(t)
}

func TestDispatcher_NilSinks(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, discard())

	assert.NotPanics(t, func() {
		d.BookingCreated(context.Background(), domain.BookingCreated{TripID: 1})
		d.TripChanged(context.Background(), 1, "cancelled")
	})
}

type chanSource struct {
	ch chan redisrepo.TripChanged
}

func (s *chanSource) Subscribe(ctx context.Context, handler func(ctx context.Context, msg redisrepo.TripChanged)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-s.ch:
			handler(ctx, m)
		}
	}
}

func TestHub_RoutesByTrip(t *testing.T) {
	src := &chanSource{ch: make(chan redisrepo.TripChanged)}
	hub := NewHub(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	one, unsubOne := hub.Subscribe(1)
	two, unsubTwo := hub.Subscribe(2)
	defer unsubTwo()

	src.ch <- redisrepo.TripChanged{TripID: 1, Reason: ReasonBooked}

	select {
	case m := <-one:
		assert.Equal(t, ReasonBooked, m.Reason)
	case <-time.After(time.Second):
		t.Fatal("no message for trip 1")
	}

	select {
	case m := <-two:
		t.Fatalf("unexpected message for trip 2: %+v", m)
	default:
	}

	unsubOne()
	unsubOne()
	_, open := <-one
	assert.False(t, open)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(&chanSource{ch: make(chan redisrepo.TripChanged)})

	ch, unsub := hub.Subscribe(7)
	hub.Close()

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing after Close must not close the channel twice.
	assert.NotPanics(t, unsub)
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	hub := NewHub(&chanSource{ch: make(chan redisrepo.TripChanged)})
	hub.Close()

	ch, unsub := hub.Subscribe(7)

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription after Close never ended")
	}
	assert.NotPanics(t, unsub)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Empty(t, hub.subs)
}
