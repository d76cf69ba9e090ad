package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-bus/internal/domain"
	"github.com/kirinyoku/tix-bus/internal/repository"
	"github.com/kirinyoku/tix-bus/internal/uow"
)

// memStore gives every transaction a snapshot of the committed state and
// validates it at commit time the way the partial unique index on
// (trip_id, seat_code) does, so concurrent bookings really race.
type memStore struct {
	mu     sync.Mutex
	state  memState
	serial atomic.Int64
	txs    atomic.Int64

	// failCommits makes the next n commits fail with a serialization error.
	failCommits atomic.Int64
	// afterTakenSeats runs once, after the first seat pre-check.
	afterTakenSeats func()
	hookFired       atomic.Bool
	// hideTaken makes pre-checks inside transactions see no taken seats, so
	// the conflict only surfaces at commit.
	hideTaken atomic.Bool
	// readErr is returned by Fare when set.
	readErr error
}

type memState struct {
	trips    map[int64]domain.TripCapacity
	fares    map[int64]domain.Fare
	bookings map[uuid.UUID]domain.Booking
	tickets  map[uuid.UUID]domain.Ticket
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		trips:    map[int64]domain.TripCapacity{},
		fares:    map[int64]domain.Fare{},
		bookings: map[uuid.UUID]domain.Booking{},
		tickets:  map[uuid.UUID]domain.Ticket{},
	}}
}

func (s memState) clone() memState {
	out := memState{
		trips:    make(map[int64]domain.TripCapacity, len(s.trips)),
		fares:    make(map[int64]domain.Fare, len(s.fares)),
		bookings: make(map[uuid.UUID]domain.Booking, len(s.bookings)),
		tickets:  make(map[uuid.UUID]domain.Ticket, len(s.tickets)),
	}
	for k, v := range s.trips {
		out.trips[k] = v
	}
	for k, v := range s.fares {
		out.fares[k] = v
	}
	for k, v := range s.bookings {
		out.bookings[k] = v
	}
	for k, v := range s.tickets {
		out.tickets[k] = v
	}
	return out
}

func (m *memStore) addTrip(t domain.TripCapacity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.trips[t.TripID] = t
}

func (m *memStore) addFare(f domain.Fare) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.fares[f.ID] = f
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) activeSeats(tripID int64) map[string]int {
	out := map[string]int{}
	for _, t := range m.snapshot().tickets {
		if t.TripID == tripID && t.Status.Active() {
			out[t.SeatCode]++
		}
	}
	return out
}

func (m *memStore) Reader() Tx {
	return &memTx{store: m, st: m.snapshot(), reader: true}
}

func (m *memStore) InTx(
	ctx context.Context,
	fn func(ctx context.Context, tx Tx, after func(uow.AfterCommit)) error,
) error {
	m.txs.Add(1)

	tx := &memTx{
		store:       m,
		st:          m.snapshot(),
		touched:     map[uuid.UUID]domain.Ticket{},
		bookingBase: map[uuid.UUID]domain.Booking{},
	}

	var hooks []uow.AfterCommit
	if err := fn(ctx, tx, func(h uow.AfterCommit) { hooks = append(hooks, h) }); err != nil {
		return err
	}

	if err := m.commit(tx); err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

func (m *memStore) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCommits.Load() > 0 {
		m.failCommits.Add(-1)
		return errors.Join(repository.ErrSerialization, errors.New("could not serialize access"))
	}

	// Rows locked FOR UPDATE: another writer changing them first aborts us.
	for id, seen := range tx.touched {
		if cur := m.state.tickets[id]; cur.Status != seen.Status {
			return errors.Join(repository.ErrSerialization, errors.New("concurrent update"))
		}
	}
	for id, seen := range tx.bookingBase {
		if cur := m.state.bookings[id]; cur != seen {
			return errors.Join(repository.ErrSerialization, errors.New("concurrent update"))
		}
	}

	for _, nt := range tx.inserted {
		for _, t := range m.state.tickets {
			if t.TripID == nt.TripID && t.SeatCode == nt.SeatCode && t.Status.Active() {
				return &repository.SeatConflictError{TripID: nt.TripID, SeatCode: nt.SeatCode}
			}
		}
	}

	for id := range tx.touched {
		m.state.tickets[id] = tx.st.tickets[id]
	}
	for _, nt := range tx.inserted {
		m.state.tickets[nt.ID] = tx.st.tickets[nt.ID]
	}
	for _, id := range tx.bookings {
		m.state.bookings[id] = tx.st.bookings[id]
	}

	return nil
}

type memTx struct {
	store       *memStore
	st          memState
	touched     map[uuid.UUID]domain.Ticket
	bookingBase map[uuid.UUID]domain.Booking
	inserted    []domain.Ticket
	bookings    []uuid.UUID
	reader      bool
}

func (t *memTx) TripCapacity(_ context.Context, tripID int64) (*domain.TripCapacity, error) {
	tc, ok := t.st.trips[tripID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tc, nil
}

func (t *memTx) Fare(_ context.Context, fareID int64) (*domain.Fare, error) {
	if t.store.readErr != nil {
		return nil, t.store.readErr
	}
	f, ok := t.st.fares[fareID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (t *memTx) TakenSeats(_ context.Context, tripID int64, seatCodes []string) ([]string, error) {
	var taken []string
	if t.store.hideTaken.Load() && !t.reader {
		return nil, nil
	}
	for _, c := range seatCodes {
		for _, tk := range t.st.tickets {
			if tk.TripID == tripID && tk.SeatCode == c && tk.Status.Active() {
				taken = append(taken, c)
				break
			}
		}
	}

	if h := t.store.afterTakenSeats; h != nil && t.store.hookFired.CompareAndSwap(false, true) {
		h()
	}

	return taken, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *domain.Booking) error {
	t.st.bookings[b.ID] = *b
	t.bookings = append(t.bookings, b.ID)
	return nil
}

func (t *memTx) InsertTickets(_ context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, len(tickets))
	for i, tk := range tickets {
		for _, cur := range t.st.tickets {
			if cur.TripID == tk.TripID && cur.SeatCode == tk.SeatCode && cur.Status.Active() {
				return nil, &repository.SeatConflictError{TripID: tk.TripID, SeatCode: tk.SeatCode}
			}
		}
		tk.SerialNumber = t.store.serial.Add(1)
		t.st.tickets[tk.ID] = tk
		t.inserted = append(t.inserted, tk)
		out[i] = tk
	}
	return out, nil
}

func (t *memTx) RecalculateTotal(_ context.Context, bookingID uuid.UUID) (int64, error) {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return 0, repository.ErrNotFound
	}

	var total int64
	for _, tk := range t.st.tickets {
		if tk.BookingID == bookingID && tk.Status.Active() {
			total += tk.SeatPrice
		}
	}

	b.TotalAmount = total
	t.st.bookings[bookingID] = b

	return total, nil
}

func (t *memTx) TicketForUpdate(_ context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	tk, ok := t.st.tickets[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t.touched != nil {
		t.touched[ticketID] = tk
	}
	return &tk, nil
}

func (t *memTx) SetTicketStatus(_ context.Context, ticketID uuid.UUID, status domain.TicketStatus) error {
	tk, ok := t.st.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	tk.Status = status
	t.st.tickets[ticketID] = tk
	return nil
}

func (t *memTx) ReleaseFromBooking(_ context.Context, bookingID uuid.UUID, amount int64) (domain.BookingStatus, error) {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return "", repository.ErrNotFound
	}

	if t.bookingBase != nil {
		if _, seen := t.bookingBase[bookingID]; !seen {
			t.bookingBase[bookingID] = b
		}
	}

	b.RefundedAmount += amount
	b.Status = domain.BookingReleased
	for _, tk := range t.st.tickets {
		if tk.BookingID == bookingID && tk.Status.Active() {
			b.Status = domain.BookingPartiallyReleased
			break
		}
	}

	t.st.bookings[bookingID] = b
	t.bookings = append(t.bookings, bookingID)

	return b.Status, nil
}

func (t *memTx) BookingWithTickets(_ context.Context, bookingID uuid.UUID) (*domain.BookingWithTickets, error) {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	out := &domain.BookingWithTickets{Booking: b}
	for _, tk := range t.st.tickets {
		if tk.BookingID == bookingID {
			out.Tickets = append(out.Tickets, tk)
		}
	}

	return out, nil
}

type recordingSink struct {
	mu      sync.Mutex
	created []domain.BookingCreated
	changed []domain.TicketChanged
}

func (r *recordingSink) BookingCreated(_ context.Context, ev domain.BookingCreated) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, ev)
}

func (r *recordingSink) TicketChanged(_ context.Context, ev domain.TicketChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, ev)
}
