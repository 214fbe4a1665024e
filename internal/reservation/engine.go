// Package reservation implements the seat state machine: FREE seats can
// be locked for a bounded time, LOCKED seats can be booked, and locks
// that expire unconfirmed are reclaimed back to FREE. Correctness under
// concurrent callers rests entirely on the ledger's conditional-write
// primitive; the engine never serialises transitions with in-process
// locking and never uses a read-then-write pair as a source of truth.
package reservation

import (
    "context"
    "errors"
    "time"

    "github.com/iliyamo/transit-seat-reservation/internal/model"
)

// DefaultLockTTL is how long a seat stays locked before the lock
// becomes reclaimable.
const DefaultLockTTL = 3 * time.Minute

// ErrSeatLocked is returned when a lock attempt finds the seat already
// locked (or loses a race for it). Handlers translate this into 409.
var ErrSeatLocked = errors.New("seat already locked")

// ErrSeatBooked is returned when the seat has already been booked.
var ErrSeatBooked = errors.New("seat already booked")

// ErrSeatNotLocked is returned when a booking is attempted on a seat
// that was never locked. A seat must be locked before it can be booked.
var ErrSeatNotLocked = errors.New("seat not locked")

// Ledger is the durable store the engine runs against. Implementations
// must guarantee that ConditionalUpdateSeat checks its precondition and
// applies the new fields as one indivisible operation, and that
// BulkReclaimExpiredLocks re-evaluates its predicate per row at write
// time. The SQL-backed repository satisfies this; tests use an
// in-memory fake with the same guarantees.
type Ledger interface {
    GetSeat(ctx context.Context, serviceID, seatID string) (*model.Seat, error)
    ConditionalUpdateSeat(ctx context.Context, serviceID, seatID, expectedStatus, newStatus string, lockedUntil *time.Time, lockedBy *string) (int64, error)
    BulkReclaimExpiredLocks(ctx context.Context, now time.Time) (int64, error)
}

// Engine enforces the seat state machine against a Ledger. It is safe
// for concurrent use; under racing calls on the same seat at most one
// transition wins and every loser observes a conflict error.
type Engine struct {
    ledger Ledger
    ttl    time.Duration
    now    func() time.Time
}

// NewEngine constructs an Engine with the given lock TTL. A zero or
// negative ttl falls back to DefaultLockTTL.
func NewEngine(ledger Ledger, ttl time.Duration) *Engine {
    if ttl <= 0 {
        ttl = DefaultLockTTL
    }
    return &Engine{
        ledger: ledger,
        ttl:    ttl,
        now:    func() time.Time { return time.Now().UTC() },
    }
}

// LockTTL reports the configured lock duration.
func (e *Engine) LockTTL() time.Duration {
    return e.ttl
}

// Lock transitions a FREE seat to LOCKED with expiry now+TTL and
// returns the expiry instant. holder, when non-empty, is recorded as
// the lock owner for informational purposes. When the seat is not FREE
// the call fails with ErrSeatLocked or ErrSeatBooked; an unknown
// service or seat id yields the repository's not-found error.
func (e *Engine) Lock(ctx context.Context, serviceID, seatID, holder string) (time.Time, error) {
    until := e.now().Add(e.ttl)
    var by *string
    if holder != "" {
        by = &holder
    }
    n, err := e.ledger.ConditionalUpdateSeat(ctx, serviceID, seatID,
        model.SeatStatusFree, model.SeatStatusLocked, &until, by)
    if err != nil {
        return time.Time{}, err
    }
    if n > 0 {
        return until, nil
    }
    // Zero rows affected: either the seat does not exist or it was not
    // FREE at write time. Re-read only to classify the failure; the
    // conditional write above remains the sole arbiter.
    seat, err := e.ledger.GetSeat(ctx, serviceID, seatID)
    if err != nil {
        return time.Time{}, err
    }
    if seat.Status == model.SeatStatusBooked {
        return time.Time{}, ErrSeatBooked
    }
    return time.Time{}, ErrSeatLocked
}

// Book transitions a LOCKED seat to BOOKED and clears the lock
// metadata. Only the current status is checked: a lock that has
// technically expired but has not been swept yet is still bookable, and
// no ownership check ties the booking to the party that locked the
// seat. A FREE seat fails with ErrSeatNotLocked, a BOOKED one with
// ErrSeatBooked.
func (e *Engine) Book(ctx context.Context, serviceID, seatID string) error {
    n, err := e.ledger.ConditionalUpdateSeat(ctx, serviceID, seatID,
        model.SeatStatusLocked, model.SeatStatusBooked, nil, nil)
    if err != nil {
        return err
    }
    if n > 0 {
        return nil
    }
    seat, err := e.ledger.GetSeat(ctx, serviceID, seatID)
    if err != nil {
        return err
    }
    if seat.Status == model.SeatStatusBooked {
        return ErrSeatBooked
    }
    return ErrSeatNotLocked
}

// ReclaimExpired releases every lock whose expiry lies in the past and
// reports how many seats were freed. It is idempotent; a seat booked
// concurrently is never touched because the ledger re-checks the
// predicate per row when it writes.
func (e *Engine) ReclaimExpired(ctx context.Context) (int64, error) {
    return e.ledger.BulkReclaimExpiredLocks(ctx, e.now())
}
