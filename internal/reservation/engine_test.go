package reservation

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/iliyamo/transit-seat-reservation/internal/model"
    "github.com/iliyamo/transit-seat-reservation/internal/repository"
)

// memLedger is an in-memory Ledger with the same contract as the SQL
// repository: conditional updates check and write under one lock, and
// the bulk reclaim re-evaluates its predicate seat by seat at write
// time.
type memLedger struct {
    mu    sync.Mutex
    seats map[string]map[string]*model.Seat // serviceID -> seatID -> seat

    updateErr  error // returned by every ConditionalUpdateSeat when set
    reclaimErr error // returned by the next BulkReclaimExpiredLocks, then cleared

    reclaims chan struct{} // receives one signal per reclaim call when set
}

func newMemLedger() *memLedger {
    return &memLedger{seats: make(map[string]map[string]*model.Seat)}
}

func (m *memLedger) add(serviceID string, seat model.Seat) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.seats[serviceID] == nil {
        m.seats[serviceID] = make(map[string]*model.Seat)
    }
    s := seat
    m.seats[serviceID][seat.ID] = &s
}

func (m *memLedger) get(serviceID, seatID string) model.Seat {
    m.mu.Lock()
    defer m.mu.Unlock()
    return *m.seats[serviceID][seatID]
}

func (m *memLedger) GetSeat(ctx context.Context, serviceID, seatID string) (*model.Seat, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    svc, ok := m.seats[serviceID]
    if !ok {
        return nil, repository.ErrServiceNotFound
    }
    seat, ok := svc[seatID]
    if !ok {
        return nil, repository.ErrSeatNotFound
    }
    cp := *seat
    return &cp, nil
}

func (m *memLedger) ConditionalUpdateSeat(ctx context.Context, serviceID, seatID, expectedStatus, newStatus string, lockedUntil *time.Time, lockedBy *string) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.updateErr != nil {
        return 0, m.updateErr
    }
    seat, ok := m.seats[serviceID][seatID]
    if !ok || seat.Status != expectedStatus {
        return 0, nil
    }
    seat.Status = newStatus
    seat.LockedUntil = lockedUntil
    seat.LockedBy = lockedBy
    return 1, nil
}

func (m *memLedger) BulkReclaimExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
    m.mu.Lock()
    if m.reclaims != nil {
        select {
        case m.reclaims <- struct{}{}:
        default:
        }
    }
    if err := m.reclaimErr; err != nil {
        m.reclaimErr = nil
        m.mu.Unlock()
        return 0, err
    }
    var n int64
    for _, svc := range m.seats {
        for _, seat := range svc {
            if seat.Status == model.SeatStatusLocked && seat.LockedUntil != nil && seat.LockedUntil.Before(now) {
                seat.Status = model.SeatStatusFree
                seat.LockedUntil = nil
                seat.LockedBy = nil
                n++
            }
        }
    }
    m.mu.Unlock()
    return n, nil
}

func newTestEngine(t *testing.T, ttl time.Duration) (*Engine, *memLedger, *time.Time) {
    t.Helper()
    ml := newMemLedger()
    eng := NewEngine(ml, ttl)
    now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
    eng.now = func() time.Time { return now }
    return eng, ml, &now
}

func TestLockTransitionsFreeSeat(t *testing.T) {
    eng, ml, now := newTestEngine(t, 3*time.Minute)
    ml.add("svc1", model.Seat{ID: "s1", Number: 1, Status: model.SeatStatusFree})

    until, err := eng.Lock(context.Background(), "svc1", "s1", "client-7")
    if err != nil {
        t.Fatalf("Lock: %v", err)
    }
    if want := now.Add(3 * time.Minute); !until.Equal(want) {
        t.Fatalf("lockedUntil = %v, want %v", until, want)
    }

    seat := ml.get("svc1", "s1")
    if seat.Status != model.SeatStatusLocked {
        t.Fatalf("status = %s, want LOCKED", seat.Status)
    }
    if seat.LockedUntil == nil || !seat.LockedUntil.Equal(until) {
        t.Fatalf("seat lockedUntil = %v, want %v", seat.LockedUntil, until)
    }
    if seat.LockedBy == nil || *seat.LockedBy != "client-7" {
        t.Fatalf("lockedBy = %v, want client-7", seat.LockedBy)
    }
}

func TestLockConflicts(t *testing.T) {
    eng, ml, _ := newTestEngine(t, 3*time.Minute)
    ml.add("svc1", model.Seat{ID: "locked", Number: 1, Status: model.SeatStatusFree})
    ml.add("svc1", model.Seat{ID: "booked", Number: 2, Status: model.SeatStatusBooked})

    if _, err := eng.Lock(context.Background(), "svc1", "locked", ""); err != nil {
        t.Fatalf("first Lock: %v", err)
    }
    if _, err := eng.Lock(context.Background(), "svc1", "locked", ""); !errors.Is(err, ErrSeatLocked) {
        t.Fatalf("Lock on LOCKED seat: got %v, want ErrSeatLocked", err)
    }
    if _, err := eng.Lock(context.Background(), "svc1", "booked", ""); !errors.Is(err, ErrSeatBooked) {
        t.Fatalf("Lock on BOOKED seat: got %v, want ErrSeatBooked", err)
    }
}

func TestLockUnknownIdentifiers(t *testing.T) {
    eng, ml, _ := newTestEngine(t, 3*time.Minute)
    ml.add("svc1", model.Seat{ID: "s1", Number: 1, Status: model.SeatStatusFree})

    if _, err := eng.Lock(context.Background(), "nope", "s1", ""); !errors.Is(err, repository.ErrServiceNotFound) {
        t.Fatalf("unknown service: got %v, want ErrServiceNotFound", err)
    }
    if _, err := eng.Lock(context.Background(), "svc1", "nope", ""); !errors.Is(err, repository.ErrSeatNotFound) {
        t.Fatalf("unknown seat: got %v, want ErrSeatNotFound", err)
    }
}

func TestConcurrentLocksSingleWinner(t *testing.T) {
    ml := newMemLedger()
    ml.add("svc1", model.Seat{ID: "s1", Number: 1, Status: model.SeatStatusFree})
    eng := NewEngine(ml, 3*time.Minute)

    const callers = 32
    errs := make([]error, callers)
    var wg sync.WaitGroup
    wg.Add(callers)
    for i := 0; i < callers; i++ {
        go func(i int) {
            defer wg.Done()
            _, errs[i] = eng.Lock(context.Background(), "svc1", "s1", "")
        }(i)
    }
    wg.Wait()

    wins, conflicts := 0, 0
    for _, err := range errs {
        switch {
        case err == nil:
            wins++
        case errors.Is(err, ErrSeatLocked):
            conflicts++
        default:
            t.Fatalf("unexpected error: %v", err)
        }
    }
    if wins != 1 || conflicts != callers-1 {
        t.Fatalf("wins = %d, conflicts = %d; want exactly 1 winner", wins, conflicts)
    }
}

func TestBookRequiresLock(t *testing.T) {
    eng, ml, _ := newTestEngine(t, 3*time.Minute)
    ml.add("svc1", model.Seat{ID: "s1", Number: 1, Status: model.SeatStatusFree})

    if err := eng.Book(context.Background(), "svc1", "s1"); !errors.Is(err, ErrSeatNotLocked) {
        t.Fatalf("Book on FREE seat: got %v, want ErrSeatNotLocked", err)
    }
}

func TestBookClearsLockMetadata(t *testing.T) {
    eng, ml, _ := newTestEngine(t, 3*time.Minute)
    ml.add("svc1", model.Seat{ID: "s1", Number: 1, Status: model.SeatStatusFree})

    if _, err := eng.Lock(context.Background(), "svc1", "s1", "client-7"); err != nil {
        t.Fatalf("Lock: %v", err)
    }
    if err := eng.Book(context.Background(), "svc1", "s1"); err != nil {
        t.Fatalf("Book: %v", err)
    }

    seat := ml.get("svc1", "s1")
    if seat.Status != model.SeatStatusBooked {
        t.Fatalf("status = %s, want BOOKED", seat.Status)
    }
    if seat.LockedUntil != nil || seat.LockedBy != nil {
        t.Fatalf("lock metadata not cleared: until=%v by=%v", seat.LockedUntil, seat.LockedBy)
    }

    if err := eng.Book(context.Background(), "svc1", "s1"); !errors.Is(err, ErrSeatBooked) {
        t.Fatalf("second Book: got %v, want ErrSeatBooked", err)
    }
}

func TestConcurrentBooksSingleWinner(t *testing.T) {
    ml := newMemLedger()
    ml.add("svc1", model.Seat{ID: "s1", Number: 1, Status: model.SeatStatusFree})
    eng := NewEngine(ml, 3*time.Minute)
    if _, err := eng.Lock(context.Background(), "svc1", "s1", ""); err != nil {
        t.Fatalf("Lock: %v", err)
    }

    const callers = 16
    errs := make([]error, callers)
    var wg sync.WaitGroup
    wg.Add(callers)
    for i := 0; i < callers; i++ {
        go func(i int) {
            defer wg.Done()
            errs[i] = eng.Book(context.Background(), "svc1", "s1")
        }(i)
    }
    wg.Wait()

    wins := 0
    for _, err := range errs {
        if err == nil {
            wins++
        } else if !errors.Is(err, ErrSeatBooked) {
            t.Fatalf("unexpected error: %v", err)
        }
    }
    if wins != 1 {
        t.Fatalf("wins = %d, want exactly 1", wins)
    }
}

// A lock whose expiry has passed but has not been swept yet must still
// be bookable: Book checks only the current status.
func TestExpiredUnsweptLockStillBookable(t *testing.T) {
    eng, ml, now := newTestEngine(t, 3*time.Minute)
    ml.add("svc1", model.Seat{ID: "s1", Number: 1, Status: model.SeatStatusFree})

    if _, err := eng.Lock(context.Background(), "svc1", "s1", ""); err != nil {
        t.Fatalf("Lock: %v", err)
    }
    *now = now.Add(10 * time.Minute)

    if err := eng.Book(context.Background(), "svc1", "s1"); err != nil {
        t.Fatalf("Book after expiry, before sweep: %v", err)
    }
}

func TestReclaimExpiredFreesOnlyExpiredLocks(t *testing.T) {
    eng, ml, now := newTestEngine(t, 3*time.Minute)
    expired := *now
    holder := "ghost"
    ml.add("svc1", model.Seat{ID: "expired", Number: 1, Status: model.SeatStatusLocked, LockedUntil: &expired, LockedBy: &holder})
    active := now.Add(2 * time.Minute)
    ml.add("svc1", model.Seat{ID: "active", Number: 2, Status: model.SeatStatusLocked, LockedUntil: &active})
    ml.add("svc1", model.Seat{ID: "booked", Number: 3, Status: model.SeatStatusBooked})

    *now = now.Add(time.Minute)
    n, err := eng.ReclaimExpired(context.Background())
    if err != nil {
        t.Fatalf("ReclaimExpired: %v", err)
    }
    if n != 1 {
        t.Fatalf("reclaimed = %d, want 1", n)
    }

    if s := ml.get("svc1", "expired"); s.Status != model.SeatStatusFree || s.LockedUntil != nil || s.LockedBy != nil {
        t.Fatalf("expired seat not fully released: %+v", s)
    }
    if s := ml.get("svc1", "active"); s.Status != model.SeatStatusLocked {
        t.Fatalf("active lock must survive the sweep, got %s", s.Status)
    }
    if s := ml.get("svc1", "booked"); s.Status != model.SeatStatusBooked {
        t.Fatalf("booked seat must never be touched, got %s", s.Status)
    }

    // idempotent
    if n, err := eng.ReclaimExpired(context.Background()); err != nil || n != 0 {
        t.Fatalf("second reclaim: n=%d err=%v, want 0, nil", n, err)
    }
}

// Full lifecycle: lock, conflicting lock, book, conflicting book, then
// an unbooked lock expiring and becoming lockable again.
func TestSeatLifecycleScenario(t *testing.T) {
    eng, ml, now := newTestEngine(t, 3*time.Minute)
    ml.add("svc1", model.Seat{ID: "seat1", Number: 1, Status: model.SeatStatusFree})
    ml.add("svc1", model.Seat{ID: "seat2", Number: 2, Status: model.SeatStatusFree})
    ctx := context.Background()

    if _, err := eng.Lock(ctx, "svc1", "seat1", ""); err != nil {
        t.Fatalf("lock seat1: %v", err)
    }
    if _, err := eng.Lock(ctx, "svc1", "seat1", ""); !errors.Is(err, ErrSeatLocked) {
        t.Fatalf("relock seat1: got %v, want ErrSeatLocked", err)
    }
    if err := eng.Book(ctx, "svc1", "seat1"); err != nil {
        t.Fatalf("book seat1: %v", err)
    }
    if err := eng.Book(ctx, "svc1", "seat1"); !errors.Is(err, ErrSeatBooked) {
        t.Fatalf("rebook seat1: got %v, want ErrSeatBooked", err)
    }

    if _, err := eng.Lock(ctx, "svc1", "seat2", ""); err != nil {
        t.Fatalf("lock seat2: %v", err)
    }
    // Before the TTL elapses the lock must hold.
    *now = now.Add(time.Minute)
    if n, err := eng.ReclaimExpired(ctx); err != nil || n != 0 {
        t.Fatalf("premature reclaim: n=%d err=%v", n, err)
    }
    // After the TTL the sweeper frees the seat and it is lockable again.
    *now = now.Add(3 * time.Minute)
    if n, err := eng.ReclaimExpired(ctx); err != nil || n != 1 {
        t.Fatalf("reclaim seat2: n=%d err=%v, want 1", n, err)
    }
    if s := ml.get("svc1", "seat2"); s.Status != model.SeatStatusFree {
        t.Fatalf("seat2 = %s, want FREE", s.Status)
    }
    if _, err := eng.Lock(ctx, "svc1", "seat2", ""); err != nil {
        t.Fatalf("relock seat2 after expiry: %v", err)
    }
}

func TestLockPropagatesLedgerError(t *testing.T) {
    eng, ml, _ := newTestEngine(t, 3*time.Minute)
    ml.add("svc1", model.Seat{ID: "s1", Number: 1, Status: model.SeatStatusFree})
    ml.updateErr = errors.New("store unavailable")

    if _, err := eng.Lock(context.Background(), "svc1", "s1", ""); err == nil || err.Error() != "store unavailable" {
        t.Fatalf("expected store error to propagate, got %v", err)
    }
    if s := ml.get("svc1", "s1"); s.Status != model.SeatStatusFree {
        t.Fatalf("failed lock must not mutate state, got %s", s.Status)
    }
}
