package repository // repository for service and seat persistence

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/transit-seat-reservation/internal/model"
)

// ServiceRepo encapsulates database operations for services and their
// embedded seats. Seat state is mutated exclusively through conditional
// updates whose WHERE clause carries the expected current status, so a
// mutation either fully applies or affects zero rows. No method ever
// performs an unconditional overwrite of seat state.
type ServiceRepo struct {
    db *sql.DB
}

// NewServiceRepo constructs a ServiceRepo given a DB handle.
func NewServiceRepo(db *sql.DB) *ServiceRepo {
    return &ServiceRepo{db: db}
}

// DB exposes the underlying handle for callers that need to manage
// transactions themselves.
func (r *ServiceRepo) DB() *sql.DB {
    return r.db
}

// CreateService inserts a service together with its full seat set in a
// single transaction. The passed service must already carry generated
// identifiers and seats numbered 1..N, all FREE. Either everything is
// written or nothing is.
func (r *ServiceRepo) CreateService(ctx context.Context, svc *model.Service) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const insSvc = `INSERT INTO services (id, name, origin, destination, travel_date, departure_time, price) VALUES (?, ?, ?, ?, ?, ?, ?)`
    if _, err := tx.ExecContext(ctx, insSvc,
        svc.ID, svc.Name, svc.Origin, svc.Destination, svc.Date, svc.DepartureTime, svc.Price,
    ); err != nil {
        return err
    }

    // Build one multi-row INSERT for the seat set. A service without
    // seats writes only the service row; a VALUES clause with zero
    // tuples would not parse.
    if len(svc.Seats) > 0 {
        query := `INSERT INTO seats (id, service_id, seat_number, status) VALUES `
        args := make([]interface{}, 0, len(svc.Seats)*4)
        for i, s := range svc.Seats {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?)"
            args = append(args, s.ID, svc.ID, s.Number, s.Status)
        }
        if _, err := tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
    }

    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// ServiceFilter narrows a catalog search. A nil field does not
// constrain the result at all; set fields must match exactly. The zero
// value matches every service.
type ServiceFilter struct {
    Origin      *string
    Destination *string
    Date        *string
}

// FindServices returns all services matching the filter, each with its
// ordered seat set. Only the fields actually set take part in the
// WHERE clause, so an empty filter lists the whole catalog. An empty
// result is not an error.
func (r *ServiceRepo) FindServices(ctx context.Context, f ServiceFilter) ([]model.Service, error) {
    q := `SELECT id, name, origin, destination, travel_date, departure_time, price FROM services`
    conds := make([]string, 0, 3)
    args := make([]interface{}, 0, 3)
    if f.Origin != nil {
        conds = append(conds, "origin = ?")
        args = append(args, *f.Origin)
    }
    if f.Destination != nil {
        conds = append(conds, "destination = ?")
        args = append(args, *f.Destination)
    }
    if f.Date != nil {
        conds = append(conds, "travel_date = ?")
        args = append(args, *f.Date)
    }
    if len(conds) > 0 {
        q += " WHERE " + strings.Join(conds, " AND ")
    }
    q += " ORDER BY departure_time ASC"

    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]model.Service, 0)
    for rows.Next() {
        var svc model.Service
        if err := rows.Scan(&svc.ID, &svc.Name, &svc.Origin, &svc.Destination, &svc.Date, &svc.DepartureTime, &svc.Price); err != nil {
            return nil, err
        }
        out = append(out, svc)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    for i := range out {
        seats, err := r.seatsByService(ctx, out[i].ID)
        if err != nil {
            return nil, err
        }
        out[i].Seats = seats
    }
    return out, nil
}

// GetByID returns a single service with its ordered seats, or
// ErrServiceNotFound when the id is unknown.
func (r *ServiceRepo) GetByID(ctx context.Context, id string) (*model.Service, error) {
    const q = `SELECT id, name, origin, destination, travel_date, departure_time, price FROM services WHERE id = ?`
    var svc model.Service
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &svc.ID, &svc.Name, &svc.Origin, &svc.Destination, &svc.Date, &svc.DepartureTime, &svc.Price,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrServiceNotFound
    }
    if err != nil {
        return nil, err
    }
    seats, err := r.seatsByService(ctx, id)
    if err != nil {
        return nil, err
    }
    svc.Seats = seats
    return &svc, nil
}

// seatsByService loads the seat set of one service ordered by number.
func (r *ServiceRepo) seatsByService(ctx context.Context, serviceID string) ([]model.Seat, error) {
    const q = `SELECT id, seat_number, status, locked_until, locked_by FROM seats WHERE service_id = ? ORDER BY seat_number ASC`
    rows, err := r.db.QueryContext(ctx, q, serviceID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    seats := make([]model.Seat, 0)
    for rows.Next() {
        s, err := scanSeat(rows)
        if err != nil {
            return nil, err
        }
        seats = append(seats, *s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

// GetSeat returns one seat of a service. When no such seat exists the
// service row is checked so callers can distinguish an unknown service
// from an unknown seat.
func (r *ServiceRepo) GetSeat(ctx context.Context, serviceID, seatID string) (*model.Seat, error) {
    const q = `SELECT id, seat_number, status, locked_until, locked_by FROM seats WHERE service_id = ? AND id = ?`
    row := r.db.QueryRowContext(ctx, q, serviceID, seatID)
    s, err := scanSeat(row)
    if errors.Is(err, sql.ErrNoRows) {
        const exists = `SELECT 1 FROM services WHERE id = ?`
        var one int
        if err := r.db.QueryRowContext(ctx, exists, serviceID).Scan(&one); err != nil {
            if errors.Is(err, sql.ErrNoRows) {
                return nil, ErrServiceNotFound
            }
            return nil, err
        }
        return nil, ErrSeatNotFound
    }
    if err != nil {
        return nil, err
    }
    return s, nil
}

// ConditionalUpdateSeat performs the atomic test-and-set underpinning
// every seat transition: the new status and lock metadata are written
// only if the seat still carries expectedStatus at the moment the row
// is updated. The returned count is 0 when the precondition no longer
// holds (or the seat does not exist) and 1 when the transition applied.
func (r *ServiceRepo) ConditionalUpdateSeat(ctx context.Context, serviceID, seatID, expectedStatus, newStatus string, lockedUntil *time.Time, lockedBy *string) (int64, error) {
    const q = `UPDATE seats SET status = ?, locked_until = ?, locked_by = ? WHERE service_id = ? AND id = ? AND status = ?`
    res, err := r.db.ExecContext(ctx, q, newStatus, lockedUntil, lockedBy, serviceID, seatID, expectedStatus)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// BulkReclaimExpiredLocks releases every seat across all services whose
// lock expired before now, in one statement. The store re-evaluates the
// predicate per row at write time, so a seat booked concurrently no
// longer matches and is left untouched.
func (r *ServiceRepo) BulkReclaimExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
    const q = `UPDATE seats SET status = 'FREE', locked_until = NULL, locked_by = NULL WHERE status = 'LOCKED' AND locked_until < ?`
    res, err := r.db.ExecContext(ctx, q, now)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanSeat(row rowScanner) (*model.Seat, error) {
    var (
        s     model.Seat
        until sql.NullTime
        by    sql.NullString
    )
    if err := row.Scan(&s.ID, &s.Number, &s.Status, &until, &by); err != nil {
        return nil, err
    }
    if until.Valid {
        t := until.Time
        s.LockedUntil = &t
    }
    if by.Valid {
        v := by.String
        s.LockedBy = &v
    }
    return &s, nil
}
