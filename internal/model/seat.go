package model

import "time"

// Seat status values. A seat starts FREE, becomes LOCKED while a
// purchaser completes checkout, and ends up BOOKED once the purchase
// is confirmed. A LOCKED seat whose lock expires unconfirmed is
// returned to FREE by the background sweeper.
const (
    SeatStatusFree   = "FREE"
    SeatStatusLocked = "LOCKED"
    SeatStatusBooked = "BOOKED"
)

// Seat is a bookable unit inside a Service. Seats are created together
// with their parent service and are never added or removed afterwards.
//
// Fields:
//  ID          – opaque identifier, stable for the seat's lifetime.
//  Number      – 1-based position, unique within the parent service.
//  Status      – FREE, LOCKED or BOOKED.
//  LockedUntil – lock expiry instant; set if and only if Status is LOCKED.
//  LockedBy    – opaque holder identifier supplied at lock time.
//                Informational only; it is never checked when the
//                booking is confirmed.
type Seat struct {
    ID          string     `json:"id"`
    Number      uint32     `json:"number"`
    Status      string     `json:"status"`
    LockedUntil *time.Time `json:"lockedUntil,omitempty"`
    LockedBy    *string    `json:"lockedBy,omitempty"`
}
