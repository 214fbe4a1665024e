// Package queue defines message payloads exchanged over the message broker.
package queue

// SeatBookedEvent is published when a seat booking is confirmed. It
// carries enough context for downstream consumers to log, notify or
// feed analytics without querying the primary database.
type SeatBookedEvent struct {
    ServiceID     string  `json:"service_id"`
    ServiceName   string  `json:"service_name"`
    Origin        string  `json:"from"`
    Destination   string  `json:"to"`
    Date          string  `json:"date"`
    DepartureTime string  `json:"departure_time"`
    SeatID        string  `json:"seat_id"`
    SeatNumber    uint32  `json:"seat_number"`
    Price         float64 `json:"price"`
    BookedAt      string  `json:"booked_at"`
}
