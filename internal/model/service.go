package model

// Service is a scheduled departure offering a fixed set of seats.
// The descriptive fields are immutable after creation and the seat
// set is created atomically together with the service row.  Seat
// state afterwards changes only through the reservation engine.
//
// Fields:
//  ID            – opaque identifier assigned at creation.
//  Name          – display name of the departure.
//  Origin        – departure location (serialised as "from").
//  Destination   – arrival location (serialised as "to").
//  Date          – travel date as supplied by the operator.
//  DepartureTime – departure time as supplied by the operator.
//  Price         – seat price for this departure.
//  Seats         – ordered seat set, numbered 1..N.
type Service struct {
    ID            string  `json:"id"`
    Name          string  `json:"name"`
    Origin        string  `json:"from"`
    Destination   string  `json:"to"`
    Date          string  `json:"date"`
    DepartureTime string  `json:"departureTime"`
    Price         float64 `json:"price"`
    Seats         []Seat  `json:"seats"`
}
