package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/transit-seat-reservation/internal/logger"
)

const seatBookedQueueName = "seat.booked"

// StartSeatBookedConsumer connects to RabbitMQ, declares the durable
// seat.booked queue and starts consuming. Each event is appended to
// logs/booking.log in a single-line, human-friendly format. The
// function runs a reconnect loop with backoff and keeps running across
// broker outages until ctx is cancelled; processing errors are logged
// and the offending message is rejected without requeueing so the loop
// never spins.
func StartSeatBookedConsumer(ctx context.Context, brokerURL string, log logger.Logger) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(brokerURL)
        if err != nil {
            log.Warnf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        if err != nil {
            log.Warnf("booking-consumer: consume loop ended: %v; reconnecting", err)
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(2 * time.Second):
            }
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, log logger.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warnf("booking-consumer: set QoS failed: %v", err)
    }

    if _, err := ch.QueueDeclare(seatBookedQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(seatBookedQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(d.Body); err != nil {
                log.Errorf("booking-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(body []byte) error {
    var ev SeatBookedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll("logs", 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    fpath := filepath.Join("logs", "booking.log")
    f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] Seat booked | service=%q %s -> %s | date=%s %s | seat=#%d (%s) | price=%.2f\n",
        ev.BookedAt, ev.ServiceName, ev.Origin, ev.Destination, ev.Date, ev.DepartureTime,
        ev.SeatNumber, ev.SeatID, ev.Price)

    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
