package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the services and seats tables when they do not
// exist yet. Seats reference their parent service and carry the lock
// metadata used by the reservation engine; the (status, locked_until)
// index serves the sweeper's bulk reclaim.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const services = `CREATE TABLE IF NOT EXISTS services (
		id             CHAR(36)     NOT NULL PRIMARY KEY,
		name           VARCHAR(255) NOT NULL,
		origin         VARCHAR(255) NOT NULL,
		destination    VARCHAR(255) NOT NULL,
		travel_date    VARCHAR(32)  NOT NULL,
		departure_time VARCHAR(32)  NOT NULL,
		price          DOUBLE       NOT NULL,
		created_at     TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_services_route (origin, destination, travel_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

	const seats = `CREATE TABLE IF NOT EXISTS seats (
		id           CHAR(36)     NOT NULL PRIMARY KEY,
		service_id   CHAR(36)     NOT NULL,
		seat_number  INT UNSIGNED NOT NULL,
		status       ENUM('FREE','LOCKED','BOOKED') NOT NULL DEFAULT 'FREE',
		locked_until DATETIME     NULL,
		locked_by    VARCHAR(128) NULL,
		UNIQUE KEY uq_seats_service_number (service_id, seat_number),
		KEY idx_seats_expiry (status, locked_until),
		CONSTRAINT fk_seats_service FOREIGN KEY (service_id) REFERENCES services (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

	if _, err := db.ExecContext(ctx, services); err != nil {
		return fmt.Errorf("create services table: %w", err)
	}
	if _, err := db.ExecContext(ctx, seats); err != nil {
		return fmt.Errorf("create seats table: %w", err)
	}
	return nil
}
