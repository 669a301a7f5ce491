package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// insertBatchSize bounds the rows per INSERT so the statement stays well
// under the placeholder limits of both drivers.
const insertBatchSize = 500

const reservationColumns = `id, sort_order, user_id, name, phone, reserved_at, service,
venue_id, venue_name, venue_lat, venue_lon, status, created_at, checked_in_at, cancelled_at`

// ReservationRepo stores the collection in the reservations table.  The
// sort_order column keeps the newest-first order of the collection; Save
// rewrites the table inside one transaction.  All timestamps are UTC.
type ReservationRepo struct {
	db     *sql.DB
	driver string
}

// NewReservationRepo returns a ReservationRepo for db opened with driver
// ("mysql" or "postgres").
func NewReservationRepo(db *sql.DB, driver string) (*ReservationRepo, error) {
	switch driver {
	case "mysql", "postgres":
	default:
		return nil, ErrUnsupportedDriver
	}
	return &ReservationRepo{db: db, driver: driver}, nil
}

// EnsureSchema creates the reservations table when it does not exist.
func (r *ReservationRepo) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS reservations (
    id            VARCHAR(64)  NOT NULL PRIMARY KEY,
    sort_order    INT          NOT NULL,
    user_id       VARCHAR(64)  NOT NULL DEFAULT '',
    name          VARCHAR(255) NOT NULL,
    phone         VARCHAR(64)  NULL,
    reserved_at   DATETIME(6)  NOT NULL,
    service       VARCHAR(255) NULL,
    venue_id      VARCHAR(64)  NOT NULL,
    venue_name    VARCHAR(255) NOT NULL,
    venue_lat     DOUBLE       NOT NULL,
    venue_lon     DOUBLE       NOT NULL,
    status        VARCHAR(16)  NOT NULL,
    created_at    DATETIME(6)  NOT NULL,
    checked_in_at DATETIME(6)  NULL,
    cancelled_at  DATETIME(6)  NULL
)`
	if r.driver == "postgres" {
		ddl = strings.NewReplacer("DATETIME(6)", "TIMESTAMPTZ", "DOUBLE", "DOUBLE PRECISION").Replace(ddl)
	}
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Load returns the collection ordered newest first.
func (r *ReservationRepo) Load(ctx context.Context) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		var order int
		var phone, service sql.NullString
		var status string
		var checkedIn, cancelled sql.NullTime
		if err := rows.Scan(
			&res.ID, &order, &res.UserID, &res.Name, &phone, &res.Datetime, &service,
			&res.Venue.ID, &res.Venue.Name, &res.Venue.Latitude, &res.Venue.Longitude,
			&status, &res.CreatedAt, &checkedIn, &cancelled,
		); err != nil {
			return nil, err
		}
		res.Phone = phone.String
		res.Service = service.String
		res.Status = model.Status(status)
		res.Datetime = res.Datetime.UTC()
		res.CreatedAt = res.CreatedAt.UTC()
		if checkedIn.Valid {
			t := checkedIn.Time.UTC()
			res.CheckedInAt = &t
		}
		if cancelled.Valid {
			t := cancelled.Time.UTC()
			res.CancelledAt = &t
		}
		items = append(items, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Save replaces the table contents with items in a single transaction.
func (r *ReservationRepo) Save(ctx context.Context, items []model.Reservation) error {
	if err := checkUnique(items); err != nil {
		return err
	}
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations`); err != nil {
		return err
	}
	for start := 0; start < len(items); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(items) {
			end = len(items)
		}
		if err := r.insertBatchTx(ctx, tx, items[start:end], start); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// insertBatchTx inserts batch with sort_order values starting at offset.
func (r *ReservationRepo) insertBatchTx(ctx context.Context, tx *sql.Tx, batch []model.Reservation, offset int) error {
	if len(batch) == 0 {
		return nil
	}
	query := `INSERT INTO reservations (` + reservationColumns + `) VALUES `
	args := make([]interface{}, 0, len(batch)*15)
	for i, res := range batch {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			res.ID, offset+i, res.UserID, res.Name, nullString(res.Phone), res.Datetime.UTC(), nullString(res.Service),
			res.Venue.ID, res.Venue.Name, res.Venue.Latitude, res.Venue.Longitude,
			string(res.Status), res.CreatedAt.UTC(), nullTime(res.CheckedInAt), nullTime(res.CancelledAt),
		)
	}
	_, err := tx.ExecContext(ctx, r.rebind(query), args...)
	return err
}

// rebind rewrites ? placeholders to $1..$n for postgres.
func (r *ReservationRepo) rebind(q string) string {
	if r.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, ch := range q {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
