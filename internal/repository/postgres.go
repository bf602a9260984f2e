package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/guregu/null.v4"
)

// PostgresStore keeps tickets in PostgreSQL using pgx directly (no ORM).
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore. The schema must already exist;
// see database.Migrate.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const ticketColumns = `id, plate, vehicle_class, entry_time, exit_time, fee`

func scanTicket(row pgx.Row) (model.Ticket, error) {
	var (
		t     model.Ticket
		class string
	)
	err := row.Scan(&t.ID, &t.Plate, &class, &t.EntryTime, &t.ExitTime, &t.Fee)
	t.VehicleClass = model.VehicleClass(class)
	return t, err
}

// Insert admits t inside a transaction.
//
// The single facility row is locked with SELECT … FOR UPDATE before the
// active tickets are counted. Any concurrent check-in blocks on that lock
// until this transaction commits or rolls back, so the occupancy it then
// reads already includes this ticket and the last spot cannot be handed out
// twice.
func (s *PostgresStore) Insert(ctx context.Context, t model.Ticket, admit AdmitFunc) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var facilityID int
	err = tx.QueryRow(ctx, `SELECT id FROM facility WHERE id = 1 FOR UPDATE`).Scan(&facilityID)
	if err != nil {
		return fmt.Errorf("lock facility row: %w", err)
	}

	var occupied int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE exit_time IS NULL`).Scan(&occupied)
	if err != nil {
		return fmt.Errorf("count active tickets: %w", err)
	}
	if !admit(occupied) {
		return ErrCapacityExceeded
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO tickets (id, plate, vehicle_class, entry_time)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Plate, string(t.VehicleClass), t.EntryTime,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateID
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Checkout locks the ticket row, prices it and records the exit in one
// transaction. A second checkout blocks on the row lock and then sees the
// exit time already set.
func (s *PostgresStore) Checkout(ctx context.Context, id string, exitAt time.Time, price PriceFunc) (_ *model.Ticket, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	t, err := scanTicket(tx.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock ticket row: %w", err)
	}
	if !t.Active() {
		return nil, ErrAlreadyCompleted
	}

	fee, err := price(t)
	if err != nil {
		return nil, fmt.Errorf("price ticket: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE tickets SET exit_time = $2, fee = $3 WHERE id = $1`,
		id, exitAt, fee,
	)
	if err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	t.ExitTime = null.TimeFrom(exitAt)
	t.Fee = null.IntFrom(fee)
	return &t, nil
}

// Get returns a single ticket or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := scanTicket(s.db.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &t, nil
}

// Snapshot returns every ticket, most recent first. A single statement reads
// from one MVCC snapshot, so no half-applied checkout is ever visible.
func (s *PostgresStore) Snapshot(ctx context.Context) ([]model.Ticket, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
