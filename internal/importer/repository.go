package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pgx surface the repository needs; pgxmock satisfies it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists imported appointments. Rows are insert-only; the only
// later write is attaching a booking ID.
type Repository interface {
	Insert(ctx context.Context, appt *ImportedAppointment) error
	SetBookingID(ctx context.Context, id uuid.UUID, bookingID string) error
	ListPast(ctx context.Context, locationID string, limit, offset int) ([]ImportedAppointment, int, error)
}

// PostgresRepository stores rows in the imported_appointments table.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("importer: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, appt *ImportedAppointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	query := `
		INSERT INTO imported_appointments (
			id, location_id, batch_ref, name, email, phone, service_name,
			start_time, end_time, timezone, is_past, booking_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''))
	`
	_, err := r.pool.Exec(ctx, query,
		appt.ID,
		appt.LocationID,
		appt.BatchRef,
		appt.Name,
		appt.Email,
		appt.Phone,
		appt.ServiceName,
		appt.StartTime,
		appt.EndTime,
		appt.Timezone,
		appt.IsPast,
		appt.BookingID,
	)
	if err != nil {
		return fmt.Errorf("importer: insert appointment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetBookingID(ctx context.Context, id uuid.UUID, bookingID string) error {
	query := `UPDATE imported_appointments SET booking_id = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, bookingID)
	if err != nil {
		return fmt.Errorf("importer: set booking id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("importer: set booking id: appointment %s not found", id)
	}
	return nil
}

func (r *PostgresRepository) ListPast(ctx context.Context, locationID string, limit, offset int) ([]ImportedAppointment, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM imported_appointments WHERE location_id = $1 AND is_past`
	if err := r.pool.QueryRow(ctx, countQuery, locationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("importer: count past appointments: %w", err)
	}

	query := `
		SELECT id, location_id, batch_ref, name, email, COALESCE(phone, ''),
		       service_name, start_time, end_time, COALESCE(timezone, ''),
		       is_past, COALESCE(booking_id, ''), created_at
		FROM imported_appointments
		WHERE location_id = $1 AND is_past
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, locationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("importer: list past appointments: %w", err)
	}
	defer rows.Close()

	var out []ImportedAppointment
	for rows.Next() {
		var a ImportedAppointment
		if err := rows.Scan(
			&a.ID,
			&a.LocationID,
			&a.BatchRef,
			&a.Name,
			&a.Email,
			&a.Phone,
			&a.ServiceName,
			&a.StartTime,
			&a.EndTime,
			&a.Timezone,
			&a.IsPast,
			&a.BookingID,
			&a.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("importer: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// MemoryRepository is an in-memory repository for tests.
type MemoryRepository struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*ImportedAppointment

	// failInsertFor simulates persistence failures by email, for tests.
	failInsertFor     map[string]error
	failSetBookingFor map[string]error
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appts: make(map[uuid.UUID]*ImportedAppointment)}
}

func (r *MemoryRepository) Insert(ctx context.Context, appt *ImportedAppointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.failInsertFor[appt.Email]; ok {
		return err
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.CreatedAt = time.Now().UTC()
	stored := *appt
	r.appts[appt.ID] = &stored
	return nil
}

func (r *MemoryRepository) SetBookingID(ctx context.Context, id uuid.UUID, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return fmt.Errorf("importer: appointment %s not found", id)
	}
	if err, ok := r.failSetBookingFor[appt.Email]; ok {
		return err
	}
	appt.BookingID = bookingID
	return nil
}

func (r *MemoryRepository) ListPast(ctx context.Context, locationID string, limit, offset int) ([]ImportedAppointment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var past []ImportedAppointment
	for _, a := range r.appts {
		if a.LocationID == locationID && a.IsPast {
			past = append(past, *a)
		}
	}
	sort.Slice(past, func(i, j int) bool { return past[i].StartTime.After(past[j].StartTime) })

	total := len(past)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return past[offset:end], total, nil
}

// All returns every stored appointment, for assertions in tests.
func (r *MemoryRepository) All() []ImportedAppointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ImportedAppointment, 0, len(r.appts))
	for _, a := range r.appts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}
