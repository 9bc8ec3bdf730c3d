package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrMappingNotFound is returned when a location has no mapping for a service
// name. It is a per-row condition for the importer, not a batch failure.
var ErrMappingNotFound = errors.New("mappings: no mapping for service")

// ServiceMapping associates a human-readable service name with the GHL
// service/staff/calendar triple needed to create a booking. The identity key
// is (location_id, lower(service_name)); the name is normalized at write and
// at read, so matching is case-insensitive by construction.
type ServiceMapping struct {
	LocationID  string    `json:"location_id"`
	ServiceName string    `json:"service_name"`
	ServiceID   string    `json:"service_id"`
	StaffID     string    `json:"staff_id"`
	CalendarID  string    `json:"calendar_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NormalizeServiceName produces the canonical lookup key for a service name.
func NormalizeServiceName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolver looks up service mappings. The mapping table is administered
// outside the import pipeline; the importer only reads.
type Resolver interface {
	Resolve(ctx context.Context, locationID, serviceName string) (*ServiceMapping, error)
}

// PgxPool is the pgx surface the resolver needs; pgxmock satisfies it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresResolver reads mappings from the service_mappings table.
type PostgresResolver struct {
	pool PgxPool
}

// NewPostgresResolver creates a Postgres-backed resolver.
func NewPostgresResolver(pool PgxPool) *PostgresResolver {
	if pool == nil {
		panic("mappings: pgx pool required")
	}
	return &PostgresResolver{pool: pool}
}

func (r *PostgresResolver) Resolve(ctx context.Context, locationID, serviceName string) (*ServiceMapping, error) {
	query := `
		SELECT location_id, service_name, service_id, staff_id, calendar_id, created_at
		FROM service_mappings
		WHERE location_id = $1 AND service_name = $2
	`
	var m ServiceMapping
	err := r.pool.QueryRow(ctx, query, locationID, NormalizeServiceName(serviceName)).Scan(
		&m.LocationID,
		&m.ServiceName,
		&m.ServiceID,
		&m.StaffID,
		&m.CalendarID,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("mappings: resolve: %w", err)
	}
	return &m, nil
}

// Upsert inserts or replaces a mapping, normalizing the service name.
func (r *PostgresResolver) Upsert(ctx context.Context, m ServiceMapping) error {
	query := `
		INSERT INTO service_mappings (location_id, service_name, service_id, staff_id, calendar_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (location_id, service_name) DO UPDATE SET
			service_id = EXCLUDED.service_id,
			staff_id = EXCLUDED.staff_id,
			calendar_id = EXCLUDED.calendar_id
	`
	_, err := r.pool.Exec(ctx, query,
		m.LocationID,
		NormalizeServiceName(m.ServiceName),
		m.ServiceID,
		m.StaffID,
		m.CalendarID,
	)
	if err != nil {
		return fmt.Errorf("mappings: upsert: %w", err)
	}
	return nil
}

// MemoryResolver is an in-memory resolver for tests and local runs.
type MemoryResolver struct {
	mu       sync.RWMutex
	mappings map[string]ServiceMapping
}

// NewMemoryResolver creates an empty in-memory resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{mappings: make(map[string]ServiceMapping)}
}

func key(locationID, serviceName string) string {
	return locationID + "\x00" + NormalizeServiceName(serviceName)
}

func (r *MemoryResolver) Resolve(ctx context.Context, locationID, serviceName string) (*ServiceMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappings[key(locationID, serviceName)]
	if !ok {
		return nil, ErrMappingNotFound
	}
	return &m, nil
}

// Add stores a mapping, normalizing the service name.
func (r *MemoryResolver) Add(m ServiceMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m.ServiceName = NormalizeServiceName(m.ServiceName)
	r.mappings[key(m.LocationID, m.ServiceName)] = m
}
