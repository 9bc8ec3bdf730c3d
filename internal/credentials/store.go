package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs, narrow enough for
// pgxmock to stand in during tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the credential store shared by the import orchestrator (reads) and
// the refresh worker (writes). Upsert replaces the whole record atomically;
// concurrent readers observe either the old or the new value, never a torn one.
type Store interface {
	Get(ctx context.Context, locationID string) (*Credential, error)
	List(ctx context.Context) ([]Credential, error)
	Upsert(ctx context.Context, cred Credential) error
}

// PostgresStore persists credentials in the ghl_credentials table.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore creates a Postgres-backed credential store.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("credentials: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, locationID string) (*Credential, error) {
	query := `
		SELECT location_id, access_token, refresh_token, expires_at,
		       COALESCE(company_id, ''), COALESCE(user_id, ''),
		       COALESCE(user_type, ''), COALESCE(scope, ''),
		       created_at, updated_at
		FROM ghl_credentials
		WHERE location_id = $1
	`
	var cred Credential
	err := s.pool.QueryRow(ctx, query, locationID).Scan(
		&cred.LocationID,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
		&cred.CompanyID,
		&cred.UserID,
		&cred.UserType,
		&cred.Scope,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("credentials: get: %w", err)
	}
	return &cred, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Credential, error) {
	query := `
		SELECT location_id, access_token, refresh_token, expires_at,
		       COALESCE(company_id, ''), COALESCE(user_id, ''),
		       COALESCE(user_type, ''), COALESCE(scope, ''),
		       created_at, updated_at
		FROM ghl_credentials
		ORDER BY location_id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("credentials: list: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		var cred Credential
		if err := rows.Scan(
			&cred.LocationID,
			&cred.AccessToken,
			&cred.RefreshToken,
			&cred.ExpiresAt,
			&cred.CompanyID,
			&cred.UserID,
			&cred.UserType,
			&cred.Scope,
			&cred.CreatedAt,
			&cred.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("credentials: scan row: %w", err)
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

// Upsert inserts or fully replaces the credential for a location.
// Last write wins; there are no merge semantics.
func (s *PostgresStore) Upsert(ctx context.Context, cred Credential) error {
	query := `
		INSERT INTO ghl_credentials (
			location_id, access_token, refresh_token, expires_at,
			company_id, user_id, user_type, scope, updated_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NOW())
		ON CONFLICT (location_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			company_id = COALESCE(EXCLUDED.company_id, ghl_credentials.company_id),
			user_id = COALESCE(EXCLUDED.user_id, ghl_credentials.user_id),
			user_type = COALESCE(EXCLUDED.user_type, ghl_credentials.user_type),
			scope = COALESCE(EXCLUDED.scope, ghl_credentials.scope),
			updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query,
		cred.LocationID,
		cred.AccessToken,
		cred.RefreshToken,
		cred.ExpiresAt,
		cred.CompanyID,
		cred.UserID,
		cred.UserType,
		cred.Scope,
	)
	if err != nil {
		return fmt.Errorf("credentials: upsert: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory credential store for tests and local runs.
// Records are replaced whole under the lock.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

func (s *MemoryStore) Get(ctx context.Context, locationID string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[locationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Credential, 0, len(s.creds))
	for _, cred := range s.creds {
		out = append(out, cred)
	}
	return out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.creds[cred.LocationID]; ok {
		cred.CreatedAt = existing.CreatedAt
	} else if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	s.creds[cred.LocationID] = cred
	return nil
}
