package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brightslot/ghl-importer/internal/credentials"
	"github.com/brightslot/ghl-importer/internal/ghl"
	"github.com/brightslot/ghl-importer/internal/mappings"
	"github.com/brightslot/ghl-importer/internal/observability/metrics"
	"github.com/brightslot/ghl-importer/pkg/logging"
)

// RemoteClient is the subset of the GHL client the orchestrator uses,
// satisfied by *ghl.Client.
type RemoteClient interface {
	FindOrCreateContact(ctx context.Context, accessToken, locationID, name, email, phone string) (string, error)
	CreateServiceBooking(ctx context.Context, accessToken string, req ghl.BookingRequest) (string, error)
}

// Service coordinates one import batch: parse, classify, persist every row,
// and create remote bookings for future rows with a configured mapping.
type Service struct {
	store    credentials.Store
	resolver mappings.Resolver
	repo     Repository
	client   RemoteClient
	cache    *ContactCache
	logger   *logging.Logger
	metrics  *metrics.ImportMetrics
	workers  int
	now      func() time.Time
}

// NewService constructs the import orchestrator.
func NewService(store credentials.Store, resolver mappings.Resolver, repo Repository, client RemoteClient, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		repo:     repo,
		client:   client,
		logger:   logger,
		workers:  4,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithWorkers sets the bounded row-processing parallelism. Worker count also
// caps concurrent remote API calls, respecting the external quota.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithContactCache attaches the contact idempotency cache.
func (s *Service) WithContactCache(cache *ContactCache) *Service {
	s.cache = cache
	return s
}

// WithMetrics attaches import metrics.
func (s *Service) WithMetrics(m *metrics.ImportMetrics) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the reference clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// rowOutcome is one row's contribution to the batch result. Rows are folded
// independently; a failure is data here, never a batch abort.
type rowOutcome struct {
	imported bool
	past     bool
	booked   bool
	errs     []string
}

// Run processes one CSV batch for a location. Request-level failures
// (ErrNoCredentials, *ValidationError) are returned as errors before anything
// is persisted; row-level failures are collected into the result.
func (s *Service) Run(ctx context.Context, locationID string, payload []byte) (*Result, error) {
	started := s.now()

	if _, err := s.store.Get(ctx, locationID); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			s.metrics.ObserveBatch("no_credentials", 0)
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("importer: load credentials: %w", err)
	}

	parsed, err := ParseCSV(payload)
	if err != nil {
		s.metrics.ObserveBatch("validation_error", 0)
		return nil, err
	}

	batchRef := uuid.New().String()
	reference := s.now()
	logger := s.logger.With("location_id", locationID, "batch_ref", batchRef)

	outcomes := make([]rowOutcome, len(parsed.Rows))

	jobs := make(chan int, len(parsed.Rows))
	var wg sync.WaitGroup
	workers := s.workers
	if workers > len(parsed.Rows) && len(parsed.Rows) > 0 {
		workers = len(parsed.Rows)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = s.processRow(ctx, logger, locationID, batchRef, reference, parsed.Rows[idx])
			}
		}()
	}
	for idx := range parsed.Rows {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	result := &Result{
		Success:    true,
		LocationID: locationID,
		BatchRef:   batchRef,
		Errors:     append([]string{}, parsed.RowErrors...),
	}
	for _, o := range outcomes {
		if o.imported {
			result.Imported++
			if o.past {
				result.PastCount++
			} else {
				result.FutureCount++
			}
		}
		if o.booked {
			result.CreatedBookings++
		}
		result.Errors = append(result.Errors, o.errs...)
	}

	s.metrics.ObserveBatch("ok", s.now().Sub(started).Seconds())
	logger.Info("import batch finished",
		"imported", result.Imported,
		"past", result.PastCount,
		"future", result.FutureCount,
		"bookings", result.CreatedBookings,
		"errors", len(result.Errors),
	)
	return result, nil
}

// processRow folds one row: classify, persist unconditionally, then attempt
// the remote booking for future rows.
func (s *Service) processRow(ctx context.Context, logger *logging.Logger, locationID, batchRef string, now time.Time, row Row) rowOutcome {
	var out rowOutcome

	isPast := IsPast(row.StartTime, now)

	appt := &ImportedAppointment{
		ID:          uuid.New(),
		LocationID:  locationID,
		BatchRef:    batchRef,
		Name:        row.Name,
		Email:       row.Email,
		Phone:       row.Phone,
		ServiceName: row.ServiceName,
		StartTime:   row.StartTime,
		EndTime:     row.EndTime,
		Timezone:    row.Timezone,
		IsPast:      isPast,
	}
	if err := s.repo.Insert(ctx, appt); err != nil {
		logger.Error("failed to persist imported appointment",
			"email", row.Email, "error", err)
		s.metrics.ObserveRow("skipped")
		out.errs = append(out.errs,
			fmt.Sprintf("row %d (email=%q) could not be persisted", row.Line, row.Email))
		return out
	}
	out.imported = true
	out.past = isPast

	if isPast {
		s.metrics.ObserveRow("past")
		return out
	}

	// Row-level service/staff IDs take precedence over the mapping table.
	serviceID, staffID, calendarID := row.ServiceID, row.StaffID, ""
	if serviceID == "" || staffID == "" {
		mapping, err := s.resolver.Resolve(ctx, locationID, row.ServiceName)
		if err != nil {
			if errors.Is(err, mappings.ErrMappingNotFound) {
				s.metrics.ObserveRow("no_mapping")
				out.errs = append(out.errs,
					fmt.Sprintf("row %d: no mapping for service_name=%q; row saved without booking", row.Line, row.ServiceName))
				return out
			}
			s.metrics.ObserveRow("mapping_error")
			out.errs = append(out.errs,
				fmt.Sprintf("row %d: mapping lookup failed for service_name=%q: %v", row.Line, row.ServiceName, err))
			return out
		}
		serviceID, staffID, calendarID = mapping.ServiceID, mapping.StaffID, mapping.CalendarID
	}

	bookingID, err := s.createBooking(ctx, locationID, row, serviceID, staffID, calendarID)
	if err != nil {
		s.metrics.ObserveRow("remote_error")
		out.errs = append(out.errs,
			fmt.Sprintf("row %d: booking failed for email=%q, service=%q: %v", row.Line, row.Email, row.ServiceName, err))
		return out
	}
	out.booked = true
	s.metrics.ObserveRow("booked")
	s.metrics.ObserveBookingCreated()

	if err := s.repo.SetBookingID(ctx, appt.ID, bookingID); err != nil {
		// The remote booking exists but the local record lacks its ID; flag
		// it loudly for manual reconciliation rather than dropping it.
		logger.Error("booking created but local record update failed",
			"appointment_id", appt.ID,
			"booking_id", bookingID,
			"error", err,
		)
		out.errs = append(out.errs,
			fmt.Sprintf("row %d: booking %s created but could not be recorded locally; needs manual reconciliation", row.Line, bookingID))
	}
	return out
}

// createBooking resolves the contact and creates the remote booking. The
// credential is re-read from the store per row so a token rotated mid-batch
// by the refresh worker is picked up.
func (s *Service) createBooking(ctx context.Context, locationID string, row Row, serviceID, staffID, calendarID string) (string, error) {
	cred, err := s.store.Get(ctx, locationID)
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}

	contactID, cached := s.cache.Get(ctx, locationID, row.Email)
	if !cached {
		contactID, err = s.client.FindOrCreateContact(ctx, cred.AccessToken, locationID, row.Name, row.Email, row.Phone)
		if err != nil {
			return "", fmt.Errorf("find or create contact: %w", err)
		}
		s.cache.Set(ctx, locationID, row.Email, contactID)
	}

	bookingID, err := s.client.CreateServiceBooking(ctx, cred.AccessToken, ghl.BookingRequest{
		LocationID: locationID,
		ContactID:  contactID,
		ServiceID:  serviceID,
		StaffID:    staffID,
		CalendarID: calendarID,
		StartTime:  row.StartTime,
		EndTime:    row.EndTime,
		Timezone:   row.Timezone,
	})
	if err != nil {
		return "", err
	}
	return bookingID, nil
}
