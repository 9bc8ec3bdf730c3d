package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/brightslot/ghl-importer/internal/ghl"
	"github.com/brightslot/ghl-importer/internal/observability/metrics"
	"github.com/brightslot/ghl-importer/pkg/logging"
)

// TokenRefresher is the OAuth refresh call the worker depends on, satisfied
// by *ghl.OAuthClient.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*ghl.TokenResponse, error)
}

// RefreshReport summarizes one refresh pass over all stored credentials.
type RefreshReport struct {
	Refreshed int
	Failed    int
	Errors    map[string]string // location_id -> error detail
}

// RefreshWorker periodically refreshes every stored GHL credential so the
// booking path never needs interactive re-authorization. GHL access tokens
// live 24h; the default 20h cadence leaves a 4h safety margin.
type RefreshWorker struct {
	store    Store
	oauth    TokenRefresher
	logger   *logging.Logger
	metrics  *metrics.RefreshMetrics
	interval time.Duration
	timeout  time.Duration // per-credential deadline
}

// NewRefreshWorker creates a refresh worker with the default 20h cadence.
func NewRefreshWorker(store Store, oauth TokenRefresher, logger *logging.Logger) *RefreshWorker {
	if logger == nil {
		logger = logging.Default()
	}
	return &RefreshWorker{
		store:    store,
		oauth:    oauth,
		logger:   logger,
		interval: 20 * time.Hour,
		timeout:  30 * time.Second,
	}
}

// WithInterval sets the refresh cadence.
func (w *RefreshWorker) WithInterval(interval time.Duration) *RefreshWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithTimeout sets the per-credential refresh deadline.
func (w *RefreshWorker) WithTimeout(timeout time.Duration) *RefreshWorker {
	if timeout > 0 {
		w.timeout = timeout
	}
	return w
}

// WithMetrics attaches refresh metrics.
func (w *RefreshWorker) WithMetrics(m *metrics.RefreshMetrics) *RefreshWorker {
	w.metrics = m
	return w
}

// Start runs the refresh loop. Blocks until the context is cancelled.
func (w *RefreshWorker) Start(ctx context.Context) {
	w.logger.Info("starting ghl token refresh worker",
		"interval", w.interval.String(),
		"per_credential_timeout", w.timeout.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("token refresh worker shutting down")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes every stored credential independently. One credential's
// failure never aborts the rest; failures are reported, not propagated.
func (w *RefreshWorker) RunOnce(ctx context.Context) RefreshReport {
	report := RefreshReport{Errors: make(map[string]string)}

	creds, err := w.store.List(ctx)
	if err != nil {
		w.logger.Error("failed to list credentials for refresh", "error", err)
		return report
	}
	if len(creds) == 0 {
		w.logger.Debug("no credentials to refresh")
		return report
	}

	w.logger.Info("refreshing ghl tokens", "count", len(creds))

	for _, cred := range creds {
		logger := w.logger.With("location_id", cred.LocationID)
		start := time.Now()
		if err := w.refreshOne(ctx, cred); err != nil {
			w.metrics.ObserveRefresh("error", time.Since(start).Seconds())
			report.Failed++
			report.Errors[cred.LocationID] = err.Error()
			logger.Error("failed to refresh token", "error", err)
			continue
		}
		w.metrics.ObserveRefresh("ok", time.Since(start).Seconds())
		report.Refreshed++
		logger.Info("refreshed ghl token")
	}

	return report
}

// refreshOne exchanges the stored refresh token and replaces the credential.
func (w *RefreshWorker) refreshOne(ctx context.Context, cred Credential) error {
	if cred.RefreshToken == "" {
		return fmt.Errorf("no refresh token stored")
	}

	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	resp, err := w.oauth.RefreshToken(callCtx, cred.RefreshToken)
	if err != nil {
		return err
	}

	cred.AccessToken = resp.AccessToken
	// GHL rotates the refresh token on every exchange; keep the old one if
	// the response ever omits it.
	if resp.RefreshToken != "" {
		cred.RefreshToken = resp.RefreshToken
	}
	if resp.ExpiresIn > 0 {
		cred.ExpiresAt = resp.ExpiresAt(time.Now().UTC())
	}

	if err := w.store.Upsert(ctx, cred); err != nil {
		return err
	}
	return nil
}
