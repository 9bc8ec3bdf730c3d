package credentials

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brightslot/ghl-importer/internal/ghl"
)

type fakeRefresher struct {
	mu sync.Mutex
	// failFor maps refresh tokens to an error the refresher should return.
	failFor map[string]error
	calls   []string
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, refreshToken string) (*ghl.TokenResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, refreshToken)
	f.mu.Unlock()
	if err, ok := f.failFor[refreshToken]; ok {
		return nil, err
	}
	return &ghl.TokenResponse{
		AccessToken:  "new-access-" + refreshToken,
		RefreshToken: "new-" + refreshToken,
		ExpiresIn:    86400,
	}, nil
}

// callCount is safe to poll while the worker goroutine is running.
func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func seedStore(t *testing.T, locations ...string) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	for _, loc := range locations {
		err := store.Upsert(context.Background(), Credential{
			LocationID:   loc,
			AccessToken:  "old-access-" + loc,
			RefreshToken: "refresh-" + loc,
			ExpiresAt:    time.Now().Add(4 * time.Hour),
		})
		if err != nil {
			t.Fatalf("seed %s: %v", loc, err)
		}
	}
	return store
}

func TestRunOnceRefreshesAllCredentials(t *testing.T) {
	store := seedStore(t, "loc-1", "loc-2", "loc-3")
	refresher := &fakeRefresher{}
	worker := NewRefreshWorker(store, refresher, nil)

	report := worker.RunOnce(context.Background())
	if report.Refreshed != 3 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}

	for _, loc := range []string{"loc-1", "loc-2", "loc-3"} {
		cred, err := store.Get(context.Background(), loc)
		if err != nil {
			t.Fatalf("Get(%s): %v", loc, err)
		}
		if cred.AccessToken != "new-access-refresh-"+loc {
			t.Fatalf("access token for %s = %s", loc, cred.AccessToken)
		}
		if cred.RefreshToken != "new-refresh-"+loc {
			t.Fatalf("refresh token for %s = %s, rotation not applied", loc, cred.RefreshToken)
		}
		if !cred.ExpiresAt.After(time.Now().Add(23 * time.Hour)) {
			t.Fatalf("expiry for %s = %s, want ~24h out", loc, cred.ExpiresAt)
		}
	}
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	store := seedStore(t, "loc-1", "loc-2", "loc-3")
	refresher := &fakeRefresher{
		failFor: map[string]error{
			"refresh-loc-2": &ghl.APIError{Status: 401, Detail: "invalid_grant"},
		},
	}
	worker := NewRefreshWorker(store, refresher, nil)

	report := worker.RunOnce(context.Background())
	if report.Refreshed != 2 {
		t.Fatalf("refreshed = %d, want 2", report.Refreshed)
	}
	if report.Failed != 1 {
		t.Fatalf("failed = %d, want 1", report.Failed)
	}
	if _, ok := report.Errors["loc-2"]; !ok {
		t.Fatalf("errors = %v, want entry for loc-2", report.Errors)
	}

	// The failing credential keeps its old tokens.
	cred, err := store.Get(context.Background(), "loc-2")
	if err != nil {
		t.Fatalf("Get(loc-2): %v", err)
	}
	if cred.AccessToken != "old-access-loc-2" {
		t.Fatalf("failed credential was mutated: %s", cred.AccessToken)
	}

	// The other two were refreshed despite the failure in between.
	for _, loc := range []string{"loc-1", "loc-3"} {
		cred, err := store.Get(context.Background(), loc)
		if err != nil {
			t.Fatalf("Get(%s): %v", loc, err)
		}
		if cred.AccessToken == "old-access-"+loc {
			t.Fatalf("%s was not refreshed", loc)
		}
	}
}

func TestRunOnceSkipsMissingRefreshToken(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Upsert(context.Background(), Credential{LocationID: "loc-1", AccessToken: "a"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	refresher := &fakeRefresher{}
	worker := NewRefreshWorker(store, refresher, nil)

	report := worker.RunOnce(context.Background())
	if report.Failed != 1 || refresher.callCount() != 0 {
		t.Fatalf("report = %+v, calls = %v", report, refresher.calls)
	}
}

func TestRunOnceKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	store := seedStore(t, "loc-1")
	refresher := &rotationlessRefresher{}
	worker := NewRefreshWorker(store, refresher, nil)

	if report := worker.RunOnce(context.Background()); report.Refreshed != 1 {
		t.Fatalf("report = %+v", report)
	}
	cred, err := store.Get(context.Background(), "loc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cred.RefreshToken != "refresh-loc-1" {
		t.Fatalf("refresh token = %s, want old token kept", cred.RefreshToken)
	}
	if cred.AccessToken != "fresh-access" {
		t.Fatalf("access token = %s", cred.AccessToken)
	}
}

type rotationlessRefresher struct{}

func (rotationlessRefresher) RefreshToken(ctx context.Context, refreshToken string) (*ghl.TokenResponse, error) {
	return &ghl.TokenResponse{AccessToken: "fresh-access", ExpiresIn: 86400}, nil
}

func TestStartRunsOnTicker(t *testing.T) {
	store := seedStore(t, "loc-1")
	refresher := &fakeRefresher{}
	worker := NewRefreshWorker(store, refresher, nil).WithInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for refresher.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("worker did not tick, calls = %d", refresher.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not shut down on cancel")
	}
}

func TestRunOncePerCredentialTimeout(t *testing.T) {
	store := seedStore(t, "loc-1", "loc-2")
	slow := &slowRefresher{delay: 200 * time.Millisecond}
	worker := NewRefreshWorker(store, slow, nil).WithTimeout(20 * time.Millisecond)

	start := time.Now()
	report := worker.RunOnce(context.Background())
	if report.Failed != 2 {
		t.Fatalf("report = %+v, want both timed out", report)
	}
	// Two sequential timeouts, not two full delays.
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("RunOnce took %s, timeout not applied", elapsed)
	}
}

type slowRefresher struct {
	delay time.Duration
}

func (s *slowRefresher) RefreshToken(ctx context.Context, refreshToken string) (*ghl.TokenResponse, error) {
	select {
	case <-time.After(s.delay):
		return nil, fmt.Errorf("too slow")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
