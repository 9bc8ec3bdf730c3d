package credentials

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brightslot/ghl-importer/internal/ghl"
)

type fakeExchanger struct {
	resp *ghl.TokenResponse
	err  error
}

func (f *fakeExchanger) AuthorizationURL() string {
	return "https://marketplace.gohighlevel.com/oauth/chooselocation?client_id=c1"
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) (*ghl.TokenResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestHandleConnectRedirects(t *testing.T) {
	h := NewOAuthHandler(&fakeExchanger{}, NewMemoryStore(), "", nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/connect", nil)
	rec := httptest.NewRecorder()
	h.HandleConnect(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "chooselocation") {
		t.Fatalf("redirect location = %s", loc)
	}
}

func TestHandleCallbackStoresCredential(t *testing.T) {
	store := NewMemoryStore()
	h := NewOAuthHandler(&fakeExchanger{resp: &ghl.TokenResponse{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    86400,
		LocationID:   "loc-1",
		CompanyID:    "co-1",
	}}, store, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc", nil)
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	cred, err := store.Get(context.Background(), "loc-1")
	if err != nil {
		t.Fatalf("credential not stored: %v", err)
	}
	if cred.AccessToken != "access-1" || cred.CompanyID != "co-1" {
		t.Fatalf("credential = %+v", cred)
	}
}

func TestHandleCallbackRedirectsToFrontend(t *testing.T) {
	h := NewOAuthHandler(&fakeExchanger{resp: &ghl.TokenResponse{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		LocationID:   "loc-1",
	}}, NewMemoryStore(), "https://app.example.com", nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc", nil)
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "onboarding=success") || !strings.Contains(loc, "location_id=loc-1") {
		t.Fatalf("redirect location = %s", loc)
	}
}

func TestHandleCallbackMissingCode(t *testing.T) {
	h := NewOAuthHandler(&fakeExchanger{}, NewMemoryStore(), "", nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback", nil)
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	h := NewOAuthHandler(&fakeExchanger{err: fmt.Errorf("boom")}, NewMemoryStore(), "", nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc", nil)
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}
