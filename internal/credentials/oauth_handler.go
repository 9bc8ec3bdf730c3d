package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brightslot/ghl-importer/internal/ghl"
	"github.com/brightslot/ghl-importer/pkg/logging"
)

// CodeExchanger is the OAuth authorization-code exchange the handler depends
// on, satisfied by *ghl.OAuthClient.
type CodeExchanger interface {
	AuthorizationURL() string
	ExchangeCode(ctx context.Context, code string) (*ghl.TokenResponse, error)
}

// OAuthHandler handles the GHL marketplace connect/callback endpoints. This
// is the initial-auth step that seeds the credential store; from then on the
// refresh worker keeps tokens alive.
type OAuthHandler struct {
	oauth       CodeExchanger
	store       Store
	logger      *logging.Logger
	frontendURL string // redirect target after a successful connect
}

// NewOAuthHandler creates the OAuth HTTP handler.
func NewOAuthHandler(oauth CodeExchanger, store Store, frontendURL string, logger *logging.Logger) *OAuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OAuthHandler{
		oauth:       oauth,
		store:       store,
		logger:      logger,
		frontendURL: frontendURL,
	}
}

// Routes returns a chi router with the OAuth routes.
func (h *OAuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/connect", h.HandleConnect)
	r.Get("/callback", h.HandleCallback)
	return r
}

// HandleConnect redirects the admin to the GHL marketplace chooselocation page.
// GET /oauth/connect
func (h *OAuthHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.oauth.AuthorizationURL(), http.StatusFound)
}

// HandleCallback exchanges the authorization code and stores the credential.
// GET /oauth/callback?code=...
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, `{"error":"authorization code not received"}`, http.StatusBadRequest)
		return
	}

	resp, err := h.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("ghl code exchange failed", "error", err)
		http.Error(w, `{"error":"token exchange failed"}`, http.StatusBadGateway)
		return
	}
	if resp.LocationID == "" {
		h.logger.Error("ghl token response missing locationId")
		http.Error(w, `{"error":"token response missing location"}`, http.StatusBadGateway)
		return
	}

	cred := Credential{
		LocationID:   resp.LocationID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.ExpiresAt(time.Now().UTC()),
		CompanyID:    resp.CompanyID,
		UserID:       resp.UserID,
		UserType:     resp.UserType,
		Scope:        resp.Scope,
	}
	if err := h.store.Upsert(r.Context(), cred); err != nil {
		h.logger.Error("failed to store credential", "location_id", resp.LocationID, "error", err)
		http.Error(w, `{"error":"failed to store credential"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("ghl location connected", "location_id", resp.LocationID)

	if h.frontendURL != "" {
		params := url.Values{"onboarding": {"success"}, "location_id": {resp.LocationID}}
		http.Redirect(w, r, strings.TrimRight(h.frontendURL, "/")+"/?"+params.Encode(), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"message":     "authentication successful",
		"location_id": resp.LocationID,
	})
}
