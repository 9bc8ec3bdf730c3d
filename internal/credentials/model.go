package credentials

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a location has no stored credential, meaning
// the tenant never completed the OAuth connect flow.
var ErrNotFound = errors.New("credentials: not found for location")

// Credential is the per-location OAuth token state. LocationID is the unique
// key; there is at most one live credential per location.
type Credential struct {
	LocationID   string    `json:"location_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CompanyID    string    `json:"company_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	UserType     string    `json:"user_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
