package ghl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brightslot/ghl-importer/pkg/logging"
)

// OAuthConfig holds the marketplace app settings for the GHL OAuth flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	BaseURL      string // token endpoint host, empty for production
	AuthorizeURL string // chooselocation page, empty for production
}

// TokenResponse is the body returned by POST /oauth/token for both the
// authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
	LocationID   string `json:"locationId"`
	CompanyID    string `json:"companyId"`
	UserID       string `json:"userId"`
	UserType     string `json:"userType"`
}

// ExpiresAt converts expires_in into an absolute expiry from now.
func (t *TokenResponse) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// OAuthClient handles the GHL OAuth token endpoint.
type OAuthClient struct {
	config     OAuthConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewOAuthClient constructs an OAuth client for the GHL marketplace app.
func NewOAuthClient(config OAuthConfig, logger *logging.Logger) *OAuthClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(config.AuthorizeURL) == "" {
		config.AuthorizeURL = defaultAuthorizeURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OAuthClient{
		config:     config,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// AuthorizationURL builds the marketplace chooselocation URL an admin is
// redirected to when connecting a location.
func (c *OAuthClient) AuthorizationURL() string {
	params := url.Values{
		"response_type": {"code"},
		"redirect_uri":  {c.config.RedirectURI},
		"client_id":     {c.config.ClientID},
		"scope":         {c.config.Scope},
	}
	return fmt.Sprintf("%s?%s", c.config.AuthorizeURL, params.Encode())
}

// ExchangeCode exchanges an authorization code for tokens.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"redirect_uri":  {c.config.RedirectURI},
		"code":          {code},
	}
	return c.token(ctx, data)
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *OAuthClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"refresh_token": {refreshToken},
	}
	return c.token(ctx, data)
}

func (c *OAuthClient) token(ctx context.Context, data url.Values) (*TokenResponse, error) {
	tokenURL := strings.TrimRight(c.config.BaseURL, "/") + "/oauth/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(body)
		if len(detail) > 300 {
			detail = detail[:300]
		}
		c.logger.Warn("ghl token endpoint non-200 response", "status", resp.StatusCode, "body", detail)
		return nil, &APIError{Status: resp.StatusCode, Detail: detail}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &tokenResp, nil
}
