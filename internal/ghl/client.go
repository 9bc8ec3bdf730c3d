package ghl

import (
	"bytes"
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

const defaultTimeout = 30 * time.Second

// Client wraps the GoHighLevel REST API calls used by the import pipeline.
// Every method takes the per-tenant access token explicitly; the client itself
// holds no credential state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	logger     *logging.Logger
}

// NewClient constructs a GHL REST client. baseURL may be empty for production.
func NewClient(baseURL, apiVersion string, logger *logging.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		logger:     logger,
	}
}

// SearchContactByEmail looks up a contact by email. Returns an empty ID with a
// nil error when no contact matches; a non-nil error only on API failure.
func (c *Client) SearchContactByEmail(ctx context.Context, accessToken, locationID, email string) (string, error) {
	body := contactSearchRequest{
		LocationID: locationID,
		Query:      email,
		PageLimit:  100,
	}

	var resp contactSearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/contacts/search", nil, accessToken, locationID, c.apiVersion, body, &resp); err != nil {
		return "", fmt.Errorf("search contact: %w", err)
	}
	if len(resp.Contacts) > 0 {
		return resp.Contacts[0].id(), nil
	}
	if resp.Contact != nil {
		return resp.Contact.id(), nil
	}
	return "", nil
}

// CreateContact creates a contact and returns its ID. The display name is
// split on the first space into firstName/lastName, matching the GHL payload.
func (c *Client) CreateContact(ctx context.Context, accessToken, locationID, name, email, phone string) (string, error) {
	firstName, lastName := splitName(name)
	body := createContactRequest{
		FirstName:  firstName,
		LastName:   lastName,
		Name:       name,
		Email:      email,
		LocationID: locationID,
		Phone:      phone,
	}

	var resp createContactResponse
	if err := c.doJSON(ctx, http.MethodPost, "/contacts/", nil, accessToken, locationID, c.apiVersion, body, &resp); err != nil {
		return "", fmt.Errorf("create contact: %w", err)
	}
	if id := resp.Contact.id(); id != "" {
		return id, nil
	}
	if resp.ID != "" {
		return resp.ID, nil
	}
	return "", fmt.Errorf("create contact: response missing contact id")
}

// FindOrCreateContact searches by email first and creates the contact only if
// absent, so repeated imports of the same email never create duplicates.
func (c *Client) FindOrCreateContact(ctx context.Context, accessToken, locationID, name, email, phone string) (string, error) {
	contactID, err := c.SearchContactByEmail(ctx, accessToken, locationID, email)
	if err != nil {
		return "", err
	}
	if contactID != "" {
		return contactID, nil
	}
	return c.CreateContact(ctx, accessToken, locationID, name, email, phone)
}

// CreateServiceBooking creates a calendar service booking and returns the
// booking ID. Slot validation is overridden so historical imports with
// arbitrary times are accepted.
func (c *Client) CreateServiceBooking(ctx context.Context, accessToken string, req BookingRequest) (string, error) {
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	body := createBookingRequest{
		LocationID: req.LocationID,
		ContactID:  req.ContactID,
		StartTime:  req.StartTime.Format(time.RFC3339),
		EndTime:    req.EndTime.Format(time.RFC3339),
		Timezone:   tz,
		Services: []bookingService{
			{ID: req.ServiceID, StaffID: req.StaffID, Position: 0},
		},
		Title:             "Service Appointment",
		Status:            "confirmed",
		ServiceLocationID: req.CalendarID,
	}

	query := url.Values{"overrideAvailability": {"true"}}

	var resp createBookingResponse
	if err := c.doJSON(ctx, http.MethodPost, "/calendars/services/bookings", query, accessToken, req.LocationID, bookingAPIVersion, body, &resp); err != nil {
		return "", fmt.Errorf("create booking: %w", err)
	}
	if id := resp.id(); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("create booking: response missing booking id")
}

// GetCalendars lists the calendars in a location.
func (c *Client) GetCalendars(ctx context.Context, accessToken, locationID string) ([]Calendar, error) {
	query := url.Values{"locationId": {locationID}}
	var resp calendarsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/calendars/", query, accessToken, locationID, c.apiVersion, nil, &resp); err != nil {
		return nil, fmt.Errorf("get calendars: %w", err)
	}
	return resp.Calendars, nil
}

// GetCalendarDetail fetches one calendar with its services and assignees.
func (c *Client) GetCalendarDetail(ctx context.Context, accessToken, locationID, calendarID string) (*CalendarDetail, error) {
	query := url.Values{"locationId": {locationID}}
	path := "/calendars/" + url.PathEscape(calendarID)

	var resp calendarDetailResponse
	if err := c.doJSON(ctx, http.MethodGet, path, query, accessToken, locationID, c.apiVersion, nil, &resp); err != nil {
		return nil, fmt.Errorf("get calendar detail: %w", err)
	}
	if resp.Calendar == nil {
		return nil, fmt.Errorf("get calendar detail: response missing calendar")
	}
	return resp.Calendar, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, accessToken, locationID, version string, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if locationID != "" {
		req.Header.Set("Location-Id", locationID)
	}
	if version != "" {
		req.Header.Set("Version", version)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := string(respBody)
		if len(detail) > 300 {
			detail = detail[:300]
		}
		c.logger.Warn("ghl API non-2xx response", "status", resp.StatusCode, "path", path, "body", detail)
		return &APIError{Status: resp.StatusCode, Detail: detail}
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// splitName splits a display name into firstName and lastName on the first
// whitespace run.
func splitName(name string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
