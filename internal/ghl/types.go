package ghl

import (
	"fmt"
	"time"
)

const (
	defaultBaseURL      = "https://services.leadconnectorhq.com"
	defaultAuthorizeURL = "https://marketplace.gohighlevel.com/oauth/chooselocation"

	// Create Service Booking requires this Version header per GHL docs,
	// independent of the version used by the rest of the API.
	bookingAPIVersion = "2021-04-15"
)

// APIError carries the status and response detail of a failed GHL call.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ghl: api returned %d: %s", e.Status, e.Detail)
}

// Calendar represents a GHL calendar, used for mapping discovery.
type Calendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CalendarDetail is one calendar expanded with its services and assignees,
// the source of service_id/staff_id values for the mapping table.
type CalendarDetail struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Services []CalendarService `json:"services,omitempty"`
	TeamIDs  []string          `json:"teamMembers,omitempty"`
}

// CalendarService is a bookable service inside a calendar.
type CalendarService struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BookingRequest is the input for creating a service booking.
type BookingRequest struct {
	LocationID string
	ContactID  string
	ServiceID  string
	StaffID    string
	CalendarID string
	StartTime  time.Time
	EndTime    time.Time
	Timezone   string
}

type contactSearchRequest struct {
	LocationID string `json:"locationId"`
	Query      string `json:"query"`
	PageLimit  int    `json:"pageLimit"`
}

type contactResult struct {
	ID        string `json:"id"`
	ContactID string `json:"contactId"`
}

func (c contactResult) id() string {
	if c.ID != "" {
		return c.ID
	}
	return c.ContactID
}

type contactSearchResponse struct {
	Contacts []contactResult `json:"contacts"`
	Contact  *contactResult  `json:"contact"`
}

type createContactRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	LocationID string `json:"locationId"`
	Phone      string `json:"phone"`
}

type createContactResponse struct {
	Contact contactResult `json:"contact"`
	ID      string        `json:"id"`
}

type bookingService struct {
	ID       string `json:"id"`
	StaffID  string `json:"staffId"`
	Position int    `json:"position"`
}

type createBookingRequest struct {
	LocationID        string           `json:"locationId"`
	ContactID         string           `json:"contactId"`
	StartTime         string           `json:"startTime"`
	EndTime           string           `json:"endTime"`
	Timezone          string           `json:"timezone"`
	Services          []bookingService `json:"services"`
	Title             string           `json:"title"`
	Status            string           `json:"status"`
	ServiceLocationID string           `json:"serviceLocationId,omitempty"`
}

type createBookingResponse struct {
	BookingID string `json:"bookingId"`
	Booking   struct {
		ID string `json:"id"`
	} `json:"booking"`
	ID string `json:"id"`
}

func (r createBookingResponse) id() string {
	if r.BookingID != "" {
		return r.BookingID
	}
	if r.Booking.ID != "" {
		return r.Booking.ID
	}
	return r.ID
}

type calendarsResponse struct {
	Calendars []Calendar `json:"calendars"`
}

type calendarDetailResponse struct {
	Calendar *CalendarDetail `json:"calendar"`
}
