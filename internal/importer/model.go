package importer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoCredentials is returned when the location has never completed the
// OAuth connect flow. It aborts the whole batch before anything is persisted.
var ErrNoCredentials = errors.New("importer: no oauth credentials for location")

// ValidationError marks a malformed batch: missing required columns or a
// payload that is not recognizable CSV. It aborts the request with nothing
// persisted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("importer: invalid batch: %s", e.Reason)
}

// Row is one parsed CSV line prior to classification.
type Row struct {
	Line        int // 1-based line number in the CSV, header is line 1
	Name        string
	Email       string
	Phone       string
	ServiceName string
	ServiceID   string // optional row-level override of the mapping
	StaffID     string // optional row-level override of the mapping
	Timezone    string
	StartTime   time.Time
	EndTime     time.Time
}

// ImportedAppointment is the persisted record for one CSV row. It is created
// exactly once per row regardless of booking outcome and never mutated
// afterwards except to attach a booking ID.
type ImportedAppointment struct {
	ID          uuid.UUID `json:"id"`
	LocationID  string    `json:"location_id"`
	BatchRef    string    `json:"batch_ref"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	ServiceName string    `json:"service_name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Timezone    string    `json:"timezone,omitempty"`
	IsPast      bool      `json:"is_past"`
	BookingID   string    `json:"booking_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Result summarizes one import batch. It is returned to the caller and never
// persisted.
type Result struct {
	Success         bool     `json:"success"`
	Imported        int      `json:"imported"`
	PastCount       int      `json:"past_count"`
	FutureCount     int      `json:"future_count"`
	CreatedBookings int      `json:"created_bookings"`
	Errors          []string `json:"errors"`
	LocationID      string   `json:"location_id,omitempty"`
	BatchRef        string   `json:"batch_ref,omitempty"`
}
