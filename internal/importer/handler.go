package importer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brightslot/ghl-importer/internal/credentials"
	"github.com/brightslot/ghl-importer/internal/ghl"
	"github.com/brightslot/ghl-importer/pkg/logging"
)

// maxUploadBytes caps a single CSV upload at 10 MiB.
const maxUploadBytes = 10 << 20

// CalendarReader is the calendar discovery surface of the GHL client.
type CalendarReader interface {
	GetCalendars(ctx context.Context, accessToken, locationID string) ([]ghl.Calendar, error)
	GetCalendarDetail(ctx context.Context, accessToken, locationID, calendarID string) (*ghl.CalendarDetail, error)
}

// Handler exposes the import HTTP surface.
type Handler struct {
	service   *Service
	store     credentials.Store
	calendars CalendarReader
	logger    *logging.Logger
}

// NewHandler creates the import handler.
func NewHandler(service *Service, store credentials.Store, calendars CalendarReader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, store: store, calendars: calendars, logger: logger}
}

// Routes returns the handler's route tree, mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/import-appointments", h.handleImport)
	r.Post("/import-appointments/detect-headers", h.handleDetectHeaders)
	r.Get("/past-appointments", h.handleListPast)
	r.Get("/mapping-ids", h.handleMappingIDs)
	return r
}

// readUpload pulls the CSV payload out of the request: multipart "file" part
// when present, raw body otherwise.
func readUpload(r *http.Request) (payload []byte, locationID string, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, "", err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		defer file.Close()
		payload, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return nil, "", err
		}
		return payload, r.FormValue("location_id"), nil
	}

	payload, err = io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}
	return payload, r.URL.Query().Get("location_id"), nil
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	payload, locationID, err := readUpload(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	if locationID == "" {
		h.writeError(w, http.StatusBadRequest, "location_id is required")
		return
	}
	if len(payload) == 0 {
		h.writeError(w, http.StatusBadRequest, "empty payload")
		return
	}

	result, err := h.service.Run(r.Context(), locationID, payload)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.Is(err, ErrNoCredentials):
			h.writeError(w, http.StatusBadRequest, "no credentials found for location; complete the OAuth connect flow first")
		case errors.As(err, &verr):
			h.writeError(w, http.StatusBadRequest, verr.Reason)
		default:
			h.logger.Error("import batch failed", "location_id", locationID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "import failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDetectHeaders(w http.ResponseWriter, r *http.Request) {
	payload, _, err := readUpload(r)
	if err != nil || len(payload) == 0 {
		h.writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	headers, missing, err := DetectHeaders(payload)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "header detection failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"headers":         headers,
		"missing_columns": missing,
	})
}

func (h *Handler) handleListPast(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		h.writeError(w, http.StatusBadRequest, "location_id is required")
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 50)
	if pageSize > 200 {
		pageSize = 200
	}

	appts, total, err := h.service.repo.ListPast(r.Context(), locationID, pageSize, (page-1)*pageSize)
	if err != nil {
		h.logger.Error("failed to list past appointments", "location_id", locationID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "could not list past appointments")
		return
	}
	if appts == nil {
		appts = []ImportedAppointment{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"appointments": appts,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

// handleMappingIDs surfaces the remote calendar, service, and staff IDs an
// operator needs when filling in the service_mappings table.
func (h *Handler) handleMappingIDs(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		h.writeError(w, http.StatusBadRequest, "location_id is required")
		return
	}

	cred, err := h.store.Get(r.Context(), locationID)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			h.writeError(w, http.StatusBadRequest, "no credentials found for location; complete the OAuth connect flow first")
			return
		}
		h.logger.Error("failed to load credentials", "location_id", locationID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "could not load credentials")
		return
	}

	calendars, err := h.calendars.GetCalendars(r.Context(), cred.AccessToken, locationID)
	if err != nil {
		h.logger.Error("failed to list calendars", "location_id", locationID, "error", err)
		h.writeError(w, http.StatusBadGateway, "could not fetch calendars")
		return
	}

	type calendarIDs struct {
		CalendarID   string                `json:"calendar_id"`
		CalendarName string                `json:"calendar_name"`
		Services     []ghl.CalendarService `json:"services"`
		StaffIDs     []string              `json:"staff_ids"`
	}

	out := make([]calendarIDs, 0, len(calendars))
	for _, cal := range calendars {
		detail, err := h.calendars.GetCalendarDetail(r.Context(), cred.AccessToken, locationID, cal.ID)
		if err != nil {
			h.logger.Warn("skipping calendar without detail", "calendar_id", cal.ID, "error", err)
			continue
		}
		out = append(out, calendarIDs{
			CalendarID:   detail.ID,
			CalendarName: detail.Name,
			Services:     detail.Services,
			StaffIDs:     detail.TeamIDs,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"calendars": out,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
