package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/booking-availability/internal/appointment"
	"github.com/hackgods/booking-availability/internal/availability"
	redisclient "github.com/hackgods/booking-availability/internal/redis"
)

// AppointmentService is the part of appointment.Service the HTTP layer drives.
type AppointmentService interface {
	GetAvailableSlots(ctx context.Context, hostID, appointmentTypeID uuid.UUID, date availability.Date) ([]availability.TimeSlot, error)
	GetAvailabilitySettings(ctx context.Context, hostID uuid.UUID) (*availability.Settings, error)
	SaveAvailabilitySettings(ctx context.Context, hostID uuid.UUID, s availability.Settings) (*availability.Settings, error)
	ListAppointmentTypes(ctx context.Context, hostID uuid.UUID) ([]appointment.AppointmentType, error)
	CreateAppointmentType(ctx context.Context, hostID uuid.UUID, in appointment.CreateAppointmentTypeInput) (*appointment.AppointmentType, error)
	CreateAppointment(ctx context.Context, in appointment.CreateAppointmentInput) (*appointment.Appointment, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error)
	ListAppointmentsByHost(ctx context.Context, hostID uuid.UUID, from, to time.Time, limit, offset int) ([]appointment.Appointment, error)
}

type handlers struct {
	svc    AppointmentService
	logger *slog.Logger
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *handlers) getAvailability(w http.ResponseWriter, r *http.Request) {
	hostID, ok := parseUUIDParam(w, r, "hostID", "invalid_host_id")
	if !ok {
		return
	}

	q := r.URL.Query()
	date, err := availability.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	typeID, err := uuid.Parse(q.Get("appointment_type_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_type_id", "appointment_type_id must be a valid UUID")
		return
	}

	slots, err := h.svc.GetAvailableSlots(r.Context(), hostID, typeID, date)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		HostID:            hostID,
		AppointmentTypeID: typeID,
		Date:              date,
		Slots:             slots,
	})
}

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	hostID, ok := parseUUIDParam(w, r, "hostID", "invalid_host_id")
	if !ok {
		return
	}

	s, err := h.svc.GetAvailabilitySettings(r.Context(), hostID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSettingsBody(s))
}

func (h *handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	hostID, ok := parseUUIDParam(w, r, "hostID", "invalid_host_id")
	if !ok {
		return
	}

	var body AvailabilitySettingsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	settings, err := body.settings()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timezone", err.Error())
		return
	}

	s, err := h.svc.SaveAvailabilitySettings(r.Context(), hostID, settings)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSettingsBody(s))
}

func (h *handlers) listAppointmentTypes(w http.ResponseWriter, r *http.Request) {
	hostID, ok := parseUUIDParam(w, r, "hostID", "invalid_host_id")
	if !ok {
		return
	}

	types, err := h.svc.ListAppointmentTypes(r.Context(), hostID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := make([]AppointmentTypeResponse, 0, len(types))
	for i := range types {
		resp = append(resp, toAppointmentTypeResponse(&types[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) createAppointmentType(w http.ResponseWriter, r *http.Request) {
	hostID, ok := parseUUIDParam(w, r, "hostID", "invalid_host_id")
	if !ok {
		return
	}

	var req CreateAppointmentTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	t, err := h.svc.CreateAppointmentType(r.Context(), hostID, appointment.CreateAppointmentTypeInput{
		Name:                 req.Name,
		DurationMinutes:      req.DurationMinutes,
		RequiresConfirmation: req.RequiresConfirmation,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentTypeResponse(t))
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	hostID, err := uuid.Parse(req.HostID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_host_id", "host_id must be a valid UUID")
		return
	}

	typeID, err := uuid.Parse(req.AppointmentTypeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_type_id", "appointment_type_id must be a valid UUID")
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), appointment.CreateAppointmentInput{
		HostID:            hostID,
		AppointmentTypeID: typeID,
		CustomerName:      req.CustomerName,
		CustomerEmail:     req.CustomerEmail,
		Notes:             req.Notes,
		StartTime:         req.StartTime,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}

	detail, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := AppointmentDetailResponse{AppointmentResponse: toAppointmentResponse(&detail.Appointment)}
	if detail.Type != nil {
		t := toAppointmentTypeResponse(detail.Type)
		resp.AppointmentType = &t
	}
	if detail.Host != nil {
		resp.HostName = detail.Host.Name
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	hostID, ok := parseUUIDParam(w, r, "hostID", "invalid_host_id")
	if !ok {
		return
	}

	q := r.URL.Query()
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	appts, err := h.svc.ListAppointmentsByHost(r.Context(), hostID, from, to, limit, offset)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := ListAppointmentsResponse{
		Appointments: make([]AppointmentResponse, 0, len(appts)),
		Limit:        limit,
		Offset:       offset,
	}
	for i := range appts {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseRange reads from/to as RFC 3339 timestamps or YYYY-MM-DD dates (UTC midnight).
// A missing to defaults to one week after from; a missing from defaults to today.
func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	parse := func(s string) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		d, err := availability.ParseDate(s)
		if err != nil {
			return time.Time{}, errors.New("from and to must be RFC 3339 timestamps or YYYY-MM-DD dates")
		}
		return d.At(availability.Clock{}, time.UTC), nil
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	if fromRaw != "" {
		t, err := parse(fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}

	to := from.AddDate(0, 0, 7)
	if toRaw != "" {
		t, err := parse(toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}

	return from, to, nil
}

func (h *handlers) confirmAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}

	appt, err := h.svc.ConfirmAppointment(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}

	// body is optional
	var req CancelAppointmentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
	}

	appt, err := h.svc.CancelAppointment(r.Context(), id, req.Reason)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, availability.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, appointment.ErrHostNotFound):
		writeError(w, http.StatusNotFound, "host_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentTypeNotFound):
		writeError(w, http.StatusNotFound, "appointment_type_not_found", err.Error())
	case errors.Is(err, appointment.ErrSettingsNotFound):
		writeError(w, http.StatusNotFound, "settings_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentTypeInactive):
		writeError(w, http.StatusConflict, "appointment_type_inactive", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "the selected time is no longer available, please re-select a slot")
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrAppointmentExpiredState):
		writeError(w, http.StatusConflict, "appointment_expired", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrUpstreamUnavailable):
		h.logger.Warn("upstream unavailable", "request_id", GetRequestID(r.Context()), "err", err)
		writeError(w, http.StatusServiceUnavailable, "upstream_unavailable", "scheduling data is temporarily unavailable")
	default:
		h.logger.Error("request failed", "request_id", GetRequestID(r.Context()), "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
