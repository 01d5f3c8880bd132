// ABOUTME: Measurement endpoints: list, search, create, read, update, delete
// ABOUTME: All operations are scoped by the authenticated user from context

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/darzihq/darzi/internal/auth"
	"github.com/darzihq/darzi/internal/store"
)

// FieldPayload is the JSON shape of one measurement field.
type FieldPayload struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Required bool   `json:"isRequired"`
}

// MeasurementRequest is the JSON request body for creating or updating a
// record. The owning user is never part of the payload; it comes from
// the session.
type MeasurementRequest struct {
	CustomerName string         `json:"customer_name"`
	PhoneNumber  string         `json:"phone_number"`
	Fields       []FieldPayload `json:"fields"`
}

// MeasurementResponse is the JSON shape of a stored record.
type MeasurementResponse struct {
	ID           int64          `json:"id"`
	CustomerName string         `json:"customer_name"`
	PhoneNumber  string         `json:"phone_number"`
	Fields       []FieldPayload `json:"fields"`
	CreatedAt    string         `json:"created_at"`
}

// ListMeasurementsResponse is the JSON response for GET /api/measurements.
type ListMeasurementsResponse struct {
	Measurements []MeasurementResponse `json:"measurements"`
}

func toFields(payload []FieldPayload) []store.Field {
	fields := make([]store.Field, len(payload))
	for i, f := range payload {
		fields[i] = store.Field{Key: f.Key, Value: f.Value, Required: f.Required}
	}
	return fields
}

func measurementResponse(m *store.Measurement) MeasurementResponse {
	fields := make([]FieldPayload, len(m.Fields))
	for i, f := range m.Fields {
		fields[i] = FieldPayload{Key: f.Key, Value: f.Value, Required: f.Required}
	}
	return MeasurementResponse{
		ID:           m.ID,
		CustomerName: m.CustomerName,
		PhoneNumber:  m.PhoneNumber,
		Fields:       fields,
		CreatedAt:    m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// validateRequiredFields enforces the form contract: required fields may
// not be blank when a record is saved.
func validateRequiredFields(fields []store.Field) string {
	for _, f := range fields {
		if f.Required && f.Value == "" {
			return "required field " + f.Key + " must not be blank"
		}
	}
	return ""
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleListMeasurements handles GET /api/measurements. An optional ?q=
// parameter filters by customer name (case-insensitive) or phone number.
func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	measurements, err := s.store.SearchMeasurements(r.Context(), user.UserID, r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	response := ListMeasurementsResponse{Measurements: make([]MeasurementResponse, 0, len(measurements))}
	for _, m := range measurements {
		response.Measurements = append(response.Measurements, measurementResponse(m))
	}
	writeJSON(w, http.StatusOK, response)
}

// handleDefaultFields handles GET /api/measurements/fields. It returns
// the fixed required set a new record's form starts from; the client
// fills in values and sends the result back on create.
func (s *Server) handleDefaultFields(w http.ResponseWriter, r *http.Request) {
	fields := make([]FieldPayload, 0)
	for _, f := range store.DefaultFields() {
		fields = append(fields, FieldPayload{Key: f.Key, Value: f.Value, Required: f.Required})
	}
	writeJSON(w, http.StatusOK, map[string][]FieldPayload{"fields": fields})
}

// handleCreateMeasurement handles POST /api/measurements.
func (s *Server) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	var req MeasurementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	fields := toFields(req.Fields)
	if len(fields) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "measurement fields are required"})
		return
	}
	if msg := validateRequiredFields(fields); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	m := &store.Measurement{
		UserID:       user.UserID,
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		Fields:       fields,
	}
	if _, err := s.store.SaveMeasurement(r.Context(), m); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, measurementResponse(m))
}

// handleGetMeasurement handles GET /api/measurements/{id}.
func (s *Server) handleGetMeasurement(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	m, err := s.store.GetMeasurement(r.Context(), id, user.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, measurementResponse(m))
}

// handleUpdateMeasurement handles PUT /api/measurements/{id}.
func (s *Server) handleUpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	var req MeasurementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	fields := toFields(req.Fields)
	if len(fields) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "measurement fields are required"})
		return
	}
	if msg := validateRequiredFields(fields); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	m := &store.Measurement{
		ID:           id,
		UserID:       user.UserID,
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		Fields:       fields,
	}
	if _, err := s.store.SaveMeasurement(r.Context(), m); err != nil {
		s.writeError(w, err)
		return
	}

	// Re-read for the stored created_at
	updated, err := s.store.GetMeasurement(r.Context(), id, user.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, measurementResponse(updated))
}

// handleDeleteMeasurement handles DELETE /api/measurements/{id}.
// Deleting an already-deleted record succeeds.
func (s *Server) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	if err := s.store.DeleteMeasurement(r.Context(), id, user.UserID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
