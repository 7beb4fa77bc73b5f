package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"attendance.service/internal/core"
	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// AttendanceHandler exposes the verification engine over HTTP.
type AttendanceHandler struct {
	Attendance  *core.AttendanceService
	Enrollment  *core.EnrollmentService
	Sweeper     *core.Sweeper
	SweepSecret string
}

// VerifyRequest mirrors the verification envelope. Liveness and match fields
// are treated as hints only; the service re-validates everything.
type VerifyRequest struct {
	EmployeeID        string    `json:"employeeId"`
	Action            string    `json:"action"`
	Lat               float64   `json:"lat"`
	Lng               float64   `json:"lng"`
	LocationID        string    `json:"locationId,omitempty"`
	DeviceFingerprint string    `json:"deviceFingerprint"`
	LivenessPassed    bool      `json:"livenessPassed"`
	FaceMatchScore    *float64  `json:"faceMatchScore,omitempty"`
	FaceDescriptor    []float64 `json:"faceDescriptor,omitempty"`
	LateReason        string    `json:"lateReason,omitempty"`
}

func (h *AttendanceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "invalid request body"))
		return
	}

	employeeID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "employeeId must be a UUID"))
		return
	}

	verification := core.VerificationRequest{
		EmployeeID:        employeeID,
		Action:            model.Action(req.Action),
		Lat:               req.Lat,
		Lng:               req.Lng,
		DeviceFingerprint: req.DeviceFingerprint,
		LivenessPassed:    req.LivenessPassed,
		FaceMatchScore:    req.FaceMatchScore,
		FaceDescriptor:    req.FaceDescriptor,
		LateReason:        req.LateReason,
	}
	if req.LocationID != "" {
		if hint, err := uuid.Parse(req.LocationID); err == nil {
			verification.LocationHint = &hint
		}
	}

	result, err := h.Attendance.Verify(r.Context(), verification)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": result.Message,
		"record":  result.Record,
	})
}

func (h *AttendanceHandler) TodayRecord(w http.ResponseWriter, r *http.Request) {
	employeeID, err := uuid.Parse(mux.Vars(r)["employeeId"])
	if err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "employeeId must be a UUID"))
		return
	}

	rec, err := h.Attendance.TodayRecord(r.Context(), employeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec})
}

type LinkRequest struct {
	EmployeeCode string `json:"employeeCode"`
	PIN          string `json:"pin"`
}

func (h *AttendanceHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "invalid request body"))
		return
	}

	session, err := h.Enrollment.Link(r.Context(), req.EmployeeCode, req.PIN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": session})
}

type EnrollRequest struct {
	EmployeeID        string      `json:"employeeId"`
	FaceDescriptor    []float64   `json:"faceDescriptor,omitempty"`
	Samples           [][]float64 `json:"samples,omitempty"`
	DeviceFingerprint string      `json:"deviceFingerprint,omitempty"`
}

func (h *AttendanceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "invalid request body"))
		return
	}

	employeeID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "employeeId must be a UUID"))
		return
	}

	if err := h.Enrollment.Enroll(r.Context(), employeeID, req.FaceDescriptor, req.Samples, req.DeviceFingerprint); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "face enrolled"})
}

func (h *AttendanceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	employeeID, err := uuid.Parse(mux.Vars(r)["employeeId"])
	if err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "employeeId must be a UUID"))
		return
	}

	if err := h.Enrollment.Revoke(r.Context(), employeeID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "enrollment revoked"})
}

type ResetFaceRequest struct {
	EmployeeID string   `json:"employeeId"`
	PIN        string   `json:"pin"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

func (h *AttendanceHandler) ResetFace(w http.ResponseWriter, r *http.Request) {
	var req ResetFaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "invalid request body"))
		return
	}

	employeeID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "employeeId must be a UUID"))
		return
	}

	if err := h.Enrollment.ResetFace(r.Context(), employeeID, req.PIN, req.Lat, req.Lng); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "please enroll your face again"})
}

func (h *AttendanceHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Attendance.GetSettings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *AttendanceHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, r, apperr.New(apperr.KindInvalidInput, "invalid request body"))
		return
	}

	updated, err := h.Attendance.UpdateSettings(r.Context(), settings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Sweep is the scheduled auto-checkout trigger, authenticated by the shared
// sweep secret rather than an employee identity.
func (h *AttendanceHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if h.SweepSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.SweepSecret)) != 1 {
		writeError(w, r, apperr.New(apperr.KindUnauthenticated, "invalid sweep secret"))
		return
	}

	result, err := h.Sweeper.Sweep(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"closed":  result.Closed,
		"failed":  result.Failed,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	} else {
		log.Ctx(r.Context()).Debug().Err(err).Msg("Request rejected")
	}

	writeJSON(w, status, map[string]any{
		"error": apperr.MessageOf(err),
		"kind":  kind.String(),
	})
}
