package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"attendance.service/internal/api/handler"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(h *handler.AttendanceHandler) *mux.Router {

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/attendance", h.Verify).Methods(http.MethodPost)
	api.HandleFunc("/attendance/{employeeId}/today", h.TodayRecord).Methods(http.MethodGet)

	api.HandleFunc("/auth/link", h.Link).Methods(http.MethodPost)

	api.HandleFunc("/enrollment", h.Enroll).Methods(http.MethodPost)
	api.HandleFunc("/enrollment/{employeeId}", h.Revoke).Methods(http.MethodDelete)
	api.HandleFunc("/face-update", h.ResetFace).Methods(http.MethodPost)

	api.HandleFunc("/settings", h.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.UpdateSettings).Methods(http.MethodPut)

	api.HandleFunc("/cron/auto-checkout", h.Sweep).Methods(http.MethodPost)

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
