package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/messaging"
	"github.com/vikasavnish/gymledger/internal/services"
)

// ReminderHandler triggers reminder dispatch runs.
type ReminderHandler struct {
	reminders *services.ReminderService
	log       *zap.Logger
	now       func() time.Time
}

func NewReminderHandler(reminders *services.ReminderService, log *zap.Logger) *ReminderHandler {
	return &ReminderHandler{reminders: reminders, log: log, now: time.Now}
}

func (h *ReminderHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/fees/remind", h.Remind).Methods("POST")
	router.HandleFunc("/fees/remind/template", h.RemindTemplate).Methods("POST")
	router.HandleFunc("/admin/schedule/last-run", h.LastRun).Methods("GET")
}

// RegisterAdminRoutes registers the routes that need the admin role on a
// router already mounted at /admin.
func (h *ReminderHandler) RegisterAdminRoutes(router *mux.Router) {
	router.HandleFunc("/schedule/run-now", h.RunNow).Methods("POST")
}

// Remind dispatches reminders in the configured mode
func (h *ReminderHandler) Remind(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.reminders.Mode())
}

// RemindTemplate always dispatches template reminders
func (h *ReminderHandler) RemindTemplate(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, config.ModeTemplate)
}

func (h *ReminderHandler) dispatch(w http.ResponseWriter, r *http.Request, mode config.ReminderMode) {
	period, err := queryPeriod(r, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year/month")
		return
	}

	result, err := h.reminders.Run(r.Context(), period, mode)
	h.writeResult(w, result, err)
}

// RunNow runs the daily dispatch immediately
func (h *ReminderHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	result, err := h.reminders.RunDaily(r.Context())
	h.writeResult(w, result, err)
}

func (h *ReminderHandler) LastRun(w http.ResponseWriter, r *http.Request) {
	last, err := h.reminders.LastRun(r.Context())
	if err != nil {
		h.log.Error("load last dispatch", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	if last == nil {
		writeError(w, http.StatusNotFound, "no dispatch run recorded")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (h *ReminderHandler) writeResult(w http.ResponseWriter, result *services.DispatchResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	// Configuration and validation failures carry the failed run result.
	status := http.StatusInternalServerError
	if errors.Is(err, messaging.ErrNotConfigured) ||
		errors.Is(err, services.ErrTemplateNotConfigured) ||
		errors.Is(err, services.ErrInvalidInput) ||
		errors.Is(err, services.ErrInvalidPeriod) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}
