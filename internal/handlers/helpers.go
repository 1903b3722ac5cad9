package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vikasavnish/gymledger/internal/messaging"
	"github.com/vikasavnish/gymledger/internal/models"
	"github.com/vikasavnish/gymledger/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": msg})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidPeriod), errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrMemberNotFound), errors.Is(err, services.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "Already paid")
	case errors.Is(err, messaging.ErrNotConfigured), errors.Is(err, services.ErrTemplateNotConfigured):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, services.ErrInvalidInput
	}
	return uint(id), nil
}

// queryPeriod reads ?year=&month=, defaulting each to the current local
// period.
func queryPeriod(r *http.Request, now time.Time) (models.Period, error) {
	p := models.PeriodOf(now)
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return models.Period{}, services.ErrInvalidPeriod
		}
		p.Year = year
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil {
			return models.Period{}, services.ErrInvalidPeriod
		}
		p.Month = month
	}
	return p, p.Validate()
}

// periodBody accepts month as a number with a separate year, or as a
// "YYYY-MM" string.
type periodBody struct {
	Year  int             `json:"year"`
	Month json.RawMessage `json:"month"`
}

func (b periodBody) period() (models.Period, error) {
	if len(b.Month) == 0 || string(b.Month) == "null" {
		return models.Period{}, services.ErrInvalidInput
	}

	var month int
	if err := json.Unmarshal(b.Month, &month); err == nil {
		if b.Year == 0 {
			return models.Period{}, services.ErrInvalidInput
		}
		p := models.Period{Year: b.Year, Month: month}
		return p, p.Validate()
	}

	var s string
	if err := json.Unmarshal(b.Month, &s); err != nil {
		return models.Period{}, services.ErrInvalidPeriod
	}
	if strings.Contains(s, "-") {
		return models.ParsePeriod(s)
	}
	month, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || b.Year == 0 {
		return models.Period{}, services.ErrInvalidPeriod
	}
	p := models.Period{Year: b.Year, Month: month}
	return p, p.Validate()
}
