package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/services"
)

// FeeHandler serves the read side of the payment ledger.
type FeeHandler struct {
	ledger *services.LedgerService
	log    *zap.Logger
	now    func() time.Time
}

func NewFeeHandler(ledger *services.LedgerService, log *zap.Logger) *FeeHandler {
	return &FeeHandler{ledger: ledger, log: log, now: time.Now}
}

func (h *FeeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/fees", h.ListPeriod).Methods("GET")
	router.HandleFunc("/fees/summary", h.Summary).Methods("GET")
	router.HandleFunc("/fees/month", h.PeriodDetail).Methods("GET")
	router.HandleFunc("/fees/unpaid-summary", h.UnpaidReport).Methods("GET")
	router.HandleFunc("/members/{id:[0-9]+}/payment-history", h.MemberHistory).Methods("GET")
	router.HandleFunc("/members/{id:[0-9]+}/status", h.MemberStatus).Methods("GET")
}

// ListPeriod returns every member's status for the period
func (h *FeeHandler) ListPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := queryPeriod(r, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year/month")
		return
	}

	entries, err := h.ledger.ListPeriod(r.Context(), period)
	if err != nil {
		h.log.Error("list period", zap.String("period", period.String()), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *FeeHandler) Summary(w http.ResponseWriter, r *http.Request) {
	period, err := queryPeriod(r, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year/month")
		return
	}

	summary, err := h.ledger.Summary(r.Context(), period)
	if err != nil {
		h.log.Error("period summary", zap.String("period", period.String()), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *FeeHandler) PeriodDetail(w http.ResponseWriter, r *http.Request) {
	period, err := queryPeriod(r, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year/month")
		return
	}

	detail, err := h.ledger.PeriodDetail(r.Context(), period)
	if err != nil {
		h.log.Error("period detail", zap.String("period", period.String()), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"year":         detail.Year,
		"month":        detail.Month,
		"paid_count":   detail.PaidCount,
		"unpaid_count": detail.UnpaidCount,
		"collected":    detail.Collected,
		"currency":     detail.Currency,
		"members":      detail.Members,
	})
}

func (h *FeeHandler) UnpaidReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.UnpaidReport(r.Context())
	if err != nil {
		h.log.Error("unpaid report", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "members": report})
}

// MemberHistory returns all ledger rows of a member. Unknown members get an
// empty history.
func (h *FeeHandler) MemberHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	history, err := h.ledger.MemberHistory(r.Context(), id)
	if err != nil {
		h.log.Error("member history", zap.Uint("member_id", id), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":              true,
		"member":          history.Member,
		"last_paid_month": history.LastPaidMonth,
		"months_unpaid":   history.MonthsUnpaid,
		"currency":        history.Currency,
		"payments":        history.Payments,
	})
}

func (h *FeeHandler) MemberStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return
	}
	period, err := queryPeriod(r, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year/month")
		return
	}

	status, err := h.ledger.GetStatus(r.Context(), id, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"member_id": id,
		"year":      period.Year,
		"month":     period.Month,
		"status":    status,
	})
}
