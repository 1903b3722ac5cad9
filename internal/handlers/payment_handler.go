package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/services"
	"github.com/vikasavnish/gymledger/internal/utils"
)

// PaymentHandler serves the ledger mutations and receipts.
type PaymentHandler struct {
	payments *services.PaymentService
	log      *zap.Logger
}

func NewPaymentHandler(payments *services.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

func (h *PaymentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/payment/pay-now", h.PayNow).Methods("POST")
	router.HandleFunc("/fees/mark-paid", h.PayNow).Methods("POST")
	router.HandleFunc("/payment/mark-unpaid", h.MarkUnpaid).Methods("POST")
	router.HandleFunc("/receipts/{id:[0-9]+}", h.GetReceipt).Methods("GET")
}

type payNowRequest struct {
	MemberID uint `json:"member_id"`
	periodBody
	Amount *decimal.Decimal `json:"amount"`
	Method string           `json:"method"`
}

// PayNow records a payment for a member-month
func (h *PaymentHandler) PayNow(w http.ResponseWriter, r *http.Request) {
	var req payNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MemberID == 0 {
		writeError(w, http.StatusBadRequest, "Missing data")
		return
	}
	period, err := req.period()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing data")
		return
	}

	tx, err := h.payments.RecordPayment(r.Context(), services.RecordPaymentInput{
		MemberID:   req.MemberID,
		Period:     period,
		Amount:     req.Amount,
		Method:     req.Method,
		RecordedBy: utils.GetUsernameFromContext(r.Context()),
	})
	if err != nil {
		h.log.Warn("record payment", zap.Uint("member_id", req.MemberID), zap.String("period", period.String()), zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"transaction_id": tx.ID,
		"amount":         tx.Amount,
		"receipt_url":    fmt.Sprintf("/api/receipts/%d", tx.ID),
	})
}

type markUnpaidRequest struct {
	MemberID uint `json:"member_id"`
	periodBody
}

// MarkUnpaid reverts a member-month to Unpaid and removes its transactions
func (h *PaymentHandler) MarkUnpaid(w http.ResponseWriter, r *http.Request) {
	var req markUnpaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MemberID == 0 || len(req.Month) == 0 {
		writeError(w, http.StatusBadRequest, "Missing data")
		return
	}
	period, err := req.period()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format")
		return
	}

	deleted, err := h.payments.UnmarkPayment(r.Context(), req.MemberID, period)
	if err != nil {
		h.log.Error("unmark payment", zap.Uint("member_id", req.MemberID), zap.String("period", period.String()), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "transactions_deleted": deleted})
}

func (h *PaymentHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	receipt, err := h.payments.Receipt(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
