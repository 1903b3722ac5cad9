package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/models"
	"github.com/vikasavnish/gymledger/internal/services"
)

type MemberHandler struct {
	members *services.MemberService
	log     *zap.Logger
}

func NewMemberHandler(members *services.MemberService, log *zap.Logger) *MemberHandler {
	return &MemberHandler{members: members, log: log}
}

func (h *MemberHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/members", h.CreateMember).Methods("POST")
	router.HandleFunc("/members/import", h.ImportMembers).Methods("POST")
	router.HandleFunc("/members/{id:[0-9]+}", h.GetMember).Methods("GET")
	router.HandleFunc("/members/{id:[0-9]+}", h.UpdateMember).Methods("PUT")
	router.HandleFunc("/members/{id:[0-9]+}", h.DeleteMember).Methods("DELETE")
}

type memberRequest struct {
	Name          *string          `json:"name"`
	Phone         *string          `json:"phone"`
	Email         *string          `json:"email"`
	AdmissionDate *string          `json:"admission_date"`
	PlanType      *string          `json:"plan_type"`
	MonthlyFee    *decimal.Decimal `json:"monthly_fee"`
	ClearFee      bool             `json:"clear_monthly_fee"`
	IsActive      *bool            `json:"is_active"`
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, services.ErrInvalidInput
	}
	return t, nil
}

func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context())
	if err != nil {
		h.log.Error("list members", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return
	}
	member, err := h.members.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// CreateMember creates a member and its admission-year ledger rows
func (h *MemberHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == nil || req.AdmissionDate == nil {
		writeError(w, http.StatusBadRequest, "name and admission_date are required")
		return
	}
	admission, err := parseDate(*req.AdmissionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "admission_date must be YYYY-MM-DD")
		return
	}

	member := &models.Member{Name: *req.Name, AdmissionDate: admission}
	if req.Phone != nil {
		member.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		member.Email = strings.TrimSpace(*req.Email)
	}
	if req.PlanType != nil {
		member.PlanType = *req.PlanType
	}
	if req.MonthlyFee != nil {
		member.MonthlyFee = decimal.NewNullDecimal(*req.MonthlyFee)
	}

	if err := h.members.Create(r.Context(), member); err != nil {
		h.log.Warn("create member", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *MemberHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return
	}
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	upd := services.MemberUpdate{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		PlanType: req.PlanType,
		IsActive: req.IsActive,
	}
	if req.AdmissionDate != nil {
		admission, err := parseDate(*req.AdmissionDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "admission_date must be YYYY-MM-DD")
			return
		}
		upd.AdmissionDate = &admission
	}
	switch {
	case req.ClearFee:
		fee := decimal.NullDecimal{}
		upd.MonthlyFee = &fee
	case req.MonthlyFee != nil:
		fee := decimal.NewNullDecimal(*req.MonthlyFee)
		upd.MonthlyFee = &fee
	}

	member, err := h.members.Update(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return
	}
	if err := h.members.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importRecord struct {
	Name          string           `json:"name"`
	Phone         string           `json:"phone"`
	Email         string           `json:"email"`
	AdmissionDate string           `json:"admission_date"`
	MonthlyFee    *decimal.Decimal `json:"monthly_fee"`
}

// ImportMembers merges already-parsed member records
func (h *MemberHandler) ImportMembers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Members []importRecord `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	records := make([]services.MemberImport, 0, len(req.Members))
	for _, rec := range req.Members {
		admission, err := parseDate(rec.AdmissionDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "admission_date must be YYYY-MM-DD")
			return
		}
		records = append(records, services.MemberImport{
			Name:          rec.Name,
			Phone:         rec.Phone,
			Email:         rec.Email,
			AdmissionDate: admission,
			MonthlyFee:    rec.MonthlyFee,
		})
	}

	result, err := h.members.Import(r.Context(), records)
	if err != nil {
		h.log.Warn("import members", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
