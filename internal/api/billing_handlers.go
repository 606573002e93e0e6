package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/billing"
	"github.com/societyhub/society-server/internal/models"
)

// ========== Billing handlers ==========

// HandleGenerateRent bills rent for a month across the caller's societies,
// or for one society when societyId is given
func (s *RESTServer) HandleGenerateRent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month     string `json:"month" validate:"required,yyyymm"`
		SocietyID string `json:"societyId" validate:"omitempty,uuid"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	month, _ := models.ParseBillingMonth(req.Month)
	var societyID *uuid.UUID
	if req.SocietyID != "" {
		id := uuid.MustParse(req.SocietyID)
		societyID = &id
	}

	result, err := s.billing.GenerateRent(r.Context(), actorFrom(r), month, societyID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, billingStatus(result), result)
}

// HandleGenerateMaintenance bills a society's maintenance for a month
func (s *RESTServer) HandleGenerateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month     string `json:"month" validate:"required,yyyymm"`
		SocietyID string `json:"societyId" validate:"required,uuid"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	month, _ := models.ParseBillingMonth(req.Month)
	result, err := s.billing.GenerateMaintenance(r.Context(), actorFrom(r), uuid.MustParse(req.SocietyID), month)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, billingStatus(result), result)
}

func billingStatus(result *billing.Result) int {
	if result.Created > 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}

// HandleListBills lists rent or maintenance bills visible to the caller
func (s *RESTServer) HandleListBills(w http.ResponseWriter, r *http.Request) {
	billType, err := parseBillType(r)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	var q billing.BillQuery
	if q.SocietyID, err = parseQueryID(r, "society_id"); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		month, err := models.ParseBillingMonth(raw)
		if err != nil {
			s.respondAppError(w, r, apperr.BadRequest("month must be a month in YYYY-MM format"))
			return
		}
		q.Month = &month
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.BillStatus(raw)
		switch status {
		case models.BillStatusUnpaid, models.BillStatusPaid, models.BillStatusOverdue:
		default:
			s.respondAppError(w, r, apperr.BadRequest("unknown bill status %q", raw))
			return
		}
		q.Status = &status
	}

	limit, offset := parsePagination(r)
	bills, total, err := s.billing.ListBills(r.Context(), actorFrom(r), billType, q, limit, offset)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"bills": bills,
		"total": total,
	})
}

// HandlePayBill records a self-reported payment
func (s *RESTServer) HandlePayBill(w http.ResponseWriter, r *http.Request) {
	billType, err := parseBillType(r)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	billID, err := parseID(r, "id")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	var req struct {
		Method        string `json:"method" validate:"required,max=50"`
		TransactionID string `json:"transactionId" validate:"max=100"`
	}
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}

	bill, err := s.payments.PayBill(r.Context(), actorFrom(r), billType, billID, models.PaymentDetails{
		Method:        req.Method,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, bill)
}

func parseBillType(r *http.Request) (models.BillType, error) {
	billType := models.BillType(chi.URLParam(r, "type"))
	if !billType.Valid() {
		return "", apperr.BadRequest("unknown bill type %q", billType)
	}
	return billType, nil
}
