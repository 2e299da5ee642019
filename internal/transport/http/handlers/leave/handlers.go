package leavehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrcopilot/internal/domain/audit"
	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/domain/leave"
	"hrcopilot/internal/transport/http/api"
	"hrcopilot/internal/transport/http/middleware"
	"hrcopilot/internal/transport/http/shared"
)

const applyEndpoint = "apply-leave"

type Handler struct {
	Service     *leave.Service
	Holidays    leave.HolidayCalendar
	Audit       *audit.Service
	Idempotency middleware.IdempotencyStore
	AuthSecret  string
	Now         func() time.Time
}

func NewHandler(service *leave.Service, holidays leave.HolidayCalendar, auditSvc *audit.Service, idempotency middleware.IdempotencyStore, authSecret string) *Handler {
	return &Handler{
		Service:     service,
		Holidays:    holidays,
		Audit:       auditSvc,
		Idempotency: idempotency,
		AuthSecret:  authSecret,
		Now:         time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/leave-balance/{empID}", h.handleBalance)
	r.With(middleware.RequireAuth(h.AuthSecret)).Post("/apply-leave", h.handleApply)
	r.Get("/leave-history/{empID}", h.handleHistory)
	r.Get("/holidays", h.handleHolidays)
}

type balanceResponse struct {
	EmpID        string        `json:"empId"`
	Name         string        `json:"name"`
	Project      string        `json:"project"`
	LeaveBalance leave.Balance `json:"leaveBalance"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	emp, balance, err := h.Service.Balance(r.Context(), chi.URLParam(r, "empID"))
	if err != nil {
		writeLeaveError(w, r, err)
		return
	}
	api.Success(w, balanceResponse{EmpID: emp.EmpID, Name: emp.Name, Project: emp.Project, LeaveBalance: balance}, middleware.GetRequestID(r.Context()))
}

type applyPayload struct {
	EmpID     string `json:"empId"`
	LeaveType string `json:"leaveType"`
	FromDate  string `json:"fromDate"`
	ToDate    string `json:"toDate"`
	Reason    string `json:"reason"`
}

type applyResponse struct {
	Message    string                  `json:"message"`
	NewBalance map[leave.LeaveType]int `json:"newBalance"`
	Leave      leave.Record            `json:"leave"`
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	var payload applyPayload
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	v := shared.NewValidator()
	v.Required("empId", payload.EmpID, "is required")
	v.Required("leaveType", payload.LeaveType, "is required")
	start, _ := v.Date("fromDate", payload.FromDate)
	end, _ := v.Date("toDate", payload.ToDate)
	if v.Reject(w, requestID) {
		return
	}

	actor := middleware.ActorName(r.Context())
	idemKey := strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
	requestHash := middleware.RequestHash(raw)
	reserved := false
	if idemKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Reserve(r.Context(), actor, applyEndpoint, idemKey, requestHash)
		switch {
		case errors.Is(err, middleware.ErrIdempotencyConflict):
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", requestID)
			return
		case errors.Is(err, middleware.ErrIdempotencyInProgress):
			api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this idempotency key is still being processed", requestID)
			return
		case err != nil:
			slog.Warn("idempotency reserve failed", "err", err, "requestId", requestID)
		case found:
			w.Header().Set("Idempotent-Replay", "true")
			api.Created(w, stored, requestID)
			return
		default:
			reserved = true
		}
	}

	result, err := h.Service.Apply(r.Context(), leave.ApplyInput{
		EmployeeID: payload.EmpID,
		LeaveType:  payload.LeaveType,
		StartDate:  start,
		EndDate:    end,
		Reason:     payload.Reason,
	})
	if err != nil {
		if reserved {
			if err := h.Idempotency.Release(context.WithoutCancel(r.Context()), actor, applyEndpoint, idemKey); err != nil {
				slog.Warn("idempotency release failed", "err", err, "requestId", requestID)
			}
		}
		writeLeaveError(w, r, err)
		return
	}

	resp := applyResponse{Message: "Leave applied successfully", NewBalance: result.NewBalance, Leave: result.Record}
	if err := h.Audit.Record(r.Context(), actor, audit.ActionLeaveApply, "leave", result.Record.ID, requestID, shared.ClientIP(r), nil, resp); err != nil {
		slog.Warn("audit leave.apply failed", "err", err)
	}
	if reserved {
		if encoded, err := json.Marshal(resp); err == nil {
			if err := h.Idempotency.Save(context.WithoutCancel(r.Context()), actor, applyEndpoint, idemKey, requestHash, encoded); err != nil {
				slog.Warn("idempotency save failed", "err", err, "requestId", requestID)
			}
		}
	}
	api.Created(w, resp, requestID)
}

type historyResponse struct {
	EmpID  string         `json:"empId"`
	Leaves []leave.Record `json:"leaves"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	empID := chi.URLParam(r, "empID")
	if _, _, err := h.Service.Balance(r.Context(), empID); err != nil {
		writeLeaveError(w, r, err)
		return
	}
	page := shared.ParsePagination(r, 50, 500)
	history, err := h.Service.History(r.Context(), empID, page.Limit, page.Offset)
	if err != nil {
		writeLeaveError(w, r, err)
		return
	}
	records := history.Records
	if records == nil {
		records = []leave.Record{}
	}
	shared.WriteTotal(w, history.Total)
	api.Success(w, historyResponse{EmpID: empID, Leaves: records, Total: history.Total, Limit: page.Limit, Offset: page.Offset}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1900 || parsed > 2200 {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "year", Reason: "must be a four-digit year"}})
			return
		}
		year = parsed
	}
	holidays := h.Holidays.Year(year)
	if holidays == nil {
		holidays = []leave.Holiday{}
	}
	api.Success(w, map[string]any{"year": year, "holidays": holidays}, middleware.GetRequestID(r.Context()))
}

// writeLeaveError maps engine errors onto status codes. Unknown errors are logged and hidden.
func writeLeaveError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	var insufficient *leave.InsufficientBalanceError
	var overlap *leave.OverlapError
	var persist *leave.RecordPersistError

	switch {
	case errors.Is(err, core.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", requestID)
	case errors.Is(err, leave.ErrInvalidLeaveType):
		api.FailWithDetails(w, http.StatusBadRequest, "invalid_leave_type", err.Error(), map[string]any{"allowed": leave.LeaveTypes}, requestID)
	case errors.Is(err, leave.ErrReasonRequired):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "reason", Reason: "is required"}})
	case errors.Is(err, leave.ErrInvalidRange):
		api.Fail(w, http.StatusBadRequest, "invalid_range", "toDate must be on or after fromDate", requestID)
	case errors.Is(err, leave.ErrAllDaysExcluded):
		api.Fail(w, http.StatusUnprocessableEntity, "all_days_excluded", err.Error(), requestID)
	case errors.As(err, &overlap):
		api.FailWithDetails(w, http.StatusConflict, "overlapping_leave", err.Error(), map[string]any{"existing": overlap.Existing}, requestID)
	case errors.As(err, &insufficient):
		api.FailWithDetails(w, http.StatusConflict, "insufficient_balance", err.Error(), map[string]any{
			"leaveType": insufficient.LeaveType,
			"needed":    insufficient.Needed,
			"available": insufficient.Available,
		}, requestID)
	case errors.As(err, &persist):
		slog.Error("leave record persist failure", "err", err, "compensated", persist.Compensated, "requestId", requestID)
		api.FailWithDetails(w, http.StatusInternalServerError, "record_persist_failure", "leave could not be recorded", map[string]any{"compensated": persist.Compensated}, requestID)
	default:
		slog.Error("leave request failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}
