package reportshandler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/domain/reports"
	"hrcopilot/internal/transport/http/api"
	"hrcopilot/internal/transport/http/middleware"
)

type Handler struct {
	Service *reports.Service
}

func NewHandler(service *reports.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/leave-history/{empID}/statement.pdf", h.handleStatement)
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	empID := chi.URLParam(r, "empID")
	pdf, err := h.Service.RenderStatementPDF(r.Context(), empID)
	if errors.Is(err, core.ErrEmployeeNotFound) {
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", requestID)
		return
	}
	if err != nil {
		slog.Error("statement render failed", "err", err, "empId", empID, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "statement_failed", "failed to build leave statement", requestID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=leave-statement-%s.pdf", empID))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		slog.Warn("statement write failed", "err", err)
	}
}
