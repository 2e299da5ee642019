package corehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrcopilot/internal/domain/audit"
	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/domain/leave"
	"hrcopilot/internal/platform/jobs"
	"hrcopilot/internal/transport/http/api"
	"hrcopilot/internal/transport/http/middleware"
	"hrcopilot/internal/transport/http/shared"
)

const maxImportBytes = 4 << 20

type Handler struct {
	Directory  core.Directory
	Audit      *audit.Service
	Jobs       *jobs.Service
	AuthSecret string
}

func NewHandler(directory core.Directory, auditSvc *audit.Service, jobsSvc *jobs.Service, authSecret string) *Handler {
	return &Handler{Directory: directory, Audit: auditSvc, Jobs: jobsSvc, AuthSecret: authSecret}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.handleListEmployees)
		r.With(middleware.RequireAuth(h.AuthSecret)).Post("/", h.handleCreateEmployee)
		r.With(middleware.RequireAuth(h.AuthSecret)).Post("/import", h.handleImportEmployees)
		r.Get("/import/{jobID}", h.handleImportStatus)
		r.Get("/{empID}", h.handleGetEmployee)
	})
}

// employeeView reports the normalized balance; the stored document may be legacy-shaped.
type employeeView struct {
	EmpID        string        `json:"empId"`
	Name         string        `json:"name"`
	Project      string        `json:"project"`
	LeaveBalance leave.Balance `json:"leaveBalance"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func viewOf(emp core.Employee) employeeView {
	return employeeView{
		EmpID:        emp.EmpID,
		Name:         emp.Name,
		Project:      emp.Project,
		LeaveBalance: leave.Normalize(emp.LeaveBalance),
		CreatedAt:    emp.CreatedAt,
		UpdatedAt:    emp.UpdatedAt,
	}
}

type listResponse struct {
	Employees []employeeView `json:"employees"`
	Total     int            `json:"total"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 500)
	result, err := h.Directory.ListEmployees(r.Context(), page.Limit, page.Offset)
	if err != nil {
		slog.Error("employee list failed", "err", err, "requestId", middleware.GetRequestID(r.Context()))
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to list employees", middleware.GetRequestID(r.Context()))
		return
	}

	views := make([]employeeView, 0, len(result.Employees))
	for _, emp := range result.Employees {
		views = append(views, viewOf(emp))
	}
	shared.WriteTotal(w, result.Total)
	api.Success(w, listResponse{Employees: views, Total: result.Total, Limit: page.Limit, Offset: page.Offset}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Directory.GetEmployee(r.Context(), chi.URLParam(r, "empID"))
	if errors.Is(err, core.ErrEmployeeNotFound) {
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Error("employee lookup failed", "err", err, "requestId", middleware.GetRequestID(r.Context()))
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to load employee", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, viewOf(emp), middleware.GetRequestID(r.Context()))
}

type balancePayload struct {
	Casual *int `json:"casual"`
	Sick   *int `json:"sick"`
}

type createEmployeePayload struct {
	EmpID        string          `json:"empId"`
	Name         string          `json:"name"`
	Project      string          `json:"project"`
	LeaveBalance *balancePayload `json:"leaveBalance"`
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload createEmployeePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	v := shared.NewValidator()
	v.Required("empId", payload.EmpID, "is required")
	v.Required("name", payload.Name, "is required")
	casual, sick := 0, 0
	if b := payload.LeaveBalance; b != nil {
		if b.Casual != nil {
			casual = *b.Casual
		}
		if b.Sick != nil {
			sick = *b.Sick
		}
	}
	v.NonNegative("leaveBalance.casual", casual)
	v.NonNegative("leaveBalance.sick", sick)
	if v.Reject(w, requestID) {
		return
	}

	emp, err := h.Directory.CreateEmployee(r.Context(), core.Employee{
		EmpID:        strings.TrimSpace(payload.EmpID),
		Name:         strings.TrimSpace(payload.Name),
		Project:      strings.TrimSpace(payload.Project),
		LeaveBalance: core.BalanceDocument(casual, sick),
	})
	if errors.Is(err, core.ErrEmployeeExists) {
		api.Fail(w, http.StatusConflict, "employee_exists", "employee id already exists", requestID)
		return
	}
	if err != nil {
		slog.Error("employee create failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to create employee", requestID)
		return
	}

	view := viewOf(emp)
	if err := h.Audit.Record(r.Context(), middleware.ActorName(r.Context()), audit.ActionEmployeeCreate, "employee", emp.EmpID, requestID, shared.ClientIP(r), nil, view); err != nil {
		slog.Warn("audit employee.create failed", "err", err)
	}
	api.Created(w, view, requestID)
}

// handleImportEmployees accepts text/csv or a multipart "file" field. With ?async=true the
// import runs on the job queue and the response carries the job id.
func (h *Handler) handleImportEmployees(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	content, err := readImportBody(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), requestID)
		return
	}

	actor := middleware.ActorName(r.Context())
	ip := shared.ClientIP(r)
	run := func(ctx context.Context) (any, error) {
		summary, err := core.ImportEmployees(ctx, h.Directory, bytes.NewReader(content))
		if err != nil {
			return nil, err
		}
		if err := h.Audit.Record(ctx, actor, audit.ActionEmployeeImport, "employee", "bulk", requestID, ip, nil, summary); err != nil {
			slog.Warn("audit employee.import failed", "err", err)
		}
		return summary, nil
	}

	if r.URL.Query().Get("async") == "true" && h.Jobs != nil {
		jobID, err := h.Jobs.Enqueue(jobs.JobEmployeeImport, run)
		if err != nil {
			api.Fail(w, http.StatusServiceUnavailable, "queue_full", "import queue is full, retry later", requestID)
			return
		}
		api.Accepted(w, map[string]string{"jobId": jobID, "status": jobs.StatusQueued}, requestID)
		return
	}

	var result any
	if h.Jobs != nil {
		result, err = h.Jobs.RunNow(r.Context(), jobs.JobEmployeeImport, run)
	} else {
		result, err = run(r.Context())
	}
	if errors.Is(err, core.ErrImportHeader) {
		api.Fail(w, http.StatusBadRequest, "invalid_csv", err.Error(), requestID)
		return
	}
	if err != nil {
		slog.Error("employee import failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to import employees", requestID)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if h.Jobs == nil {
		api.Fail(w, http.StatusNotFound, "job_not_found", "job not found", requestID)
		return
	}
	run, ok := h.Jobs.Get(chi.URLParam(r, "jobID"))
	if !ok || run.Type != jobs.JobEmployeeImport {
		api.Fail(w, http.StatusNotFound, "job_not_found", "job not found", requestID)
		return
	}
	api.Success(w, run, requestID)
}

func readImportBody(r *http.Request) ([]byte, error) {
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	var src io.Reader = r.Body
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportBytes); err != nil {
			return nil, fmt.Errorf("invalid multipart payload")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("multipart field \"file\" is required")
		}
		defer file.Close()
		src = file
	}
	content, err := io.ReadAll(io.LimitReader(src, maxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read csv")
	}
	if len(content) > maxImportBytes {
		return nil, fmt.Errorf("csv exceeds maximum size")
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("csv body is empty")
	}
	return content, nil
}
