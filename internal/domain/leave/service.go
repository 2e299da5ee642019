package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/requestctx"
)

const (
	OutcomeApplied             = "applied"
	OutcomeEmployeeNotFound    = "employee_not_found"
	OutcomeInvalid             = "invalid"
	OutcomeOverlap             = "overlap"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomePersistFailure      = "persist_failure"
	OutcomeError               = "error"
)

// Observer receives the outcome of every application attempt.
type Observer interface {
	ObserveLeaveApplication(outcome string)
}

type Options struct {
	Policy            Policy
	OverlapCheck      bool
	SwapInvertedRange bool
}

type Service struct {
	Store     StoreAPI
	Employees EmployeeReader
	Options   Options
	Observer  Observer
	Now       func() time.Time

	// applyLocks serializes applications per employee so the overlap read and the deduction
	// are not interleaved with another application in this process.
	applyLocks sync.Map
}

func NewService(store StoreAPI, employees EmployeeReader, opts Options) *Service {
	return &Service{Store: store, Employees: employees, Options: opts, Now: time.Now}
}

// Apply runs one leave application: validate, normalize, check overlap, deduct atomically,
// then record. A failed record insert refunds the deduction before reporting.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (result ApplyResult, err error) {
	defer func() { s.observe(err) }()
	log := requestctx.Logger(ctx, "empId", in.EmployeeID)

	emp, err := s.Employees.GetEmployee(ctx, strings.TrimSpace(in.EmployeeID))
	if err != nil {
		return result, err
	}

	leaveType, err := ParseLeaveType(in.LeaveType)
	if err != nil {
		return result, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return result, ErrReasonRequired
	}

	start, end := DateOnly(in.StartDate), DateOnly(in.EndDate)
	if end.Before(start) && s.Options.SwapInvertedRange {
		start, end = end, start
	}
	days, err := s.Options.Policy.Days(start, end)
	if err != nil {
		return result, err
	}
	log.Debug("leave validated", "leaveType", leaveType, "from", start.Format(dateLayout), "to", end.Format(dateLayout), "days", days)

	unlock := s.lockEmployee(emp.EmpID)
	defer unlock()

	balance := s.normalize(ctx, emp)

	if s.Options.OverlapCheck {
		existing, err := s.Store.FindOverlap(ctx, emp.EmpID, start, end)
		if err != nil {
			return result, fmt.Errorf("find overlap: %w", err)
		}
		if existing != nil {
			return result, &OverlapError{Existing: *existing}
		}
	}
	log.Debug("leave balance checked", "available", balance.Get(leaveType))

	remaining, ok, err := s.Store.DeductBalance(ctx, emp.EmpID, leaveType, days)
	if err != nil {
		return result, fmt.Errorf("deduct balance: %w", err)
	}
	if !ok {
		available := balance.Get(leaveType)
		if current, err := s.Employees.GetEmployee(ctx, emp.EmpID); err == nil {
			available = Normalize(current.LeaveBalance).Get(leaveType)
		}
		return result, &InsufficientBalanceError{LeaveType: leaveType, Needed: days, Available: available}
	}
	log.Debug("leave deducted", "remaining", remaining)

	rec, err := s.Store.CreateRecord(ctx, Record{
		EmpID:     emp.EmpID,
		LeaveType: leaveType,
		FromDate:  start,
		ToDate:    end,
		Days:      days,
		Reason:    reason,
		Status:    StatusApplied,
		CreatedAt: s.Now().UTC(),
	})
	if err != nil {
		persistErr := &RecordPersistError{Cause: err}
		if _, refundErr := s.Store.RefundBalance(ctx, emp.EmpID, leaveType, days); refundErr != nil {
			log.Error("leave refund failed after record insert failure", "leaveType", leaveType, "days", days, "err", refundErr, "cause", err)
		} else {
			persistErr.Compensated = true
			log.Error("leave record insert failed, balance refunded", "leaveType", leaveType, "days", days, "err", err)
		}
		return result, persistErr
	}
	log.Debug("leave recorded", "leaveId", rec.ID)

	return ApplyResult{NewBalance: map[LeaveType]int{leaveType: remaining}, Record: rec}, nil
}

func (s *Service) lockEmployee(empID string) func() {
	v, _ := s.applyLocks.LoadOrStore(empID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Balance returns the normalized balance, persisting it when the stored form is not canonical.
func (s *Service) Balance(ctx context.Context, empID string) (core.Employee, Balance, error) {
	emp, err := s.Employees.GetEmployee(ctx, strings.TrimSpace(empID))
	if err != nil {
		return core.Employee{}, Balance{}, err
	}
	return emp, s.normalize(ctx, emp), nil
}

func (s *Service) History(ctx context.Context, empID string, limit, offset int) (HistoryResult, error) {
	records, total, err := s.Store.ListRecords(ctx, strings.TrimSpace(empID), limit, offset)
	if err != nil {
		return HistoryResult{}, err
	}
	return HistoryResult{Records: records, Total: total}, nil
}

// NormalizeAll rewrites every non-canonical stored balance.
func (s *Service) NormalizeAll(ctx context.Context) (NormalizeSummary, error) {
	var summary NormalizeSummary
	ids, err := s.Store.ListEmployeeIDs(ctx)
	if err != nil {
		return summary, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scanned++
		emp, err := s.Employees.GetEmployee(ctx, id)
		if err != nil {
			summary.Failed++
			slog.Warn("balance normalize lookup failed", "empId", id, "err", err)
			continue
		}
		if IsCanonical(emp.LeaveBalance) {
			continue
		}
		written, err := s.Store.NormalizeBalance(ctx, id, emp.LeaveBalance, Normalize(emp.LeaveBalance))
		if err != nil {
			summary.Failed++
			slog.Warn("balance normalize failed", "empId", id, "err", err)
			continue
		}
		if written {
			summary.Rewritten++
		}
	}
	return summary, nil
}

// ClearRecords deletes every leave record. Used for demo resets only.
func (s *Service) ClearRecords(ctx context.Context) (int64, error) {
	return s.Store.ClearRecords(ctx)
}

func (s *Service) normalize(ctx context.Context, emp core.Employee) Balance {
	balance := Normalize(emp.LeaveBalance)
	if IsCanonical(emp.LeaveBalance) {
		return balance
	}
	written, err := s.Store.NormalizeBalance(ctx, emp.EmpID, emp.LeaveBalance, balance)
	if err != nil {
		slog.Warn("balance normalize write failed", "empId", emp.EmpID, "err", err)
		return balance
	}
	if !written {
		slog.Debug("balance normalize skipped, document changed", "empId", emp.EmpID)
	}
	return balance
}

func (s *Service) observe(err error) {
	if s.Observer == nil {
		return
	}
	s.Observer.ObserveLeaveApplication(Outcome(err))
}

// Outcome classifies an Apply error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeApplied
	case errors.Is(err, core.ErrEmployeeNotFound):
		return OutcomeEmployeeNotFound
	case errors.Is(err, ErrInvalidLeaveType), errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrInvalidRange), errors.Is(err, ErrAllDaysExcluded):
		return OutcomeInvalid
	case errors.Is(err, ErrOverlappingLeave):
		return OutcomeOverlap
	case errors.Is(err, ErrInsufficientBalance):
		return OutcomeInsufficientBalance
	case errors.Is(err, ErrRecordPersistFailure):
		return OutcomePersistFailure
	default:
		return OutcomeError
	}
}
