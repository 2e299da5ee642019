package leave

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLeaveType     = errors.New("invalid leave type")
	ErrReasonRequired       = errors.New("reason is required")
	ErrInvalidRange         = errors.New("end date before start date")
	ErrAllDaysExcluded      = errors.New("all requested days fall on weekends or holidays")
	ErrOverlappingLeave     = errors.New("leave overlaps an existing application")
	ErrInsufficientBalance  = errors.New("insufficient leave balance")
	ErrRecordPersistFailure = errors.New("leave record could not be saved")
)

type InsufficientBalanceError struct {
	LeaveType LeaveType
	Needed    int
	Available int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: needed %d, available %d", e.LeaveType, e.Needed, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

type OverlapError struct {
	Existing Record
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("leave overlaps %s application from %s to %s",
		e.Existing.LeaveType, e.Existing.FromDate.Format(dateLayout), e.Existing.ToDate.Format(dateLayout))
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlappingLeave
}

// RecordPersistError is returned when the balance was deducted but the leave record insert
// failed. Compensated reports whether the deduction was refunded.
type RecordPersistError struct {
	Cause       error
	Compensated bool
}

func (e *RecordPersistError) Error() string {
	if e.Compensated {
		return fmt.Sprintf("leave record could not be saved, balance restored: %v", e.Cause)
	}
	return fmt.Sprintf("leave record could not be saved and balance was not restored: %v", e.Cause)
}

func (e *RecordPersistError) Is(target error) bool {
	return target == ErrRecordPersistFailure
}

func (e *RecordPersistError) Unwrap() error {
	return e.Cause
}
