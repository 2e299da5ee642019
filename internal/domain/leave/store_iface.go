package leave

import (
	"context"
	"encoding/json"
	"time"

	"hrcopilot/internal/domain/core"
)

type EmployeeReader interface {
	GetEmployee(ctx context.Context, empID string) (core.Employee, error)
}

type StoreAPI interface {
	// NormalizeBalance writes b only if the stored document still equals observed.
	NormalizeBalance(ctx context.Context, empID string, observed json.RawMessage, b Balance) (bool, error)
	// DeductBalance decrements the bucket only when it holds at least days. ok is false when
	// the guard fails.
	DeductBalance(ctx context.Context, empID string, leaveType LeaveType, days int) (newValue int, ok bool, err error)
	RefundBalance(ctx context.Context, empID string, leaveType LeaveType, days int) (int, error)
	FindOverlap(ctx context.Context, empID string, start, end time.Time) (*Record, error)
	CreateRecord(ctx context.Context, rec Record) (Record, error)
	ListRecords(ctx context.Context, empID string, limit, offset int) ([]Record, int, error)
	ListEmployeeIDs(ctx context.Context) ([]string, error)
	ClearRecords(ctx context.Context) (int64, error)
}
