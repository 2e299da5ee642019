package core

import "context"

// Directory is the employee collection: point lookups, paging and bulk upsert.
type Directory interface {
	ListEmployees(ctx context.Context, limit, offset int) (ListResult, error)
	GetEmployee(ctx context.Context, empID string) (Employee, error)
	CreateEmployee(ctx context.Context, emp Employee) (Employee, error)
	UpsertEmployees(ctx context.Context, emps []Employee) (ImportSummary, error)
}
