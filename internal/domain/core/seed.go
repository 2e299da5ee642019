package core

import (
	"context"
	"log/slog"
)

// DemoEmployees is the starter roster seeded into an empty directory.
func DemoEmployees() []Employee {
	return []Employee{
		{EmpID: "10001", Name: "Sonal Sharma", Project: "Evernorth UIM", LeaveBalance: BalanceDocument(12, 8)},
		{EmpID: "10002", Name: "Amit Kumar", Project: "Newton Fines & Tolls", LeaveBalance: BalanceDocument(10, 6)},
		{EmpID: "10003", Name: "Aashi Jain", Project: "Healthcare Insights", LeaveBalance: BalanceDocument(15, 5)},
		{EmpID: "10004", Name: "Rohit Verma", Project: "Insurance Automation", LeaveBalance: BalanceDocument(8, 12)},
	}
}

// SeedDemoEmployees inserts DemoEmployees only when the directory is empty.
func SeedDemoEmployees(ctx context.Context, dir Directory) (bool, error) {
	existing, err := dir.ListEmployees(ctx, 1, 0)
	if err != nil {
		return false, err
	}
	if existing.Total > 0 {
		return false, nil
	}
	if _, err := dir.UpsertEmployees(ctx, DemoEmployees()); err != nil {
		return false, err
	}
	slog.Info("employees seeded", "count", len(DemoEmployees()))
	return true, nil
}
