package core

import (
	"encoding/json"
	"time"
)

// Employee is the stored employee document. LeaveBalance is kept raw because legacy rows may
// hold a bare number or a partial mapping; callers normalize it before reporting.
type Employee struct {
	EmpID        string          `json:"empId"`
	Name         string          `json:"name"`
	Project      string          `json:"project"`
	LeaveBalance json.RawMessage `json:"leaveBalance"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type ListResult struct {
	Employees []Employee
	Total     int
}

type ImportSummary struct {
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Skipped  []ImportIssue `json:"skipped,omitempty"`
}

type ImportIssue struct {
	Line   int    `json:"line"`
	EmpID  string `json:"empId,omitempty"`
	Reason string `json:"reason"`
}

// BalanceDocument renders a two-bucket balance in the stored JSON shape.
func BalanceDocument(casual, sick int) json.RawMessage {
	payload, _ := json.Marshal(map[string]int{"casual": casual, "sick": sick})
	return payload
}
