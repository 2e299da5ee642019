package leave

import (
	"encoding/json"
	"strings"
	"time"
)

type LeaveType string

const (
	Casual LeaveType = "casual"
	Sick   LeaveType = "sick"
)

const StatusApplied = "applied"

const dateLayout = "2006-01-02"

// LeaveTypes lists the recognized buckets in display order.
var LeaveTypes = []LeaveType{Casual, Sick}

// ParseLeaveType accepts the exact tags only; aliases are resolved by the assistant parser.
func ParseLeaveType(raw string) (LeaveType, error) {
	switch LeaveType(strings.ToLower(strings.TrimSpace(raw))) {
	case Casual:
		return Casual, nil
	case Sick:
		return Sick, nil
	}
	return "", ErrInvalidLeaveType
}

type Record struct {
	ID        string
	EmpID     string
	LeaveType LeaveType
	FromDate  time.Time
	ToDate    time.Time
	Days      int
	Reason    string
	Status    string
	CreatedAt time.Time
}

type recordJSON struct {
	ID        string    `json:"id"`
	EmpID     string    `json:"empId"`
	LeaveType LeaveType `json:"leaveType"`
	FromDate  string    `json:"fromDate"`
	ToDate    string    `json:"toDate"`
	Days      int       `json:"days"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// MarshalJSON renders the inclusive range as ISO dates.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:        r.ID,
		EmpID:     r.EmpID,
		LeaveType: r.LeaveType,
		FromDate:  r.FromDate.Format(dateLayout),
		ToDate:    r.ToDate.Format(dateLayout),
		Days:      r.Days,
		Reason:    r.Reason,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	})
}

type ApplyInput struct {
	EmployeeID string
	LeaveType  string
	StartDate  time.Time
	EndDate    time.Time
	Reason     string
}

type ApplyResult struct {
	NewBalance map[LeaveType]int
	Record     Record
}

type HistoryResult struct {
	Records []Record
	Total   int
}

type NormalizeSummary struct {
	Scanned   int `json:"scanned"`
	Rewritten int `json:"rewritten"`
	Failed    int `json:"failed"`
}
