package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/domain/leave"
)

// Store keeps employees and leave records in process. A single mutex covers every operation,
// so the check-and-decrement in DeductBalance is atomic the same way the SQL UPDATE is.
type Store struct {
	mu        sync.Mutex
	employees map[string]core.Employee
	records   map[string][]leave.Record
	now       func() time.Time
}

func New() *Store {
	return &Store{
		employees: map[string]core.Employee{},
		records:   map[string][]leave.Record{},
		now:       time.Now,
	}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) ListEmployees(_ context.Context, limit, offset int) (core.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sortedIDs()
	out := make([]core.Employee, 0)
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, cloneEmployee(s.employees[ids[i]]))
	}
	return core.ListResult{Employees: out, Total: len(ids)}, nil
}

func (s *Store) GetEmployee(_ context.Context, empID string) (core.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emp, ok := s.employees[empID]
	if !ok {
		return core.Employee{}, core.ErrEmployeeNotFound
	}
	return cloneEmployee(emp), nil
}

func (s *Store) CreateEmployee(_ context.Context, emp core.Employee) (core.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.employees[emp.EmpID]; exists {
		return core.Employee{}, core.ErrEmployeeExists
	}
	now := s.now().UTC()
	emp.CreatedAt, emp.UpdatedAt = now, now
	if len(emp.LeaveBalance) == 0 {
		emp.LeaveBalance = core.BalanceDocument(0, 0)
	}
	s.employees[emp.EmpID] = cloneEmployee(emp)
	return emp, nil
}

func (s *Store) UpsertEmployees(_ context.Context, emps []core.Employee) (core.ImportSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summary core.ImportSummary
	now := s.now().UTC()
	for _, emp := range emps {
		if len(emp.LeaveBalance) == 0 {
			emp.LeaveBalance = core.BalanceDocument(0, 0)
		}
		if existing, ok := s.employees[emp.EmpID]; ok {
			emp.CreatedAt = existing.CreatedAt
			summary.Updated++
		} else {
			emp.CreatedAt = now
			summary.Inserted++
		}
		emp.UpdatedAt = now
		s.employees[emp.EmpID] = cloneEmployee(emp)
	}
	return summary, nil
}

func (s *Store) NormalizeBalance(_ context.Context, empID string, observed json.RawMessage, b leave.Balance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emp, ok := s.employees[empID]
	if !ok || !sameDocument(emp.LeaveBalance, observed) {
		return false, nil
	}
	doc := objectOf(emp.LeaveBalance)
	doc[string(leave.Casual)] = b.Casual
	doc[string(leave.Sick)] = b.Sick
	emp.LeaveBalance = marshal(doc)
	emp.UpdatedAt = s.now().UTC()
	s.employees[empID] = emp
	return true, nil
}

func (s *Store) DeductBalance(_ context.Context, empID string, leaveType leave.LeaveType, days int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emp, ok := s.employees[empID]
	if !ok {
		return 0, false, nil
	}
	current, ok := bucket(emp.LeaveBalance, leaveType)
	if !ok || current < days {
		return 0, false, nil
	}
	s.setBucket(empID, leaveType, current-days)
	return current - days, true, nil
}

func (s *Store) RefundBalance(_ context.Context, empID string, leaveType leave.LeaveType, days int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emp, ok := s.employees[empID]
	if !ok {
		return 0, core.ErrEmployeeNotFound
	}
	current, _ := bucket(emp.LeaveBalance, leaveType)
	s.setBucket(empID, leaveType, current+days)
	return current + days, nil
}

func (s *Store) FindOverlap(_ context.Context, empID string, start, end time.Time) (*leave.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.sortedRecords(empID) {
		if rec.Status != leave.StatusApplied {
			continue
		}
		if !rec.FromDate.After(end) && !rec.ToDate.Before(start) {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateRecord(_ context.Context, rec leave.Record) (leave.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.records[rec.EmpID] = append(s.records[rec.EmpID], rec)
	return rec, nil
}

func (s *Store) ListRecords(_ context.Context, empID string, limit, offset int) ([]leave.Record, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.sortedRecords(empID)
	out := make([]leave.Record, 0)
	for i := offset; i < len(all) && len(out) < limit; i++ {
		out = append(out, all[i])
	}
	return out, len(all), nil
}

func (s *Store) ListEmployeeIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedIDs(), nil
}

func (s *Store) ClearRecords(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, recs := range s.records {
		n += int64(len(recs))
	}
	s.records = map[string][]leave.Record{}
	return n, nil
}

// SetRawBalance stores a balance document as-is, for legacy-shaped fixtures.
func (s *Store) SetRawBalance(empID string, raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if emp, ok := s.employees[empID]; ok {
		emp.LeaveBalance = append(json.RawMessage(nil), raw...)
		s.employees[empID] = emp
	}
}

func (s *Store) setBucket(empID string, leaveType leave.LeaveType, value int) {
	emp := s.employees[empID]
	doc := objectOf(emp.LeaveBalance)
	doc[string(leaveType)] = value
	emp.LeaveBalance = marshal(doc)
	emp.UpdatedAt = s.now().UTC()
	s.employees[empID] = emp
}

func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.employees))
	for id := range s.employees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) sortedRecords(empID string) []leave.Record {
	recs := append([]leave.Record(nil), s.records[empID]...)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].FromDate.Equal(recs[j].FromDate) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].FromDate.Before(recs[j].FromDate)
	})
	return recs
}

// bucket mirrors (leave_balance->>type)::int: only an integer value in an object counts.
func bucket(raw json.RawMessage, leaveType leave.LeaveType) (int, bool) {
	var doc map[string]any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return 0, false
	}
	num, ok := doc[string(leaveType)].(json.Number)
	if !ok {
		return 0, false
	}
	n, err := num.Int64()
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func objectOf(raw json.RawMessage) map[string]any {
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return map[string]any{}
	}
	return doc
}

func sameDocument(a, b json.RawMessage) bool {
	var left, right any
	if json.Unmarshal(a, &left) != nil || json.Unmarshal(b, &right) != nil {
		return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
	}
	return bytes.Equal(marshal(left), marshal(right))
}

func marshal(v any) json.RawMessage {
	payload, _ := json.Marshal(v)
	return payload
}

func cloneEmployee(emp core.Employee) core.Employee {
	emp.LeaveBalance = append(json.RawMessage(nil), emp.LeaveBalance...)
	return emp
}
