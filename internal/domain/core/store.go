package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hrcopilot/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) ListEmployees(ctx context.Context, limit, offset int) (ListResult, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees").Scan(&total); err != nil {
		return ListResult{}, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT emp_id, name, project, leave_balance, created_at, updated_at
    FROM employees
    ORDER BY emp_id
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	employees := make([]Employee, 0)
	for rows.Next() {
		var emp Employee
		var balance []byte
		if err := rows.Scan(&emp.EmpID, &emp.Name, &emp.Project, &balance, &emp.CreatedAt, &emp.UpdatedAt); err != nil {
			return ListResult{}, err
		}
		emp.LeaveBalance = balance
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	return ListResult{Employees: employees, Total: total}, nil
}

func (s *Store) GetEmployee(ctx context.Context, empID string) (Employee, error) {
	var emp Employee
	var balance []byte
	err := s.DB.QueryRow(ctx, `
    SELECT emp_id, name, project, leave_balance, created_at, updated_at
    FROM employees
    WHERE emp_id = $1
  `, empID).Scan(&emp.EmpID, &emp.Name, &emp.Project, &balance, &emp.CreatedAt, &emp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	if err != nil {
		return Employee{}, err
	}
	emp.LeaveBalance = balance
	return emp, nil
}

func (s *Store) CreateEmployee(ctx context.Context, emp Employee) (Employee, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (emp_id, name, project, leave_balance)
    VALUES ($1, $2, $3, $4::jsonb)
    ON CONFLICT (emp_id) DO NOTHING
    RETURNING created_at, updated_at
  `, emp.EmpID, emp.Name, emp.Project, balanceArg(emp)).Scan(&emp.CreatedAt, &emp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeExists
	}
	if err != nil {
		return Employee{}, err
	}
	return emp, nil
}

// UpsertEmployees writes each employee by emp_id. xmax = 0 on the returned row means the
// statement inserted rather than updated.
func (s *Store) UpsertEmployees(ctx context.Context, emps []Employee) (ImportSummary, error) {
	var summary ImportSummary
	for _, emp := range emps {
		var inserted bool
		if err := s.DB.QueryRow(ctx, `
      INSERT INTO employees (emp_id, name, project, leave_balance)
      VALUES ($1, $2, $3, $4::jsonb)
      ON CONFLICT (emp_id) DO UPDATE
      SET name = EXCLUDED.name,
          project = EXCLUDED.project,
          leave_balance = EXCLUDED.leave_balance,
          updated_at = now()
      RETURNING (xmax = 0)
    `, emp.EmpID, emp.Name, emp.Project, balanceArg(emp)).Scan(&inserted); err != nil {
			return summary, fmt.Errorf("upsert employee %s: %w", emp.EmpID, err)
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Updated++
		}
	}
	return summary, nil
}

func balanceArg(emp Employee) string {
	if len(emp.LeaveBalance) == 0 {
		return string(BalanceDocument(0, 0))
	}
	return string(emp.LeaveBalance)
}
