package leave

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"hrcopilot/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) NormalizeBalance(ctx context.Context, empID string, observed json.RawMessage, b Balance) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET leave_balance = jsonb_set(
          jsonb_set(
            CASE WHEN jsonb_typeof(leave_balance) = 'object' THEN leave_balance ELSE '{}'::jsonb END,
            '{casual}', to_jsonb($2::int)),
          '{sick}', to_jsonb($3::int)),
        updated_at = now()
    WHERE emp_id = $1 AND leave_balance = $4::jsonb
  `, empID, b.Casual, b.Sick, string(observed))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeductBalance(ctx context.Context, empID string, leaveType LeaveType, days int) (int, bool, error) {
	var remaining int
	err := s.DB.QueryRow(ctx, `
    UPDATE employees
    SET leave_balance = jsonb_set(leave_balance, ARRAY[$2::text], to_jsonb((leave_balance->>$2)::int - $3)),
        updated_at = now()
    WHERE emp_id = $1 AND (leave_balance->>$2)::int >= $3
    RETURNING (leave_balance->>$2)::int
  `, empID, string(leaveType), days).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}

func (s *Store) RefundBalance(ctx context.Context, empID string, leaveType LeaveType, days int) (int, error) {
	var remaining int
	if err := s.DB.QueryRow(ctx, `
    UPDATE employees
    SET leave_balance = jsonb_set(leave_balance, ARRAY[$2::text], to_jsonb(COALESCE((leave_balance->>$2)::int, 0) + $3)),
        updated_at = now()
    WHERE emp_id = $1
    RETURNING (leave_balance->>$2)::int
  `, empID, string(leaveType), days).Scan(&remaining); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (s *Store) FindOverlap(ctx context.Context, empID string, start, end time.Time) (*Record, error) {
	var rec Record
	var leaveType string
	err := s.DB.QueryRow(ctx, `
    SELECT id, emp_id, leave_type, from_date, to_date, days, reason, status, created_at
    FROM leaves
    WHERE emp_id = $1 AND status = $2 AND from_date <= $4 AND to_date >= $3
    ORDER BY from_date
    LIMIT 1
  `, empID, StatusApplied, start, end).Scan(&rec.ID, &rec.EmpID, &leaveType, &rec.FromDate, &rec.ToDate, &rec.Days, &rec.Reason, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.LeaveType = LeaveType(leaveType)
	return &rec, nil
}

func (s *Store) CreateRecord(ctx context.Context, rec Record) (Record, error) {
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO leaves (emp_id, leave_type, from_date, to_date, days, reason, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id, created_at
  `, rec.EmpID, string(rec.LeaveType), rec.FromDate, rec.ToDate, rec.Days, rec.Reason, rec.Status).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context, empID string, limit, offset int) ([]Record, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM leaves WHERE emp_id = $1", empID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT id, emp_id, leave_type, from_date, to_date, days, reason, status, created_at
    FROM leaves
    WHERE emp_id = $1
    ORDER BY from_date, created_at
    LIMIT $2 OFFSET $3
  `, empID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var leaveType string
		if err := rows.Scan(&rec.ID, &rec.EmpID, &leaveType, &rec.FromDate, &rec.ToDate, &rec.Days, &rec.Reason, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		rec.LeaveType = LeaveType(leaveType)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *Store) ListEmployeeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT emp_id FROM employees ORDER BY emp_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ClearRecords(ctx context.Context) (int64, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM leaves")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
