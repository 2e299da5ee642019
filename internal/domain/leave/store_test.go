package leave

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func TestStoreDeductBalanceIsConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE emp_id = $1 AND (leave_balance->>$2)::int >= $3")).
		WithArgs("10001", "casual", 1).
		WillReturnRows(mock.NewRows([]string{"int4"}).AddRow(11))

	remaining, ok, err := store.DeductBalance(context.Background(), "10001", Casual, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 11, remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeductBalanceGuardFails(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE employees").
		WithArgs("10001", "sick", 9).
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := store.DeductBalance(context.Background(), "10001", Sick, 9)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeductBalancePropagatesErrors(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery("UPDATE employees").WillReturnError(boom)

	_, _, err := store.DeductBalance(context.Background(), "10001", Casual, 1)
	assert.ErrorIs(t, err, boom)
}

func TestStoreNormalizeBalanceIsCompareAndSet(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE emp_id = $1 AND leave_balance = $4::jsonb")).
		WithArgs("10001", 12, 0, "12").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE employees").
		WithArgs("10001", 12, 0, "12").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	written, err := store.NormalizeBalance(context.Background(), "10001", []byte("12"), Balance{Casual: 12})
	require.NoError(t, err)
	assert.True(t, written)

	written, err = store.NormalizeBalance(context.Background(), "10001", []byte("12"), Balance{Casual: 12})
	require.NoError(t, err)
	assert.False(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRefundBalance(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE((leave_balance->>$2)::int, 0) + $3")).
		WithArgs("10001", "casual", 3).
		WillReturnRows(mock.NewRows([]string{"int4"}).AddRow(12))

	remaining, err := store.RefundBalance(context.Background(), "10001", Casual, 3)
	require.NoError(t, err)
	assert.Equal(t, 12, remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreFindOverlap(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("from_date <= $4 AND to_date >= $3")).
		WithArgs("10001", StatusApplied, start, end).
		WillReturnRows(mock.NewRows([]string{"id", "emp_id", "leave_type", "from_date", "to_date", "days", "reason", "status", "created_at"}).
			AddRow("l-1", "10001", "sick", start, start, 1, "Fever", StatusApplied, created))
	mock.ExpectQuery("FROM leaves").
		WithArgs("10001", StatusApplied, start, end).
		WillReturnError(pgx.ErrNoRows)

	rec, err := store.FindOverlap(context.Background(), "10001", start, end)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, Sick, rec.LeaveType)
	assert.Equal(t, "Fever", rec.Reason)

	rec, err = store.FindOverlap(context.Background(), "10001", start, end)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateAndListRecords(t *testing.T) {
	store, mock := newMockStore(t)
	day := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO leaves").
		WithArgs("10001", "casual", day, day, 1, "Vacation", StatusApplied).
		WillReturnRows(mock.NewRows([]string{"id", "created_at"}).AddRow("l-1", created))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM leaves WHERE emp_id = $1")).
		WithArgs("10001").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("ORDER BY from_date, created_at").
		WithArgs("10001", 20, 0).
		WillReturnRows(mock.NewRows([]string{"id", "emp_id", "leave_type", "from_date", "to_date", "days", "reason", "status", "created_at"}).
			AddRow("l-1", "10001", "casual", day, day, 1, "Vacation", StatusApplied, created))

	rec, err := store.CreateRecord(context.Background(), Record{
		EmpID: "10001", LeaveType: Casual, FromDate: day, ToDate: day, Days: 1, Reason: "Vacation", Status: StatusApplied,
	})
	require.NoError(t, err)
	assert.Equal(t, "l-1", rec.ID)
	assert.Equal(t, created, rec.CreatedAt)

	records, total, err := store.ListRecords(context.Background(), "10001", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, Casual, records[0].LeaveType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListEmployeeIDs(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT emp_id FROM employees").
		WillReturnRows(mock.NewRows([]string{"emp_id"}).AddRow("10001").AddRow("10002"))

	ids, err := store.ListEmployeeIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"10001", "10002"}, ids)
}
