package memstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/domain/leave"
)

func TestCreateEmployeeRejectsDuplicates(t *testing.T) {
	s := New()
	ctx := context.Background()

	emp, err := s.CreateEmployee(ctx, core.Employee{EmpID: "1", Name: "A"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"casual":0,"sick":0}`, string(emp.LeaveBalance))

	_, err = s.CreateEmployee(ctx, core.Employee{EmpID: "1", Name: "B"})
	assert.ErrorIs(t, err, core.ErrEmployeeExists)
}

func TestNormalizeBalanceKeepsUnrelatedKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateEmployee(ctx, core.Employee{EmpID: "1", LeaveBalance: json.RawMessage(`{"casual": "4", "earned": 2}`)})
	require.NoError(t, err)

	written, err := s.NormalizeBalance(ctx, "1", json.RawMessage(`{"earned":2,"casual":"4"}`), leave.Balance{Casual: 4})
	require.NoError(t, err)
	assert.True(t, written)

	emp, err := s.GetEmployee(ctx, "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"casual":4,"sick":0,"earned":2}`, string(emp.LeaveBalance))
}

func TestNormalizeBalanceSkipsWhenDocumentChanged(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateEmployee(ctx, core.Employee{EmpID: "1", LeaveBalance: json.RawMessage(`{"casual": 5}`)})
	require.NoError(t, err)

	written, err := s.NormalizeBalance(ctx, "1", json.RawMessage(`12`), leave.Balance{Casual: 12})
	require.NoError(t, err)
	assert.False(t, written)
}

func TestDeductBalanceGuard(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateEmployee(ctx, core.Employee{EmpID: "1", LeaveBalance: core.BalanceDocument(2, 0)})
	require.NoError(t, err)

	_, ok, err := s.DeductBalance(ctx, "1", leave.Casual, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, ok, err := s.DeductBalance(ctx, "1", leave.Casual, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, remaining)

	_, ok, err = s.DeductBalance(ctx, "missing", leave.Casual, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	refunded, err := s.RefundBalance(ctx, "1", leave.Casual, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, refunded)
}

func TestRecordsOrderingAndPaging(t *testing.T) {
	s := New()
	ctx := context.Background()
	d := func(day int) time.Time { return time.Date(2025, 9, day, 0, 0, 0, 0, time.UTC) }

	for _, from := range []int{20, 5, 12} {
		_, err := s.CreateRecord(ctx, leave.Record{EmpID: "1", LeaveType: leave.Casual, FromDate: d(from), ToDate: d(from), Days: 1, Status: leave.StatusApplied})
		require.NoError(t, err)
	}

	page, total, err := s.ListRecords(ctx, "1", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, d(12), page[0].FromDate)
	assert.Equal(t, d(20), page[1].FromDate)

	overlap, err := s.FindOverlap(ctx, "1", d(11), d(13))
	require.NoError(t, err)
	require.NotNil(t, overlap)
	assert.Equal(t, d(12), overlap.FromDate)

	overlap, err = s.FindOverlap(ctx, "1", d(13), d(19))
	require.NoError(t, err)
	assert.Nil(t, overlap)

	cleared, err := s.ClearRecords(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, cleared)
}
