package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/platform/memstore"
)

func TestSeedDemoEmployeesOnlyWhenEmpty(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	seeded, err := core.SeedDemoEmployees(ctx, store)
	require.NoError(t, err)
	assert.True(t, seeded)

	list, err := store.ListEmployees(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, list.Total)
	assert.Equal(t, "10001", list.Employees[0].EmpID)

	seeded, err = core.SeedDemoEmployees(ctx, store)
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestImportEmployeesUpsertsAndReportsSkips(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	_, err := core.SeedDemoEmployees(ctx, store)
	require.NoError(t, err)

	input := "emp_id,name,project,casual,sick\n" +
		"10001,Sonal Sharma,Claims,20,10\n" +
		"10009,Neha Gupta,Billing,5,5\n" +
		"10010,Bad Row,Billing,x,1\n"
	summary, err := core.ImportEmployees(ctx, store, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Updated)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, 4, summary.Skipped[0].Line)

	emp, err := store.GetEmployee(ctx, "10001")
	require.NoError(t, err)
	assert.Equal(t, "Claims", emp.Project)
	assert.JSONEq(t, `{"casual":20,"sick":10}`, string(emp.LeaveBalance))
}

func TestImportEmployeesRejectsBadHeader(t *testing.T) {
	_, err := core.ImportEmployees(context.Background(), memstore.New(), strings.NewReader("name,project\nA,B\n"))
	assert.ErrorIs(t, err, core.ErrImportHeader)
}
