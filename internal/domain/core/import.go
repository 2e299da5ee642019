package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrImportHeader = errors.New("csv header must include emp_id")

var importColumnAliases = map[string]string{
	"emp_id":        "emp_id",
	"empid":         "emp_id",
	"employee_id":   "emp_id",
	"id":            "emp_id",
	"name":          "name",
	"project":       "project",
	"department":    "project",
	"casual":        "casual",
	"sick":          "sick",
	"leave_balance": "leave_balance",
}

// ParseEmployeesCSV reads employee rows for bulk import. Recognized columns are emp_id, name,
// project, casual, sick and the legacy single-number leave_balance (which maps to casual).
// Bad rows are reported as issues and skipped; only a malformed header fails the whole file.
func ParseEmployeesCSV(r io.Reader) ([]Employee, []ImportIssue, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrImportHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := map[string]int{}
	for idx, raw := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if canonical, ok := importColumnAliases[key]; ok {
			if _, seen := columns[canonical]; !seen {
				columns[canonical] = idx
			}
		}
	}
	if _, ok := columns["emp_id"]; !ok {
		return nil, nil, ErrImportHeader
	}

	var employees []Employee
	var issues []ImportIssue
	seen := map[string]int{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			issues = append(issues, ImportIssue{Line: line, Reason: "malformed row"})
			continue
		}

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		empID := field("emp_id")
		if empID == "" {
			issues = append(issues, ImportIssue{Line: line, Reason: "emp_id is required"})
			continue
		}
		if prev, dup := seen[empID]; dup {
			issues = append(issues, ImportIssue{Line: line, EmpID: empID, Reason: fmt.Sprintf("duplicate of line %d", prev)})
			continue
		}

		casual, casualErr := parseDays(field("casual"))
		sick, sickErr := parseDays(field("sick"))
		if legacy := field("leave_balance"); legacy != "" && field("casual") == "" {
			casual, casualErr = parseDays(legacy)
		}
		if casualErr != nil || sickErr != nil {
			issues = append(issues, ImportIssue{Line: line, EmpID: empID, Reason: "balances must be non-negative integers"})
			continue
		}

		seen[empID] = line
		employees = append(employees, Employee{
			EmpID:        empID,
			Name:         field("name"),
			Project:      field("project"),
			LeaveBalance: BalanceDocument(casual, sick),
		})
	}
	return employees, issues, nil
}

func parseDays(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative balance %d", value)
	}
	return value, nil
}

// ImportEmployees parses r and upserts every valid row in one batch. Skipped rows are reported
// in the summary.
func ImportEmployees(ctx context.Context, dir Directory, r io.Reader) (ImportSummary, error) {
	employees, issues, err := ParseEmployeesCSV(r)
	if err != nil {
		return ImportSummary{}, err
	}
	summary := ImportSummary{}
	if len(employees) > 0 {
		summary, err = dir.UpsertEmployees(ctx, employees)
		if err != nil {
			return ImportSummary{}, fmt.Errorf("upsert employees: %w", err)
		}
	}
	summary.Skipped = append(summary.Skipped, issues...)
	return summary, nil
}
