package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/domain/leave"
)

const statementPageSize = 200

// LeaveSource is the read side of the leave service a statement is built from.
type LeaveSource interface {
	Balance(ctx context.Context, empID string) (core.Employee, leave.Balance, error)
	History(ctx context.Context, empID string, limit, offset int) (leave.HistoryResult, error)
}

type Service struct {
	Leave LeaveSource
	Now   func() time.Time
}

func NewService(source LeaveSource) *Service {
	return &Service{Leave: source, Now: time.Now}
}

// Statement is the data behind a leave statement PDF.
type Statement struct {
	Employee    core.Employee
	Balance     leave.Balance
	Records     []leave.Record
	Taken       map[leave.LeaveType]int
	GeneratedAt time.Time
}

func (s *Service) BuildStatement(ctx context.Context, empID string) (Statement, error) {
	emp, balance, err := s.Leave.Balance(ctx, empID)
	if err != nil {
		return Statement{}, err
	}
	st := Statement{
		Employee:    emp,
		Balance:     balance,
		Taken:       map[leave.LeaveType]int{},
		GeneratedAt: s.Now().UTC(),
	}
	for offset := 0; ; offset += statementPageSize {
		page, err := s.Leave.History(ctx, empID, statementPageSize, offset)
		if err != nil {
			return Statement{}, err
		}
		st.Records = append(st.Records, page.Records...)
		if len(page.Records) < statementPageSize || len(st.Records) >= page.Total {
			break
		}
	}
	for _, rec := range st.Records {
		st.Taken[rec.LeaveType] += rec.Days
	}
	return st, nil
}

// RenderStatementPDF builds the statement for empID and returns the PDF bytes.
func (s *Service) RenderStatementPDF(ctx context.Context, empID string) ([]byte, error) {
	st, err := s.BuildStatement(ctx, empID)
	if err != nil {
		return nil, err
	}
	return renderPDF(st)
}

func renderPDF(st Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Leave Statement")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Employee: %s (%s)", st.Employee.Name, st.Employee.EmpID)))
	pdf.Ln(7)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Project: %s", st.Employee.Project)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", st.GeneratedAt.Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Balance")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	for _, t := range leave.LeaveTypes {
		pdf.Cell(0, 7, fmt.Sprintf("%s: %d remaining, %d taken", t, st.Balance.Get(t), st.Taken[t]))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Leave records (%d)", len(st.Records)))
	pdf.Ln(9)
	if len(st.Records) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.Cell(0, 7, "No leave records.")
		pdf.Ln(7)
	} else {
		widths := []float64{25, 25, 25, 15, 100}
		pdf.SetFont("Helvetica", "B", 10)
		for i, h := range []string{"Type", "From", "To", "Days", "Reason"} {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 10)
		for _, rec := range st.Records {
			reason := rec.Reason
			if r := []rune(reason); len(r) > 60 {
				reason = string(r[:57]) + "..."
			}
			cells := []string{
				string(rec.LeaveType),
				rec.FromDate.Format("2006-01-02"),
				rec.ToDate.Format("2006-01-02"),
				fmt.Sprintf("%d", rec.Days),
				tr(reason),
			}
			for i, c := range cells {
				pdf.CellFormat(widths[i], 7, c, "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render statement pdf: %w", err)
	}
	return buf.Bytes(), nil
}
