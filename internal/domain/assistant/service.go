package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/domain/leave"
)

type ReplyKind string

const (
	ReplyNeedEmployeeID   ReplyKind = "need_employee_id"
	ReplyEmployeeNotFound ReplyKind = "employee_not_found"
	ReplyBalance          ReplyKind = "balance"
	ReplyHistory          ReplyKind = "history"
	ReplyPrefill          ReplyKind = "prefill"
	ReplyPolicies         ReplyKind = "policies"
	ReplyHelp             ReplyKind = "help"
)

const historyPreviewLimit = 10

var ErrEmptyMessage = errors.New("message is required")

// LeaveReader is the part of the leave service the assistant reads from.
type LeaveReader interface {
	Balance(ctx context.Context, empID string) (core.Employee, leave.Balance, error)
	History(ctx context.Context, empID string, limit, offset int) (leave.HistoryResult, error)
}

type ChatInput struct {
	SessionID  string
	Message    string
	EmployeeID string
}

type EmployeeSummary struct {
	EmpID   string `json:"empId"`
	Name    string `json:"name"`
	Project string `json:"project"`
}

type PolicyItem struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

type ChatReply struct {
	SessionID string           `json:"sessionId"`
	Intent    Intent           `json:"intent"`
	Kind      ReplyKind        `json:"kind"`
	Message   string           `json:"message"`
	Employee  *EmployeeSummary `json:"employee,omitempty"`
	Balance   *leave.Balance   `json:"balance,omitempty"`
	History   []leave.Record   `json:"history,omitempty"`
	Total     int              `json:"total,omitempty"`
	Prefill   *Prefill         `json:"prefill,omitempty"`
	Policies  []PolicyItem     `json:"policies,omitempty"`
	Holidays  []leave.Holiday  `json:"holidays,omitempty"`
}

var companyPolicies = []PolicyItem{
	{Name: "Annual Leave", Summary: "12 days/year"},
	{Name: "Sick Leave", Summary: "8 days/year"},
	{Name: "Carry Forward", Summary: "up to 5 days/year"},
	{Name: "Maternity", Summary: "typically 26 weeks (see company handbook)"},
}

type Service struct {
	Parser    *Parser
	Leave     LeaveReader
	Employees leave.EmployeeReader
	Sessions  SessionStore
	Holidays  leave.HolidayCalendar
	Now       func() time.Time
}

func NewService(leaveReader LeaveReader, employees leave.EmployeeReader, sessions SessionStore, holidays leave.HolidayCalendar) *Service {
	return &Service{
		Parser:    NewParser(),
		Leave:     leaveReader,
		Employees: employees,
		Sessions:  sessions,
		Holidays:  holidays,
		Now:       time.Now,
	}
}

// Chat answers one utterance. It never applies leave; an apply intent yields a prefill that the
// client submits through the apply endpoint.
func (s *Service) Chat(ctx context.Context, in ChatInput) (ChatReply, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatReply{}, ErrEmptyMessage
	}
	now := s.Now()
	session := s.loadSession(ctx, in.SessionID)
	session.addTurn("user", message, now)

	known := strings.TrimSpace(in.EmployeeID)
	if known == "" {
		known = session.EmployeeID
	}
	parsed := s.Parser.Parse(message, known, now)

	reply, err := s.respond(ctx, &session, parsed, now)
	if err != nil {
		return ChatReply{}, err
	}
	reply.SessionID = session.ID
	reply.Intent = parsed.Intent

	session.addTurn("assistant", reply.Message, now)
	if err := s.Sessions.Save(ctx, session); err != nil {
		slog.Warn("chat session save failed", "sessionId", session.ID, "err", err)
	}
	return reply, nil
}

func (s *Service) respond(ctx context.Context, session *Session, parsed ParsedRequest, now time.Time) (ChatReply, error) {
	var employee *EmployeeSummary
	if parsed.EmployeeID != "" {
		emp, err := s.Employees.GetEmployee(ctx, parsed.EmployeeID)
		switch {
		case errors.Is(err, core.ErrEmployeeNotFound):
			if parsed.Intent == IntentCheckBalance || parsed.Intent == IntentLeaveHistory {
				return ChatReply{
					Kind:    ReplyEmployeeNotFound,
					Message: fmt.Sprintf("I couldn't find Employee ID **%s**. Please check it and try again.", parsed.EmployeeID),
				}, nil
			}
			parsed.EmployeeID = ""
		case err != nil:
			return ChatReply{}, err
		default:
			employee = &EmployeeSummary{EmpID: emp.EmpID, Name: emp.Name, Project: emp.Project}
			session.EmployeeID, session.EmployeeName, session.Project = emp.EmpID, emp.Name, emp.Project
		}
	}

	switch parsed.Intent {
	case IntentCheckBalance:
		if employee == nil {
			return needEmployeeID("fetch your leave balance"), nil
		}
		_, balance, err := s.Leave.Balance(ctx, employee.EmpID)
		if err != nil {
			return ChatReply{}, err
		}
		return ChatReply{
			Kind:     ReplyBalance,
			Employee: employee,
			Balance:  &balance,
			Message: fmt.Sprintf("Leave balance for **%s** (%s): casual **%d**, sick **%d**.",
				employee.Name, employee.EmpID, balance.Casual, balance.Sick),
		}, nil

	case IntentLeaveHistory:
		if employee == nil {
			return needEmployeeID("show your leave history"), nil
		}
		history, err := s.Leave.History(ctx, employee.EmpID, historyPreviewLimit, 0)
		if err != nil {
			return ChatReply{}, err
		}
		msg := fmt.Sprintf("No leave records found for Employee ID **%s**.", employee.EmpID)
		if history.Total > 0 {
			msg = fmt.Sprintf("Found **%d** leave record(s) for Employee ID **%s**.", history.Total, employee.EmpID)
		}
		return ChatReply{Kind: ReplyHistory, Employee: employee, History: history.Records, Total: history.Total, Message: msg}, nil

	case IntentApplyLeave:
		prefill := s.prefill(session, parsed, now)
		session.Prefill = prefill
		return ChatReply{Kind: ReplyPrefill, Employee: employee, Prefill: prefill, Message: prefillMessage(prefill)}, nil

	case IntentPolicies:
		var b strings.Builder
		b.WriteString("Here are key policies:\n")
		for _, p := range companyPolicies {
			fmt.Fprintf(&b, "- **%s:** %s\n", p.Name, p.Summary)
		}
		return ChatReply{
			Kind:     ReplyPolicies,
			Policies: companyPolicies,
			Holidays: s.Holidays.Year(now.Year()),
			Message:  strings.TrimRight(b.String(), "\n"),
		}, nil
	}

	return ChatReply{Kind: ReplyHelp, Employee: employee, Message: helpMessage}, nil
}

func (s *Service) prefill(session *Session, parsed ParsedRequest, now time.Time) *Prefill {
	leaveType := parsed.LeaveType
	reason := parsed.Reason
	if prev := session.Prefill; prev != nil {
		if !parsed.LeaveTypeExplicit {
			leaveType = prev.LeaveType
		}
		if reason == "" {
			reason = prev.Reason
		}
	}
	today := leave.DateOnly(now)
	from, to := today, today
	if parsed.StartDate != nil {
		from = *parsed.StartDate
	}
	if parsed.EndDate != nil {
		to = *parsed.EndDate
	}
	return &Prefill{
		EmployeeID: parsed.EmployeeID,
		LeaveType:  leaveType,
		FromDate:   from.Format("2006-01-02"),
		ToDate:     to.Format("2006-01-02"),
		Reason:     reason,
	}
}

func (s *Service) loadSession(ctx context.Context, id string) Session {
	id = strings.TrimSpace(id)
	if id != "" {
		session, err := s.Sessions.Load(ctx, id)
		if err == nil {
			return session
		}
		if !errors.Is(err, ErrSessionNotFound) {
			slog.Warn("chat session load failed", "sessionId", id, "err", err)
		}
	}
	return Session{ID: uuid.NewString()}
}

func needEmployeeID(action string) ChatReply {
	return ChatReply{
		Kind:    ReplyNeedEmployeeID,
		Message: fmt.Sprintf("Please share your **Employee ID** (e.g., `10001`) so I can %s.", action),
	}
}

func prefillMessage(p *Prefill) string {
	empDisplay := p.EmployeeID
	if empDisplay == "" {
		empDisplay = "-"
	}
	var b strings.Builder
	b.WriteString("I've prefilled **Apply Leave** with these details:\n\n")
	fmt.Fprintf(&b, "- Employee ID: **%s**\n", empDisplay)
	fmt.Fprintf(&b, "- Leave type: **%s**\n", p.LeaveType)
	fmt.Fprintf(&b, "- From: **%s**\n", p.FromDate)
	fmt.Fprintf(&b, "- To: **%s**\n", p.ToDate)
	if p.Reason != "" {
		fmt.Fprintf(&b, "- Reason: *%s*\n", p.Reason)
	}
	b.WriteString("\nReview and submit the application to apply.")
	return b.String()
}

const helpMessage = "I can help with:\n" +
	"- **Leave Balance**: 'I want to know my leave balance 10001'\n" +
	"- **Apply Leave**: 'I want to take 1 PL tomorrow'\n" +
	"- **Leave History**: 'Show my leave history for 10001'\n" +
	"- **Policies**: 'maternity policy please'\n" +
	"Tip: include your **Employee ID**."
