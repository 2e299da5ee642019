package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"hrcopilot/internal/domain/leave"
)

const maxSessionTurns = 40

var ErrSessionNotFound = errors.New("chat session not found")

type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Prefill is the apply-leave form suggested by the assistant. The client submits it through the
// regular apply endpoint.
type Prefill struct {
	EmployeeID string          `json:"empId"`
	LeaveType  leave.LeaveType `json:"leaveType"`
	FromDate   string          `json:"fromDate"`
	ToDate     string          `json:"toDate"`
	Reason     string          `json:"reason"`
}

// Session is the per-conversation state: who is talking, what was said, and the last prefill.
type Session struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"empId,omitempty"`
	EmployeeName string    `json:"employeeName,omitempty"`
	Project      string    `json:"project,omitempty"`
	Prefill      *Prefill  `json:"prefill,omitempty"`
	History      []Turn    `json:"history"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (s *Session) addTurn(role, content string, at time.Time) {
	s.History = append(s.History, Turn{Role: role, Content: content, At: at})
	if len(s.History) > maxSessionTurns {
		s.History = append([]Turn(nil), s.History[len(s.History)-maxSessionTurns:]...)
	}
	s.UpdatedAt = at
}

type SessionStore interface {
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, session Session) error
}

// MemorySessionStore keeps sessions in process and drops them after ttl of inactivity.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]Session
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, sessions: map[string]Session{}, now: time.Now}
}

func (m *MemorySessionStore) Load(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if m.ttl > 0 && m.now().Sub(session.UpdatedAt) > m.ttl {
		delete(m.sessions, id)
		return Session{}, ErrSessionNotFound
	}
	session.History = append([]Turn(nil), session.History...)
	return session, nil
}

func (m *MemorySessionStore) Save(_ context.Context, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, s := range m.sessions {
		if m.ttl > 0 && now.Sub(s.UpdatedAt) > m.ttl {
			delete(m.sessions, id)
		}
	}
	session.History = append([]Turn(nil), session.History...)
	m.sessions[session.ID] = session
	return nil
}
