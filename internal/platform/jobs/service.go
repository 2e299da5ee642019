package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hrcopilot/internal/platform/querier"
)

const (
	JobBalanceNormalize = "balance_normalize"
	JobEmployeeImport   = "employee_import"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const recentRunsLimit = 256

var ErrQueueFull = errors.New("job queue full")

// Observer receives one call per finished run.
type Observer interface {
	ObserveJobRun(jobType, status string)
}

// Run is the in-process view of a job run. Runs are also persisted to job_runs when a database
// is configured.
type Run struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Details     any        `json:"details,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Func func(context.Context) (any, error)

type Service struct {
	DB       querier.Querier
	Observer Observer
	queue    chan job

	mu    sync.Mutex
	runs  map[string]*Run
	order []string
	wg    sync.WaitGroup
}

type job struct {
	ID   string
	Type string
	Run  Func
}

// New builds a job service. db may be nil, in which case runs are tracked in memory only.
func New(db querier.Querier) *Service {
	return &Service{
		DB:    db,
		queue: make(chan job, 128),
		runs:  map[string]*Run{},
	}
}

// Start launches the worker. It stops when ctx is done; Wait blocks until it has.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
}

// Wait blocks until the worker and the schedules have returned after their context is done.
// A run in flight at cancellation finishes first.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Schedule enqueues run every interval until ctx is done. A non-positive interval disables it.
func (s *Service) Schedule(ctx context.Context, jobType string, interval time.Duration, run Func) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Enqueue(jobType, run); err != nil {
					slog.Warn("scheduled job skipped", "jobType", jobType, "err", err)
				}
			}
		}
	}()
}

// Enqueue hands run to the worker and returns the run id right away.
func (s *Service) Enqueue(jobType string, run Func) (string, error) {
	id := uuid.NewString()
	s.track(&Run{ID: id, Type: jobType, Status: StatusQueued})
	select {
	case s.queue <- job{ID: id, Type: jobType, Run: run}:
		return id, nil
	default:
		s.forget(id)
		slog.Warn("job queue full", "jobType", jobType)
		return "", ErrQueueFull
	}
}

// RunNow runs synchronously on the caller's goroutine and records the run like a queued one.
func (s *Service) RunNow(ctx context.Context, jobType string, run Func) (any, error) {
	id := uuid.NewString()
	s.track(&Run{ID: id, Type: jobType, Status: StatusQueued})
	return s.runJob(ctx, job{ID: id, Type: jobType, Run: run})
}

// Get returns a snapshot of a recent run.
func (s *Service) Get(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *r, true
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "jobId", j.ID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	started := time.Now().UTC()
	s.update(j.ID, func(r *Run) {
		r.Status = StatusRunning
		r.StartedAt = &started
	})
	persisted := false
	if s.DB != nil {
		if _, err := s.DB.Exec(ctx, `
    INSERT INTO job_runs (id, job_type, status, started_at)
    VALUES ($1,$2,$3,$4)
  `, j.ID, j.Type, StatusRunning, started); err != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
		} else {
			persisted = true
		}
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	completed := time.Now().UTC()
	s.update(j.ID, func(r *Run) {
		r.Status = status
		r.Details = details
		r.CompletedAt = &completed
		if err != nil {
			r.Error = err.Error()
		}
	})
	if s.Observer != nil {
		s.Observer.ObserveJobRun(j.Type, status)
	}

	if persisted {
		detailsJSON, marshalErr := json.Marshal(details)
		if marshalErr != nil {
			slog.Warn("job details marshal failed", "err", marshalErr)
			detailsJSON = []byte("{}")
		}
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = $3
      WHERE id = $4
    `, status, detailsJSON, completed, j.ID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) track(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	s.order = append(s.order, r.ID)
	for len(s.order) > recentRunsLimit {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Service) update(id string, fn func(*Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		fn(r)
	}
}
