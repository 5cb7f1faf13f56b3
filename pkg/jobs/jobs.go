package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lwelte/gozp/pkg/config"
	"go.uber.org/fx"
)

var Module = fx.Module("jobs",
	fx.Provide(NewManager),
)

// State is a job's lifecycle state.
type State string

const (
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Manager tracks long-running operations, serializes jobs that share a
// lock key (one scrub per pool), and journals progress events so they can
// be replayed after the fact.
type Manager struct {
	logger  *slog.Logger
	journal *Journal

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	jobs  map[string]*Job
}

func NewManager(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	journal, err := OpenJournal(cfg.JournalDir)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		logger:  logger.With("component", "jobs"),
		journal: journal,
		locks:   make(map[string]*sync.Mutex),
		jobs:    make(map[string]*Job),
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			m.logger.Info("closing job journal")
			return journal.Close()
		},
	})
	return m, nil
}

// Run executes fn under a new job. When lockKey is non-empty, jobs with
// the same key run one at a time. Run is synchronous: it returns after fn
// does, with the finished job.
func (m *Manager) Run(method, lockKey string, fn func(job *Job) error) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Method:    method,
		LockKey:   lockKey,
		State:     StateRunning,
		StartedAt: time.Now(),
		manager:   m,
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	if lockKey != "" {
		lock := m.lockFor(lockKey)
		lock.Lock()
		defer lock.Unlock()
	}

	m.logger.Info("job started", "job_id", job.ID, "method", method, "lock", lockKey)
	err := fn(job)
	job.finish(err)
	return job, err
}

func (m *Manager) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// Get returns a job by id.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	return job, ok
}

// Events replays the journaled progress events for a job.
func (m *Manager) Events(jobID string) ([]Event, error) {
	return m.journal.List(jobID)
}

// Job is one tracked operation.
type Job struct {
	ID      string
	Method  string
	LockKey string

	mu         sync.Mutex
	State      State
	Progress   float64
	Message    string
	ErrMessage string
	StartedAt  time.Time
	FinishedAt time.Time

	seq     uint64
	manager *Manager
}

// SetProgress records a progress update and appends it to the journal.
// It satisfies zfs.ProgressFunc.
func (j *Job) SetProgress(percent float64, message string) {
	j.mu.Lock()
	j.Progress = percent
	j.Message = message
	j.seq++
	seq := j.seq
	j.mu.Unlock()

	ev := Event{
		JobID:   j.ID,
		Seq:     seq,
		Percent: percent,
		Message: message,
		Time:    time.Now().Unix(),
	}
	if err := j.manager.journal.Append(ev); err != nil {
		j.manager.logger.Warn("failed to journal progress", "job_id", j.ID, "error", err)
	}
	j.manager.logger.Debug("job progress", "job_id", j.ID, "percent", percent, "message", message)
}

// Snapshot returns a copy of the job's mutable state.
func (j *Job) Snapshot() JobInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobInfo{
		ID:         j.ID,
		Method:     j.Method,
		State:      j.State,
		Progress:   j.Progress,
		Message:    j.Message,
		Error:      j.ErrMessage,
		StartedAt:  j.StartedAt.Unix(),
		FinishedAt: finishedUnix(j.FinishedAt),
	}
}

// JobInfo is the wire representation of a job.
type JobInfo struct {
	ID         string  `json:"id"`
	Method     string  `json:"method"`
	State      State   `json:"state"`
	Progress   float64 `json:"progress"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
	StartedAt  int64   `json:"started_at"`
	FinishedAt int64   `json:"finished_at,omitempty"`
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	j.FinishedAt = time.Now()
	if err != nil {
		j.State = StateFailed
		j.ErrMessage = err.Error()
	} else {
		j.State = StateSuccess
	}
	j.mu.Unlock()

	j.manager.logger.Info("job finished", "job_id", j.ID, "state", j.State)
}

func finishedUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
