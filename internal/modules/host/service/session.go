package service

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"cuckoohost/internal/modules/host/domain"
	"cuckoohost/internal/modules/host/dto"
	"cuckoohost/internal/platform/clock"
	"cuckoohost/internal/platform/contract"
)

const maxReports = 256

type pendingJob struct {
	header      []byte
	submittedAt time.Time
}

// Session drives one handle's queue pipeline and matches every drained
// solution to its job by nonce. Push statuses are returned verbatim; nothing
// is retried.
type Session struct {
	id      string
	handle  *Handle
	logger  hclog.Logger
	metrics *Metrics
	clock   clock.Clock

	mu           sync.Mutex
	seq          uint64
	pending      map[contract.Nonce]pendingJob
	reports      []domain.Report
	submitted    int
	found        int
	uncorrelated int
}

func NewSession(id string, handle *Handle, logger hclog.Logger, metrics *Metrics, clk clock.Clock) *Session {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Session{
		id:      id,
		handle:  handle,
		logger:  logger.With("session", id),
		metrics: metrics,
		clock:   clk,
		pending: map[contract.Nonce]pendingJob{},
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Plugin() string { return s.handle.Name() }

// Submit tags header with the next sequence nonce and pushes it.
func (s *Session) Submit(ctx context.Context, header []byte) (dto.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nonce contract.Nonce
	binary.BigEndian.PutUint64(nonce[:], s.seq+1)
	status, err := s.handle.PushToInputQueue(ctx, header, nonce)
	if err != nil {
		return dto.SubmitResult{}, err
	}
	s.metrics.pushed(statusLabel(status))
	if status == contract.StatusOK {
		s.seq++
		s.submitted++
		s.pending[nonce] = pendingJob{header: append([]byte(nil), header...), submittedAt: s.clock.Now()}
	}
	return dto.SubmitResult{Nonce: nonce.String(), Status: uint32(status)}, nil
}

func (s *Session) Start(ctx context.Context) (contract.Status, error) {
	return s.handle.StartProcessing(ctx)
}

// Poll drains the output queue and returns the new reports.
func (s *Session) Poll(ctx context.Context) ([]dto.Report, error) {
	solutions, err := s.handle.DrainOutput(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.Report, 0, len(solutions))
	for _, sol := range solutions {
		report := domain.Report{
			Nonce:   sol.Nonce.String(),
			Cycle:   append([]uint32(nil), sol.Cycle[:]...),
			FoundAt: s.clock.Now(),
		}
		if job, ok := s.pending[sol.Nonce]; ok {
			delete(s.pending, sol.Nonce)
			report.Header = job.header
			report.Correlated = true
			s.found++
		} else {
			s.uncorrelated++
			s.logger.Warn("solution matches no submitted job", "nonce", report.Nonce)
		}
		s.metrics.solution(s.handle.Name(), report.Correlated)
		s.reports = append(s.reports, report)
		if len(s.reports) > maxReports {
			s.reports = s.reports[len(s.reports)-maxReports:]
		}
		out = append(out, toReport(report))
	}
	return out, err
}

func (s *Session) Stop(ctx context.Context) error {
	return s.handle.StopAndWait(ctx)
}

// Restart resets a stopped pipeline and starts it again. Queued jobs are
// kept.
func (s *Session) Restart(ctx context.Context) (contract.Status, error) {
	if err := s.handle.ResetProcessing(ctx); err != nil {
		return 0, err
	}
	return s.handle.StartProcessing(ctx)
}

// Clear drops queued jobs and solutions. Pending nonces are forgotten only
// once the pipeline has stopped; while it runs a worker may still report a
// job it took before the clear.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.handle.ClearQueues(ctx); err != nil {
		return err
	}
	stopped, err := s.handle.HasProcessingStopped(ctx)
	if err != nil {
		return err
	}
	if stopped {
		s.mu.Lock()
		clear(s.pending)
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) Snapshot(ctx context.Context) (dto.Snapshot, error) {
	stopped, err := s.handle.HasProcessingStopped(ctx)
	if err != nil {
		return dto.Snapshot{}, err
	}
	stats, err := s.handle.DeviceStats(ctx)
	if err != nil {
		return dto.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := dto.Snapshot{
		SessionID:    s.id,
		Plugin:       s.handle.Name(),
		Stopped:      stopped,
		Submitted:    s.submitted,
		Pending:      len(s.pending),
		Found:        s.found,
		Uncorrelated: s.uncorrelated,
		Devices:      toDeviceStats(stats),
		Reports:      make([]dto.Report, 0, len(s.reports)),
	}
	for _, r := range s.reports {
		snap.Reports = append(snap.Reports, toReport(r))
	}
	return snap, nil
}

// Close stops the pipeline and unloads the handle.
func (s *Session) Close(ctx context.Context) error {
	return s.handle.Unload(ctx)
}

func statusLabel(status contract.Status) string {
	switch status {
	case contract.StatusOK:
		return "ok"
	case contract.StatusQueueFull:
		return "full"
	case contract.StatusWrongSize:
		return "wrong_size"
	default:
		return "other"
	}
}

func toReport(r domain.Report) dto.Report {
	return dto.Report{
		Nonce:      r.Nonce,
		Header:     r.Header,
		Cycle:      r.Cycle,
		Correlated: r.Correlated,
		FoundAt:    r.FoundAt,
	}
}

func toDeviceStats(stats []contract.DeviceStats) []dto.DeviceStat {
	out := make([]dto.DeviceStat, 0, len(stats))
	for _, s := range stats {
		out = append(out, dto.DeviceStat{
			DeviceID:            s.DeviceID,
			DeviceName:          s.DeviceName,
			InUse:               s.InUse != 0,
			HasErrored:          s.HasErrored != 0,
			LastStartTime:       unixTime(s.LastStartTime),
			LastEndTime:         unixTime(s.LastEndTime),
			LastSolutionTime:    unixTime(s.LastSolutionTime),
			IterationsCompleted: s.IterationsCompleted,
			JobsAbandoned:       s.JobsAbandoned,
		})
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
