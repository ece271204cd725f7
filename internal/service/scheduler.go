package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chainsync/gateway/internal/pkg/logger"
	"github.com/chainsync/gateway/internal/pkg/metrics"
)

// DefaultSyncInterval is how often scheduled sync jobs fire.
const DefaultSyncInterval = 5 * time.Minute

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context)
}

type scheduledJob struct {
	job  Job
	busy atomic.Bool
}

// Scheduler fires every job once per interval. Jobs run concurrently and
// independently of each other; a job that is still running when its next
// tick arrives is skipped for that tick.
type Scheduler struct {
	interval time.Duration
	jobs     []*scheduledJob

	cancel    context.CancelFunc
	loopWG    sync.WaitGroup
	runWG     sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

func NewScheduler(interval time.Duration, jobs ...Job) *Scheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	s := &Scheduler{interval: interval}
	for _, j := range jobs {
		s.jobs = append(s.jobs, &scheduledJob{job: j})
	}
	return s
}

// Start launches the ticker loop. The first run happens one interval later.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.loopWG.Add(1)
	go s.runLoop(ctx)

	names := make([]string, 0, len(s.jobs))
	for _, sj := range s.jobs {
		names = append(names, sj.job.Name())
	}
	logger.Info("Scheduler started", "interval", s.interval, "jobs", names)
	return nil
}

// Stop prevents new runs and waits for in-flight runs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.cancel = nil
	// the loop must have exited before a later Start can Add again
	cancel()
	s.loopWG.Wait()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.runWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Scheduler stop timed out with runs in flight")
		return ctx.Err()
	}
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// in-flight runs outlive Stop
			s.dispatch(context.WithoutCancel(ctx))
		}
	}
}

// dispatch starts every idle job in its own goroutine and returns.
func (s *Scheduler) dispatch(ctx context.Context) {
	for _, sj := range s.jobs {
		name := sj.job.Name()
		if !sj.busy.CompareAndSwap(false, true) {
			metrics.SchedulerSkipped.WithLabelValues(name).Inc()
			logger.Warn("Scheduled job still running, skipping tick", "job", name)
			continue
		}
		s.runWG.Add(1)
		go func(sj *scheduledJob) {
			defer s.runWG.Done()
			defer sj.busy.Store(false)
			s.run(ctx, sj.job)
		}(sj)
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Scheduled job panicked", "job", job.Name(), "panic", rec)
		}
	}()
	job.Run(ctx)
}
