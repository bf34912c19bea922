package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"pathfinder/internal/logging"
	"pathfinder/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrJobNotFound is returned by RunNow for unknown job names
var ErrJobNotFound = errors.New("job not found")

const lockTTL = 5 * time.Minute

// Job is a unit of background work
type Job interface {
	Run(ctx context.Context) error
}

// Locker serializes job runs across instances. *services.RedisService
// satisfies it; a nil or unavailable locker runs every job locally.
type Locker interface {
	Available() bool
	AcquireLock(ctx context.Context, lockKey, lockValue string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error)
}

type registeredJob struct {
	job      Job
	schedule string
	next     cron.Schedule
	handle   gocron.Job

	lastRunAt time.Time
	lastError string
	runs      int
	skipped   int
}

// JobScheduler runs registered jobs on cron schedules
type JobScheduler struct {
	scheduler  gocron.Scheduler
	locker     Locker
	instanceID string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    map[string]*registeredJob
	running bool
}

// NewJobScheduler creates a scheduler. locker may be nil.
func NewJobScheduler(locker Locker) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		scheduler:  scheduler,
		locker:     locker,
		instanceID: uuid.New().String(),
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]*registeredJob),
	}, nil
}

// ParseCron validates a standard five-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// Register adds a job under name, run on the given cron expression
func (s *JobScheduler) Register(name, expr string, job Job) error {
	next, err := ParseCron(expr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	handle, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(func() {
			if err := s.run(s.ctx, name); err != nil {
				log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.jobs[name] = &registeredJob{job: job, schedule: expr, next: next, handle: handle}
	log.Printf("✅ [SCHEDULER] Registered job: %s (cron: %s)", name, expr)
	return nil
}

// Start begins running all registered jobs
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.scheduler.Start()
	log.Printf("🚀 [SCHEDULER] Starting job scheduler with %d jobs", len(s.jobs))
}

// Stop cancels running jobs and waits for them to return
func (s *JobScheduler) Stop() error {
	log.Println("🛑 [SCHEDULER] Stopping job scheduler...")
	s.cancel()

	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if !wasRunning {
		return nil
	}
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	log.Println("✅ [SCHEDULER] Job scheduler stopped")
	return nil
}

// RunNow runs a job immediately, outside its schedule
func (s *JobScheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	_, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	log.Printf("🚀 [SCHEDULER] Running job '%s' immediately", name)
	return s.run(ctx, name)
}

func (s *JobScheduler) run(ctx context.Context, name string) error {
	s.mu.Lock()
	rj := s.jobs[name]
	s.mu.Unlock()

	logger := logging.WithJob(name)

	if s.locker != nil && s.locker.Available() {
		lockKey := "job-lock:" + name
		acquired, err := s.locker.AcquireLock(ctx, lockKey, s.instanceID, lockTTL)
		if err != nil {
			services.GetMetrics().RecordJobRun(name, "error")
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !acquired {
			logger.Info("job already running on another instance, skipping")
			s.mu.Lock()
			rj.skipped++
			s.mu.Unlock()
			services.GetMetrics().RecordJobRun(name, "skipped")
			return nil
		}
		defer func() {
			if _, err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, s.instanceID); err != nil {
				logger.Warn("failed to release job lock", "error", err)
			}
		}()
	}

	start := time.Now()
	err := rj.job.Run(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	rj.lastRunAt = start.UTC()
	rj.runs++
	if err != nil {
		rj.lastError = err.Error()
	} else {
		rj.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("job failed", "error", err, "duration", duration)
		services.GetMetrics().RecordJobRun(name, "error")
		return err
	}

	logger.Info("job completed", "duration", duration)
	services.GetMetrics().RecordJobRun(name, "success")
	return nil
}

// JobStatus represents the status of a job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	NextRunTime time.Time  `json:"next_run_time"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Runs        int        `json:"runs"`
	Skipped     int        `json:"skipped"`
}

// GetStatus returns the status of all jobs, ordered by name
func (s *JobScheduler) GetStatus() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	status := make([]JobStatus, 0, len(s.jobs))
	for name, rj := range s.jobs {
		js := JobStatus{
			Name:        name,
			Schedule:    rj.schedule,
			NextRunTime: rj.next.Next(now),
			LastError:   rj.lastError,
			Runs:        rj.runs,
			Skipped:     rj.skipped,
		}
		if s.running {
			if next, err := rj.handle.NextRun(); err == nil && !next.IsZero() {
				js.NextRunTime = next.UTC()
			}
		}
		if !rj.lastRunAt.IsZero() {
			lastRun := rj.lastRunAt
			js.LastRunAt = &lastRun
		}
		status = append(status, js)
	}

	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status
}
