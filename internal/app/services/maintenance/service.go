package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/inventory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/metrics"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/system"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

var _ system.Service = (*Service)(nil)

// Job is a named housekeeping task on a cron schedule.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Pruner drops expired entries and reports how many went.
type Pruner interface {
	Prune() int
}

// PruneJob wraps a Pruner.
func PruneJob(name, spec string, p Pruner, log *logger.Logger) Job {
	return Job{
		Name: name,
		Spec: spec,
		Run: func(context.Context) error {
			if n := p.Prune(); n > 0 && log != nil {
				log.WithFields(logrus.Fields{"job": name, "removed": n}).Debug("pruned entries")
			}
			return nil
		},
	}
}

// StatsFunc reports store-wide counters.
type StatsFunc func(ctx context.Context) (inventory.Stats, error)

// SummaryJob logs a snapshot of the store.
func SummaryJob(spec string, stats StatsFunc, log *logger.Logger) Job {
	return Job{
		Name: "store-summary",
		Spec: spec,
		Run: func(ctx context.Context) error {
			s, err := stats(ctx)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"users":        s.Users,
				"orders":       s.Orders,
				"revenue":      s.Revenue,
				"boxes_sold":   s.BoxesSold,
				"boxes_opened": s.BoxesOpened,
			}).Info("store summary")
			return nil
		},
	}
}

// Service runs housekeeping jobs on a cron scheduler.
type Service struct {
	log     *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	jobs    map[string]Job
	order   []string
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// New returns an idle maintenance service.
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("maintenance")
	}
	return &Service{log: log, timeout: time.Minute, jobs: make(map[string]Job)}
}

// Add registers a job. Jobs must be added before Start.
func (s *Service) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("maintenance job requires a name and a func")
	}
	if _, err := cron.ParseStandard(job.Spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("job %s: scheduler already started", job.Name)
	}
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	s.jobs[job.Name] = job
	s.order = append(s.order, job.Name)
	return nil
}

// Jobs lists registered job names in registration order.
func (s *Service) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func (s *Service) Name() string { return "maintenance" }

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	for _, name := range s.order {
		job := s.jobs[name]
		if _, err := c.AddFunc(job.Spec, func() { s.execute(runCtx, job) }); err != nil {
			cancel()
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}
	c.Start()

	s.cron = c
	s.ctx = runCtx
	s.cancel = cancel
	s.running = true
	s.log.WithField("jobs", len(s.order)).Info("maintenance scheduler started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	done := c.Stop()
	select {
	case <-done.Done():
		s.log.Info("maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a registered job immediately.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown maintenance job %s", name)
	}
	return s.execute(ctx, job)
}

func (s *Service) execute(ctx context.Context, job Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
		metrics.RecordJobRun(job.Name, time.Since(start), err == nil)
		if err != nil {
			s.log.WithError(err).WithField("job", job.Name).Warn("maintenance job failed")
		}
	}()
	return job.Run(ctx)
}
