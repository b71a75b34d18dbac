package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/common/logging"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

// Runner executes one campaign occurrence. Execution failures are handled
// inside the runner; the scheduler never sees them.
type Runner interface {
	Execute(ctx context.Context, campaignID, triggeredBy string)
}

// JobStore is the slice of storage the scheduler needs to persist its
// registrations across restarts.
type JobStore interface {
	UpsertJob(job *storage.Job) error
	UpdateJobNextFire(jobID string, nextFire time.Time) error
	DeleteJob(jobID string) error
	ListJobs() ([]*storage.Job, error)
}

// ScheduledJob is a read-only view of one registration.
type ScheduledJob struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	Trigger    string    `json:"trigger"`
	NextFire   time.Time `json:"next_run_time"`
}

type job struct {
	id          string
	campaignID  string
	trigger     *triggers.Config
	schedule    cron.Schedule
	oneShot     bool
	nextFire    time.Time
	triggeredBy string

	// inFlight coalesces overlapping fires: while an occurrence of this
	// job is still executing, further due occurrences are dropped.
	inFlight atomic.Bool
}

type fire struct {
	job      *job
	deadline time.Time
}

// Options tune scheduler behavior. Zero values fall back to defaults.
type Options struct {
	// Workers is the size of the execution worker pool.
	Workers int

	// MisfireGrace is how late a fire may run before it is skipped
	// as missed.
	MisfireGrace time.Duration

	// ConditionPollInterval is the default evaluation cadence for
	// condition triggers that do not set their own.
	ConditionPollInterval time.Duration
}

const (
	defaultWorkers       = 4
	defaultMisfireGrace  = 30 * time.Second
	defaultConditionPoll = 5 * time.Minute

	jobIDPrefix = "campaign_"
)

// JobID returns the scheduler job id for a campaign.
func JobID(campaignID string) string {
	return jobIDPrefix + campaignID
}

// Scheduler owns the timer loop that fires campaign triggers. One job
// exists per campaign; re-scheduling a campaign replaces its job.
type Scheduler struct {
	store  JobStore
	runner Runner
	clock  clockwork.Clock
	logger logging.Logger
	opts   Options

	mu   sync.Mutex
	jobs map[string]*job

	wake  chan struct{}
	fires chan fire

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	started   bool
}

func New(store JobStore, runner Runner, clock clockwork.Clock, logger logging.Logger, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MisfireGrace <= 0 {
		opts.MisfireGrace = defaultMisfireGrace
	}
	if opts.ConditionPollInterval <= 0 {
		opts.ConditionPollInterval = defaultConditionPoll
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		store:  store,
		runner: runner,
		clock:  clock,
		logger: logger.WithFields(logging.String("component", "scheduler")),
		opts:   opts,
		jobs:   make(map[string]*job),
		wake:   make(chan struct{}, 1),
		fires:  make(chan fire, opts.Workers*4),
	}
}

// Start reloads persisted jobs and launches the timer loop and worker
// pool. Jobs whose next fire time passed while the process was down are
// re-armed at their next future occurrence rather than fired late.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.InternalError("scheduler already started", nil)
	}
	s.started = true
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.reload(); err != nil {
		return err
	}

	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.wg.Add(1)
	go s.loop()

	s.logger.Info("scheduler started",
		logging.Int("jobs", s.jobCount()),
		logging.Int("workers", s.opts.Workers))
	return nil
}

// Stop halts the timer loop and waits for in-flight executions to
// drain from the worker pool.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.runCancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Schedule registers a campaign's trigger and returns the job id.
// Triggers with no time component (manual, webhook, event) remove any
// existing job and return an empty id. Scheduling an already
// registered campaign replaces its job.
func (s *Scheduler) Schedule(campaign *storage.Campaign, cfg *triggers.Config) (string, error) {
	sched, oneShot, err := buildSchedule(cfg, s.opts.ConditionPollInterval)
	if err != nil {
		return "", err
	}
	if sched == nil {
		if err := s.Unschedule(campaign.ID); err != nil {
			return "", err
		}
		return "", nil
	}

	now := s.clock.Now()
	next := sched.Next(now)
	if next.IsZero() {
		return "", errors.SchedulingError("trigger has no future fire times", nil)
	}

	j := &job{
		id:          JobID(campaign.ID),
		campaignID:  campaign.ID,
		trigger:     cfg,
		schedule:    sched,
		oneShot:     oneShot,
		nextFire:    next,
		triggeredBy: string(cfg.Type),
	}

	if err := s.store.UpsertJob(&storage.Job{
		ID:         j.id,
		CampaignID: j.campaignID,
		Trigger:    cfg,
		NextFire:   next,
		UpdatedAt:  now,
	}); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()
	s.kick()

	s.logger.Info("campaign scheduled",
		logging.String("job_id", j.id),
		logging.String("trigger", string(cfg.Type)),
		logging.Time("next_fire", next))
	return j.id, nil
}

// Unschedule removes a campaign's job if one exists. Removing an
// unknown campaign is not an error.
func (s *Scheduler) Unschedule(campaignID string) error {
	id := JobID(campaignID)

	s.mu.Lock()
	_, existed := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()

	if err := s.store.DeleteJob(id); err != nil && !errors.IsType(err, errors.ErrTypeNotFound) {
		return err
	}
	if existed {
		s.kick()
		s.logger.Info("campaign unscheduled", logging.String("job_id", id))
	}
	return nil
}

// ListScheduled returns all registered jobs ordered by next fire time.
func (s *Scheduler) ListScheduled() []ScheduledJob {
	s.mu.Lock()
	out := make([]ScheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, ScheduledJob{
			ID:         j.id,
			CampaignID: j.campaignID,
			Trigger:    j.trigger.Describe(),
			NextFire:   j.nextFire,
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, k int) bool { return out[i].NextFire.Before(out[k].NextFire) })
	return out
}

// NextFire reports the next fire time for a campaign's job.
func (s *Scheduler) NextFire(campaignID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[JobID(campaignID)]
	if !ok {
		return time.Time{}, false
	}
	return j.nextFire, true
}

func (s *Scheduler) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// reload restores jobs persisted by a previous process. Fire times
// still in the future are kept; past ones are recomputed from the
// trigger so downtime never produces a burst of catch-up runs.
func (s *Scheduler) reload() error {
	rows, err := s.store.ListJobs()
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, row := range rows {
		sched, oneShot, err := buildSchedule(row.Trigger, s.opts.ConditionPollInterval)
		if err != nil || sched == nil {
			s.logger.Warn("dropping unloadable job",
				logging.String("job_id", row.ID),
				logging.Err(err))
			if derr := s.store.DeleteJob(row.ID); derr != nil {
				s.logger.Error("failed to delete unloadable job", derr,
					logging.String("job_id", row.ID))
			}
			continue
		}

		next := row.NextFire
		if !next.After(now) {
			next = sched.Next(now)
		}
		if next.IsZero() {
			if derr := s.store.DeleteJob(row.ID); derr != nil {
				s.logger.Error("failed to delete exhausted job", derr,
					logging.String("job_id", row.ID))
			}
			continue
		}

		s.mu.Lock()
		s.jobs[row.ID] = &job{
			id:          row.ID,
			campaignID:  row.CampaignID,
			trigger:     row.Trigger,
			schedule:    sched,
			oneShot:     oneShot,
			nextFire:    next,
			triggeredBy: string(row.Trigger.Type),
		}
		s.mu.Unlock()

		if !next.Equal(row.NextFire) {
			if uerr := s.store.UpdateJobNextFire(row.ID, next); uerr != nil {
				s.logger.Error("failed to persist recomputed fire time", uerr,
					logging.String("job_id", row.ID))
			}
		}
	}
	return nil
}

// kick wakes the timer loop so it re-reads the earliest fire time.
func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	defer close(s.fires)

	for {
		next, ok := s.earliest()

		var timer <-chan time.Time
		if ok {
			d := next.Sub(s.clock.Now())
			if d <= 0 {
				s.fireDue()
				continue
			}
			timer = s.clock.After(d)
		}

		select {
		case <-s.runCtx.Done():
			return
		case <-s.wake:
		case <-timer:
			s.fireDue()
		}
	}
}

func (s *Scheduler) earliest() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	for _, j := range s.jobs {
		if next.IsZero() || j.nextFire.Before(next) {
			next = j.nextFire
		}
	}
	return next, !next.IsZero()
}

// fireDue dispatches every job whose fire time has arrived and advances
// each to its next occurrence. Fires later than the misfire grace are
// logged as missed and skipped. The next fire is always computed
// strictly after now, so a backlog collapses into a single run.
func (s *Scheduler) fireDue() {
	now := s.clock.Now()

	s.mu.Lock()
	var due []fire
	for _, j := range s.jobs {
		if j.nextFire.After(now) {
			continue
		}
		due = append(due, fire{job: j, deadline: j.nextFire})

		j.nextFire = j.schedule.Next(now)
		if j.oneShot || j.nextFire.IsZero() {
			delete(s.jobs, j.id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, k int) bool { return due[i].deadline.Before(due[k].deadline) })

	for _, f := range due {
		j := f.job

		if j.oneShot || j.nextFire.IsZero() {
			if err := s.store.DeleteJob(j.id); err != nil && !errors.IsType(err, errors.ErrTypeNotFound) {
				s.logger.Error("failed to delete finished job", err,
					logging.String("job_id", j.id))
			}
		} else {
			if err := s.store.UpdateJobNextFire(j.id, j.nextFire); err != nil {
				s.logger.Error("failed to persist next fire time", err,
					logging.String("job_id", j.id))
			}
		}

		if late := now.Sub(f.deadline); late > s.opts.MisfireGrace {
			s.logger.Warn("missed fire skipped",
				logging.String("job_id", j.id),
				logging.Duration("late_by", late))
			continue
		}

		s.dispatch(j)
	}
}

func (s *Scheduler) dispatch(j *job) {
	if !j.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in flight, skipping fire",
			logging.String("job_id", j.id))
		return
	}

	select {
	case s.fires <- fire{job: j}:
	default:
		j.inFlight.Store(false)
		s.logger.Warn("worker pool saturated, dropping fire",
			logging.String("job_id", j.id))
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for f := range s.fires {
		s.runner.Execute(s.runCtx, f.job.campaignID, f.job.triggeredBy)
		f.job.inFlight.Store(false)
	}
}
