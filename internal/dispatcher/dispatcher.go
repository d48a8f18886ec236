// Package dispatcher polls the reminder store and fires due records at most
// once. Correctness does not depend on how many workers or processes poll:
// every candidate passes through the store's compare-and-swap claim, and only
// the claim winner talks to the delivery collaborator. Overlapping cycles,
// duplicate candidates and racing instances all collapse to no-ops at the
// claim.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/notifier"
	"remindbot/internal/reminder"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

type Config struct {
	Enabled      bool
	PollInterval time.Duration // default 5s
	Workers      int           // default 2
	QueueSize    int           // default 256
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// candidate pins the cycle's clock reading: every claim in one cycle stamps
// the same instant.
type candidate struct {
	rec  reminder.Record
	lead bool
	now  time.Time
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	store    reminder.Store
	rems     *reminder.Service
	deliver  notifier.Deliverer
	operator notifier.OperatorNotifier

	c       *cron.Cron
	queue   chan candidate
	stopCh  chan struct{}
	workers sync.WaitGroup

	// now is the single ambient clock read per polling cycle; swappable for
	// deterministic tests.
	now func() time.Time
}

func New(cfg Config, store reminder.Store, rems *reminder.Service, deliver notifier.Deliverer, operator notifier.OperatorNotifier, log logx.Logger) *Service {
	return &Service{
		cfg:      cfg.withDefaults(),
		log:      log,
		store:    store,
		rems:     rems,
		deliver:  deliver,
		operator: operator,
		now:      time.Now,
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply updates the config; a changed poll interval restarts the schedule.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	var old *cron.Cron
	if s.c != nil && cfg.PollInterval != s.cfg.PollInterval {
		old = s.c
		s.c = nil
	}
	s.cfg = cfg
	s.mu.Unlock()
	if old == nil {
		return
	}

	// Stop outside the lock: a running cycle takes s.mu and cron.Stop waits
	// for running jobs.
	<-old.Stop().Done()

	s.mu.Lock()
	if s.stopCh != nil && s.c == nil {
		s.c = newCron(cfg.PollInterval, s.schedulePoll)
		s.c.Start()
	}
	s.mu.Unlock()
	s.log.Info("dispatcher poll interval updated", logx.Duration("every", cfg.PollInterval))
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.queue = make(chan candidate, s.cfg.QueueSize)

	for i := 0; i < s.cfg.Workers; i++ {
		s.workers.Add(1)
		go s.worker(ctx, s.stopCh, s.queue)
	}

	s.c = newCron(s.cfg.PollInterval, s.schedulePoll)
	s.c.Start()
	s.log.Info("dispatcher started",
		logx.Int("workers", s.cfg.Workers),
		logx.Duration("every", s.cfg.PollInterval))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("dispatcher stopped")
	case <-ctx.Done():
		s.log.Warn("dispatcher stop timed out waiting for workers")
	}
}

func newCron(every time.Duration, job func()) *cron.Cron {
	c := cron.New()
	// "@every" never fails to parse for a positive duration.
	_, _ = c.AddFunc(fmt.Sprintf("@every %s", every), job)
	return c
}

func (s *Service) schedulePoll() {
	// cron gives no context; bound each cycle so a stuck store cannot pile
	// up overlapping scans forever.
	s.mu.Lock()
	interval := s.cfg.PollInterval
	s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*interval)
	defer cancel()
	s.RunCycle(ctx)
}

// RunCycle performs one polling cycle: a single clock read, one due-set
// query per notification kind, then fan-out to the claim workers. Candidates
// that don't fit the queue are dropped; the next cycle re-selects them, and
// the claim keeps re-selection harmless.
func (s *Service) RunCycle(ctx context.Context) {
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue == nil {
		return
	}

	now := s.now().UTC()

	lead, err := s.store.LeadDue(ctx, now)
	if err != nil {
		s.log.Warn("lead-due scan failed; retrying next cycle", logx.Err(err))
	}
	due, err := s.store.Due(ctx, now)
	if err != nil {
		s.log.Warn("due scan failed; retrying next cycle", logx.Err(err))
	}
	if len(lead) == 0 && len(due) == 0 {
		return
	}
	s.log.Debug("cycle selected candidates",
		logx.Int("due", len(due)), logx.Int("lead", len(lead)), logx.Time("now", now))

	for _, r := range lead {
		s.enqueue(queue, candidate{rec: r, lead: true, now: now})
	}
	for _, r := range due {
		s.enqueue(queue, candidate{rec: r, now: now})
	}
}

func (s *Service) enqueue(queue chan candidate, c candidate) {
	select {
	case queue <- c:
	default:
		s.log.Warn("dispatcher queue full; candidate deferred to next cycle",
			logx.Int64("id", c.rec.ID))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan candidate) {
	defer s.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case c := <-queue:
			s.process(ctx, c)
		}
	}
}

// process is claim-then-fire. The claim is the only synchronization point
// and is never held across delivery: once the CAS wins, the record is
// permanently ours and a slow or failing send cannot block other claims.
func (s *Service) process(ctx context.Context, c candidate) {
	var (
		won bool
		err error
	)
	if c.lead {
		won, err = s.store.ClaimLead(ctx, c.rec.ID)
	} else {
		won, err = s.store.Claim(ctx, c.rec.ID, c.now)
	}
	if err != nil {
		// Store unavailable: abort this candidate, the next cycle retries.
		s.log.Warn("claim attempt aborted", logx.Int64("id", c.rec.ID), logx.Err(err))
		return
	}
	if !won {
		// Lost the race (or the record was cancelled). Expected, not an error.
		s.log.Debug("claim lost", logx.Int64("id", c.rec.ID), logx.Bool("lead", c.lead))
		return
	}

	d := notifier.Delivery{
		Target:        transport.ChatTarget{ChatID: c.rec.ChatID},
		Title:         c.rec.Title,
		Payload:       c.rec.Payload,
		Kind:          c.rec.Kind,
		LocalizedTime: s.rems.Localize(c.rec.TriggerAt),
		Lead:          c.lead,
	}
	if err := s.deliver.Deliver(ctx, d); err != nil {
		// The record stays claimed: duplicate delivery is worse than a rare
		// missed one. Re-delivery is a manual operator action.
		s.log.Error("delivery failed after claim; not retrying",
			logx.Int64("id", c.rec.ID),
			logx.Int64("chat_id", c.rec.ChatID),
			logx.Bool("lead", c.lead),
			logx.Err(err))
		if s.operator != nil {
			s.operator.NotifyOperator(ctx, fmt.Sprintf(
				"reminder %d (%q) claimed but delivery failed: %v", c.rec.ID, c.rec.Title, err))
		}
		return
	}
	s.log.Info("reminder fired",
		logx.Int64("id", c.rec.ID),
		logx.Int64("chat_id", c.rec.ChatID),
		logx.Bool("lead", c.lead))
}

// SetNowFunc overrides the cycle clock. Tests only.
func (s *Service) SetNowFunc(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}
