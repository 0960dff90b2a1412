package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/apryandito/taskrelay/internal/intake"
	"github.com/apryandito/taskrelay/internal/notify"
	"github.com/apryandito/taskrelay/internal/observability"
	"github.com/apryandito/taskrelay/internal/store"
)

const lookAhead = 7 * 24 * time.Hour

// Scheduler periodically sweeps pending tasks and fires one reminder per
// deadline bucket per task. Dedup is a compare-and-set on the last served
// bucket in the store, so repeated sweeps inside one bucket window, and
// concurrent scheduler instances, reach at most one fire decision.
type Scheduler struct {
	store        store.Store
	dispatcher   notify.Dispatcher
	interval     time.Duration
	overdueGrace time.Duration
	metrics      *observability.Metrics

	now func() time.Time
}

func NewScheduler(st store.Store, dispatcher notify.Dispatcher, interval, overdueGrace time.Duration, metrics *observability.Metrics) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if overdueGrace <= 0 {
		overdueGrace = 48 * time.Hour
	}
	return &Scheduler{
		store:        st,
		dispatcher:   dispatcher,
		interval:     interval,
		overdueGrace: overdueGrace,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Tests only.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Run sweeps on a fixed period until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("reminder: scheduler running, sweep every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("reminder: scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cycle over candidate tasks. Failures on one task are logged
// and isolated; the next sweep retries naturally.
func (s *Scheduler) Sweep(ctx context.Context) {
	started := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveSweepDuration(s.now().Sub(started))
		}
	}()

	now := s.now()
	candidates, err := s.store.ListDueTasks(ctx, now.Add(-s.overdueGrace), now.Add(lookAhead))
	if err != nil {
		log.Printf("reminder: list due tasks failed: %v", err)
		if s.metrics != nil {
			s.metrics.StoreErrors.WithLabelValues("list_due").Inc()
		}
		return
	}

	for _, task := range candidates {
		s.process(ctx, task, now)
	}
}

func (s *Scheduler) process(ctx context.Context, task store.Task, now time.Time) {
	bucket := Classify(task.Deadline.Sub(now))
	if bucket == store.BucketNone {
		return
	}
	// A bucket at or below the served high-water mark has already fired.
	if bucket.Rank() <= task.LastBucket.Rank() {
		return
	}

	won, err := s.store.MarkReminded(ctx, task.ID, task.LastBucket, bucket, now)
	if err != nil {
		log.Printf("reminder: mark task #%d bucket %s failed: %v", task.ID, bucket, err)
		if s.metrics != nil {
			s.metrics.StoreErrors.WithLabelValues("mark_reminded").Inc()
		}
		return
	}
	if !won {
		// Another instance served this bucket, or the task left pending.
		return
	}

	text := fmt.Sprintf("Reminder: task #%d %q is %s, deadline %s (UTC).",
		task.ID, task.Title, Phrase(bucket), task.Deadline.Format(intake.DeadlineLayout))
	for _, recipient := range recipientsAndCreator(task) {
		if err := s.dispatcher.Send(ctx, recipient, text); err != nil {
			log.Printf("reminder: notify %d about task #%d failed: %v", recipient, task.ID, err)
			if s.metrics != nil {
				s.metrics.NotifyErrors.WithLabelValues("reminder").Inc()
			}
		}
	}
	if s.metrics != nil {
		s.metrics.RemindersSent.WithLabelValues(string(bucket)).Inc()
	}
}

func recipientsAndCreator(task store.Task) []int64 {
	out := make([]int64, 0, len(task.Recipients)+1)
	seen := make(map[int64]struct{}, len(task.Recipients)+1)
	for _, id := range append(append([]int64{}, task.Recipients...), task.CreatorID) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
