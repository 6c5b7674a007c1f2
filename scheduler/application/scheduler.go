package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/happyfeetx/kiosk/scheduler/domain"
	"github.com/sirupsen/logrus"
)

// Scheduler owns every live timer for persisted deferred tasks. Exactly one
// instance runs per process, driven by the designated owner shard; the
// persisted row is the single point of truth for "what fires when", the
// in-memory handle exists only while the process is up.
type Scheduler struct {
	repo    domain.Repository
	session domain.Session

	mu     sync.Mutex
	timers map[string]*time.Timer
	tasks  map[string]*domain.Task
	closed bool

	wg sync.WaitGroup
}

func New(repo domain.Repository, session domain.Session) *Scheduler {
	return &Scheduler{
		repo:    repo,
		session: session,
		timers:  make(map[string]*time.Timer),
		tasks:   make(map[string]*domain.Task),
	}
}

// Restore loads every persisted pending task. Tasks whose execution time has
// already passed run the missed-execution path once; the rest get a timer.
// Called once at startup, before shards begin handling events.
func (s *Scheduler) Restore(ctx context.Context) error {
	tasks, err := s.repo.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending tasks: %w", err)
	}

	now := time.Now().UTC()
	restored, missed := 0, 0
	for _, t := range tasks {
		if t.Due(now) {
			missed++
			s.fireMissed(t, now)
			continue
		}
		s.arm(t, t.ExecuteAt.Sub(now))
		restored++
	}

	logrus.WithFields(logrus.Fields{
		"armed":  restored,
		"missed": missed,
	}).Info("scheduler restored persisted tasks")
	return nil
}

// Schedule persists a new task and arms its timer. A task already due fires
// on the spot.
func (s *Scheduler) Schedule(ctx context.Context, t *domain.Task) error {
	if err := s.repo.Insert(ctx, t); err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}

	now := time.Now().UTC()
	if t.Due(now) {
		s.runTask(t, false)
		return nil
	}
	s.arm(t, t.ExecuteAt.Sub(now))
	return nil
}

// Cancel stops a task's timer and removes its persisted row. Cancelling an
// unknown or already-cancelled id is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// Pending returns the ids with a live timer.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	return ids
}

// Stop disposes all timers and waits for in-flight firings to finish. New
// firings stop immediately; no persisted state is touched.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// --- internal ---

func (s *Scheduler) arm(t *domain.Task, in time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.tasks[t.ID] = t
	s.timers[t.ID] = time.AfterFunc(in, func() {
		s.mu.Lock()
		_, live := s.timers[t.ID]
		delete(s.timers, t.ID)
		delete(s.tasks, t.ID)
		if !live || s.closed {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		s.runTask(t, false)
	})
}

// fireMissed handles a task found already due at load time: the effect is
// still attempted once, logged as late, and a repeating task jumps to its
// next future occurrence instead of firing once per missed interval.
func (s *Scheduler) fireMissed(t *domain.Task, now time.Time) {
	logrus.WithFields(logrus.Fields{
		"task_id": t.ID,
		"kind":    t.Payload.Kind(),
		"late_by": now.Sub(t.ExecuteAt).String(),
	}).Warn("executing missed task")
	s.runTask(t, true)
}

// runTask executes the task's effect and settles its persisted row: delete
// for one-shot tasks, next execution time for repeating ones. The row is
// settled before any next timer is armed, so a crash in between re-delivers
// on the next startup instead of losing the task.
func (s *Scheduler) runTask(t *domain.Task, missed bool) {
	ctx := context.Background()

	if err := s.execute(ctx, t); err != nil {
		// A failed terminal effect is logged, not retried; the row is still
		// settled below.
		logrus.WithFields(logrus.Fields{
			"task_id": t.ID,
			"kind":    t.Payload.Kind(),
			"missed":  missed,
		}).WithError(err).Error("task effect failed")
	}

	if !t.Repeating() {
		if err := s.repo.Delete(ctx, t.ID); err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
			logrus.WithField("task_id", t.ID).WithError(err).Error("failed deleting fired task")
		}
		return
	}

	now := time.Now().UTC()
	next := t.NextOccurrence(now)
	if err := s.repo.UpdateExecuteAt(ctx, t.ID, next); err != nil {
		logrus.WithField("task_id", t.ID).WithError(err).Error("failed rescheduling repeating task")
		return
	}

	rescheduled := *t
	rescheduled.ExecuteAt = next
	s.arm(&rescheduled, next.Sub(now))
}

func (s *Scheduler) execute(ctx context.Context, t *domain.Task) error {
	switch p := t.Payload.(type) {
	case domain.UnbanPayload:
		return s.session.UnbanUser(ctx, t.GuildID, t.UserID)
	case domain.UnmutePayload:
		return s.session.RemoveRole(ctx, t.GuildID, t.UserID, p.RoleID)
	case domain.SendMessagePayload:
		return s.session.SendMessage(ctx, p.ChannelID, p.Message)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownTaskKind, t.Payload)
	}
}
