package shard

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	birthdayDomain "github.com/happyfeetx/kiosk/birthday/domain"
	"github.com/happyfeetx/kiosk/config"
	guildApplication "github.com/happyfeetx/kiosk/guild/application"
	"github.com/happyfeetx/kiosk/infrastructure/discord"
	"github.com/happyfeetx/kiosk/pkg/eventworker"
	schedulerApplication "github.com/happyfeetx/kiosk/scheduler/application"
	schedulerDomain "github.com/happyfeetx/kiosk/scheduler/domain"
)

// Manager owns every shard session plus the process-wide cancellation
// signal. The shared state cache and the task scheduler are hydrated once,
// and shard 0 alone drives the global periodic jobs and task timers, a
// single-owner convention that holds because there is exactly one process.
type Manager struct {
	cfg       *config.Settings
	state     *guildApplication.State
	taskRepo  schedulerDomain.Repository
	birthdays birthdayDomain.Repository

	sessions  []*discord.Session
	scheduler *schedulerApplication.Scheduler
	jobs      *periodicJobs
	pool      *eventworker.Pool
	feedCheck func(ctx context.Context) error
	cancel    context.CancelFunc
}

func NewManager(cfg *config.Settings, state *guildApplication.State, taskRepo schedulerDomain.Repository, birthdays birthdayDomain.Repository) *Manager {
	return &Manager{
		cfg:       cfg,
		state:     state,
		taskRepo:  taskRepo,
		birthdays: birthdays,
	}
}

// SetFeedCheck registers the subscription poll run by the owner shard on
// the configured feed interval, after the configured start delay. Must be
// called before Start.
func (m *Manager) SetFeedCheck(fn func(ctx context.Context) error) {
	m.feedCheck = fn
}

// Start hydrates shared state, opens one session per configured shard,
// restores persisted tasks onto the owner shard and begins the periodic
// jobs. It returns once every shard is connected.
func (m *Manager) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	if err := m.state.Hydrate(ctx); err != nil {
		return err
	}

	m.pool = eventworker.NewPool(0, 0)
	m.pool.Start(ctx)

	m.sessions = make([]*discord.Session, 0, m.cfg.ShardCount)
	for id := 0; id < m.cfg.ShardCount; id++ {
		s, err := discord.NewSession(m.cfg.Token, id, m.cfg.ShardCount, m.state, m.pool)
		if err != nil {
			return err
		}
		if err := s.Open(); err != nil {
			m.closeSessions()
			return err
		}
		m.sessions = append(m.sessions, s)
		logrus.WithField("shard", id).Info("shard connected")
	}

	owner := m.sessions[0]
	m.scheduler = schedulerApplication.New(m.taskRepo, owner)
	if err := m.scheduler.Restore(ctx); err != nil {
		m.closeSessions()
		return fmt.Errorf("restore scheduler: %w", err)
	}

	m.jobs = newPeriodicJobs(m.cfg, m.state, m.birthdays, owner, m.feedCheck)
	if err := m.jobs.Start(ctx); err != nil {
		m.closeSessions()
		return err
	}

	return nil
}

// Scheduler exposes the task scheduler to command glue. Valid after Start.
func (m *Manager) Scheduler() *schedulerApplication.Scheduler {
	return m.scheduler
}

// State exposes the shared state cache.
func (m *Manager) State() *guildApplication.State {
	return m.state
}

// Stop raises the root cancellation, stops periodic timers and task
// firings (in-flight callbacks finish, new ones don't start), flushes the
// counters one last time and closes every session.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.jobs != nil {
		m.jobs.Stop()
	}
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
	if m.pool != nil {
		m.pool.Stop()
	}

	if written, err := m.state.FlushMessageCounts(context.Background()); err != nil {
		logrus.WithError(err).Error("final message count flush failed")
	} else if written > 0 {
		logrus.WithField("rows", written).Info("final message count flush")
	}

	m.closeSessions()
	logrus.Info("all shards stopped")
}

func (m *Manager) closeSessions() {
	for _, s := range m.sessions {
		if err := s.Close(); err != nil {
			logrus.WithField("shard", s.ShardID).WithError(err).Warn("failed closing shard")
		}
	}
	m.sessions = nil
}
