package shard

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	birthdayDomain "github.com/happyfeetx/kiosk/birthday/domain"
	"github.com/happyfeetx/kiosk/config"
	guildApplication "github.com/happyfeetx/kiosk/guild/application"
	"github.com/happyfeetx/kiosk/infrastructure/discord"
)

// periodicJobs is the set of global recurring actions driven by the owner
// shard: the message-count flush, status rotation, daily birthday greetings
// and the feed check. Job bodies catch and log their own errors so one
// failed tick never cancels future ticks; panics are contained by the cron
// Recover chain.
type periodicJobs struct {
	cfg       *config.Settings
	state     *guildApplication.State
	birthdays birthdayDomain.Repository
	owner     *discord.Session

	// checkFeeds is the subscription poll hook; nil skips the feed job.
	checkFeeds func(ctx context.Context) error

	cron      *cron.Cron
	feedTimer *time.Timer
	startedAt time.Time
}

func newPeriodicJobs(cfg *config.Settings, state *guildApplication.State, birthdays birthdayDomain.Repository, owner *discord.Session, checkFeeds func(ctx context.Context) error) *periodicJobs {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &periodicJobs{
		cfg:        cfg,
		state:      state,
		birthdays:  birthdays,
		owner:      owner,
		checkFeeds: checkFeeds,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(logger)),
		),
	}
}

func (p *periodicJobs) Start(ctx context.Context) error {
	p.startedAt = time.Now()

	if _, err := p.cron.AddFunc(every(p.cfg.SyncInterval()), func() { p.flushCounters(ctx) }); err != nil {
		return fmt.Errorf("register counter flush: %w", err)
	}
	if _, err := p.cron.AddFunc("@every 10m", func() { p.rotateStatus() }); err != nil {
		return fmt.Errorf("register status rotation: %w", err)
	}
	if _, err := p.cron.AddFunc("0 0 * * *", func() { p.greetBirthdays(ctx) }); err != nil {
		return fmt.Errorf("register birthday greetings: %w", err)
	}
	p.cron.Start()

	// The feed poll alone sits out its start delay, runs once, then joins
	// the schedule on its configured interval.
	if p.checkFeeds != nil {
		p.feedTimer = time.AfterFunc(p.cfg.FeedStartDelay(), func() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			p.runFeedCheck(ctx)
			if _, err := p.cron.AddFunc(every(p.cfg.FeedInterval()), func() { p.runFeedCheck(ctx) }); err != nil {
				logrus.WithError(err).Error("failed registering feed check")
			}
		})
	}
	return nil
}

// Stop halts future firings and waits for in-flight job bodies to return.
func (p *periodicJobs) Stop() {
	if p.feedTimer != nil {
		p.feedTimer.Stop()
	}
	<-p.cron.Stop().Done()
}

func (p *periodicJobs) flushCounters(ctx context.Context) {
	written, err := p.state.FlushMessageCounts(ctx)
	if err != nil {
		logrus.WithError(err).Error("message count flush failed")
		return
	}
	if written > 0 {
		logrus.WithField("rows", written).Debug("message counts flushed")
	}
}

func (p *periodicJobs) rotateStatus() {
	uptime := humanize.Time(p.startedAt)
	status := fmt.Sprintf("%s guilds | up since %s",
		humanize.Comma(int64(p.owner.GuildCount())), uptime)
	if err := p.owner.UpdateStatus(status); err != nil {
		logrus.WithError(err).Warn("status rotation failed")
	}
}

func (p *periodicJobs) greetBirthdays(ctx context.Context) {
	due, err := p.birthdays.ListDue(ctx, time.Now().UTC())
	if err != nil {
		logrus.WithError(err).Error("birthday lookup failed")
		return
	}
	for _, b := range due {
		msg := fmt.Sprintf("Happy birthday, <@%s>! 🎉🎂", b.UserID)
		if err := p.owner.SendMessage(ctx, b.ChannelID, msg); err != nil {
			logrus.WithFields(logrus.Fields{
				"guild_id":   b.GuildID,
				"channel_id": b.ChannelID,
			}).WithError(err).Warn("birthday greeting failed")
		}
	}
}

func (p *periodicJobs) runFeedCheck(ctx context.Context) {
	if err := p.checkFeeds(ctx); err != nil {
		logrus.WithError(err).Error("feed check failed")
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
