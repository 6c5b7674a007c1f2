package shard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyfeetx/kiosk/config"
)

func feedTestSettings(startDelaySeconds int) *config.Settings {
	s := config.Default()
	s.DatabaseSyncInterval = 3600
	s.FeedCheckInterval = 1
	s.FeedCheckStartDelay = startDelaySeconds
	return s
}

func TestFeedCheckTicksOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int64
	jobs := newPeriodicJobs(feedTestSettings(0), nil, nil, nil, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})
	require.NoError(t, jobs.Start(ctx))
	defer jobs.Stop()

	// First run fires right after the (zero) start delay, then once per
	// configured interval.
	time.Sleep(2500 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2))
}

func TestFeedCheckWaitsOutStartDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int64
	jobs := newPeriodicJobs(feedTestSettings(1), nil, nil, nil, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})
	require.NoError(t, jobs.Start(ctx))
	defer jobs.Stop()

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls), "feed check must not run before its start delay")

	time.Sleep(1 * time.Second)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(1))
}

func TestNilFeedHookRegistersNoJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := newPeriodicJobs(feedTestSettings(0), nil, nil, nil, nil)
	require.NoError(t, jobs.Start(ctx))
	defer jobs.Stop()

	assert.Nil(t, jobs.feedTimer)
	assert.Len(t, jobs.cron.Entries(), 3, "only the three standing jobs should be registered")
}

func TestBirthdayJobScheduledAtUTCMidnight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := newPeriodicJobs(feedTestSettings(0), nil, nil, nil, nil)
	require.NoError(t, jobs.Start(ctx))
	defer jobs.Stop()

	entries := jobs.cron.Entries()
	require.Len(t, entries, 3)

	// The daily job must roll over at midnight UTC, matching ListDue's UTC
	// date selection. The interval jobs land on 5:40 and 6:30 from this
	// reference point, so exactly one entry may match.
	from := time.Date(2026, 3, 1, 5, 30, 0, 0, time.UTC)
	midnight := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	matches := 0
	for _, e := range entries {
		if e.Schedule.Next(from).Equal(midnight) {
			matches++
		}
	}
	assert.Equal(t, 1, matches, "expected exactly one job scheduled for UTC midnight")
}

func TestStopHaltsFeedCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int64
	jobs := newPeriodicJobs(feedTestSettings(0), nil, nil, nil, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})
	require.NoError(t, jobs.Start(ctx))

	time.Sleep(1200 * time.Millisecond)
	jobs.Stop()
	settled := atomic.LoadInt64(&calls)

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt64(&calls), "no feed checks may run after stop")
}
