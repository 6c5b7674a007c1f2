package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTaskNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)

	task := NewTask("g1", "u1", at, UnbanPayload{})

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, time.UTC, task.ExecuteAt.Location())
	assert.True(t, task.ExecuteAt.Equal(at))
}

func TestRepeating(t *testing.T) {
	oneShot := NewTask("g", "u", time.Now(), SendMessagePayload{ChannelID: "c", Message: "m"})
	assert.False(t, oneShot.Repeating())

	zeroInterval := NewTask("g", "u", time.Now(), SendMessagePayload{Repeating: true})
	assert.False(t, zeroInterval.Repeating())

	repeating := NewTask("g", "u", time.Now(), SendMessagePayload{Repeating: true, Interval: time.Minute})
	assert.True(t, repeating.Repeating())

	unban := NewTask("g", "u", time.Now(), UnbanPayload{})
	assert.False(t, unban.Repeating())
}

func TestDue(t *testing.T) {
	now := time.Now().UTC()

	past := NewTask("g", "u", now.Add(-time.Second), UnbanPayload{})
	assert.True(t, past.Due(now))

	exact := NewTask("g", "u", now, UnbanPayload{})
	assert.True(t, exact.Due(now))

	future := NewTask("g", "u", now.Add(time.Second), UnbanPayload{})
	assert.False(t, future.Due(now))
}

func TestNextOccurrenceSkipsMissedIntervals(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	start := now.Add(-3*time.Hour - 10*time.Minute)

	task := NewTask("g", "u", start, SendMessagePayload{Repeating: true, Interval: time.Hour})

	next := task.NextOccurrence(now)
	assert.True(t, next.After(now), "next occurrence must be strictly in the future")
	assert.Equal(t, start.Add(4*time.Hour), next)
}

func TestNextOccurrenceFutureTaskUnchanged(t *testing.T) {
	now := time.Now().UTC()
	at := now.Add(time.Hour)

	task := NewTask("g", "u", at, SendMessagePayload{Repeating: true, Interval: time.Minute})
	assert.True(t, task.NextOccurrence(now).Equal(at))
}
