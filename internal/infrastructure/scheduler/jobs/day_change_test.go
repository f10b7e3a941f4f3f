package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tplearn/tplearn-bot/internal/application/planner"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

func newDayJob(f *fixture) *DayChangeJob {
	return NewDayChangeJob(
		f.planner, f.channels, f.store, f.chat, f.presenter, f.reporter,
		timeutil.Morning().WithClock(f.clock.Now),
		timeutil.Thailand().WithClock(f.clock.Now),
		nil,
	)
}

func stamp(t *testing.T, f *fixture, key string) string {
	t.Helper()
	var s string
	ok, err := f.store.Load(context.Background(), key, &s)
	require.NoError(t, err)
	require.True(t, ok)
	return s
}

func TestDayChange_FirstRunRecordsStamps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setup(t, guildA)
	f.add(t, guildA, "Essay", "5/3/2024")
	f.planner.NeedUpdate()

	job := newDayJob(f)
	require.NoError(t, job.Run(ctx))

	// 12:00 in Thailand is 06:00 on the morning calendar, same date.
	assert.Equal(t, "01-03-2024", stamp(t, f, planner.KeyToday))
	assert.Equal(t, "01-03-2024", stamp(t, f, planner.KeyTodayTH))
	assert.Equal(t, []string{guildA}, f.planner.NeedUpdate())

	require.NoError(t, job.Run(ctx))
	assert.Empty(t, f.planner.NeedUpdate())
}

func TestDayChange_CalendarsRollIndependently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setup(t, guildA)
	key := f.add(t, guildA, "Essay", "1/3/2024")

	job := newDayJob(f)
	require.NoError(t, job.Run(ctx))
	f.planner.NeedUpdate()

	// Past midnight in Thailand, still the previous evening on the morning calendar.
	f.clock.Set(thai(2024, 3, 2, 0, 30))
	require.NoError(t, job.Run(ctx))

	assert.Equal(t, []string{guildA}, f.planner.NeedUpdate())
	assert.Equal(t, "01-03-2024", stamp(t, f, planner.KeyToday))
	assert.Equal(t, "02-03-2024", stamp(t, f, planner.KeyTodayTH))
	assert.Empty(t, f.chat.keys("passed-"+guildA))

	// The morning calendar rolls at 06:00 Thailand time.
	f.clock.Set(thai(2024, 3, 2, 6, 30))
	require.NoError(t, job.Run(ctx))

	assert.Equal(t, "02-03-2024", stamp(t, f, planner.KeyToday))
	assert.Equal(t, []string{key}, f.chat.keys("passed-"+guildA))

	a, err := f.planner.Get(guildA, key)
	require.NoError(t, err)
	assert.True(t, a.AlreadyPassed)
	assert.Empty(t, f.planner.GetAll(guildA))
	assert.Equal(t, []string{guildA}, f.planner.NeedUpdate())
}

func TestDayChange_RestartDoesNotRefire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setup(t, guildA)
	f.add(t, guildA, "Essay", "1/3/2024")

	require.NoError(t, newDayJob(f).Run(ctx))
	f.clock.Set(thai(2024, 3, 2, 12, 0))
	require.NoError(t, newDayJob(f).Run(ctx))
	require.Len(t, f.chat.keys("passed-"+guildA), 1)
	f.planner.NeedUpdate()

	restarted := newDayJob(f)
	require.NoError(t, restarted.Run(ctx))

	assert.Len(t, f.chat.keys("passed-"+guildA), 1)
	assert.Empty(t, f.planner.NeedUpdate())
}

func TestDayChange_PrunesOldWork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setup(t, guildA)
	undated := f.add(t, guildA, "Someday", "later")
	dated := f.add(t, guildA, "Essay", "1/3/2024")

	job := newDayJob(f)
	require.NoError(t, job.Run(ctx))

	f.clock.Set(thai(2024, 4, 1, 12, 0))
	require.NoError(t, job.Run(ctx))

	// 31 days past both trackers.
	assert.False(t, f.planner.CheckValidKey(guildA, undated))
	assert.False(t, f.planner.CheckValidKey(guildA, dated))
	assert.Contains(t, f.reporter.lines, "day_change: Deleted 2 old assignment(s)")
}

func TestDayChange_NoPassedChannel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := f.add(t, guildA, "Essay", "1/3/2024")

	job := newDayJob(f)
	require.NoError(t, job.Run(ctx))
	f.clock.Set(thai(2024, 3, 2, 12, 0))
	require.NoError(t, job.Run(ctx))

	a, err := f.planner.Get(guildA, key)
	require.NoError(t, err)
	assert.True(t, a.AlreadyPassed)
	assert.Zero(t, f.chat.sends)
}

func TestAdvanced(t *testing.T) {
	assert.True(t, advanced("", "01-03-2024"))
	assert.True(t, advanced("garbage", "01-03-2024"))
	assert.True(t, advanced("29-02-2024", "01-03-2024"))
	assert.False(t, advanced("01-03-2024", "01-03-2024"))
	assert.False(t, advanced("02-03-2024", "01-03-2024"))
}
