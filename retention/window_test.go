package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stamped struct {
	name string
	at   time.Time
}

func stampOf(s stamped) time.Time { return s.at }

func ptr(t time.Time) *time.Time { return &t }

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestWithin_InclusiveBoundary(t *testing.T) {
	assert.True(t, Within(now.Add(-30*Day), now, ChatWindowDays), "exactly 30 days old is kept")
	assert.False(t, Within(now.Add(-31*Day), now, ChatWindowDays), "31 days old is dropped")
	assert.False(t, Within(now.Add(-30*Day-time.Nanosecond), now, ChatWindowDays))
	assert.True(t, Within(now, now, ChatWindowDays))
}

func TestClampRange(t *testing.T) {
	t.Run("wide range keeps end and pulls start forward", func(t *testing.T) {
		to := now.Add(-10 * Day)
		from := to.Add(-200 * Day)

		r := ClampRange(ptr(from), ptr(to), MealWindowDays, now)

		assert.Equal(t, to, r.To)
		assert.Equal(t, to.Add(-90*Day), r.From)
	})

	t.Run("missing end defaults to now", func(t *testing.T) {
		r := ClampRange(ptr(now.Add(-200*Day)), nil, MealWindowDays, now)

		assert.Equal(t, now, r.To)
		assert.Equal(t, now.Add(-90*Day), r.From)
	})

	t.Run("missing bounds give the full window ending now", func(t *testing.T) {
		r := ClampRange(nil, nil, MealWindowDays, now)

		assert.Equal(t, now, r.To)
		assert.Equal(t, now.Add(-90*Day), r.From)
	})

	t.Run("narrow range is left alone", func(t *testing.T) {
		from := now.Add(-5 * Day)
		to := now.Add(-1 * Day)

		r := ClampRange(ptr(from), ptr(to), MealWindowDays, now)

		assert.Equal(t, from, r.From)
		assert.Equal(t, to, r.To)
	})

	t.Run("inverted range collapses to the end", func(t *testing.T) {
		from := now.Add(-1 * Day)
		to := now.Add(-5 * Day)

		r := ClampRange(ptr(from), ptr(to), MealWindowDays, now)

		assert.Equal(t, to, r.From)
		assert.Equal(t, to, r.To)
	})

	t.Run("zero values count as omitted", func(t *testing.T) {
		r := ClampRange(ptr(time.Time{}), ptr(time.Time{}), ChatWindowDays, now)

		assert.Equal(t, now, r.To)
		assert.Equal(t, now.Add(-30*Day), r.From)
	})
}

func TestClampRange_AlwaysBounded(t *testing.T) {
	offsets := []time.Duration{0, Day, 29 * Day, 30 * Day, 31 * Day, 89 * Day, 90 * Day, 91 * Day, 365 * Day, -4 * Day}
	windows := []int{0, 1, 30, 90}

	for _, w := range windows {
		for _, fromOff := range offsets {
			for _, toOff := range offsets {
				from := now.Add(-fromOff)
				to := now.Add(-toOff)

				r := ClampRange(&from, &to, w, now)

				assert.False(t, r.From.After(r.To), "from after to for window %d", w)
				assert.LessOrEqual(t, r.Duration(), Width(w), "range wider than window %d", w)
			}
		}
	}
}

func TestPolicy_Reject(t *testing.T) {
	from := now.Add(-200 * Day)

	_, err := Reject.Resolve(ptr(from), nil, MealWindowDays, now)
	assert.ErrorIs(t, err, ErrRangeTooWide)

	r, err := Reject.Resolve(ptr(now.Add(-10*Day)), nil, MealWindowDays, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-10*Day), r.From)

	r, err = Clamp.Resolve(ptr(from), nil, MealWindowDays, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-90*Day), r.From)
}

func TestPrune(t *testing.T) {
	items := []stamped{
		{"old", now.Add(-31 * Day)},
		{"edge", now.Add(-30 * Day)},
		{"fresh", now.Add(-time.Hour)},
	}

	kept := Prune(items, stampOf, ChatWindowDays, now)

	require.Len(t, kept, 2)
	assert.Equal(t, "edge", kept[0].name)
	assert.Equal(t, "fresh", kept[1].name)
}

func TestQuery_NewestFirstWithinClampedRange(t *testing.T) {
	items := []stamped{
		{"a", now.Add(-100 * Day)},
		{"b", now.Add(-80 * Day)},
		{"c", now.Add(-2 * Day)},
		{"d", now.Add(-40 * Day)},
	}

	r, got := Query(items, stampOf, MealWindowDays, ptr(now.Add(-200*Day)), nil, now)

	assert.Equal(t, now.Add(-90*Day), r.From)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "d", "b"}, []string{got[0].name, got[1].name, got[2].name})
}
