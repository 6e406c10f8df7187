package series

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/types"
)

// ResampleWeekly groups a series by ISO week: open is the first constituent
// open, close the last close, high/low the extremes, volume the sum. The
// resampled bar keeps the timestamp of its last constituent (the period-end
// close). The final, possibly partial week still yields a bar.
func ResampleWeekly(s *Series) *Series {
	if s.Len() == 0 {
		return Empty()
	}

	var (
		weekly  []types.Bar
		current types.Bar
		curYear int
		curWeek int
		open    bool
	)

	for _, bar := range s.Bars() {
		year, week := bar.Time.ISOWeek()
		if !open {
			current = bar
			curYear, curWeek = year, week
			open = true

			continue
		}

		if year != curYear || week != curWeek {
			weekly = append(weekly, current)
			current = bar
			curYear, curWeek = year, week

			continue
		}

		if bar.High > current.High {
			current.High = bar.High
		}

		if bar.Low < current.Low {
			current.Low = bar.Low
		}

		current.Close = bar.Close
		current.Volume += bar.Volume
		current.Time = bar.Time
	}

	weekly = append(weekly, current)

	// The grouped bars inherit ordering from the input, so this cannot fail.
	out, _ := New(weekly)

	return out
}

// isoWeekEnd returns the instant the ISO week containing t closes
// (midnight at the start of the following Monday, in t's location).
func isoWeekEnd(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}

	monday := day.AddDate(0, 0, 1-weekday)

	return monday.AddDate(0, 0, 7)
}

// Cursor walks a resampled confirmation series alongside the primary series,
// exposing a secondary bar only once the primary timestamp has reached or
// passed the end of that bar's calendar period. A not-yet-closed resample
// period is never visible.
type Cursor struct {
	secondary *Series
	next      int
	latest    optional.Option[types.Bar]
}

// NewCursor creates a cursor over the given resampled series.
func NewCursor(secondary *Series) *Cursor {
	return &Cursor{
		secondary: secondary,
		next:      0,
		latest:    optional.None[types.Bar](),
	}
}

// Advance moves the cursor to the given primary timestamp and returns the
// most recent fully closed secondary bar, or None while no period has closed.
func (c *Cursor) Advance(primaryTime time.Time) optional.Option[types.Bar] {
	for c.next < c.secondary.Len() {
		bar := c.secondary.Bar(c.next)
		if primaryTime.Before(isoWeekEnd(bar.Time)) {
			break
		}

		c.latest = optional.Some(bar)
		c.next++
	}

	return c.latest
}
