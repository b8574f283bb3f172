// Package retention enforces "keep only the last W days" over any
// timestamped collection. Every function here is a pure function of
// timestamps so it applies identically to chat turns, meal entries or
// ledger history.
package retention

import (
	"errors"
	"sort"
	"time"
)

// Day is the unit retention windows are expressed in
const Day = 24 * time.Hour

// Windows used by the application
const (
	ChatWindowDays    = 30
	MealWindowDays    = 90
	HistoryWindowDays = 90
)

// ErrRangeTooWide is returned by the reject policy when a requested range exceeds the window
var ErrRangeTooWide = errors.New("requested range exceeds retention window")

// Policy decides what happens to a range wider than the window
type Policy int

const (
	// Clamp narrows the range, keeping its end and pulling its start forward
	Clamp Policy = iota
	// Reject refuses the range
	Reject
)

// Range is an inclusive time interval
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether ts lies inside the range, bounds included
func (r Range) Contains(ts time.Time) bool {
	return !ts.Before(r.From) && !ts.After(r.To)
}

// Duration returns To - From
func (r Range) Duration() time.Duration {
	return r.To.Sub(r.From)
}

// Width converts a window in days to a duration
func Width(windowDays int) time.Duration {
	if windowDays < 0 {
		windowDays = 0
	}
	return time.Duration(windowDays) * Day
}

// Cutoff returns the oldest timestamp still inside the window
func Cutoff(now time.Time, windowDays int) time.Time {
	return now.Add(-Width(windowDays))
}

// Within reports whether a record stamped ts is inside the window at now.
// The boundary is inclusive: a record exactly windowDays old is kept.
func Within(ts, now time.Time, windowDays int) bool {
	return !ts.Before(Cutoff(now, windowDays))
}

// Resolve applies the policy to an optional from/to pair.
// Missing bounds default to now (to) and to minus the window (from).
func (p Policy) Resolve(from, to *time.Time, windowDays int, now time.Time) (Range, error) {
	r := defaults(from, to, windowDays, now)
	if p == Reject && r.Duration() > Width(windowDays) {
		return r, ErrRangeTooWide
	}
	return clamp(r, windowDays), nil
}

// ClampRange narrows a requested range so that it spans at most windowDays.
// The end is kept as requested (or now if omitted) and the start is pulled
// forward. A start after the end collapses to the end. It never fails.
func ClampRange(from, to *time.Time, windowDays int, now time.Time) Range {
	r, _ := Clamp.Resolve(from, to, windowDays, now)
	return r
}

func defaults(from, to *time.Time, windowDays int, now time.Time) Range {
	r := Range{To: now}
	if to != nil && !to.IsZero() {
		r.To = *to
	}
	r.From = r.To.Add(-Width(windowDays))
	if from != nil && !from.IsZero() {
		r.From = *from
	}
	return r
}

func clamp(r Range, windowDays int) Range {
	if r.Duration() > Width(windowDays) {
		r.From = r.To.Add(-Width(windowDays))
	}
	if r.From.After(r.To) {
		r.From = r.To
	}
	return r
}

// Prune returns the items still inside the window at now, preserving order
func Prune[T any](items []T, timestamp func(T) time.Time, windowDays int, now time.Time) []T {
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if Within(timestamp(item), now, windowDays) {
			kept = append(kept, item)
		}
	}
	return kept
}

// Query clamps the requested range and returns the items inside it, newest first
func Query[T any](items []T, timestamp func(T) time.Time, windowDays int, from, to *time.Time, now time.Time) (Range, []T) {
	r := ClampRange(from, to, windowDays, now)

	matched := make([]T, 0, len(items))
	for _, item := range items {
		if r.Contains(timestamp(item)) {
			matched = append(matched, item)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return timestamp(matched[i]).After(timestamp(matched[j]))
	})

	return r, matched
}
