package availability

import (
	"sort"
	"time"
)

// Slot is a candidate appointment start time. Slots that collide with an
// existing booking are kept in the output with Available=false so callers
// can render taken times; slots already in the past are dropped entirely.
type Slot struct {
	Time      time.Time
	Available bool
}

// Window is a concrete open/close range on one specific date.
type Window struct {
	Open  time.Time
	Close time.Time
}

// DayWindow is a recurring business-hours window for one weekday.
// Open and Close use the "15:04" wall-clock format.
type DayWindow struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed,omitempty"`
}

// WeekSchedule maps weekdays to their business-hours windows. A missing
// weekday means closed.
type WeekSchedule map[time.Weekday]DayWindow

const clockFormat = "15:04"

// WindowOn resolves the schedule for date's weekday into a concrete window
// in date's location. ok is false when the business is closed that day or
// the stored clock strings do not parse.
func (ws WeekSchedule) WindowOn(date time.Time) (Window, bool) {
	dw, found := ws[date.Weekday()]
	if !found || dw.Closed {
		return Window{}, false
	}

	open, err := time.Parse(clockFormat, dw.Open)
	if err != nil {
		return Window{}, false
	}
	closeAt, err := time.Parse(clockFormat, dw.Close)
	if err != nil {
		return Window{}, false
	}
	if !closeAt.After(open) {
		return Window{}, false
	}

	y, m, d := date.Date()
	loc := date.Location()
	return Window{
		Open:  time.Date(y, m, d, open.Hour(), open.Minute(), 0, 0, loc),
		Close: time.Date(y, m, d, closeAt.Hour(), closeAt.Minute(), 0, 0, loc),
	}, true
}

// Slots enumerates every step-aligned start time within the window where a
// booking of the given duration still ends by close. Starts before now are
// omitted; starts whose interval overlaps a busy interval are marked
// unavailable.
func Slots(window Window, duration, step time.Duration, busy []Interval, now time.Time) []Slot {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !window.Close.After(window.Open) {
		return nil
	}

	var slots []Slot
	for t := window.Open; !t.Add(duration).After(window.Close); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		slots = append(slots, Slot{
			Time:      t,
			Available: !NewInterval(t, duration).OverlapsAny(busy),
		})
	}
	return slots
}

// Union merges per-staff slot lists into one ordered list: a start time is
// available when at least one of the inputs offers it available.
func Union(sets ...[]Slot) []Slot {
	merged := make(map[int64]Slot)
	for _, set := range sets {
		for _, s := range set {
			key := s.Time.UnixNano()
			if cur, seen := merged[key]; seen {
				cur.Available = cur.Available || s.Available
				merged[key] = cur
				continue
			}
			merged[key] = s
		}
	}

	out := make([]Slot, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
