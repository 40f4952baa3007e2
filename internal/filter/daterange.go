package filter

import (
	"time"

	"github.com/afairgiant/medikeep/internal/record"
)

// RangeName names a date range.
type RangeName string

const (
	RangeAll         RangeName = "all"
	RangeToday       RangeName = "today"
	RangeWeek        RangeName = "week"
	RangeMonth       RangeName = "month"
	RangeQuarter     RangeName = "quarter"
	RangeYear        RangeName = "year"
	RangePastMonth   RangeName = "past_month"
	RangePast3Months RangeName = "past_3_months"
	RangePast6Months RangeName = "past_6_months"
	RangeCurrent     RangeName = "current"
	RangePast        RangeName = "past"
	RangeFuture      RangeName = "future"
)

var allRangeNames = []RangeName{
	RangeToday,
	RangeWeek,
	RangeMonth,
	RangeQuarter,
	RangeYear,
	RangePastMonth,
	RangePast3Months,
	RangePast6Months,
	RangeCurrent,
	RangePast,
	RangeFuture,
}

var rangeLabels = map[RangeName]string{
	RangeAll:         "All Time",
	RangeToday:       "Today",
	RangeWeek:        "This Week",
	RangeMonth:       "This Month",
	RangeQuarter:     "Last 3 Months",
	RangeYear:        "This Year",
	RangePastMonth:   "Past Month",
	RangePast3Months: "Past 3 Months",
	RangePast6Months: "Past 6 Months",
	RangeCurrent:     "Current",
	RangePast:        "Past",
	RangeFuture:      "Future",
}

// RangeNames returns every range name except RangeAll.
func RangeNames() []RangeName {
	return append([]RangeName(nil), allRangeNames...)
}

// Known reports whether n is a recognized range name.
func (n RangeName) Known() bool {
	_, ok := rangeLabels[n]
	return ok
}

// Label returns the display label for n, or n itself when unknown.
func (n RangeName) Label() string {
	if l, ok := rangeLabels[n]; ok {
		return l
	}
	return string(n)
}

// window is an inclusive [start, end] bound. A relative window has no end.
type window struct {
	start time.Time
	end   time.Time
	open  bool
}

func (w window) contains(t time.Time) bool {
	if t.Before(w.start) {
		return false
	}
	return w.open || !t.After(w.end)
}

func (w window) overlaps(start, end time.Time) bool {
	if end.Before(w.start) {
		return false
	}
	return w.open || !start.After(w.end)
}

// windowFor computes the window for a bounded or relative range. Interval
// ranges (current, past, future) have no window and report ok == false.
func windowFor(name RangeName, now time.Time) (window, bool) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch name {
	case RangeToday:
		return window{start: startOfDay, end: startOfDay.AddDate(0, 0, 1).Add(-time.Nanosecond)}, true
	case RangeWeek:
		return window{start: now.AddDate(0, 0, -7), end: now}, true
	case RangeMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return window{start: first, end: first.AddDate(0, 1, 0).Add(-time.Nanosecond)}, true
	case RangeQuarter, RangePast3Months:
		return window{start: now.AddDate(0, -3, 0), open: true}, true
	case RangeYear:
		return window{start: now.AddDate(-1, 0, 0), open: true}, true
	case RangePastMonth:
		return window{start: now.AddDate(0, -1, 0), open: true}, true
	case RangePast6Months:
		return window{start: now.AddDate(0, -6, 0), open: true}, true
	default:
		return window{}, false
	}
}

// dateSpec tells the range matcher where a record keeps its dates.
type dateSpec struct {
	point record.Field
	start record.Field
	end   record.Field
}

// rangeMatcher matches records against one named range at a fixed instant.
type rangeMatcher struct {
	name  RangeName
	now   time.Time
	loc   *time.Location
	spec  dateSpec
	win   window
	bound bool
}

func newRangeMatcher(name RangeName, now time.Time, loc *time.Location, spec dateSpec) rangeMatcher {
	w, ok := windowFor(name, now)
	return rangeMatcher{name: name, now: now, loc: loc, spec: spec, win: w, bound: ok}
}

func (m rangeMatcher) match(r record.Record) bool {
	if !m.bound {
		return m.matchInterval(r)
	}

	if !m.win.open && !m.spec.start.IsZero() && !m.spec.end.IsZero() {
		if rawStart, ok := m.spec.start.Get(r); ok {
			start, ok := record.Time(rawStart, m.loc)
			if !ok {
				return false
			}
			end := m.now
			if rawEnd, ok := m.spec.end.Get(r); ok {
				if end, ok = record.Time(rawEnd, m.loc); !ok {
					return false
				}
			}
			return m.win.overlaps(start, end)
		}
	}

	point, ok := m.pointValue(r)
	if !ok {
		return false
	}
	t, ok := record.Time(point, m.loc)
	if !ok {
		return false
	}
	return m.win.contains(t)
}

func (m rangeMatcher) pointValue(r record.Record) (any, bool) {
	if v, ok := m.spec.point.Get(r); ok {
		return v, true
	}
	return m.spec.start.Get(r)
}

// matchInterval evaluates current, past and future. Records that carry
// neither interval value pass through.
func (m rangeMatcher) matchInterval(r record.Record) bool {
	rawStart, hasStart := m.spec.start.Get(r)
	rawEnd, hasEnd := m.spec.end.Get(r)
	if !hasStart && !hasEnd {
		return true
	}

	var start, end time.Time
	if hasStart {
		t, ok := record.Time(rawStart, m.loc)
		if !ok {
			return false
		}
		start = t
	}
	if hasEnd {
		t, ok := record.Time(rawEnd, m.loc)
		if !ok {
			return false
		}
		end = t
	}

	switch m.name {
	case RangeCurrent:
		return (!hasStart || !start.After(m.now)) && (!hasEnd || !end.Before(m.now))
	case RangePast:
		return hasEnd && end.Before(m.now)
	case RangeFuture:
		return hasStart && start.After(m.now)
	default:
		return true
	}
}

// isIntervalRange reports whether name reads the interval fields directly.
func isIntervalRange(name RangeName) bool {
	return name == RangeCurrent || name == RangePast || name == RangeFuture
}
