// Package schedule expands weekly schedule rules into concrete occurrences
// over a bounded horizon and shapes conflict findings into an operator-facing
// report. It is pure date arithmetic; persistence and conflict lookup live in
// the store.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"reservation-backend/internal/model"
	"reservation-backend/internal/parse"
)

// DefaultHorizonDays is the materialization horizon applied when the caller
// gives no limit date: 12 weeks.
const DefaultHorizonDays = 84

// MaxHorizonDays bounds caller-supplied limits to one year out.
const MaxHorizonDays = 365

// ResolveHorizon computes the inclusive [start,end] date range to materialize.
// A nil limit yields defaultDays (DefaultHorizonDays when <= 0). A limit
// before today or beyond one year is rejected.
func ResolveHorizon(today time.Time, limit *time.Time, defaultDays int) (start, end time.Time, err error) {
	start = parse.DateOnly(today)
	if limit == nil {
		if defaultDays <= 0 {
			defaultDays = DefaultHorizonDays
		}
		return start, start.AddDate(0, 0, defaultDays), nil
	}

	end = parse.DateOnly(*limit)
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: horizon limit %s is before today", model.ErrValidation, end.Format(parse.DateLayout))
	}
	if end.After(start.AddDate(0, 0, MaxHorizonDays)) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: horizon limit %s exceeds one year", model.ErrValidation, end.Format(parse.DateLayout))
	}
	return start, end, nil
}

// ValidateRules normalizes rule time windows in place and checks weekday
// numbering. Runs before any side effect.
func ValidateRules(rules []model.ScheduleRule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: at least one schedule rule is required", model.ErrValidation)
	}
	for i := range rules {
		r := &rules[i]
		if r.Weekday < 1 || r.Weekday > 7 {
			return fmt.Errorf("%w: weekday %d out of range 1..7", model.ErrValidation, r.Weekday)
		}
		start, end, err := parse.Window(r.StartTime, r.EndTime)
		if err != nil {
			return fmt.Errorf("%w: %v", model.ErrValidation, err)
		}
		r.StartTime, r.EndTime = start, end
	}
	return nil
}

// Occurrence is one (date, rule) pair the horizon walk produced.
type Occurrence struct {
	Date time.Time
	Rule model.ScheduleRule
}

// Expand walks every date in [start,end] inclusive and emits an occurrence for
// each rule whose weekday matches. Bounded by MaxHorizonDays * len(rules).
func Expand(rules []model.ScheduleRule, start, end time.Time) []Occurrence {
	var out []Occurrence
	for d := parse.DateOnly(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		weekday := model.WeekdayOf(d.Weekday())
		for _, r := range rules {
			if r.Weekday == weekday {
				out = append(out, Occurrence{Date: d, Rule: r})
			}
		}
	}
	return out
}

// Collision pairs a requested occurrence with an existing reservation that
// blocks it.
type Collision struct {
	Occurrence Occurrence
	Existing   model.Reservation
}

// ConflictGroup aggregates collisions by (weekday, box) so an operator can
// adjust a request in one pass instead of by trial and error.
type ConflictGroup struct {
	Weekday   int       `json:"weekday"`
	BoxID     int64     `json:"box_id"`
	Requested []string  `json:"requested_windows"`
	Occupied  []string  `json:"occupied_windows"`
	Owners    []int64   `json:"owners"`
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
}

// GroupCollisions folds raw collisions into sorted conflict groups.
func GroupCollisions(collisions []Collision) []ConflictGroup {
	type key struct {
		weekday int
		boxID   int64
	}
	groups := make(map[key]*ConflictGroup)
	requested := make(map[key]map[string]bool)
	occupied := make(map[key]map[string]bool)
	owners := make(map[key]map[int64]bool)

	for _, c := range collisions {
		k := key{weekday: c.Occurrence.Rule.Weekday, boxID: c.Occurrence.Rule.BoxID}
		g, ok := groups[k]
		if !ok {
			g = &ConflictGroup{Weekday: k.weekday, BoxID: k.boxID, FirstDate: c.Occurrence.Date, LastDate: c.Occurrence.Date}
			groups[k] = g
			requested[k] = make(map[string]bool)
			occupied[k] = make(map[string]bool)
			owners[k] = make(map[int64]bool)
		}
		if c.Occurrence.Date.Before(g.FirstDate) {
			g.FirstDate = c.Occurrence.Date
		}
		if c.Occurrence.Date.After(g.LastDate) {
			g.LastDate = c.Occurrence.Date
		}
		requested[k][window(c.Occurrence.Rule.StartTime, c.Occurrence.Rule.EndTime)] = true
		occupied[k][window(c.Existing.StartTime, c.Existing.EndTime)] = true
		owners[k][c.Existing.OwnerID] = true
	}

	out := make([]ConflictGroup, 0, len(groups))
	for k, g := range groups {
		g.Requested = sortedKeys(requested[k])
		g.Occupied = sortedKeys(occupied[k])
		g.Owners = sortedInt64s(owners[k])
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].BoxID < out[j].BoxID
	})
	return out
}

var weekdayNames = [8]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// String renders one group as a single operator-readable line.
func (g ConflictGroup) String() string {
	return fmt.Sprintf("%s, box %d: requested %s clashes with occupied %s (owners %v) between %s and %s",
		weekdayNames[g.Weekday], g.BoxID,
		strings.Join(g.Requested, ", "), strings.Join(g.Occupied, ", "),
		g.Owners,
		g.FirstDate.Format(parse.DateLayout), g.LastDate.Format(parse.DateLayout))
}

func window(start, end string) string {
	return start + "-" + end
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedInt64s(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
