// Package calendar resolves a site's weekly operating hours for a concrete
// date. The hours table reaches us in two historical JSON shapes; both are
// normalized here so no other package ever sees the raw payload.
package calendar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reservation-backend/internal/model"
	"reservation-backend/internal/parse"
)

// Kind tags a day ruling. "No hours configured" is deliberately its own state
// rather than a nil: the legacy system treated absent tables as unrestricted
// and that default must stay visible.
type Kind int

const (
	// Unrestricted means the site never configured hours; bookings face no
	// window restriction on this day.
	Unrestricted Kind = iota
	// Open carries an operating window for the day.
	Open
	// Closed means the site does not operate on this day.
	Closed
)

// Ruling is the resolved operating ruling for one site and date.
type Ruling struct {
	Kind  Kind
	Start string // "HH:MM", set when Kind == Open
	End   string // "HH:MM", set when Kind == Open
}

// dayEntry is one weekday row of the canonical hours table.
type dayEntry struct {
	Day    string `json:"day"`
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// wrappedHours is the second legacy shape: an object wrapping the flat list.
// Different eras used different key names for the same list.
type wrappedHours struct {
	Schedule []dayEntry `json:"schedule"`
	Days     []dayEntry `json:"days"`
	Hours    []dayEntry `json:"hours"`
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
)

// weekdays maps normalized day names (English and Spanish) to Go weekdays.
var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "miercoles": time.Wednesday,
	"thursday": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sabado": time.Saturday,
	"sunday": time.Sunday, "domingo": time.Sunday,
}

// NormalizeDay maps a raw weekday name (case/accent variants, English or
// Spanish) to a time.Weekday.
func NormalizeDay(raw string) (time.Weekday, error) {
	key := accentReplacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
	d, ok := weekdays[key]
	if !ok {
		return 0, fmt.Errorf("unknown weekday name %q", raw)
	}
	return d, nil
}

// Resolve returns the operating ruling for a site on the given date.
//
// A site without an hours table is Unrestricted for every date. A site with a
// table is Closed on weekdays the table does not mention.
func Resolve(site *model.Site, date time.Time) (Ruling, error) {
	table, err := normalize(site.Hours)
	if err != nil {
		return Ruling{}, fmt.Errorf("site %d hours table: %w", site.ID, err)
	}
	if table == nil {
		return Ruling{Kind: Unrestricted}, nil
	}

	entry, ok := table[date.Weekday()]
	if !ok || entry.Closed {
		return Ruling{Kind: Closed}, nil
	}

	start, end, err := parse.Window(entry.Open, entry.Close)
	if err != nil {
		return Ruling{}, fmt.Errorf("site %d hours for %s: %w", site.ID, date.Weekday(), err)
	}
	return Ruling{Kind: Open, Start: start, End: end}, nil
}

// normalize decodes either legacy shape into one weekday lookup. A nil map
// means no table is configured at all.
func normalize(raw []byte) (map[time.Weekday]dayEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var entries []dayEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Not the flat shape; try the wrapped object.
		var wrapped wrappedHours
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("unrecognized hours payload: %w", err)
		}
		switch {
		case wrapped.Schedule != nil:
			entries = wrapped.Schedule
		case wrapped.Days != nil:
			entries = wrapped.Days
		case wrapped.Hours != nil:
			entries = wrapped.Hours
		default:
			return nil, fmt.Errorf("hours object carries no weekday list")
		}
	}

	if len(entries) == 0 {
		return nil, nil
	}

	table := make(map[time.Weekday]dayEntry, len(entries))
	for _, e := range entries {
		day, err := NormalizeDay(e.Day)
		if err != nil {
			return nil, err
		}
		table[day] = e
	}
	return table, nil
}
