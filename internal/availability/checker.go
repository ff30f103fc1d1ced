// Package availability merges per-slot free/busy information from the
// configured calendar systems. A slot is offered only when every system
// reports it free; a system that errors is treated as all-free so an upstream
// outage cannot block the booking flow.
package availability

import (
	"context"
	"time"

	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

// SlotMinutes is the booking granularity.
const SlotMinutes = 30

// slotTimes is the consultation grid: half-hour slots 09:00-17:00 with the
// 12:00-13:00 lunch hour removed.
var slotTimes = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"13:00", "13:30", "14:00", "14:30", "15:00", "15:30",
	"16:00", "16:30", "17:00",
}

// SlotTimes returns the bookable time-of-day strings in order.
func SlotTimes() []string {
	out := make([]string, len(slotTimes))
	copy(out, slotTimes)
	return out
}

// ValidSlot reports whether timeOfDay is on the booking grid.
func ValidSlot(timeOfDay string) bool {
	for _, s := range slotTimes {
		if s == timeOfDay {
			return true
		}
	}
	return false
}

// Window is a busy interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the window intersects [start, end).
func (w Window) Overlaps(start, end time.Time) bool {
	return start.Before(w.End) && end.After(w.Start)
}

// Provider reports busy windows for one calendar system on a given day.
// Providers for unconfigured systems should return no windows and no error.
type Provider interface {
	Name() string
	BusyWindows(ctx context.Context, date time.Time) ([]Window, error)
}

// Slot is the availability of one grid time on a given day.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// Checker combines providers conjunctively.
type Checker struct {
	providers []Provider
	logger    *logging.Logger
	loc       *time.Location
}

// NewChecker creates a checker over the given providers. loc is the timezone
// the slot grid is interpreted in.
func NewChecker(providers []Provider, loc *time.Location, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Checker{providers: providers, logger: logger, loc: loc}
}

// Day returns the availability of every grid slot on date. A provider error
// is logged and that provider contributes no busy windows (fail-open).
func (c *Checker) Day(ctx context.Context, date time.Time) []Slot {
	var busy []Window
	for _, p := range c.providers {
		windows, err := p.BusyWindows(ctx, date)
		if err != nil {
			c.logger.Error("availability check failed, treating as free", "provider", p.Name(), "error", err)
			continue
		}
		busy = append(busy, windows...)
	}

	year, month, day := date.In(c.loc).Date()
	out := make([]Slot, 0, len(slotTimes))
	for _, ts := range slotTimes {
		hh, mm := parseSlot(ts)
		start := time.Date(year, month, day, hh, mm, 0, 0, c.loc)
		end := start.Add(SlotMinutes * time.Minute)
		available := true
		for _, w := range busy {
			if w.Overlaps(start, end) {
				available = false
				break
			}
		}
		out = append(out, Slot{Time: ts, Available: available})
	}
	return out
}

// SlotAvailable reports whether the single grid slot at timeOfDay on date is
// free across all providers.
func (c *Checker) SlotAvailable(ctx context.Context, date time.Time, timeOfDay string) bool {
	for _, slot := range c.Day(ctx, date) {
		if slot.Time == timeOfDay {
			return slot.Available
		}
	}
	return false
}

func parseSlot(ts string) (hour, minute int) {
	// Grid entries are always "HH:MM".
	hour = int(ts[0]-'0')*10 + int(ts[1]-'0')
	minute = int(ts[3]-'0')*10 + int(ts[4]-'0')
	return hour, minute
}
