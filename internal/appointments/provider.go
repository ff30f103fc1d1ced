package appointments

import (
	"context"
	"time"

	"github.com/cvcwebsolutions/scheduling-api/internal/availability"
)

// StoreProvider exposes booked appointments as busy windows so the
// availability merge blocks a slot even when the Zoom or Calendar side failed
// at booking time.
type StoreProvider struct {
	store    Store
	duration time.Duration
	loc      *time.Location
}

// NewStoreProvider builds a provider over the appointment store.
func NewStoreProvider(store Store, duration time.Duration, loc *time.Location) *StoreProvider {
	if duration <= 0 {
		duration = 30 * time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &StoreProvider{store: store, duration: duration, loc: loc}
}

// Name identifies the provider in logs.
func (p *StoreProvider) Name() string { return "appointments" }

// BusyWindows returns one window per non-cancelled appointment on date.
func (p *StoreProvider) BusyWindows(ctx context.Context, date time.Time) ([]availability.Window, error) {
	list, err := p.store.List(ctx)
	if err != nil {
		return nil, err
	}
	day := date.In(p.loc).Format("2006-01-02")
	var windows []availability.Window
	for _, a := range list {
		if a.Date != day || a.Status == StatusCancelled {
			continue
		}
		start, err := a.StartAt(p.loc)
		if err != nil {
			continue
		}
		windows = append(windows, availability.Window{Start: start, End: start.Add(p.duration)})
	}
	return windows, nil
}
