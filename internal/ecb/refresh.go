package ecb

import (
	"context"
	"log"
	"time"

	"github.com/openfx/ratesd/internal/rates"
	"github.com/openfx/ratesd/pkg/utils"
)

// DefaultRefreshMinute is 16:30 CET, a safe margin after the ECB posts the
// daily reference rates around 16:00.
const DefaultRefreshMinute = 16*60 + 30

// Refresher re-runs the fetch path once a day at a fixed CET minute and
// swaps the shared dataset on success. A failed attempt keeps the previous
// generation serving; only context cancellation stops the loop.
type Refresher struct {
	loader *Loader
	handle *rates.SharedDataset
	minute int

	// OnSwap, when set, observes every successfully published generation.
	OnSwap func(*rates.Dataset)
}

// NewRefresher schedules daily refreshes at the given CET minute-of-day.
func NewRefresher(loader *Loader, handle *rates.SharedDataset, minute int) *Refresher {
	return &Refresher{loader: loader, handle: handle, minute: minute}
}

// Run blocks until ctx is cancelled and returns the context's error. Each
// cycle sleeps to the next absolute occurrence of the configured minute, so
// a late wake-up never skips a day: the attempt runs unconditionally on wake
// and the following cycle is computed from the clock after it.
func (r *Refresher) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(time.Until(nextOccurrence(utils.NowCET(), r.minute)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		r.refresh(ctx)
	}
}

// refresh runs one fetch-and-swap attempt.
func (r *Refresher) refresh(ctx context.Context) {
	ds, err := r.loader.Fetch(ctx)
	if err != nil {
		log.Printf("scheduled refresh failed, keeping previous dataset: %v", err)
		return
	}
	r.handle.Swap(ds)

	latest := "none"
	if day, ok := ds.Latest(); ok {
		latest = utils.FormatDate(day.Date)
	}
	log.Printf("dataset refreshed: %d days, %d currencies, latest %s",
		len(ds.Days), len(ds.Currencies), latest)

	if r.OnSwap != nil {
		r.OnSwap(ds)
	}
}

// nextOccurrence returns the next instant after now whose CET wall clock
// reads the given minute-of-day: later today if still ahead, else tomorrow.
func nextOccurrence(now time.Time, minute int) time.Time {
	now = now.In(utils.CET)
	next := time.Date(now.Year(), now.Month(), now.Day(), minute/60, minute%60, 0, 0, utils.CET)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
