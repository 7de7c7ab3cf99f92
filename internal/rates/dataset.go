// Package rates holds the in-memory form of the ECB reference-rate feed:
// an immutable Dataset generation made of a sorted currency catalog and
// date-ascending daily rate vectors, plus the lookups and the base-currency
// conversion that the API serves from.
package rates

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// EUR is the feed's implicit base currency. It is present in every catalog
// and carries a rate of exactly 1.0 on every day.
const EUR = "EUR"

// ErrInvalidTimeframe is returned for inverted or empty timeframe selections.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Quote is a single currency's EUR-denominated rate as quoted by the feed.
type Quote struct {
	Currency string
	Rate     float64
}

// DayQuotes is one raw feed entry: a calendar date and the rates quoted on it.
// Dates are calendar dates normalized to UTC midnight.
type DayQuotes struct {
	Date   time.Time
	Quotes []Quote
}

// Catalog is the sorted, deduplicated set of every currency code seen across
// one dataset generation. It fixes the column order of every Day's rate
// vector and the binary-search domain for code validation; it never changes
// after construction.
type Catalog []string

// Index returns the catalog slot of a code. Codes match case-sensitively in
// their uppercase 3-letter form; a miss is not an error.
func (c Catalog) Index(code string) (int, bool) {
	i := sort.SearchStrings(c, code)
	if i < len(c) && c[i] == code {
		return i, true
	}
	return 0, false
}

// Has reports whether a code is part of the catalog.
func (c Catalog) Has(code string) bool {
	_, ok := c.Index(code)
	return ok
}

// Day is one calendar date with its rate vector. Rates[i] holds the
// EUR-denominated rate of catalog[i] on that date; nil marks a currency that
// did not exist or trade that day. Vectors always have catalog length and
// are never mutated after construction.
type Day struct {
	Date  time.Time
	Rates []*float64
}

// Dataset is one immutable generation of the parsed feed. Days are ordered
// oldest first with strictly increasing dates; gaps (weekends, holidays) are
// normal. An update builds a whole new Dataset and swaps the shared handle,
// it never touches a live generation.
type Dataset struct {
	Currencies Catalog
	Days       []Day
}

// NewDataset indexes raw feed entries into a Dataset. The catalog is the
// union of every quoted code plus EUR; each day's vector is aligned to it
// with the EUR slot pinned to 1.0. Entries may arrive in any order; the
// result is ascending. Duplicate dates are rejected because they would break
// the binary-search ordering every lookup relies on.
func NewDataset(entries []DayQuotes) (*Dataset, error) {
	catalog := buildCatalog(entries)
	eurSlot, _ := catalog.Index(EUR)

	days := make([]Day, 0, len(entries))
	for _, e := range entries {
		vec := make([]*float64, len(catalog))
		one := 1.0
		vec[eurSlot] = &one
		for _, q := range e.Quotes {
			slot, ok := catalog.Index(q.Currency)
			if !ok {
				// unreachable: the catalog was built from these same entries
				return nil, fmt.Errorf("currency %q missing from catalog", q.Currency)
			}
			r := q.Rate
			vec[slot] = &r
		}
		days = append(days, Day{Date: e.Date, Rates: vec})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	for i := 1; i < len(days); i++ {
		if !days[i-1].Date.Before(days[i].Date) {
			return nil, fmt.Errorf("duplicate date %s in feed", days[i].Date.Format("2006-01-02"))
		}
	}

	return &Dataset{Currencies: catalog, Days: days}, nil
}

func buildCatalog(entries []DayQuotes) Catalog {
	seen := map[string]struct{}{EUR: {}}
	for _, e := range entries {
		for _, q := range e.Quotes {
			seen[q.Currency] = struct{}{}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return Catalog(codes)
}

// DayOnOrBefore returns the index of the Day matching date exactly, or of
// the latest Day strictly before it. A date that precedes the whole dataset
// is a miss. Rates requested for a weekend or holiday therefore resolve to
// the most recent prior trading day.
func (d *Dataset) DayOnOrBefore(date time.Time) (int, bool) {
	i := sort.Search(len(d.Days), func(i int) bool { return d.Days[i].Date.After(date) })
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// DayOnOrAfter returns the index of the Day matching date exactly, or of the
// earliest Day after it. A date past the whole dataset is a miss. Range ends
// round forward to the next available Day, never backward, so a boundary day
// is never silently dropped.
func (d *Dataset) DayOnOrAfter(date time.Time) (int, bool) {
	i := sort.Search(len(d.Days), func(i int) bool { return !d.Days[i].Date.Before(date) })
	if i == len(d.Days) {
		return 0, false
	}
	return i, true
}

// Latest returns the newest Day.
func (d *Dataset) Latest() (Day, bool) {
	if len(d.Days) == 0 {
		return Day{}, false
	}
	return d.Days[len(d.Days)-1], true
}

// Timeframe resolves an optional [start, end] date pair to a half-open slot
// range over Days. The start resolves on-or-before (slot 0 when nil or when
// it precedes all days); the end resolves on-or-after and includes the
// matched day (len(Days) when nil or past all days). Inverted or empty
// selections return ErrInvalidTimeframe.
func (d *Dataset) Timeframe(start, end *time.Time) (int, int, error) {
	if start != nil && end != nil && start.After(*end) {
		return 0, 0, fmt.Errorf("%w: start %s is after end %s", ErrInvalidTimeframe,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	lo := 0
	if start != nil {
		if i, ok := d.DayOnOrBefore(*start); ok {
			lo = i
		}
	}
	hi := len(d.Days)
	if end != nil {
		if i, ok := d.DayOnOrAfter(*end); ok {
			hi = i + 1
		}
	}

	if lo >= hi {
		return 0, 0, fmt.Errorf("%w: no days in selection", ErrInvalidTimeframe)
	}
	return lo, hi, nil
}
