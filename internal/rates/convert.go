package rates

// Rebase re-denominates a Day from EUR into the given base currency by
// dividing every present rate by the base's rate on that date; absent slots
// stay absent and the base's own slot comes out as exactly 1.0. The boolean
// is false when the base is not in the catalog at all or carries no rate on
// this particular day; callers that need to tell those two apart check
// catalog membership first. The receiver is never modified; a rebased Day is
// backed by a fresh vector.
func (d Day) Rebase(base string, catalog Catalog) (Day, bool) {
	if base == EUR {
		return d, true
	}

	slot, ok := catalog.Index(base)
	if !ok {
		return Day{}, false
	}
	if d.Rates[slot] == nil {
		return Day{}, false
	}
	baseRate := *d.Rates[slot]

	rebased := make([]*float64, len(d.Rates))
	for i, r := range d.Rates {
		if r == nil {
			continue
		}
		v := *r / baseRate
		rebased[i] = &v
	}
	return Day{Date: d.Date, Rates: rebased}, true
}
