package rates

import (
	"errors"
	"testing"
	"time"
)

// mustDate parses an ISO date for test fixtures.
func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad fixture date %q: %v", s, err)
	}
	return d
}

// dayQuotes builds one raw feed entry for test fixtures.
func dayQuotes(t *testing.T, date string, quotes ...Quote) DayQuotes {
	t.Helper()
	return DayQuotes{Date: mustDate(t, date), Quotes: quotes}
}

// makeDataset indexes fixture entries and fails the test on error.
func makeDataset(t *testing.T, entries ...DayQuotes) *Dataset {
	t.Helper()
	ds, err := NewDataset(entries)
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	return ds
}

// twoDayDataset is the canonical fixture: USD quoted on both days, GBP
// appearing only on the second.
func twoDayDataset(t *testing.T) *Dataset {
	t.Helper()
	return makeDataset(t,
		dayQuotes(t, "2024-01-01", Quote{"USD", 1.1}),
		dayQuotes(t, "2024-01-02", Quote{"USD", 1.09}, Quote{"GBP", 0.86}),
	)
}

func TestNewDatasetCatalog(t *testing.T) {
	ds := twoDayDataset(t)

	want := []string{"EUR", "GBP", "USD"}
	if len(ds.Currencies) != len(want) {
		t.Fatalf("catalog = %v, want %v", ds.Currencies, want)
	}
	for i, code := range want {
		if ds.Currencies[i] != code {
			t.Errorf("catalog[%d] = %s, want %s", i, ds.Currencies[i], code)
		}
	}
	for i := 1; i < len(ds.Currencies); i++ {
		if ds.Currencies[i-1] >= ds.Currencies[i] {
			t.Errorf("catalog not strictly sorted at %d: %v", i, ds.Currencies)
		}
	}
}

func TestNewDatasetVectors(t *testing.T) {
	ds := twoDayDataset(t)

	if len(ds.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(ds.Days))
	}
	for _, d := range ds.Days {
		if len(d.Rates) != len(ds.Currencies) {
			t.Fatalf("day %s vector length = %d, want %d",
				d.Date.Format("2006-01-02"), len(d.Rates), len(ds.Currencies))
		}
	}

	// Catalog order is [EUR GBP USD].
	day1 := ds.Days[0]
	if *day1.Rates[0] != 1.0 {
		t.Errorf("day1 EUR = %v, want 1.0", *day1.Rates[0])
	}
	if day1.Rates[1] != nil {
		t.Errorf("day1 GBP = %v, want absent", *day1.Rates[1])
	}
	if *day1.Rates[2] != 1.1 {
		t.Errorf("day1 USD = %v, want 1.1", *day1.Rates[2])
	}

	day2 := ds.Days[1]
	if *day2.Rates[0] != 1.0 {
		t.Errorf("day2 EUR = %v, want 1.0", *day2.Rates[0])
	}
	if day2.Rates[1] == nil || *day2.Rates[1] != 0.86 {
		t.Errorf("day2 GBP = %v, want 0.86", day2.Rates[1])
	}
	if *day2.Rates[2] != 1.09 {
		t.Errorf("day2 USD = %v, want 1.09", *day2.Rates[2])
	}
}

func TestNewDatasetOrdersDays(t *testing.T) {
	// The live feed arrives newest-first.
	ds := makeDataset(t,
		dayQuotes(t, "2024-01-04", Quote{"USD", 1.08}),
		dayQuotes(t, "2024-01-02", Quote{"USD", 1.1}),
		dayQuotes(t, "2024-01-03", Quote{"USD", 1.09}),
	)

	for i := 1; i < len(ds.Days); i++ {
		if !ds.Days[i-1].Date.Before(ds.Days[i].Date) {
			t.Fatalf("days not strictly ascending: %s then %s",
				ds.Days[i-1].Date.Format("2006-01-02"), ds.Days[i].Date.Format("2006-01-02"))
		}
	}
}

func TestNewDatasetRejectsDuplicateDates(t *testing.T) {
	_, err := NewDataset([]DayQuotes{
		dayQuotes(t, "2024-01-02", Quote{"USD", 1.1}),
		dayQuotes(t, "2024-01-02", Quote{"USD", 1.09}),
	})
	if err == nil {
		t.Fatal("expected error for duplicate dates")
	}
}

func TestNewDatasetEmpty(t *testing.T) {
	ds, err := NewDataset(nil)
	if err != nil {
		t.Fatalf("empty feed should be valid, got %v", err)
	}
	if len(ds.Currencies) != 1 || ds.Currencies[0] != EUR {
		t.Errorf("catalog = %v, want [EUR]", ds.Currencies)
	}
	if len(ds.Days) != 0 {
		t.Errorf("expected 0 days, got %d", len(ds.Days))
	}
	if _, ok := ds.Latest(); ok {
		t.Error("Latest() on empty dataset should report a miss")
	}
}

func TestCatalogIndex(t *testing.T) {
	ds := twoDayDataset(t)

	tests := []struct {
		code string
		slot int
		ok   bool
	}{
		{"EUR", 0, true},
		{"GBP", 1, true},
		{"USD", 2, true},
		{"JPY", 0, false},
		{"usd", 0, false}, // case-sensitive
	}
	for _, tt := range tests {
		slot, ok := ds.Currencies.Index(tt.code)
		if ok != tt.ok || (ok && slot != tt.slot) {
			t.Errorf("Index(%q) = (%d, %v), want (%d, %v)", tt.code, slot, ok, tt.slot, tt.ok)
		}
	}

	if !ds.Currencies.Has("USD") || ds.Currencies.Has("JPY") {
		t.Error("Has() disagrees with Index()")
	}
}

func TestDayOnOrBefore(t *testing.T) {
	ds := makeDataset(t,
		dayQuotes(t, "2024-01-02", Quote{"USD", 1.1}),
		dayQuotes(t, "2024-01-04", Quote{"USD", 1.09}),
	)

	tests := []struct {
		date string
		want string
		ok   bool
	}{
		{"2024-01-03", "2024-01-02", true}, // gap resolves backward
		{"2024-01-02", "2024-01-02", true}, // exact hit
		{"2024-01-05", "2024-01-04", true}, // after everything: latest
		{"2024-01-01", "", false},          // precedes the whole dataset
	}
	for _, tt := range tests {
		idx, ok := ds.DayOnOrBefore(mustDate(t, tt.date))
		if ok != tt.ok {
			t.Errorf("DayOnOrBefore(%s) ok = %v, want %v", tt.date, ok, tt.ok)
			continue
		}
		if ok && ds.Days[idx].Date.Format("2006-01-02") != tt.want {
			t.Errorf("DayOnOrBefore(%s) = %s, want %s",
				tt.date, ds.Days[idx].Date.Format("2006-01-02"), tt.want)
		}
	}
}

func TestDayOnOrAfter(t *testing.T) {
	ds := makeDataset(t,
		dayQuotes(t, "2024-01-02", Quote{"USD", 1.1}),
		dayQuotes(t, "2024-01-04", Quote{"USD", 1.09}),
	)

	tests := []struct {
		date string
		want string
		ok   bool
	}{
		{"2024-01-03", "2024-01-04", true}, // gap resolves forward
		{"2024-01-04", "2024-01-04", true}, // exact hit
		{"2024-01-01", "2024-01-02", true}, // before everything: earliest
		{"2024-01-05", "", false},          // past the whole dataset
	}
	for _, tt := range tests {
		idx, ok := ds.DayOnOrAfter(mustDate(t, tt.date))
		if ok != tt.ok {
			t.Errorf("DayOnOrAfter(%s) ok = %v, want %v", tt.date, ok, tt.ok)
			continue
		}
		if ok && ds.Days[idx].Date.Format("2006-01-02") != tt.want {
			t.Errorf("DayOnOrAfter(%s) = %s, want %s",
				tt.date, ds.Days[idx].Date.Format("2006-01-02"), tt.want)
		}
	}
}

func TestLatest(t *testing.T) {
	ds := twoDayDataset(t)
	latest, ok := ds.Latest()
	if !ok {
		t.Fatal("Latest() reported a miss on a populated dataset")
	}
	if latest.Date.Format("2006-01-02") != "2024-01-02" {
		t.Errorf("Latest() = %s, want 2024-01-02", latest.Date.Format("2006-01-02"))
	}
}

func TestTimeframe(t *testing.T) {
	ds := makeDataset(t,
		dayQuotes(t, "2024-01-02", Quote{"USD", 1.1}),
		dayQuotes(t, "2024-01-04", Quote{"USD", 1.09}),
		dayQuotes(t, "2024-01-08", Quote{"USD", 1.08}),
	)

	date := func(s string) *time.Time {
		d := mustDate(t, s)
		return &d
	}

	tests := []struct {
		name       string
		start, end *time.Time
		lo, hi     int
		wantErr    bool
	}{
		{"unbounded", nil, nil, 0, 3, false},
		{"exact bounds", date("2024-01-02"), date("2024-01-08"), 0, 3, false},
		{"start between days", date("2024-01-03"), nil, 0, 3, false},
		{"end rounds forward inclusive", nil, date("2024-01-05"), 0, 3, false},
		{"end exact inclusive", nil, date("2024-01-04"), 0, 2, false},
		{"start before all days", date("2023-12-01"), nil, 0, 3, false},
		{"end past all days", nil, date("2024-02-01"), 0, 3, false},
		{"interior window", date("2024-01-04"), date("2024-01-04"), 1, 2, false},
		{"inverted", date("2024-01-08"), date("2024-01-02"), 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, err := ds.Timeframe(tt.start, tt.end)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				if !errors.Is(err, ErrInvalidTimeframe) {
					t.Errorf("error = %v, want ErrInvalidTimeframe", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if lo != tt.lo || hi != tt.hi {
				t.Errorf("Timeframe = [%d, %d), want [%d, %d)", lo, hi, tt.lo, tt.hi)
			}
		})
	}
}

func TestTimeframeEmptyDataset(t *testing.T) {
	ds := makeDataset(t)
	if _, _, err := ds.Timeframe(nil, nil); !errors.Is(err, ErrInvalidTimeframe) {
		t.Errorf("Timeframe on empty dataset = %v, want ErrInvalidTimeframe", err)
	}
}
