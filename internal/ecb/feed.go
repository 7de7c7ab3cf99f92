// Package ecb acquires the ECB historical reference-rate feed. It downloads
// the raw XML, decodes it into a rates.Dataset, keeps a verbatim local
// snapshot for fast restarts, decides when the snapshot is stale, and runs
// the daily background refresh.
package ecb

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openfx/ratesd/internal/rates"
	"github.com/openfx/ratesd/pkg/utils"
)

// ErrMalformed is returned when feed bytes do not match the expected
// envelope structure.
var ErrMalformed = errors.New("malformed feed")

// The feed is a gesmes envelope wrapping one Cube container of per-day
// cubes, each carrying per-currency cubes:
//
//	<gesmes:Envelope>
//	  <Cube>
//	    <Cube time="2024-01-02">
//	      <Cube currency="USD" rate="1.0956"/>
//	      ...
type envelope struct {
	XMLName xml.Name  `xml:"Envelope"`
	Days    []cubeDay `xml:"Cube>Cube"`
}

type cubeDay struct {
	Date  string     `xml:"time,attr"`
	Rates []cubeRate `xml:"Cube"`
}

type cubeRate struct {
	Currency string `xml:"currency,attr"`
	Rate     string `xml:"rate,attr"`
}

// Parse turns raw feed bytes into an indexed dataset. Structural deviations
// report ErrMalformed, from unparsable XML down to a bad rate attribute or a
// duplicate date. An empty feed is valid and parses to a dataset holding
// only EUR and zero days.
func Parse(data []byte) (*rates.Dataset, error) {
	var env envelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	entries := make([]rates.DayQuotes, 0, len(env.Days))
	for _, day := range env.Days {
		date, err := utils.ParseDate(day.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrMalformed, day.Date)
		}
		quotes := make([]rates.Quote, 0, len(day.Rates))
		for _, r := range day.Rates {
			code := strings.ToUpper(r.Currency)
			if len(code) != 3 {
				return nil, fmt.Errorf("%w: bad currency code %q", ErrMalformed, r.Currency)
			}
			rate, err := strconv.ParseFloat(r.Rate, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad rate %q for %s", ErrMalformed, r.Rate, code)
			}
			quotes = append(quotes, rates.Quote{Currency: code, Rate: rate})
		}
		entries = append(entries, rates.DayQuotes{Date: date, Quotes: quotes})
	}

	ds, err := rates.NewDataset(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ds, nil
}
