package ecb

import (
	"context"
	"fmt"
	"log"

	"github.com/openfx/ratesd/internal/rates"
	"github.com/openfx/ratesd/pkg/utils"
)

// Loader owns the "is this dataset usable" decision. It prefers the local
// snapshot and falls back to the network when the snapshot is missing,
// unparsable, or stale, persisting fresh bytes after every successful
// download.
type Loader struct {
	client   *Client
	snapshot *Snapshot
}

// NewLoader wires a feed client to a snapshot store.
func NewLoader(client *Client, snapshot *Snapshot) *Loader {
	return &Loader{client: client, snapshot: snapshot}
}

// Client returns the underlying feed client.
func (l *Loader) Client() *Client { return l.client }

// Snapshot returns the underlying snapshot store.
func (l *Loader) Snapshot() *Snapshot { return l.snapshot }

// Load acquires a dataset for startup: snapshot first, network second. A
// snapshot that fails to parse is treated as a miss; one whose newest day
// predates today on the publisher's clock is refetched. A failed fetch is a
// hard error since the caller cannot serve without a dataset.
func (l *Loader) Load(ctx context.Context) (*rates.Dataset, error) {
	if data, err := l.snapshot.Read(); err == nil {
		ds, perr := Parse(data)
		switch {
		case perr != nil:
			log.Printf("snapshot %s unusable, refetching: %v", l.snapshot.Path(), perr)
		case l.Stale(ds):
			log.Printf("snapshot %s is stale, refetching", l.snapshot.Path())
		default:
			return ds, nil
		}
	}
	return l.Fetch(ctx)
}

// Fetch downloads, persists, and parses the feed without consulting the
// stored snapshot. Freshly downloaded bytes that fail to parse are a hard
// error, not a fallback case.
func (l *Loader) Fetch(ctx context.Context) (*rates.Dataset, error) {
	data, err := l.client.FetchHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if werr := l.snapshot.Write(data); werr != nil {
		log.Printf("snapshot write failed: %v", werr)
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse fetched feed: %w", err)
	}
	return ds, nil
}

// Stale reports whether the dataset's newest day is older than today on the
// publisher's CET clock. The server's local zone plays no part here; across
// zone boundaries it would misclassify fresh data as stale and vice versa.
// A dataset with no days at all counts as stale.
func (l *Loader) Stale(ds *rates.Dataset) bool {
	latest, ok := ds.Latest()
	if !ok {
		return true
	}
	return latest.Date.Before(utils.TodayCET())
}
