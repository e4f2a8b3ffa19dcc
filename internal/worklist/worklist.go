// Package worklist loads target profiles from CSV and orders them for a
// campaign run.
package worklist

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/lib/profileurl"
)

// URLColumns are the accepted header names for the profile URL column,
// matched case-insensitively
var URLColumns = []string{"url", "linkedin_url", "profile_url"}

// ErrNoURLColumn means the CSV header has none of URLColumns
var ErrNoURLColumn = errors.New("no url column found")

// Item is one target profile. URL is the canonical profile URL, not the
// CSV text.
type Item struct {
	URL              string
	PublicIdentifier string
}

// UpdatedAtLookup reports when known profiles were last written.
// Unknown identifiers are absent from the result.
type UpdatedAtLookup interface {
	GetUpdatedAt(ctx context.Context, publicIDs []string) (map[string]time.Time, error)
}

// Load reads the CSV at path and sorts it for processing
func Load(ctx context.Context, path string, lookup UpdatedAtLookup) ([]Item, error) {
	items, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	return Sort(ctx, items, lookup)
}

// LoadCSV reads profile URLs from a CSV file. Values are trimmed, blanks
// and null markers dropped, and repeated profiles kept once in first-seen
// order.
func LoadCSV(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open csv %s", path)
	}
	defer f.Close()

	items, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return items, nil
}

// Parse reads profile URLs from CSV content
func Parse(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.WithHintf(ErrNoURLColumn, "expected one of %v, file is empty", URLColumns)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	col := urlColumn(header)
	if col < 0 {
		return nil, errors.WithHintf(ErrNoURLColumn, "expected one of %v, available: %v", URLColumns, header)
	}

	var items []Item
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read row %d", line)
		}
		if col >= len(record) {
			continue
		}

		raw := strings.TrimSpace(record[col])
		if isNull(raw) {
			continue
		}

		id, err := profileurl.ToPublicID(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", line)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		items = append(items, Item{URL: profileurl.FromPublicID(id), PublicIdentifier: id})
	}
	return items, nil
}

// Sort orders items for processing: profiles never stored come first, then
// the least recently updated. Ties keep their input order.
func Sort(ctx context.Context, items []Item, lookup UpdatedAtLookup) ([]Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.PublicIdentifier
	}

	updated, err := lookup.GetUpdatedAt(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "look up updated_at")
	}

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, iKnown := updated[sorted[i].PublicIdentifier]
		tj, jKnown := updated[sorted[j].PublicIdentifier]
		if iKnown != jKnown {
			return !iKnown
		}
		return ti.Before(tj)
	})
	return sorted, nil
}

func urlColumn(header []string) int {
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, c := range URLColumns {
			if strings.EqualFold(name, c) {
				return i
			}
		}
	}
	return -1
}

func isNull(v string) bool {
	return v == "" || v == "nan" || v == "<NA>"
}
