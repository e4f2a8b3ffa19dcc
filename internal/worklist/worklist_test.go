package worklist

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/lib/profileurl"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}
	return path
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.PublicIdentifier
	}
	return out
}

func assertIDs(t *testing.T, items []Item, want ...string) {
	t.Helper()
	if got := ids(items); !reflect.DeepEqual(got, want) {
		t.Errorf("expected ids %v, got %v", want, got)
	}
}

func mustParse(t *testing.T, content string) []Item {
	t.Helper()
	items, err := Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return items
}

func TestParse_CleansAndDedupes(t *testing.T) {
	content := strings.Join([]string{
		"name,url",
		"Alice,  https://www.linkedin.com/in/alice/  ",
		"Bob,https://www.linkedin.com/in/bob",
		"Empty,",
		"Nan,nan",
		"Na,<NA>",
		"Alice again,https://www.linkedin.com/in/alice/?trk=feed",
		"Carol,https://linkedin.com/in/carol/details/experience/",
	}, "\n")

	items := mustParse(t, content)

	assertIDs(t, items, "alice", "bob", "carol")
	if items[0].URL != "https://www.linkedin.com/in/alice/" {
		t.Errorf("expected trimmed url, got %q", items[0].URL)
	}
}

func TestParse_CanonicalURLs(t *testing.T) {
	content := strings.Join([]string{
		"url",
		"www.linkedin.com/in/alice",
		"http://uk.linkedin.com/in/bob/details/?trk=x",
		"https://linkedin.com/in/carol",
	}, "\n")

	items := mustParse(t, content)

	want := []Item{
		{URL: "https://www.linkedin.com/in/alice/", PublicIdentifier: "alice"},
		{URL: "https://www.linkedin.com/in/bob/", PublicIdentifier: "bob"},
		{URL: "https://www.linkedin.com/in/carol/", PublicIdentifier: "carol"},
	}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("expected %+v, got %+v", want, items)
	}
}

func TestParse_ForeignHostRejected(t *testing.T) {
	_, err := Parse(strings.NewReader("url\nwww.linkedin.com/in/alice\nhttps://evil.example/in/bob?x=1\n"))
	if !errors.Is(err, profileurl.ErrNotProfileURL) {
		t.Fatalf("expected ErrNotProfileURL, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 3") {
		t.Errorf("expected row number in %q", err.Error())
	}
}

func TestParse_URLColumnNames(t *testing.T) {
	for _, header := range []string{"url", "URL", "LinkedIn_URL", "profile_url", "\ufeffurl"} {
		t.Run(header, func(t *testing.T) {
			items := mustParse(t, "id,"+header+"\n1,https://www.linkedin.com/in/jane/\n")
			assertIDs(t, items, "jane")
		})
	}
}

func TestParse_FirstMatchingColumnWins(t *testing.T) {
	items := mustParse(t, "profile_url,url\nhttps://www.linkedin.com/in/first/,https://www.linkedin.com/in/second/\n")
	assertIDs(t, items, "first")
}

func TestParse_NoURLColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("name,email\nJane,jane@example.com\n"))
	if !errors.Is(err, ErrNoURLColumn) {
		t.Fatalf("expected ErrNoURLColumn, got %v", err)
	}
	if !strings.Contains(errors.FlattenHints(err), "email") {
		t.Errorf("expected available columns in hint, got %q", errors.FlattenHints(err))
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	if !errors.Is(err, ErrNoURLColumn) {
		t.Errorf("expected ErrNoURLColumn, got %v", err)
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	if items := mustParse(t, "url\n"); len(items) != 0 {
		t.Errorf("expected no items, got %v", items)
	}
}

func TestParse_ShortRowsIgnored(t *testing.T) {
	items := mustParse(t, "name,url\nJane\nBob,https://www.linkedin.com/in/bob/\n")
	assertIDs(t, items, "bob")
}

func TestParse_NotAProfileURL(t *testing.T) {
	_, err := Parse(strings.NewReader("url\nhttps://www.linkedin.com/in/jane/\nhttps://www.linkedin.com/company/acme\n"))
	if !errors.Is(err, profileurl.ErrNotProfileURL) {
		t.Fatalf("expected ErrNotProfileURL, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 3") {
		t.Errorf("expected row number in %q", err.Error())
	}
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestLoadCSV_File(t *testing.T) {
	path := writeCSV(t, "url\nhttps://www.linkedin.com/in/jane/\n")
	items, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Item{{URL: "https://www.linkedin.com/in/jane/", PublicIdentifier: "jane"}}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("expected %+v, got %+v", want, items)
	}
}

// Sorting

type mapLookup struct {
	updated map[string]time.Time
	err     error
}

func (m mapLookup) GetUpdatedAt(ctx context.Context, publicIDs []string) (map[string]time.Time, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := make(map[string]time.Time)
	for _, id := range publicIDs {
		if ts, ok := m.updated[id]; ok {
			result[id] = ts
		}
	}
	return result, nil
}

func TestSort_NeverSeenFirstThenOldest(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lookup := mapLookup{updated: map[string]time.Time{
		"recent": base.Add(2 * time.Hour),
		"old":    base,
		"middle": base.Add(time.Hour),
	}}
	items := []Item{
		{PublicIdentifier: "recent"},
		{PublicIdentifier: "new1"},
		{PublicIdentifier: "old"},
		{PublicIdentifier: "new2"},
		{PublicIdentifier: "middle"},
	}

	sorted, err := Sort(context.Background(), items, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertIDs(t, sorted, "new1", "new2", "old", "middle", "recent")
	if items[0].PublicIdentifier != "recent" {
		t.Errorf("input was mutated: %v", ids(items))
	}
}

func TestSort_Empty(t *testing.T) {
	sorted, err := Sort(context.Background(), nil, mapLookup{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sorted) != 0 {
		t.Errorf("expected no items, got %v", sorted)
	}
}

func TestSort_LookupError(t *testing.T) {
	_, err := Sort(context.Background(), []Item{{PublicIdentifier: "a"}}, mapLookup{err: errors.New("locked")})
	if err == nil {
		t.Error("expected error")
	}
}

func TestLoad(t *testing.T) {
	path := writeCSV(t, "url\nhttps://www.linkedin.com/in/seen/\nhttps://www.linkedin.com/in/unseen/\n")
	lookup := mapLookup{updated: map[string]time.Time{"seen": time.Now()}}

	items, err := Load(context.Background(), path, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, items, "unseen", "seen")
}
