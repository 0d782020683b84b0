package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"crawldex/pageindex"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePage(url string, modTime time.Time) pageindex.IndexedPage {
	return pageindex.IndexedPage{
		URL:       url,
		ModTime:   modTime,
		Text:      "<html><title>hello</title>hello world</html>",
		Plaintext: "hello world",
		Size:      11,
		Title:     "hello",
		Links:     []string{"http://example.com/other"},
		WordOccurrences: map[string]pageindex.WordOccurrences{
			"hello": {Positions: []int{0}, Frequency: 1, TFNormalized: 1},
			"world": {Positions: []int{6}, Frequency: 1, TFNormalized: 1},
		},
		WordOccurrencesTitle: map[string]pageindex.WordOccurrences{
			"hello": {Positions: []int{0}, Frequency: 1, TFNormalized: 1},
		},
	}
}

func TestIndexPageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ok, err := s.IndexPage(ctx, samplePage("http://example.com/", time.Unix(1000, 0)))
	if err != nil {
		t.Fatalf("IndexPage: %v", err)
	}
	if !ok {
		t.Fatalf("expected page to be indexed")
	}

	n, err := s.CountPages(ctx)
	if err != nil {
		t.Fatalf("CountPages: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountPages = %d, want 1", n)
	}

	pages, err := s.IteratePages(ctx, -1)
	if err != nil {
		t.Fatalf("IteratePages: %v", err)
	}
	if len(pages) != 1 || pages[0].Title != "hello" {
		t.Fatalf("IteratePages = %+v", pages)
	}
	if len(pages[0].Outlinks) != 1 || pages[0].Outlinks[0] != "http://example.com/other" {
		t.Fatalf("Outlinks = %+v", pages[0].Outlinks)
	}

	keywords, err := s.PageKeywords(ctx, pages[0].ID, -1)
	if err != nil {
		t.Fatalf("PageKeywords: %v", err)
	}
	if len(keywords) != 2 || keywords[0].Content != "hello" || keywords[0].Frequency != 2 {
		t.Fatalf("PageKeywords = %+v, want hello first with combined frequency 2", keywords)
	}
}

func TestIndexPageModTimeGuardRejectsStale(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.IndexPage(ctx, samplePage("http://example.com/", time.Unix(2000, 0))); err != nil {
		t.Fatalf("IndexPage: %v", err)
	}

	ok, err := s.IndexPage(ctx, samplePage("http://example.com/", time.Unix(1000, 0)))
	if err != nil {
		t.Fatalf("IndexPage: %v", err)
	}
	if ok {
		t.Fatalf("expected stale re-index to be rejected")
	}

	ok, err = s.IndexPage(ctx, samplePage("http://example.com/", time.Unix(3000, 0)))
	if err != nil {
		t.Fatalf("IndexPage: %v", err)
	}
	if !ok {
		t.Fatalf("expected newer re-index to be accepted")
	}
}

func TestIndexPageRecordsRedirectEdge(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	page := samplePage("http://example.com/final", time.Unix(1, 0))
	page.RequestedURL = "http://example.com/original"
	if _, err := s.IndexPage(ctx, page); err != nil {
		t.Fatalf("IndexPage: %v", err)
	}

	target, ok, err := s.RedirectTarget(ctx, "http://example.com/original")
	if err != nil {
		t.Fatalf("RedirectTarget: %v", err)
	}
	if !ok {
		t.Fatalf("expected a recorded redirect edge")
	}
	if target != "http://example.com/final" {
		t.Fatalf("RedirectTarget = %q, want http://example.com/final", target)
	}
}

func TestIndexPageNoRedirectWhenURLsMatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	page := samplePage("http://example.com/same", time.Unix(1, 0))
	page.RequestedURL = "http://example.com/same"
	if _, err := s.IndexPage(ctx, page); err != nil {
		t.Fatalf("IndexPage: %v", err)
	}

	_, ok, err := s.RedirectTarget(ctx, "http://example.com/same")
	if err != nil {
		t.Fatalf("RedirectTarget: %v", err)
	}
	if ok {
		t.Fatalf("expected no redirect edge when requested URL equals final URL")
	}
}

func TestWordIDsAndCandidatePages(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.IndexPage(ctx, samplePage("http://example.com/a", time.Unix(1, 0))); err != nil {
		t.Fatalf("IndexPage: %v", err)
	}

	ids, err := s.WordIDs(ctx, []string{"hello", "nonexistent"})
	if err != nil {
		t.Fatalf("WordIDs: %v", err)
	}
	if _, ok := ids["hello"]; !ok {
		t.Fatalf("expected hello to resolve")
	}
	if _, ok := ids["nonexistent"]; ok {
		t.Fatalf("did not expect nonexistent to resolve")
	}

	candidates, err := s.CandidatePages(ctx, []int64{ids["hello"]})
	if err != nil {
		t.Fatalf("CandidatePages: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("CandidatePages = %+v, want 1 page", candidates)
	}
}
