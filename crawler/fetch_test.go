package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(client *http.Client) *Fetcher {
	f := NewFetcher(client)
	f.BaseBackoff = time.Millisecond
	f.RequestInterval = time.Millisecond
	return f
}

func TestCrawlExtractsLinksAndDecodesUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><a href="/next">next</a><a href="mailto:a@b.com">skip</a></body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.Client())
	res, err := f.Crawl(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if res.Content == nil {
		t.Fatalf("expected content")
	}
	if len(res.Outlinks) != 1 || res.Outlinks[0] != srv.URL+"/next" {
		t.Fatalf("Outlinks = %+v", res.Outlinks)
	}
}

func TestCrawlSkipsUnsupportedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("not html"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.Client())
	res, err := f.Crawl(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if res.Content != nil {
		t.Fatalf("expected no content for unsupported type")
	}
}

func TestCrawlDetectsMetaCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><meta charset="utf-8"></head><body>ok</body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.Client())
	res, err := f.Crawl(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if res.Content == nil {
		t.Fatalf("expected content")
	}
}

func TestCrawlRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>recovered</body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.Client())
	res, err := f.Crawl(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if res.StatusCode != http.StatusOK || res.Content == nil {
		t.Fatalf("expected eventual success, got status=%d content=%v", res.StatusCode, res.Content)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestCrawlGivesUpAfterMaxRetries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.Client())
	f.MaxRetries = 1
	res, err := f.Crawl(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("StatusCode = %d, want 503", res.StatusCode)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("attempts = %d, want 2 (1 + 1 retry)", attempts)
	}
}
