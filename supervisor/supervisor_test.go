package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"crawldex/crawler"
	"crawldex/store"
)

func TestSupervisorCrawlsSmallSite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><title>A</title><body><a href="/b">b</a><a href="/c">c</a></body></html>`))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><title>B</title><body><a href="/c">c</a></body></html>`))
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><title>C</title><body>leaf page</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	front := crawler.New()
	if err := front.Enqueue([]string{srv.URL + "/a"}, false, false); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	idx, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	sup := New(Config{RequestConcurrency: 2, MaxQueueSize: 4}, front, crawler.NewFetcher(srv.Client()), idx, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := sup.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 3 {
		t.Fatalf("pages written = %d, want 3", n)
	}

	count, err := idx.CountPages(context.Background())
	if err != nil {
		t.Fatalf("CountPages: %v", err)
	}
	if count != 3 {
		t.Fatalf("CountPages = %d, want 3", count)
	}
}

func TestSupervisorStopsAtPageCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><title>A</title><body><a href="/b">b</a></body></html>`))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><title>B</title><body><a href="/a">a</a></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	front := crawler.New()
	if err := front.Enqueue([]string{srv.URL + "/a"}, false, false); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	idx, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	sup := New(Config{RequestConcurrency: 1, MaxQueueSize: 2, PageCount: 1}, front, crawler.NewFetcher(srv.Client()), idx, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := sup.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Fatalf("pages written = %d, want 1", n)
	}
}

func TestSupervisorRecordsRedirectEdge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><title>New</title><body>moved</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	front := crawler.New()
	if err := front.Enqueue([]string{srv.URL + "/old"}, false, false); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	idx, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	sup := New(Config{RequestConcurrency: 1, MaxQueueSize: 2}, front, crawler.NewFetcher(srv.Client()), idx, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := sup.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	target, ok, err := idx.RedirectTarget(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("RedirectTarget: %v", err)
	}
	if !ok {
		t.Fatalf("expected a recorded redirect edge from /old")
	}
	if target != srv.URL+"/new" {
		t.Fatalf("RedirectTarget = %q, want %q", target, srv.URL+"/new")
	}
}
