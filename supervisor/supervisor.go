// Package supervisor runs many concurrent page fetches over a shared
// crawl frontier while preserving the order pages would have been
// visited in a strictly sequential breadth-first crawl.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"crawldex/crawler"
	"crawldex/pageindex"
	"crawldex/store"
)

// Logger is the subset of structured-logging behavior the supervisor
// needs; charmbracelet/log's *log.Logger satisfies it directly.
type Logger interface {
	Info(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// Config tunes how a crawl is scheduled.
type Config struct {
	// RequestConcurrency is the number of worker goroutines fetching
	// pages in parallel.
	RequestConcurrency int
	// MaxQueueSize bounds the result queue between workers and the
	// consumer; it also bounds how far a fast worker can race ahead of
	// the consumer.
	MaxQueueSize int
	// IndexConcurrency is the number of goroutines performing the
	// CPU-bound tokenize/stem/occurrence pass on fetched pages, off the
	// consumer's critical path. Their results are sequenced back into
	// fetch order before being written to the store.
	IndexConcurrency int
	// PageCount stops the crawl once this many pages have been
	// successfully indexed. Zero means: run until the frontier drains.
	PageCount int
}

type slotResult struct {
	url    string
	result crawler.Result
	err    error
}

// indexJob is a fetched page queued for the CPU-bound indexing pass.
// seq is its position in fetch order, used to restore that order once
// indexing (which may finish out of order across workers) completes.
type indexJob struct {
	seq int
	url string
	res crawler.Result
}

// indexedJob is an indexJob after tokenizing/stemming, still carrying
// its original sequence number.
type indexedJob struct {
	seq  int
	url  string
	page pageindex.IndexedPage
}

// awaker is a repeatable one-shot broadcast: wait() returns a channel
// that closes on the next pulse(), mirroring an asyncio.Event that's
// set and immediately cleared again for the next waiter generation.
type awaker struct {
	mu sync.Mutex
	ch chan struct{}
}

func newAwaker() *awaker { return &awaker{ch: make(chan struct{})} }

func (a *awaker) wait() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ch
}

func (a *awaker) pulse() {
	a.mu.Lock()
	defer a.mu.Unlock()
	close(a.ch)
	a.ch = make(chan struct{})
}

// Supervisor schedules Config.RequestConcurrency workers and one
// consumer over a shared *crawler.Crawler frontier. Each worker reserves
// a slot in a bounded channel of channels before dequeuing its next URL;
// since slots are reserved in dequeue order and the consumer drains them
// FIFO, the consumer sees results in strict BFS order even though
// fetches themselves complete out of order.
type Supervisor struct {
	cfg     Config
	front   *crawler.Crawler
	fetcher *crawler.Fetcher
	idx     *store.Store
	logger  Logger

	awake       *awaker
	idleWorkers int32

	pagesWritten int
}

// New builds a Supervisor. logger may be nil to discard crawl logging.
func New(cfg Config, front *crawler.Crawler, fetcher *crawler.Fetcher, idx *store.Store, logger Logger) *Supervisor {
	if cfg.RequestConcurrency <= 0 {
		cfg.RequestConcurrency = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = cfg.RequestConcurrency
	}
	if cfg.IndexConcurrency <= 0 {
		cfg.IndexConcurrency = 1
	}
	return &Supervisor{cfg: cfg, front: front, fetcher: fetcher, idx: idx, logger: logger, awake: newAwaker()}
}

// Run drives the crawl to completion: either PageCount pages get
// written, or the frontier drains with every worker simultaneously
// idle. It returns the number of pages successfully indexed.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make(chan chan slotResult, s.cfg.MaxQueueSize)
	jobs := make(chan indexJob, s.cfg.MaxQueueSize)
	done := make(chan indexedJob, s.cfg.MaxQueueSize)

	g, gctx := errgroup.WithContext(ctx)
	// fetchCtx stops only the fetch workers and the consumer when the
	// frontier drains; the indexing stage keeps gctx so pages already
	// fetched are still written before Run returns.
	fetchCtx, stopFetch := context.WithCancel(gctx)
	defer stopFetch()
	for i := 0; i < s.cfg.RequestConcurrency; i++ {
		g.Go(func() error {
			s.worker(fetchCtx, slots)
			return nil
		})
	}
	g.Go(func() error {
		defer close(jobs)
		s.consume(fetchCtx, slots, jobs, stopFetch)
		return nil
	})

	var indexWG sync.WaitGroup
	for i := 0; i < s.cfg.IndexConcurrency; i++ {
		indexWG.Add(1)
		g.Go(func() error {
			defer indexWG.Done()
			s.runIndexer(gctx, jobs, done)
			return nil
		})
	}
	g.Go(func() error {
		indexWG.Wait()
		close(done)
		return nil
	})
	g.Go(func() error {
		s.order(gctx, done, cancel)
		return nil
	})

	if err := g.Wait(); err != nil {
		return s.pagesWritten, err
	}
	return s.pagesWritten, nil
}

func (s *Supervisor) worker(ctx context.Context, slots chan<- chan slotResult) {
	for {
		if ctx.Err() != nil {
			return
		}

		slot := make(chan slotResult, 1)
		select {
		case slots <- slot:
		case <-ctx.Done():
			return
		}

		url, err := s.front.Dequeue()
		if err != nil {
			atomic.AddInt32(&s.idleWorkers, 1)
			slot <- slotResult{err: crawler.ErrQueueEmpty}
			select {
			case <-s.awake.wait():
			case <-ctx.Done():
			}
			atomic.AddInt32(&s.idleWorkers, -1)
			continue
		}

		result, ferr := s.fetcher.Crawl(ctx, url)
		if ferr != nil && ctx.Err() != nil {
			// Cancelled mid-flight: make the URL visible again before
			// this worker stops.
			s.front.Reset([]string{url})
			_ = s.front.Enqueue([]string{url}, true, true)
			slot <- slotResult{url: url, err: ctx.Err()}
			return
		}
		slot <- slotResult{url: url, result: result, err: ferr}
	}
}

// consume drains fetch results in BFS order, immediately re-enqueuing
// any discovered outlinks (they don't depend on indexing), and forwards
// successfully fetched content to the indexing pipeline tagged with its
// fetch-order sequence number.
func (s *Supervisor) consume(ctx context.Context, slots chan chan slotResult, jobs chan<- indexJob, cancel context.CancelFunc) {
	seq := 0
	for {
		var slot chan slotResult
		select {
		case slot = <-slots:
		case <-ctx.Done():
			s.drainRemaining(slots)
			return
		}

		res := <-slot

		switch {
		case res.err == crawler.ErrQueueEmpty:
			if int(atomic.LoadInt32(&s.idleWorkers)) >= s.cfg.RequestConcurrency {
				cancel()
				return
			}
			continue
		case res.err != nil:
			if s.logger != nil {
				s.logger.Error("crawl failed", "url", res.url, "err", res.err)
			}
			continue
		}

		if res.result.Content != nil {
			select {
			case jobs <- indexJob{seq: seq, url: res.url, res: res.result}:
				seq++
			case <-ctx.Done():
				s.drainRemaining(slots)
				return
			}
		}

		if len(res.result.Outlinks) > 0 {
			_ = s.front.Enqueue(res.result.Outlinks, false, true)
			s.awake.pulse()
		}
	}
}

// runIndexer runs the CPU-bound tokenize/stem/occurrence pass for each
// job it receives, handing the result to the orderer unsequenced.
func (s *Supervisor) runIndexer(ctx context.Context, jobs <-chan indexJob, done chan<- indexedJob) {
	for job := range jobs {
		page := pageindex.IndexPage(pageindex.UnindexedPage{
			URL:          job.res.FinalURL,
			Content:      *job.res.Content,
			Headers:      job.res.Header,
			Links:        job.res.Outlinks,
			RequestedURL: job.url,
		})
		select {
		case done <- indexedJob{seq: job.seq, url: job.url, page: page}:
		case <-ctx.Done():
			return
		}
	}
}

// order is the ordered-completion buffer: indexed pages may arrive out
// of fetch order since indexing runs on a worker pool, so it holds each
// arrival until every earlier-sequenced page has been written, then
// writes runs of ready pages to the store in fetch order.
func (s *Supervisor) order(ctx context.Context, done <-chan indexedJob, cancel context.CancelFunc) {
	pending := make(map[int]indexedJob)
	next := 0
	for item := range done {
		pending[item.seq] = item
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if s.writeIndexed(ctx, ready) {
				cancel()
				return
			}
		}
	}
}

// writeIndexed persists one indexed page and reports whether the crawl
// has now reached its configured page count.
func (s *Supervisor) writeIndexed(ctx context.Context, item indexedJob) bool {
	ok, err := s.idx.IndexPage(ctx, item.page)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("index failed", "url", item.url, "err", err)
		}
		return false
	}
	if ok {
		s.pagesWritten++
		if s.logger != nil {
			s.logger.Info("indexed page", "url", item.url, "pages_written", s.pagesWritten)
		}
	}
	return s.cfg.PageCount > 0 && s.pagesWritten >= s.cfg.PageCount
}

// drainRemaining restores URLs for any slots the consumer never got to
// process before teardown, so they aren't silently lost.
func (s *Supervisor) drainRemaining(slots chan chan slotResult) {
	for {
		select {
		case slot := <-slots:
			res := <-slot
			if res.url != "" && res.err == nil {
				s.front.Reset([]string{res.url})
				_ = s.front.Enqueue([]string{res.url}, true, true)
			}
		default:
			return
		}
	}
}
