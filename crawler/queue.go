// Package crawler holds the crawl frontier (queue + queued set) and
// the single-page fetch operation. Scheduling many of these fetches
// concurrently while preserving BFS order is the supervisor package's
// job, not this one's.
package crawler

import (
	"net/url"
	"sync"
)

// SupportedSchemes is the set of URL schemes this crawler will fetch.
var SupportedSchemes = map[string]bool{"http": true, "https": true}

// Crawler holds the FIFO frontier of a single crawl session: an ordered
// queue of URLs waiting to be fetched, and the set of URLs that have
// ever been enqueued (so a URL is only ever queued once, unless reset).
type Crawler struct {
	mu     sync.Mutex
	queue  []string
	queued map[string]struct{}
}

// New creates an empty crawl frontier.
func New() *Crawler {
	return &Crawler{queued: make(map[string]struct{})}
}

// Enqueue adds urls to the frontier. It validates every URL's scheme
// before changing any state (so a single bad URL enqueues nothing).
// With before set, urls are prepended in their given order, used to
// restore work that was cancelled mid-flight. With ignoreQueued unset,
// enqueuing any URL that's already queued fails with ErrAlreadyQueued
// and nothing is enqueued.
func (c *Crawler) Enqueue(urls []string, before, ignoreQueued bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range urls {
		parsed, err := url.Parse(u)
		if err != nil || !SupportedSchemes[parsed.Scheme] {
			return &ErrInvalidScheme{URL: u}
		}
	}

	var duplicates []string
	dup := make(map[string]bool, len(urls))
	for _, u := range urls {
		if _, ok := c.queued[u]; ok {
			duplicates = append(duplicates, u)
			dup[u] = true
		}
	}
	if len(duplicates) > 0 && !ignoreQueued {
		return &ErrAlreadyQueued{URLs: duplicates}
	}

	for _, u := range urls {
		c.queued[u] = struct{}{}
	}

	fresh := make([]string, 0, len(urls))
	for _, u := range urls {
		if !dup[u] {
			fresh = append(fresh, u)
		}
	}
	if before {
		c.queue = append(fresh, c.queue...)
	} else {
		c.queue = append(c.queue, fresh...)
	}
	return nil
}

// Reset removes urls from the queued set so they can be enqueued again.
func (c *Crawler) Reset(urls []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range urls {
		delete(c.queued, u)
	}
}

// Dequeue pops the front of the frontier. It does not remove the URL
// from the queued set: "already enqueued" survives dequeue, so the same
// URL is never queued twice in one session.
func (c *Crawler) Dequeue() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return "", ErrQueueEmpty
	}
	u := c.queue[0]
	c.queue = c.queue[1:]
	return u, nil
}

// Queue returns a snapshot of the URLs still waiting to be fetched.
func (c *Crawler) Queue() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.queue))
	copy(out, c.queue)
	return out
}

// Queued returns the set of URLs that have ever been enqueued.
func (c *Crawler) Queued() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]struct{}, len(c.queued))
	for u := range c.queued {
		out[u] = struct{}{}
	}
	return out
}
