package crawler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

// SupportedContentTypes are the MIME types this crawler will parse for
// links and text; anything else is fetched but not followed further.
var SupportedContentTypes = map[string]bool{
	"application/xhtml+xml": true,
	"application/xml":       true,
	"text/html":             true,
}

// Result is what a single crawl of a URL produces.
type Result struct {
	FinalURL   string
	StatusCode int
	Header     http.Header
	// Content is nil when the response was not ok or its content type
	// isn't one we parse; Outlinks is empty in that case too.
	Content  *string
	Outlinks []string
}

var metaCharsetRegexp = regexp.MustCompile(`(?is)<meta[^>]+charset\s*=\s*["']?([^"'\s/>]+)`)
var metaHTTPEquivRegexp = regexp.MustCompile(`(?is)<meta[^>]+http-equiv\s*=\s*["']content-type["'][^>]*content\s*=\s*["'][^"']*charset=([^"'\s;]+)`)

// Fetcher performs the actual HTTP fetch, decode, and link-extraction
// step of a crawl, pacing and retrying requests per host so one slow or
// flaky host can't starve the others or be hammered by the supervisor's
// worker pool.
type Fetcher struct {
	Client *http.Client
	// MaxRetries bounds retry attempts after a transport error or 5xx
	// response, beyond the first attempt.
	MaxRetries int
	// BaseBackoff is the delay before the first retry; it doubles on
	// each subsequent attempt.
	BaseBackoff time.Duration
	// RequestInterval is the minimum spacing between requests to the
	// same host.
	RequestInterval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher builds a Fetcher around client, or http.DefaultClient if
// nil, with default retry and per-host pacing.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		Client:          client,
		MaxRetries:      2,
		BaseBackoff:     200 * time.Millisecond,
		RequestInterval: 200 * time.Millisecond,
	}
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limiters == nil {
		f.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(f.RequestInterval), 1)
		f.limiters[host] = l
	}
	return l
}

// Crawl fetches url, decodes its body, and extracts outbound links.
// Transport errors and 5xx responses are retried, with per-host pacing
// and exponential backoff, up to MaxRetries times. Any error surviving
// that — transport, status parsing, decode failure — is wrapped in a
// *CrawlError.
func (f *Fetcher) Crawl(ctx context.Context, rawURL string) (Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, &CrawlError{URL: rawURL, Err: err}
	}
	limiter := f.limiterFor(parsed.Host)

	var resp *http.Response
	var body []byte
	backoff := f.BaseBackoff

	for attempt := 0; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return Result{}, &CrawlError{URL: rawURL, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return Result{}, &CrawlError{URL: rawURL, Err: err}
		}

		resp, err = f.Client.Do(req)
		if err != nil {
			if attempt >= f.MaxRetries {
				return Result{}, &CrawlError{URL: rawURL, Err: err}
			}
			if !sleepBackoff(ctx, backoff) {
				return Result{}, &CrawlError{URL: rawURL, Err: ctx.Err()}
			}
			backoff *= 2
			continue
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		resp.Body.Close()
		if err != nil {
			return Result{}, &CrawlError{URL: rawURL, Err: err}
		}

		if resp.StatusCode >= 500 && attempt < f.MaxRetries {
			if !sleepBackoff(ctx, backoff) {
				return Result{}, &CrawlError{URL: rawURL, Err: ctx.Err()}
			}
			backoff *= 2
			continue
		}
		break
	}

	finalURL := resp.Request.URL.String()
	result := Result{FinalURL: finalURL, StatusCode: resp.StatusCode, Header: resp.Header}

	contentType := mediaType(resp.Header.Get("Content-Type"))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !SupportedContentTypes[contentType] {
		return result, nil
	}

	text, err := decodeBody(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return Result{}, &CrawlError{URL: rawURL, Err: err}
	}
	result.Content = &text

	base, err := url.Parse(finalURL)
	if err != nil {
		return Result{}, &CrawlError{URL: rawURL, Err: err}
	}
	outlinks, err := extractLinks(text, base)
	if err != nil {
		return Result{}, &CrawlError{URL: rawURL, Err: err}
	}
	result.Outlinks = outlinks

	return result, nil
}

// sleepBackoff waits for d or ctx cancellation, whichever comes first,
// reporting whether the wait completed normally.
func sleepBackoff(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func mediaType(contentType string) string {
	t, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return t
}

// decodeBody implements the three-tier charset resolution from §4.4: an
// explicit charset parameter on Content-Type, else a <meta charset> or
// <meta http-equiv="Content-Type"> tag within the first KiB, else UTF-8
// with invalid sequences replaced.
func decodeBody(body []byte, contentType string) (string, error) {
	charset := charsetFromContentType(contentType)
	if charset == "" {
		charset = charsetFromMeta(body)
	}
	if charset == "" {
		return strings.ToValidUTF8(string(body), "�"), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return strings.ToValidUTF8(string(body), "�"), nil
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return strings.ToValidUTF8(string(body), "�"), nil
	}
	return string(decoded), nil
}

func charsetFromContentType(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func charsetFromMeta(body []byte) string {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	if m := metaCharsetRegexp.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	if m := metaHTTPEquivRegexp.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	return ""
}

func extractLinks(content string, base *url.URL) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href, err := url.Parse(attr.Val)
				if err != nil {
					continue
				}
				resolved := base.ResolveReference(href)
				if SupportedSchemes[resolved.Scheme] {
					out = append(out, resolved.String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}
