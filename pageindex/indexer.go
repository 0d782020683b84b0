// Package pageindex turns a freshly fetched page (raw HTML plus headers)
// into the per-stream word-occurrence data the store indexes.
package pageindex

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"crawldex/textpipeline"
)

// UnindexedPage is everything known about a page right after it was
// fetched, before any text-pipeline processing has run.
type UnindexedPage struct {
	URL     string
	Content string
	Headers http.Header
	Links   []string
	// RequestedURL is the URL as dequeued from the frontier, before the
	// fetch followed any redirect. Empty when the caller didn't track a
	// requested URL separately from URL.
	RequestedURL string
}

// WordOccurrences records where a stem appeared in one stream (plaintext
// or title) of a page, along with its raw and normalized frequency.
type WordOccurrences struct {
	Positions    []int
	Frequency    int
	TFNormalized float64
}

// IndexedPage is the fully processed form of a page, ready to be written
// to the store.
type IndexedPage struct {
	URL                  string
	ModTime              time.Time
	Text                 string
	Plaintext            string
	Size                 int
	Title                string
	Links                []string
	WordOccurrences      map[string]WordOccurrences
	WordOccurrencesTitle map[string]WordOccurrences
	// RequestedURL is carried through from UnindexedPage so the store can
	// record a redirect edge when it differs from URL.
	RequestedURL string
}

// IndexPage runs the text pipeline over a page's title and plaintext
// streams, computing positions, raw frequencies, and per-stream
// normalized term frequency (occurrences / most frequent stem in that
// stream).
func IndexPage(page UnindexedPage) IndexedPage {
	modTime := parseModTime(page.Headers)

	doc, title, plaintext := splitTitleAndText(page.Content)
	_ = doc

	size, err := strconv.Atoi(page.Headers.Get("Content-Length"))
	if err != nil || size < 0 {
		size = utf8.RuneCountInString(plaintext)
	}

	return IndexedPage{
		URL:                  page.URL,
		ModTime:              modTime,
		Text:                 page.Content,
		Plaintext:            plaintext,
		Size:                 size,
		Title:                title,
		Links:                page.Links,
		WordOccurrences:      occurrences(plaintext),
		WordOccurrencesTitle: occurrences(title),
		RequestedURL:         page.RequestedURL,
	}
}

func parseModTime(headers http.Header) time.Time {
	raw := headers.Get("Last-Modified")
	if raw == "" {
		raw = headers.Get("Date")
	}
	if raw != "" {
		if t, err := http.ParseTime(raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// splitTitleAndText parses the page HTML, extracts the title tag's inner
// markup verbatim (tags and all, the way a browser title bar would show
// them), removes the title node, and renders the remaining text nodes
// joined by newlines as the plaintext stream.
func splitTitleAndText(content string) (*html.Node, string, string) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, "", content
	}

	var titleNode *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if titleNode != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			titleNode = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	title := ""
	if titleNode != nil {
		title = innerHTML(titleNode)
		titleNode.Parent.RemoveChild(titleNode)
	}

	return doc, title, getText(doc)
}

func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			// <title> is parsed as RCDATA, so markup inside it arrives as
			// literal text; write it unescaped to keep it verbatim.
			buf.WriteString(c.Data)
			continue
		}
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// getText walks the tree in document order, joining text node data with
// newlines, mirroring a BeautifulSoup get_text("\n") call.
func getText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, "\n")
}

func occurrences(text string) map[string]WordOccurrences {
	positions := make(map[string][]int)
	for _, s := range textpipeline.DefaultTransform(text) {
		positions[s.Stem] = append(positions[s.Stem], s.Position)
	}

	maxFreq := 0
	for _, p := range positions {
		if len(p) > maxFreq {
			maxFreq = len(p)
		}
	}

	out := make(map[string]WordOccurrences, len(positions))
	for stem, pos := range positions {
		freq := len(pos)
		tf := 0.0
		if maxFreq > 0 {
			tf = float64(freq) / float64(maxFreq)
		}
		out[stem] = WordOccurrences{Positions: pos, Frequency: freq, TFNormalized: tf}
	}
	return out
}
