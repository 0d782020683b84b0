// Package summary renders a human-readable dump of an index store, one
// entry per page: title, URL, modification time, sizes, top keywords,
// and outlinks.
package summary

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"crawldex/store"
)

const separator = "----------------------------------------------------------------------------------------------\n"

// Options controls how many pages, keywords per page, and links per page
// are rendered. A negative value means unlimited.
type Options struct {
	Count        int
	KeywordCount int
	LinkCount    int
}

// Write renders a summary of idx to w using opts.
func Write(ctx context.Context, w io.Writer, idx *store.Store, opts Options) error {
	pages, err := idx.IteratePages(ctx, opts.Count)
	if err != nil {
		return err
	}

	for i, page := range pages {
		if i > 0 {
			if _, err := io.WriteString(w, separator); err != nil {
				return err
			}
		}
		if err := writePage(ctx, w, idx, page, opts); err != nil {
			return err
		}
	}
	return nil
}

// String renders the same summary as Write, returning it as a string.
func String(ctx context.Context, idx *store.Store, opts Options) (string, error) {
	var sb strings.Builder
	if err := Write(ctx, &sb, idx, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writePage(ctx context.Context, w io.Writer, idx *store.Store, page store.PageRow, opts Options) error {
	title := page.Title
	if title == "" {
		title = "(no title)"
	}
	if _, err := fmt.Fprintf(w, "%s\n%s\n", title, page.URL); err != nil {
		return err
	}

	if page.ModTime.Valid {
		modTime := time.Unix(page.ModTime.Int64, 0).UTC()
		if _, err := fmt.Fprintf(w, "%s, %d, %d\n", modTime.Format(time.RFC3339), page.PlaintextLen, page.TextLen); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, "(no last modification time), %d\n", page.TextLen); err != nil {
			return err
		}
	}

	keywords, err := idx.PageKeywords(ctx, page.ID, opts.KeywordCount)
	if err != nil {
		return err
	}
	parts := make([]string, len(keywords))
	for i, k := range keywords {
		parts[i] = fmt.Sprintf("%s %d", k.Content, k.Frequency)
	}
	if _, err := fmt.Fprintf(w, "%s\n", strings.Join(parts, "; ")); err != nil {
		return err
	}

	links := append([]string(nil), page.Outlinks...)
	sort.Strings(links)
	if opts.LinkCount >= 0 && len(links) > opts.LinkCount {
		links = links[:opts.LinkCount]
	}
	for _, link := range links {
		if _, err := fmt.Fprintf(w, "%s\n", link); err != nil {
			return err
		}
	}
	return nil
}
