// Package store is the index store: a single-writer SQLite-backed
// repository for URLs, pages, words, and their per-stream occurrence
// data, plus the read queries the retrieval engine and summary renderer
// run against it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"crawldex/pageindex"
)

// Stream identifies which of a page's two text streams a query targets.
type Stream int

const (
	StreamPlaintext Stream = iota
	StreamTitle
)

func (s Stream) table() string {
	if s == StreamTitle {
		return "word_positions_title"
	}
	return "word_positions"
}

// Store is the index store. Writes are serialized through mu; reads may
// run concurrently with each other but never with a write, matching the
// single-writer contract §4.3 describes.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (if needed) and opens the SQLite database at path,
// applying the schema idempotently. It keeps a single physical
// connection; use OpenWithConcurrency to allow concurrent readers.
func Open(path string) (*Store, error) {
	return OpenWithConcurrency(path, 1)
}

// OpenWithConcurrency is Open with maxOpenConns connections in the pool.
// Writes are still serialized through mu (and, underneath, by SQLite's
// single-writer contract) regardless of pool size; a larger pool only
// lets reads that don't need mu run across more physical connections.
func OpenWithConcurrency(path string, maxOpenConns int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, backendErr("create data directory", err)
		}
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 1
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, backendErr("open database", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, backendErr("apply schema", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return backendErr("close database", s.db.Close())
}

func getOrCreateURL(ctx context.Context, tx *sql.Tx, url string) (int64, error) {
	if len(url) > 2047 {
		return 0, &ValidationError{Field: "url.content", Err: fmt.Errorf("length %d exceeds 2047", len(url))}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO url(content) VALUES(?) ON CONFLICT(content) DO NOTHING`, url); err != nil {
		return 0, backendErr("insert url", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM url WHERE content = ?`, url).Scan(&id); err != nil {
		return 0, backendErr("select url id", err)
	}
	return id, nil
}

func getOrCreateWord(ctx context.Context, tx *sql.Tx, content string) (int64, error) {
	if len(content) > 255 {
		return 0, &ValidationError{Field: "word.content", Err: fmt.Errorf("length %d exceeds 255", len(content))}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO word(content) VALUES(?) ON CONFLICT(content) DO NOTHING`, content); err != nil {
		return 0, backendErr("insert word", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM word WHERE content = ?`, content).Scan(&id); err != nil {
		return 0, backendErr("select word id", err)
	}
	return id, nil
}

// GetOrCreateURLs assigns (or looks up) IDs for a batch of URLs,
// preserving input order in the returned slice.
func (s *Store) GetOrCreateURLs(ctx context.Context, urls []string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, backendErr("begin transaction", err)
	}
	defer tx.Rollback()

	ids := make([]int64, len(urls))
	for i, u := range urls {
		id, err := getOrCreateURL(ctx, tx, u)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	if err := tx.Commit(); err != nil {
		return nil, backendErr("commit", err)
	}
	return ids, nil
}

// GetOrCreateWords assigns (or looks up) IDs for a batch of stems,
// preserving input order.
func (s *Store) GetOrCreateWords(ctx context.Context, stems []string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, backendErr("begin transaction", err)
	}
	defer tx.Rollback()

	ids := make([]int64, len(stems))
	for i, w := range stems {
		id, err := getOrCreateWord(ctx, tx, w)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	if err := tx.Commit(); err != nil {
		return nil, backendErr("commit", err)
	}
	return ids, nil
}

func validateOccurrence(occ pageindex.WordOccurrences) error {
	if occ.Frequency != len(occ.Positions) || occ.Frequency < 1 {
		return &ValidationError{Field: "word_positions.frequency", Err: fmt.Errorf("frequency %d does not match %d positions", occ.Frequency, len(occ.Positions))}
	}
	for i, p := range occ.Positions {
		if p < 0 {
			return &ValidationError{Field: "word_positions.positions", Err: fmt.Errorf("negative position %d", p)}
		}
		if i > 0 && occ.Positions[i-1] >= p {
			return &ValidationError{Field: "word_positions.positions", Err: fmt.Errorf("positions not strictly ascending at index %d", i)}
		}
	}
	if occ.TFNormalized < 0 || occ.TFNormalized > 1 {
		return &ValidationError{Field: "word_positions.tf_normalized", Err: fmt.Errorf("tf_normalized %f out of [0,1]", occ.TFNormalized)}
	}
	return nil
}

func positionsToString(positions []int) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func insertPositions(ctx context.Context, tx *sql.Tx, table string, pageID, wordID int64, occ pageindex.WordOccurrences) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO `+table+`(page_id, word_id, positions, frequency, tf_normalized) VALUES(?, ?, ?, ?, ?)`,
		pageID, wordID, positionsToString(occ.Positions), occ.Frequency, occ.TFNormalized)
	if err != nil {
		return backendErr("insert "+table, err)
	}
	return nil
}

// IndexPage applies the §4.3 index_page contract: a transactional upsert
// that rejects re-indexing with a mod_time that doesn't strictly advance
// past what's stored, and otherwise fully replaces the page's row, its
// outlink set, and both streams' word-occurrence rows.
func (s *Store) IndexPage(ctx context.Context, page pageindex.IndexedPage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, backendErr("begin transaction", err)
	}
	defer tx.Rollback()

	pageID, err := getOrCreateURL(ctx, tx, page.URL)
	if err != nil {
		return false, err
	}

	var storedModTime sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT mod_time FROM page WHERE id = ?`, pageID).Scan(&storedModTime)
	if err != nil && err != sql.ErrNoRows {
		return false, backendErr("select stored mod_time", err)
	}
	incoming := page.ModTime.Unix()
	if storedModTime.Valid && incoming <= storedModTime.Int64 {
		return false, nil
	}

	for _, link := range page.Links {
		if _, err := getOrCreateURL(ctx, tx, link); err != nil {
			return false, err
		}
	}

	if page.RequestedURL != "" && page.RequestedURL != page.URL {
		requestedID, err := getOrCreateURL(ctx, tx, page.RequestedURL)
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE url SET redirect = ? WHERE id = ?`, pageID, requestedID); err != nil {
			return false, backendErr("set redirect", err)
		}
	}

	outlinksJSON, err := json.Marshal(page.Links)
	if err != nil {
		return false, backendErr("marshal outlinks", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO page(id, mod_time, size, text, plaintext, title, outlinks) VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	mod_time = excluded.mod_time,
	size = excluded.size,
	text = excluded.text,
	plaintext = excluded.plaintext,
	title = excluded.title,
	outlinks = excluded.outlinks`,
		pageID, incoming, page.Size, page.Text, page.Plaintext, page.Title, string(outlinksJSON))
	if err != nil {
		return false, backendErr("upsert page", err)
	}

	for _, table := range []string{"word_positions", "word_positions_title", "page_word"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE page_id = ?`, pageID); err != nil {
			return false, backendErr("clear "+table, err)
		}
	}

	stemSet := make(map[string]struct{}, len(page.WordOccurrences)+len(page.WordOccurrencesTitle))
	for stem, occ := range page.WordOccurrences {
		if err := validateOccurrence(occ); err != nil {
			return false, err
		}
		stemSet[stem] = struct{}{}
	}
	for stem, occ := range page.WordOccurrencesTitle {
		if err := validateOccurrence(occ); err != nil {
			return false, err
		}
		stemSet[stem] = struct{}{}
	}

	stems := make([]string, 0, len(stemSet))
	for stem := range stemSet {
		stems = append(stems, stem)
	}
	sort.Strings(stems) // deterministic write order, independent of map iteration

	for _, stem := range stems {
		wordID, err := getOrCreateWord(ctx, tx, stem)
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO page_word(page_id, word_id) VALUES(?, ?)`, pageID, wordID); err != nil {
			return false, backendErr("insert page_word", err)
		}
		if occ, ok := page.WordOccurrences[stem]; ok {
			if err := insertPositions(ctx, tx, "word_positions", pageID, wordID, occ); err != nil {
				return false, err
			}
		}
		if occ, ok := page.WordOccurrencesTitle[stem]; ok {
			if err := insertPositions(ctx, tx, "word_positions_title", pageID, wordID, occ); err != nil {
				return false, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, backendErr("commit", err)
	}
	return true, nil
}

// RedirectTarget returns the final URL that requestedURL's fetch redirected
// to, and whether a redirect edge was recorded for it at all. A URL that
// was never indexed, or was indexed without a redirect, reports ("", false).
func (s *Store) RedirectTarget(ctx context.Context, requestedURL string) (string, bool, error) {
	var target sql.NullString
	err := s.db.QueryRowContext(ctx, `
SELECT target.content
FROM url
JOIN url AS target ON target.id = url.redirect
WHERE url.content = ?`, requestedURL).Scan(&target)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, backendErr("redirect target", err)
	}
	return target.String, target.Valid, nil
}

// CountPages returns the total number of indexed pages.
func (s *Store) CountPages(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM page`).Scan(&n); err != nil {
		return 0, backendErr("count pages", err)
	}
	return n, nil
}

// PageRow is a page as read back for summary rendering.
type PageRow struct {
	ID           int64
	URL          string
	Title        string
	ModTime      sql.NullInt64
	TextLen      int
	PlaintextLen int
	Outlinks     []string
}

// IteratePages returns up to limit pages ordered by id; a negative limit
// means all pages.
func (s *Store) IteratePages(ctx context.Context, limit int) ([]PageRow, error) {
	if limit < 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT page.id, url.content, page.title, page.mod_time, length(page.text), length(page.plaintext), page.outlinks
FROM page JOIN url ON url.id = page.id
ORDER BY page.id
LIMIT ?`, limit)
	if err != nil {
		return nil, backendErr("iterate pages", err)
	}
	defer rows.Close()

	var out []PageRow
	for rows.Next() {
		var r PageRow
		var outlinksJSON string
		if err := rows.Scan(&r.ID, &r.URL, &r.Title, &r.ModTime, &r.TextLen, &r.PlaintextLen, &outlinksJSON); err != nil {
			return nil, backendErr("scan page row", err)
		}
		if err := json.Unmarshal([]byte(outlinksJSON), &r.Outlinks); err != nil {
			return nil, backendErr("unmarshal outlinks", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("iterate pages", err)
	}
	return out, nil
}

// KeywordFreq is one keyword and its combined (plaintext + title)
// occurrence frequency on a page.
type KeywordFreq struct {
	Content   string
	Frequency int
}

// PageKeywords returns up to limit keywords for a page, ordered by
// descending combined frequency then ascending content, matching §4.7.
// A negative limit returns all keywords.
func (s *Store) PageKeywords(ctx context.Context, pageID int64, limit int) ([]KeywordFreq, error) {
	if limit < 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT word.content, COALESCE(wp.frequency, 0) + COALESCE(wpt.frequency, 0) AS combined_frequency
FROM page_word
JOIN word ON word.id = page_word.word_id
LEFT JOIN word_positions wp ON wp.page_id = page_word.page_id AND wp.word_id = page_word.word_id
LEFT JOIN word_positions_title wpt ON wpt.page_id = page_word.page_id AND wpt.word_id = page_word.word_id
WHERE page_word.page_id = ?
ORDER BY combined_frequency DESC, word.content ASC
LIMIT ?`, pageID, limit)
	if err != nil {
		return nil, backendErr("page keywords", err)
	}
	defer rows.Close()

	var out []KeywordFreq
	for rows.Next() {
		var k KeywordFreq
		if err := rows.Scan(&k.Content, &k.Frequency); err != nil {
			return nil, backendErr("scan keyword", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("page keywords", err)
	}
	return out, nil
}

// WordIDs looks up existing word IDs for a set of stems. Stems with no
// indexed word are simply absent from the result map.
func (s *Store) WordIDs(ctx context.Context, stems []string) (map[string]int64, error) {
	out := make(map[string]int64, len(stems))
	if len(stems) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(stems))
	args := make([]any, len(stems))
	for i, s := range stems {
		placeholders[i] = "?"
		args[i] = s
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, content FROM word WHERE content IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, backendErr("word ids", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, backendErr("scan word id", err)
		}
		out[content] = id
	}
	return out, rows.Err()
}

// CandidatePages returns the IDs of pages containing at least one of the
// given word IDs, in either stream.
func (s *Store) CandidatePages(ctx context.Context, wordIDs []int64) ([]int64, error) {
	if len(wordIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(wordIDs))
	args := make([]any, len(wordIDs))
	for i, id := range wordIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT page_id FROM page_word WHERE word_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY page_id`, args...)
	if err != nil {
		return nil, backendErr("candidate pages", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, backendErr("scan candidate page", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PageContent is the subset of a page's fields the phrase filter checks.
type PageContent struct {
	URL       string
	Title     string
	Plaintext string
}

// PageContents fetches title/plaintext for a set of pages, keyed by id.
func (s *Store) PageContents(ctx context.Context, pageIDs []int64) (map[int64]PageContent, error) {
	out := make(map[int64]PageContent, len(pageIDs))
	if len(pageIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(pageIDs))
	args := make([]any, len(pageIDs))
	for i, id := range pageIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT page.id, url.content, page.title, page.plaintext
FROM page JOIN url ON url.id = page.id
WHERE page.id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, backendErr("page contents", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var c PageContent
		if err := rows.Scan(&id, &c.URL, &c.Title, &c.Plaintext); err != nil {
			return nil, backendErr("scan page content", err)
		}
		out[id] = c
	}
	return out, rows.Err()
}

// DocFrequency returns, for each word ID, the number of pages containing
// it in the given stream. Word IDs with no occurrences are omitted (the
// caller is expected to treat an absent entry as zero).
func (s *Store) DocFrequency(ctx context.Context, wordIDs []int64, stream Stream) (map[int64]int, error) {
	out := make(map[int64]int, len(wordIDs))
	if len(wordIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(wordIDs))
	args := make([]any, len(wordIDs))
	for i, id := range wordIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT word_id, count(*) FROM `+stream.table()+` WHERE word_id IN (`+strings.Join(placeholders, ",")+`) GROUP BY word_id`, args...)
	if err != nil {
		return nil, backendErr("doc frequency", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, backendErr("scan doc frequency", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

// TFMany returns tf_normalized for every (page, word) pair present in
// the given stream, restricted to the given pages and words.
func (s *Store) TFMany(ctx context.Context, pageIDs, wordIDs []int64, stream Stream) (map[int64]map[int64]float64, error) {
	out := make(map[int64]map[int64]float64, len(pageIDs))
	if len(pageIDs) == 0 || len(wordIDs) == 0 {
		return out, nil
	}
	pagePlaceholders := make([]string, len(pageIDs))
	args := make([]any, 0, len(pageIDs)+len(wordIDs))
	for i, id := range pageIDs {
		pagePlaceholders[i] = "?"
		args = append(args, id)
	}
	wordPlaceholders := make([]string, len(wordIDs))
	for i, id := range wordIDs {
		wordPlaceholders[i] = "?"
		args = append(args, id)
	}
	query := `SELECT page_id, word_id, tf_normalized FROM ` + stream.table() +
		` WHERE page_id IN (` + strings.Join(pagePlaceholders, ",") + `) AND word_id IN (` + strings.Join(wordPlaceholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, backendErr("tf many", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pageID, wordID int64
		var tf float64
		if err := rows.Scan(&pageID, &wordID, &tf); err != nil {
			return nil, backendErr("scan tf", err)
		}
		if out[pageID] == nil {
			out[pageID] = make(map[int64]float64, len(wordIDs))
		}
		out[pageID][wordID] = tf
	}
	return out, rows.Err()
}
