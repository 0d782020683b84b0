package retrieve

import (
	"context"
	"math"
	"sort"
	"strings"

	"crawldex/store"
	"crawldex/textpipeline"
)

// TitleBoost weights a page's title-stream relevance relative to its
// plaintext-stream relevance when combining the two into a final score.
const TitleBoost = 3.9

// Result is one ranked page.
type Result struct {
	PageID int64
	URL    string
	Score  float64
}

// Diagnostics carries the intermediate term-resolution step of a search,
// exposed to callers that opt in via WithDiagnostics. TermStems maps each
// lexed query term to the stem it resolved to; a term that failed to
// resolve (e.g. a stopword, or input that normalizes to nothing) maps to
// the empty string rather than being omitted.
type Diagnostics struct {
	TermStems map[string]string
}

type searchOptions struct {
	diagnostics bool
}

// SearchOption configures optional Search behavior.
type SearchOption func(*searchOptions)

// WithDiagnostics requests that Search populate its Diagnostics return
// value with the query's term→stem resolution.
func WithDiagnostics() SearchOption {
	return func(o *searchOptions) { o.diagnostics = true }
}

// Engine answers queries against an index store.
type Engine struct {
	idx *store.Store
}

// NewEngine builds a retrieval engine over idx.
func NewEngine(idx *store.Store) *Engine {
	return &Engine{idx: idx}
}

// Search runs the full §4.6 pipeline: lex and parse the query, resolve
// terms to stems, build the candidate set, apply the phrase filter, and
// rank survivors by combined plaintext+title TF-IDF cosine similarity.
func (e *Engine) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, *Diagnostics, error) {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}

	parsed := ParseQuery(LexQuery(query))

	var stems []string
	seen := make(map[string]bool)
	var diag *Diagnostics
	if o.diagnostics {
		diag = &Diagnostics{TermStems: make(map[string]string, len(parsed.Terms))}
	}
	for _, term := range parsed.Terms {
		stem := textpipeline.DefaultTransformWord(term)
		if diag != nil {
			diag.TermStems[term] = stem
		}
		if stem == "" || seen[stem] {
			continue
		}
		seen[stem] = true
		stems = append(stems, stem)
	}
	if len(stems) == 0 {
		return nil, diag, nil
	}

	wordIDByStem, err := e.idx.WordIDs(ctx, stems)
	if err != nil {
		return nil, diag, err
	}

	var wordIDs []int64
	for _, stem := range stems {
		if id, ok := wordIDByStem[stem]; ok {
			wordIDs = append(wordIDs, id)
		}
	}
	if len(wordIDs) == 0 {
		return nil, diag, nil
	}

	candidates, err := e.idx.CandidatePages(ctx, wordIDs)
	if err != nil {
		return nil, diag, err
	}
	if len(candidates) == 0 {
		return nil, diag, nil
	}

	contents, err := e.idx.PageContents(ctx, candidates)
	if err != nil {
		return nil, diag, err
	}

	if len(parsed.Phrases) > 0 {
		filtered := candidates[:0]
		for _, pid := range candidates {
			if containsAllPhrases(contents[pid], parsed.Phrases) {
				filtered = append(filtered, pid)
			}
		}
		candidates = filtered
		if len(candidates) == 0 {
			return nil, diag, nil
		}
	}

	n, err := e.idx.CountPages(ctx)
	if err != nil {
		return nil, diag, err
	}

	plaintextScores, err := e.streamScores(ctx, candidates, wordIDs, n, store.StreamPlaintext)
	if err != nil {
		return nil, diag, err
	}
	titleScores, err := e.streamScores(ctx, candidates, wordIDs, n, store.StreamTitle)
	if err != nil {
		return nil, diag, err
	}

	results := make([]Result, len(candidates))
	for i, pid := range candidates {
		results[i] = Result{
			PageID: pid,
			URL:    contents[pid].URL,
			Score:  plaintextScores[pid] + TitleBoost*titleScores[pid],
		}
	}

	// candidates arrive in ascending page-id order, so a stable sort on
	// score gives a deterministic tie-break on insertion order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, diag, nil
}

func containsAllPhrases(c store.PageContent, phrases []string) bool {
	for _, p := range phrases {
		if !strings.Contains(c.Plaintext, p) && !strings.Contains(c.Title, p) {
			return false
		}
	}
	return true
}

// streamScores computes, for one stream, the cosine similarity between
// the all-ones query vector and each candidate page's TF-IDF vector
// restricted to the query's word dimensions.
func (e *Engine) streamScores(ctx context.Context, pageIDs, wordIDs []int64, n int, stream store.Stream) (map[int64]float64, error) {
	df, err := e.idx.DocFrequency(ctx, wordIDs, stream)
	if err != nil {
		return nil, err
	}

	idf := make(map[int64]float64, len(wordIDs))
	for _, w := range wordIDs {
		d := df[w]
		if d <= 0 {
			d = n
		}
		if d <= 0 {
			idf[w] = 0
			continue
		}
		idf[w] = math.Log2(float64(n) / float64(d))
	}

	tf, err := e.idx.TFMany(ctx, pageIDs, wordIDs, stream)
	if err != nil {
		return nil, err
	}

	queryNorm := math.Sqrt(float64(len(wordIDs)))
	scores := make(map[int64]float64, len(pageIDs))
	if queryNorm <= 0 {
		return scores, nil
	}
	for _, pid := range pageIDs {
		row := tf[pid]
		var dot, sumSq float64
		for _, w := range wordIDs {
			v := row[w] * idf[w]
			dot += v // every query-vector component is 1
			sumSq += v * v
		}
		pageNorm := math.Sqrt(sumSq)
		if pageNorm <= 0 {
			scores[pid] = 0
			continue
		}
		scores[pid] = dot / (queryNorm * pageNorm)
	}
	return scores, nil
}
