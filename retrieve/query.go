// Package retrieve is the query-time half of the engine: parsing the
// query language and ranking candidate pages against it.
package retrieve

import "strings"

// TokenType distinguishes a bare search term from a quoted phrase.
type TokenType int

const (
	TokenTerm TokenType = iota
	TokenPhrase
)

// QueryToken is one lexed piece of a query string.
type QueryToken struct {
	Type  TokenType
	Value string
}

type lexState int

const (
	stateTerm lexState = iota
	statePhrase
)

// LexQuery decomposes a query string into term and phrase tokens. A `"`
// flips between TERM and PHRASE state; closing a phrase also splits its
// contents on spaces and emits each piece as an additional term token,
// so a phrase's words still count toward the candidate set even before
// the phrase filter runs.
func LexQuery(query string) []QueryToken {
	var tokens []QueryToken
	state := stateTerm
	var token []rune

	for _, ch := range query {
		switch state {
		case stateTerm:
			if ch == ' ' || ch == '"' {
				if len(token) > 0 {
					tokens = append(tokens, QueryToken{Type: TokenTerm, Value: string(token)})
					token = nil
				}
				if ch == '"' {
					state = statePhrase
				}
				continue
			}
			token = append(token, ch)
		case statePhrase:
			if ch == '"' {
				phrase := string(token)
				tokens = append(tokens, QueryToken{Type: TokenPhrase, Value: phrase})
				for _, tk := range strings.Split(phrase, " ") {
					tokens = append(tokens, QueryToken{Type: TokenTerm, Value: tk})
				}
				token = nil
				state = stateTerm
				continue
			}
			token = append(token, ch)
		}
	}
	if len(token) > 0 {
		tokens = append(tokens, QueryToken{Type: TokenTerm, Value: string(token)})
	}
	return tokens
}

// ParsedQuery groups a token stream into the terms the result must be
// relevant to and the phrases it must contain verbatim.
type ParsedQuery struct {
	Terms   []string
	Phrases []string
}

// ParseQuery groups lexed tokens by type, preserving order of
// appearance; repeats are kept as-is.
func ParseQuery(tokens []QueryToken) ParsedQuery {
	var pq ParsedQuery
	for _, t := range tokens {
		switch t.Type {
		case TokenTerm:
			pq.Terms = append(pq.Terms, t.Value)
		case TokenPhrase:
			pq.Phrases = append(pq.Phrases, t.Value)
		}
	}
	return pq
}
