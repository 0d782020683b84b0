package textpipeline

import "sync"

// This is the classical Porter stemmer (Porter, 1980), including the
// scientific-prefix stripping step some implementations skip. Ported
// rune-for-rune from the reference algorithm this index was built
// against, not from one of the many approximate ports floating around.

var vowelSet = map[rune]bool{'a': true, 'e': true, 'i': true, 'o': true, 'u': true, 'y': true}

var notSemivowels = map[string]bool{"ay": true, "ey": true, "iy": true, "oy": true, "uy": true}

var wxySet = map[rune]bool{'w': true, 'x': true, 'y': true}

var lszSet = map[rune]bool{'l': true, 's': true, 'z': true}

var prefixes = []string{"kilo", "micro", "milli", "intra", "ultra", "mega", "nano", "pico", "pseudo"}

type suffixRule struct {
	find    string
	replace string
}

var step2Rules = []suffixRule{
	{"ational", "ate"},
	{"tional", "tion"},
	{"enci", "ence"},
	{"anci", "ance"},
	{"izer", "ize"},
	{"iser", "ize"},
	{"abli", "able"},
	{"alli", "al"},
	{"entli", "ent"},
	{"eli", "e"},
	{"ousli", "ous"},
	{"ization", "ize"},
	{"isation", "ize"},
	{"ation", "ate"},
	{"ator", "ate"},
	{"alism", "al"},
	{"iveness", "ive"},
	{"fulness", "ful"},
	{"ousness", "ous"},
	{"aliti", "al"},
	{"iviti", "ive"},
	{"biliti", "ble"},
}

var step3Rules = []suffixRule{
	{"icate", "ic"},
	{"ative", ""},
	{"alize", "al"},
	{"alise", "al"},
	{"iciti", "ic"},
	{"ical", "ic"},
	{"ful", ""},
	{"ness", ""},
}

var step4Suffixes = []string{
	"al", "ance", "ence", "er", "ic", "able", "ible", "ant", "ement",
	"ment", "ent", "sion", "tion", "ou", "ism", "ate", "iti", "ous",
	"ive", "ize", "ise",
}

func isVowelSegment(seg []rune) bool {
	if len(seg) != 2 {
		return false
	}
	return vowelSet[seg[1]] && !notSemivowels[string(seg)]
}

func containVowels(word []rune) bool {
	ext := make([]rune, 0, len(word)+1)
	ext = append(ext, 'a')
	ext = append(ext, word...)
	for i := 0; i+1 < len(ext); i++ {
		if isVowelSegment(ext[i : i+2]) {
			return true
		}
	}
	return false
}

func measureVowelSegments(word []rune) int {
	ext := make([]rune, 0, len(word)+1)
	ext = append(ext, 'a')
	ext = append(ext, word...)

	segs := make([]bool, 0, len(ext)-1)
	for i := 0; i+1 < len(ext); i++ {
		segs = append(segs, isVowelSegment(ext[i:i+2]))
	}

	m := 0
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] && !segs[i+1] {
			m++
		}
	}
	return m
}

func cvc(word []rune) bool {
	n := len(word)
	if n < 3 {
		return false
	}
	if wxySet[word[n-1]] {
		return false
	}
	if isVowelSegment(word[n-2 : n]) {
		return false
	}
	if !isVowelSegment(word[n-3 : n-1]) {
		return false
	}
	var prevSeg []rune
	if n == 3 {
		prevSeg = []rune{'?', word[0]}
	} else {
		prevSeg = word[n-4 : n-2]
	}
	return !isVowelSegment(prevSeg)
}

func hasRuneSuffix(word []rune, suf string) bool {
	sufR := []rune(suf)
	if len(word) < len(sufR) {
		return false
	}
	off := len(word) - len(sufR)
	for i, r := range sufR {
		if word[off+i] != r {
			return false
		}
	}
	return true
}

func trimRuneSuffix(word []rune, suf string) []rune {
	return word[:len(word)-len([]rune(suf))]
}

func withRune(word []rune, r rune) []rune {
	out := make([]rune, len(word)+1)
	copy(out, word)
	out[len(word)] = r
	return out
}

func stripPrefix(word []rune) []rune {
	if len(word) == 0 {
		return word
	}
	for _, p := range prefixes {
		pr := []rune(p)
		if len(word) > len(pr) && hasRunePrefix(word, pr) {
			return word[len(pr):]
		}
	}
	return word
}

func hasRunePrefix(word, pr []rune) bool {
	if len(word) < len(pr) {
		return false
	}
	for i, r := range pr {
		if word[i] != r {
			return false
		}
	}
	return true
}

func step1(word []rune) []rune {
	if hasRuneSuffix(word, "s") {
		s := string(word)
		if (hasRuneSuffix(word, "sses") || hasRuneSuffix(word, "ies")) && s != "sses" && s != "ies" {
			word = word[:len(word)-2]
		} else {
			if len(word) == 1 {
				return nil
			}
			if word[len(word)-2] != 's' {
				word = word[:len(word)-1]
			}
		}
	}

	if hasRuneSuffix(word, "eed") && len(word) > 3 {
		if measureVowelSegments(word[:len(word)-3]) > 0 {
			word = word[:len(word)-1]
		}
	} else {
		var word2 []rune
		matched := false
		if hasRuneSuffix(word, "ed") {
			word2 = trimRuneSuffix(word, "ed")
			matched = true
		} else if hasRuneSuffix(word, "ing") {
			word2 = trimRuneSuffix(word, "ing")
			matched = true
		}
		if matched && containVowels(word2) {
			word = word2
			if len(word) <= 1 {
				return word
			}
			if (hasRuneSuffix(word, "at") || hasRuneSuffix(word, "bl") || hasRuneSuffix(word, "iz")) && len(word) > 2 {
				word = withRune(word, 'e')
			} else if len(word) >= 2 && !lszSet[word[len(word)-1]] && word[len(word)-1] == word[len(word)-2] {
				word = word[:len(word)-1]
			} else if measureVowelSegments(word) == 1 && cvc(word) {
				word = withRune(word, 'e')
			}
		}
	}

	if hasRuneSuffix(word, "y") && containVowels(word[:len(word)-1]) {
		word = withRune(word[:len(word)-1], 'i')
	}
	return word
}

func applyRules(word []rune, rules []suffixRule, minMeasure int) []rune {
	for _, rule := range rules {
		if hasRuneSuffix(word, rule.find) {
			word2 := trimRuneSuffix(word, rule.find)
			if measureVowelSegments(word2) > minMeasure {
				return append(word2, []rune(rule.replace)...)
			}
		}
	}
	return word
}

func step2(word []rune) []rune { return applyRules(word, step2Rules, 0) }
func step3(word []rune) []rune { return applyRules(word, step3Rules, 0) }

func step4(word []rune) []rune {
	for _, suf := range step4Suffixes {
		if hasRuneSuffix(word, suf) {
			word2 := trimRuneSuffix(word, suf)
			if measureVowelSegments(word2) > 1 {
				return word2
			}
		}
	}
	return word
}

func step5(word []rune) []rune {
	if word[len(word)-1] == 'e' {
		m := measureVowelSegments(word)
		if m > 1 {
			word = word[:len(word)-1]
		} else if m == 1 {
			word2 := word[:len(word)-1]
			if !cvc(word2) {
				word = word2
			}
		}
	}
	if len(word) == 1 {
		return word
	}
	if hasRuneSuffix(word, "ll") && measureVowelSegments(word) > 1 {
		word = word[:len(word)-1]
	}
	return word
}

func stripSuffix(word []rune) []rune {
	steps := [...]func([]rune) []rune{step1, step2, step3, step4, step5}
	for _, step := range steps {
		if len(word) == 0 {
			return nil
		}
		word = step(word)
	}
	return word
}

var stemCache sync.Map // string -> string

func stemUncached(word string) string {
	word = NormalizeForSearch(word)
	r := []rune(word)
	if len(r) <= 2 {
		return word
	}
	return string(stripSuffix(stripPrefix(r)))
}

// Stem reduces a word to its Porter stem. Results are memoized process-wide
// since the same handful of stems recur constantly across a crawl.
func Stem(word string) string {
	if v, ok := stemCache.Load(word); ok {
		return v.(string)
	}
	s := stemUncached(word)
	stemCache.Store(word, s)
	return s
}
