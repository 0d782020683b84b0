package textpipeline

import "testing"

func TestTokenizeBasic(t *testing.T) {
	toks := Tokenize("Hello  world!")
	want := []Token{
		{Start: 0, Text: "Hello"},
		{Start: 7, Text: "world"},
		{Start: 12, Text: "!"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i] != w {
			t.Errorf("token %d = %+v, want %+v", i, toks[i], w)
		}
	}
}

func TestTokenizeApostrophe(t *testing.T) {
	toks := Tokenize("Sneed's Feed and Seed")
	want := []Token{
		{Start: 0, Text: "Sneed"},
		{Start: 5, Text: "'s"},
		{Start: 8, Text: "Feed"},
		{Start: 13, Text: "and"},
		{Start: 17, Text: "Seed"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i] != w {
			t.Errorf("token %d = %+v, want %+v", i, toks[i], w)
		}
	}
}

func TestDefaultTransformDropsStopWordsAndContractions(t *testing.T) {
	got := DefaultTransform("Sneed's Feed and Seed")
	want := []Stemmed{
		{Position: 0, Stem: "sneed"},
		{Position: 8, Stem: "feed"},
		{Position: 17, Stem: "seed"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("stem %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestNormalizeForSearch(t *testing.T) {
	cases := map[string]string{
		"Café":  "cafe",
		"HELLO": "hello",
		"don't": "dont",
		"":      "",
	}
	for in, want := range cases {
		if got := NormalizeForSearch(in); got != want {
			t.Errorf("NormalizeForSearch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStemClassicCases(t *testing.T) {
	cases := map[string]string{
		"caresses":  "caress",
		"ponies":    "poni",
		"ties":      "ti",
		"caress":    "caress",
		"cats":      "cat",
		"feed":      "feed",
		"agreed":    "agre",
		"plastered": "plaster",
		"bled":      "bled",
		"motoring":  "motor",
		"sing":      "sing",
		"conflated": "conflat",
		"troubled":  "troubl",
		"sized":     "size",
		"hopping":   "hop",
		"tanned":    "tan",
		"falling":   "fall",
		"hissing":   "hiss",
		"fizzed":    "fizz",
		"failing":   "fail",
		"filing":    "file",
		"happy":     "happi",
		"sky":       "sky",
	}
	for in, want := range cases {
		if got := Stem(in); got != want {
			t.Errorf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStemShortWordsUnchanged(t *testing.T) {
	for _, w := range []string{"a", "is", "ox"} {
		if got := Stem(w); got != NormalizeForSearch(w) {
			t.Errorf("Stem(%q) = %q, want unchanged %q", w, got, NormalizeForSearch(w))
		}
	}
}

func TestStemScientificPrefix(t *testing.T) {
	if got := Stem("microorganism"); got != "organ" {
		t.Errorf("Stem(microorganism) = %q, want %q", got, "organ")
	}
}

func TestDefaultTransformWordEmptyForStopWord(t *testing.T) {
	if got := DefaultTransformWord("the"); got != "" {
		t.Errorf("DefaultTransformWord(the) = %q, want empty", got)
	}
	if got := DefaultTransformWord("running"); got != "run" {
		t.Errorf("DefaultTransformWord(running) = %q, want %q", got, "run")
	}
}
