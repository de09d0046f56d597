// Package highlight estimates which word of a narrated text is being spoken. Timing is
// proportional to character offsets, so it is an approximation of the narration and
// never inspects the audio itself.
package highlight

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a word or a run of whitespace with its time window [Start, End).
type Token struct {
	Text  string
	Space bool
	Start float64
	End   float64
}

// Sentence is a span of text ending in terminal punctuation, or the trailing fragment.
type Sentence struct {
	Text   string
	Tokens []Token
	Start  float64
	End    float64
}

// Window is the partition of a text over a narration duration.
type Window struct {
	Sentences []Sentence
	Duration  float64
	// Chars is the number of characters in the text.
	Chars int
}

// Position identifies the active token. Word counts only non-space tokens within the
// sentence. All indexes are -1 when nothing is active.
type Position struct {
	Sentence int
	Token    int
	Word     int
}

// None is the position when no token is active.
var None = Position{Sentence: -1, Token: -1, Word: -1}

// Active reports whether p names a token.
func (p Position) Active() bool {
	return p.Sentence >= 0
}

// Partition splits text into sentences and tokens and assigns each token its share of
// duration. Joining every token reproduces text exactly.
func Partition(text string, duration float64) Window {
	total := utf8.RuneCountInString(text)
	w := Window{Duration: duration, Chars: total}
	if total == 0 {
		return w
	}

	at := func(offset int) float64 {
		return float64(offset) / float64(total) * duration
	}

	offset := 0
	for _, s := range splitSentences(text) {
		sentence := Sentence{Text: s, Start: at(offset)}
		for _, tok := range splitTokens(s) {
			n := utf8.RuneCountInString(tok)
			sentence.Tokens = append(sentence.Tokens, Token{
				Text:  tok,
				Space: isSpace(tok),
				Start: at(offset),
				End:   at(offset + n),
			})
			offset += n
		}
		sentence.End = at(offset)
		w.Sentences = append(w.Sentences, sentence)
	}
	return w
}

// Locate finds the token whose window contains t. t equal to the duration falls in
// the last token.
func (w Window) Locate(t float64) Position {
	if w.Duration <= 0 || t < 0 || t > w.Duration || len(w.Sentences) == 0 {
		return None
	}

	if t == w.Duration {
		si := len(w.Sentences) - 1
		ti := len(w.Sentences[si].Tokens) - 1
		return Position{Sentence: si, Token: ti, Word: wordIndex(w.Sentences[si].Tokens, ti)}
	}

	for si, s := range w.Sentences {
		if t < s.Start || t >= s.End {
			continue
		}
		for ti, tok := range s.Tokens {
			if t >= tok.Start && t < tok.End {
				return Position{Sentence: si, Token: ti, Word: wordIndex(s.Tokens, ti)}
			}
		}
	}
	return None
}

// Estimate is Partition followed by Locate.
func Estimate(text string, currentTime, duration float64) Position {
	return Partition(text, duration).Locate(currentTime)
}

// wordIndex counts the words before token ti. A whitespace token reports the word
// it follows.
func wordIndex(tokens []Token, ti int) int {
	words := 0
	for i := 0; i < ti; i++ {
		if !tokens[i].Space {
			words++
		}
	}
	if tokens[ti].Space && words > 0 {
		return words - 1
	}
	return words
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case ']', ')', '\'', '"', '”', '’':
		return true
	}
	return false
}

// splitSentences cuts after each run of terminal punctuation and any closing quotes or
// brackets that follow it.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); {
		if !isTerminal(runes[i]) {
			i++
			continue
		}
		for i < len(runes) && isTerminal(runes[i]) {
			i++
		}
		for i < len(runes) && isCloser(runes[i]) {
			i++
		}
		out = append(out, string(runes[start:i]))
		start = i
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// splitTokens alternates runs of non-space and space characters.
func splitTokens(s string) []string {
	var out []string
	var b strings.Builder
	space := false
	for i, r := range s {
		rs := unicode.IsSpace(r)
		if i > 0 && rs != space && b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
		space = rs
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func isSpace(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsSpace(r)
}
