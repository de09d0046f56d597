package highlight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateHiBye(t *testing.T) {
	w := Partition("Hi. Bye.", 8)
	require.Len(t, w.Sentences, 2)
	assert.Equal(t, "Hi.", w.Sentences[0].Text)
	assert.Equal(t, " Bye.", w.Sentences[1].Text)

	assert.Equal(t, Position{Sentence: 0, Token: 0, Word: 0}, w.Locate(0))
	assert.Equal(t, Position{Sentence: 1, Token: 1, Word: 0}, w.Locate(8))
	assert.Equal(t, 1, w.Locate(4).Sentence)
	assert.Equal(t, "Bye.", w.Sentences[1].Tokens[w.Locate(4).Token].Text)
}

func TestLocateOutsideRange(t *testing.T) {
	w := Partition("Hi. Bye.", 8)
	assert.Equal(t, None, w.Locate(-0.1))
	assert.Equal(t, None, w.Locate(8.01))
	assert.False(t, w.Locate(-1).Active())
}

func TestLocateWithoutDuration(t *testing.T) {
	assert.Equal(t, None, Estimate("Hello there.", 0, 0))
	assert.Equal(t, None, Estimate("", 1, 5))
}

func TestPartitionReconstructsText(t *testing.T) {
	texts := []string{
		"Once upon a time.  The dragon sneezed!  Was it a cold?",
		`She whispered, "Goodnight moon." Then she slept`,
		"Wait... what?! (Really.) Yes.",
		"  leading space and no punctuation",
		"Ünïcödé wörds. Ça va?",
	}
	for _, text := range texts {
		var b strings.Builder
		for _, s := range Partition(text, 10).Sentences {
			var sb strings.Builder
			for _, tok := range s.Tokens {
				sb.WriteString(tok.Text)
			}
			assert.Equal(t, s.Text, sb.String())
			b.WriteString(s.Text)
		}
		assert.Equal(t, text, b.String())
	}
}

func TestWindowsAreContiguous(t *testing.T) {
	w := Partition(`The fox ran. "Stop!" said the owl. And then`, 12)

	prev := 0.0
	for _, s := range w.Sentences {
		assert.Equal(t, prev, s.Start)
		for _, tok := range s.Tokens {
			assert.Equal(t, prev, tok.Start)
			assert.Greater(t, tok.End, tok.Start)
			prev = tok.End
		}
		assert.Equal(t, prev, s.End)
	}
	assert.InDelta(t, 12.0, prev, 1e-9)
}

func TestSentencesKeepClosingQuotes(t *testing.T) {
	w := Partition(`"Run!" he said. (Quietly.) The end`, 1)
	var got []string
	for _, s := range w.Sentences {
		got = append(got, s.Text)
	}
	assert.Equal(t, []string{`"Run!"`, ` he said.`, ` (Quietly.)`, ` The end`}, got)
}

func TestCurlyQuotesCloseSentences(t *testing.T) {
	w := Partition("“Hello.” Bye.", 1)
	require.Len(t, w.Sentences, 2)
	assert.Equal(t, "“Hello.”", w.Sentences[0].Text)
}

func TestWordIndexSkipsWhitespace(t *testing.T) {
	w := Partition("one two three", 13)
	pos := w.Locate(8.5)
	assert.Equal(t, 4, pos.Token)
	assert.Equal(t, 2, pos.Word)

	// the gap after "one" still highlights "one"
	pos = w.Locate(3.5)
	assert.Equal(t, 1, pos.Token)
	assert.Equal(t, 0, pos.Word)
}

func TestCharactersNotBytesDriveTiming(t *testing.T) {
	w := Partition("éé aa", 5)
	require.Len(t, w.Sentences, 1)
	assert.InDelta(t, 2.0, w.Sentences[0].Tokens[0].End, 1e-9)
}
