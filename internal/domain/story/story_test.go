package story

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "title": "The Sleepy Dragon",
  "mode": "sleep",
  "parts": [
    {"text": "Once upon a time a dragon yawned."},
    {"text": "It curled up under the stars."}
  ],
  "vocabWord": {"word": "yawn", "definition": "to open your mouth wide when tired"},
  "joke": "Why do dragons sleep all day? They like to hunt knights",
  "lesson": "Rest helps us grow",
  "tomorrowHook": "Tomorrow the dragon meets a firefly.",
  "rewardBadge": {"emoji": "🐉", "title": "Dream Keeper", "description": "Finished a sleepy tale"}
}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "The Sleepy Dragon", s.Title)
	assert.Equal(t, ModeSleep, s.Mode)
	require.Len(t, s.Parts, 2)
	assert.Equal(t, 1, s.Parts[1].PartIndex)
	assert.Equal(t, "Dream Keeper", s.RewardBadge.Title)
}

func TestNarrationTextAddsExtrasToFinalPart(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "Once upon a time a dragon yawned.", s.NarrationText(0))
	assert.Equal(t,
		"It curled up under the stars.. Today's lesson is: Rest helps us grow. "+
			"Here is a joke: Why do dragons sleep all day? They like to hunt knights. "+
			"Tomorrow the dragon meets a firefly.",
		s.NarrationText(1))
	assert.Empty(t, s.NarrationText(2))
	assert.Empty(t, s.NarrationText(-1))
}

func TestNarrationTextSkipsMissingExtras(t *testing.T) {
	assert.Equal(t, "Goodnight moon.", FromText("note", "Goodnight moon.").NarrationText(0))

	s := FromText("note", "The end")
	s.Joke = "Knock knock"
	assert.Equal(t, "The end. Here is a joke: Knock knock", s.NarrationText(0))
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, (&Full{Title: "x"}).Validate(), ErrNoParts)
	assert.Error(t, (&Full{Parts: []Part{{Text: "a"}}}).Validate())
	assert.Error(t, (&Full{Title: "x", Parts: []Part{{Text: "  "}}}).Validate())
	assert.Error(t, (&Full{Title: "x", Mode: "opera", Parts: []Part{{Text: "a"}}}).Validate())
	assert.NoError(t, FromText("note", "hello").Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "The Sleepy Dragon", s.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
