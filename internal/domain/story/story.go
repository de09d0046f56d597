package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Mode string

const (
	ModeClassic Mode = "classic"
	ModeMadlibs Mode = "madlibs"
	ModeSleep   Mode = "sleep"
)

type Part struct {
	Text      string   `json:"text"`
	Choices   []string `json:"choices,omitempty"`
	PartIndex int      `json:"partIndex"`
}

type VocabWord struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}

type Badge struct {
	Emoji       string `json:"emoji"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Full is a generated story with the extras read out after the final part.
type Full struct {
	Title        string    `json:"title"`
	Mode         Mode      `json:"mode,omitempty"`
	Parts        []Part    `json:"parts"`
	VocabWord    VocabWord `json:"vocabWord"`
	Joke         string    `json:"joke"`
	Lesson       string    `json:"lesson"`
	TomorrowHook string    `json:"tomorrowHook"`
	RewardBadge  Badge     `json:"rewardBadge"`
}

var ErrNoParts = errors.New("story has no parts")

func (s *Full) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return errors.New("story has no title")
	}
	if len(s.Parts) == 0 {
		return ErrNoParts
	}
	for i, p := range s.Parts {
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("story part %d is empty", i)
		}
	}
	switch s.Mode {
	case "", ModeClassic, ModeMadlibs, ModeSleep:
	default:
		return fmt.Errorf("unknown story mode %q", s.Mode)
	}
	return nil
}

func (s *Full) IsLastPart(i int) bool {
	return i == len(s.Parts)-1
}

// NarrationText is what the narrator reads for part i. The final part carries the
// lesson, the joke and the hook for tomorrow, each skipped when empty.
func (s *Full) NarrationText(i int) string {
	if i < 0 || i >= len(s.Parts) {
		return ""
	}
	text := s.Parts[i].Text
	if !s.IsLastPart(i) {
		return text
	}

	pieces := []string{text}
	if s.Lesson != "" {
		pieces = append(pieces, "Today's lesson is: "+s.Lesson)
	}
	if s.Joke != "" {
		pieces = append(pieces, "Here is a joke: "+s.Joke)
	}
	if s.TomorrowHook != "" {
		pieces = append(pieces, s.TomorrowHook)
	}
	if len(pieces) == 1 {
		return text
	}
	return strings.Join(pieces, ". ")
}

// FromText wraps plain text as a one-part story.
func FromText(title, text string) *Full {
	return &Full{
		Title: title,
		Mode:  ModeClassic,
		Parts: []Part{{Text: text}},
	}
}

// Load reads a story from a JSON file.
func Load(path string) (*Full, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Full, error) {
	var s Full
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode story: %w", err)
	}
	for i := range s.Parts {
		s.Parts[i].PartIndex = i
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
