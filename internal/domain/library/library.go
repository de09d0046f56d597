package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nestnarrator/internal/domain/story"
)

var ErrNotFound = errors.New("story not found")

type Feedback struct {
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is a story kept for offline reading.
type Entry struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Story     story.Full `json:"story"`
	Feedback  *Feedback  `json:"feedback,omitempty"`
}

type shelfFile struct {
	Entries     []Entry   `json:"entries"`
	LastUpdated time.Time `json:"last_updated"`
}

// Shelf keeps saved stories in a single JSON file.
type Shelf struct {
	mu   sync.Mutex
	file string
	now  func() time.Time
}

func NewShelf(dir string) (*Shelf, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}
	return &Shelf{file: filepath.Join(dir, "shelf.json"), now: time.Now}, nil
}

// Save stores s and returns its new id.
func (sh *Shelf) Save(s *story.Full) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entries, err := sh.load()
	if err != nil {
		return "", err
	}

	entry := Entry{ID: uuid.NewString(), Timestamp: sh.now(), Story: *s}
	entries = append(entries, entry)
	if err := sh.save(entries); err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"id":    entry.ID,
		"title": s.Title,
		"parts": len(s.Parts),
	}).Info("Saved story to library")
	return entry.ID, nil
}

// List returns every entry, newest first.
func (sh *Shelf) List() ([]Entry, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entries, err := sh.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// Get finds an entry by id or by a unique id prefix.
func (sh *Shelf) Get(id string) (*Entry, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entries, err := sh.load()
	if err != nil {
		return nil, err
	}
	i, err := find(entries, id)
	if err != nil {
		return nil, err
	}
	return &entries[i], nil
}

func (sh *Shelf) Delete(id string) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entries, err := sh.load()
	if err != nil {
		return err
	}
	i, err := find(entries, id)
	if err != nil {
		return err
	}
	removed := entries[i].ID
	entries = append(entries[:i], entries[i+1:]...)
	if err := sh.save(entries); err != nil {
		return err
	}

	logrus.WithField("id", removed).Info("Removed story from library")
	return nil
}

// UpdateFeedback records a 1 to 5 star rating with an optional note.
func (sh *Shelf) UpdateFeedback(id string, rating int, text string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entries, err := sh.load()
	if err != nil {
		return err
	}
	i, err := find(entries, id)
	if err != nil {
		return err
	}
	entries[i].Feedback = &Feedback{Rating: rating, Text: text, Timestamp: sh.now()}
	return sh.save(entries)
}

func find(entries []Entry, id string) (int, error) {
	match := -1
	for i, e := range entries {
		if e.ID == id {
			return i, nil
		}
		if id != "" && strings.HasPrefix(e.ID, id) {
			if match >= 0 {
				return -1, fmt.Errorf("story id %q is ambiguous", id)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

func (sh *Shelf) load() ([]Entry, error) {
	file, err := os.Open(sh.file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open library file: %w", err)
	}
	defer file.Close()

	var data shelfFile
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode library file: %w", err)
	}
	return data.Entries, nil
}

func (sh *Shelf) save(entries []Entry) error {
	tmp := sh.file + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create library file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(shelfFile{Entries: entries, LastUpdated: sh.now()}); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode library data: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write library file: %w", err)
	}
	return os.Rename(tmp, sh.file)
}
