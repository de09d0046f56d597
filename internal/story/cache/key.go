// Package cache keeps decoded narration in memory and raw narration in a persistent store.
package cache

import (
	"fmt"
	"unicode/utf8"
)

// KeyVersion is bumped whenever the audio format or key layout changes.
const KeyVersion = "v1"

// fingerprintLen is how many leading characters of the text enter the key.
const fingerprintLen = 30

// Key derives the cache key for a voice and text. The fingerprint is the first 30
// characters plus the total length, not a content hash: texts sharing both collide.
func Key(voice, text string) string {
	prefix := text
	if utf8.RuneCountInString(text) > fingerprintLen {
		prefix = string([]rune(text)[:fingerprintLen])
	}
	return fmt.Sprintf("%s:%s:%s_%d", KeyVersion, voice, prefix, utf8.RuneCountInString(text))
}
