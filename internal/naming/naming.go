// Package naming titles generated scores with two random words,
// e.g. "amber_tide.mid".
package naming

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
)

const (
	// Extension is appended to every generated file name
	Extension = ".mid"

	wordsPerName = 2
	maxAttempts  = 8
)

// ErrNotEnoughWords is returned when a source cannot produce a usable pair
var ErrNotEnoughWords = errors.New("word source returned fewer than two usable words")

// WordSource produces candidate words for a title
type WordSource interface {
	Words(ctx context.Context, n int) ([]string, error)
}

// Namer turns words into file names. When the primary source fails
// the fallback is used and the failure is logged.
type Namer struct {
	source   WordSource
	fallback WordSource
}

// NewNamer creates a namer. fallback may be nil.
func NewNamer(source, fallback WordSource) *Namer {
	return &Namer{source: source, fallback: fallback}
}

// Name returns a fresh "<word>_<word>.mid" name
func (n *Namer) Name(ctx context.Context) (string, error) {
	words, err := n.words(ctx, n.source)
	if err != nil && n.fallback != nil {
		logger.Warn("Primary word source failed, using fallback", logger.Fields{"error": err.Error()})
		words, err = n.words(ctx, n.fallback)
	}
	if err != nil {
		return "", err
	}
	return Join(words...), nil
}

// NameIn returns a name that does not collide with a file already in dir
func (n *Namer) NameIn(ctx context.Context, dir string) (string, error) {
	var name string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := n.Name(ctx)
		if err != nil {
			return "", err
		}
		name = candidate
		if !exists(filepath.Join(dir, name)) {
			return name, nil
		}
	}

	// Word pool exhausted for this dir, disambiguate with a counter
	base := strings.TrimSuffix(name, Extension)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, Extension)
		if !exists(filepath.Join(dir, candidate)) {
			return candidate, nil
		}
	}
}

func (n *Namer) words(ctx context.Context, src WordSource) ([]string, error) {
	raw, err := src.Words(ctx, wordsPerName)
	if err != nil {
		return nil, err
	}
	var clean []string
	for _, w := range raw {
		if w = Sanitize(w); w != "" {
			clean = append(clean, w)
		}
		if len(clean) == wordsPerName {
			return clean, nil
		}
	}
	return nil, ErrNotEnoughWords
}

// Join lowercases the words and joins them with "_" plus the extension
func Join(words ...string) string {
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}
	return strings.Join(lowered, "_") + Extension
}

// Sanitize keeps only letters, lowercased
func Sanitize(word string) string {
	var b strings.Builder
	for _, r := range word {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
