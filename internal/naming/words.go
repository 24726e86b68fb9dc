package naming

import (
	"bufio"
	"bytes"
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/Conceptual-Machines/magda-composer/pkg/embedded"
)

// ListSource draws distinct words from a fixed list
type ListSource struct {
	mu    sync.Mutex
	words []string
	rng   *rand.Rand
}

// NewListSource uses the embedded word list and a seeded generator,
// so the same seed yields the same sequence of names.
func NewListSource(seed int64) *ListSource {
	return NewListSourceFrom(parseWords(embedded.WordsTxt), seed)
}

// NewListSourceFrom draws from the given words
func NewListSourceFrom(words []string, seed int64) *ListSource {
	return &ListSource{
		words: words,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Words returns n distinct words, or all of them if the list is shorter
func (s *ListSource) Words(_ context.Context, n int) ([]string, error) {
	if len(s.words) < n {
		return nil, ErrNotEnoughWords
	}

	s.mu.Lock()
	perm := s.rng.Perm(len(s.words))
	s.mu.Unlock()

	out := make([]string, n)
	for i := range out {
		out[i] = s.words[perm[i]]
	}
	return out, nil
}

// Len returns the number of words in the list
func (s *ListSource) Len() int {
	return len(s.words)
}

func parseWords(data []byte) []string {
	var words []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		if w != "" && !strings.HasPrefix(w, "#") {
			words = append(words, w)
		}
	}
	return words
}
