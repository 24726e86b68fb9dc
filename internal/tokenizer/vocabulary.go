package tokenizer

import (
	"fmt"
	"sort"
)

// Vocabulary is a bijection between the distinct tokens of a corpus and 0..n-1.
// Ids follow the byte-wise sort order of the tokens, so the same token set always
// produces the same ids.
type Vocabulary struct {
	tokens []string
	ids    map[string]int
}

// BuildVocabulary collects the distinct tokens and assigns ids in sorted order
func BuildVocabulary(tokens []string) (*Vocabulary, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyCorpus
	}

	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	sort.Strings(unique)

	return newVocabulary(unique), nil
}

// VocabularyFromSorted rebuilds a vocabulary from a persisted token list. The list
// must be strictly ascending, which also rules out duplicates.
func VocabularyFromSorted(tokens []string) (*Vocabulary, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyCorpus
	}
	for i := 1; i < len(tokens); i++ {
		if tokens[i-1] >= tokens[i] {
			return nil, fmt.Errorf("%w: %q at id %d follows %q", ErrUnsortedVocabulary, tokens[i], i, tokens[i-1])
		}
	}
	unique := make([]string, len(tokens))
	copy(unique, tokens)
	return newVocabulary(unique), nil
}

func newVocabulary(sorted []string) *Vocabulary {
	ids := make(map[string]int, len(sorted))
	for i, t := range sorted {
		ids[t] = i
	}
	return &Vocabulary{tokens: sorted, ids: ids}
}

// Size returns n_vocab
func (v *Vocabulary) Size() int {
	return len(v.tokens)
}

// Tokens returns the tokens in id order
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// ID looks up a single token
func (v *Vocabulary) ID(token string) (int, error) {
	id, ok := v.ids[token]
	if !ok {
		return 0, &UnknownTokenError{Token: token}
	}
	return id, nil
}

// ToIDs maps a token stream to ids, failing on the first token outside the vocabulary
func (v *Vocabulary) ToIDs(tokens []string) ([]int, error) {
	ids := make([]int, len(tokens))
	for i, t := range tokens {
		id, err := v.ID(t)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Token maps an id back to its token
func (v *Vocabulary) Token(id int) (string, error) {
	if id < 0 || id >= len(v.tokens) {
		return "", &UnknownIDError{ID: id, Size: len(v.tokens)}
	}
	return v.tokens[id], nil
}
