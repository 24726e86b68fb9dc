package tokenizer

import (
	"errors"
	"fmt"
)

// ErrEmptyCorpus is returned when there are no tokens to build a vocabulary from
var ErrEmptyCorpus = errors.New("empty corpus: no tokens to build a vocabulary")

// ErrUnsortedVocabulary means a persisted token list is not strictly ascending.
// Ids stored against it cannot be trusted, so it is never re-sorted.
var ErrUnsortedVocabulary = errors.New("persisted vocabulary is not strictly sorted")

// UnknownTokenError means a token was looked up in a vocabulary that was not built from it
type UnknownTokenError struct {
	Token string
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token %q", e.Token)
}

// UnknownIDError means an id is outside the vocabulary range
type UnknownIDError struct {
	ID   int
	Size int
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("unknown token id %d (vocabulary size %d)", e.ID, e.Size)
}

// MalformedTokenError reports a token field that could not be parsed
type MalformedTokenError struct {
	Token string
	Field string
	Err   error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed token %q: bad %s: %v", e.Token, e.Field, e.Err)
	}
	return fmt.Sprintf("malformed token %q: bad %s", e.Token, e.Field)
}

func (e *MalformedTokenError) Unwrap() error {
	return e.Err
}
