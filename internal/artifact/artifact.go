package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Conceptual-Machines/magda-composer/internal/tokenizer"
)

// Version is the current on-disk format
const Version = 1

var (
	// ErrFingerprintMismatch means a vocabulary, id stream or checkpoint does not
	// belong to the same corpus snapshot
	ErrFingerprintMismatch = errors.New("corpus fingerprint mismatch")
	// ErrUnsupportedVersion is returned for artifacts written by a newer format
	ErrUnsupportedVersion = errors.New("unsupported artifact version")
)

// Artifact is the persisted corpus snapshot: the vocabulary in id order and the
// token-id stream, tied together by a fingerprint. It carries no timestamps so an
// unchanged corpus always serializes to the same bytes.
type Artifact struct {
	Version     int      `json:"version"`
	Fingerprint string   `json:"fingerprint"`
	Vocabulary  []string `json:"vocabulary"`
	IDs         []int    `json:"ids"`
	Files       []string `json:"files,omitempty"`

	vocab *tokenizer.Vocabulary
}

// Build creates an artifact from an ordered token stream
func Build(tokens []string, files []string) (*Artifact, error) {
	vocab, err := tokenizer.BuildVocabulary(tokens)
	if err != nil {
		return nil, err
	}
	ids, err := vocab.ToIDs(tokens)
	if err != nil {
		return nil, err
	}

	a := &Artifact{
		Version:    Version,
		Vocabulary: vocab.Tokens(),
		IDs:        ids,
		Files:      files,
		vocab:      vocab,
	}
	a.Fingerprint = Fingerprint(a.Vocabulary, a.IDs)
	return a, nil
}

// Fingerprint hashes the vocabulary and id stream
func Fingerprint(vocabulary []string, ids []int) string {
	h := sha256.New()
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(vocabulary)))
	h.Write(n[:])
	for _, t := range vocabulary {
		binary.BigEndian.PutUint64(n[:], uint64(len(t)))
		h.Write(n[:])
		h.Write([]byte(t))
	}
	binary.BigEndian.PutUint64(n[:], uint64(len(ids)))
	h.Write(n[:])
	for _, id := range ids {
		binary.BigEndian.PutUint64(n[:], uint64(int64(id)))
		h.Write(n[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Vocab returns the vocabulary the ids were encoded with
func (a *Artifact) Vocab() (*tokenizer.Vocabulary, error) {
	if a.vocab != nil {
		return a.vocab, nil
	}
	vocab, err := tokenizer.VocabularyFromSorted(a.Vocabulary)
	if errors.Is(err, tokenizer.ErrUnsortedVocabulary) {
		return nil, fmt.Errorf("%w: %w", ErrFingerprintMismatch, err)
	}
	if err != nil {
		return nil, err
	}
	a.vocab = vocab
	return vocab, nil
}

// Tokens expands the id stream back into tokens
func (a *Artifact) Tokens() ([]string, error) {
	vocab, err := a.Vocab()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(a.IDs))
	for i, id := range a.IDs {
		tok, err := vocab.Token(id)
		if err != nil {
			return nil, err
		}
		out[i] = tok
	}
	return out, nil
}

// Verify checks the version, the fingerprint and that every id is in range
func (a *Artifact) Verify() error {
	if a.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.Version)
	}
	if got := Fingerprint(a.Vocabulary, a.IDs); got != a.Fingerprint {
		return fmt.Errorf("%w: stored %s, computed %s", ErrFingerprintMismatch, short(a.Fingerprint), short(got))
	}
	vocab, err := a.Vocab()
	if err != nil {
		return err
	}
	for _, id := range a.IDs {
		if id < 0 || id >= vocab.Size() {
			return &tokenizer.UnknownIDError{ID: id, Size: vocab.Size()}
		}
	}
	return nil
}

// Marshal returns the canonical serialized form
func (a *Artifact) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes the artifact through a temporary file so readers never see a partial write
func (a *Artifact) Save(path string) error {
	data, err := a.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return os.Rename(tmp, path)
}

// Unmarshal decodes and verifies an artifact
func Unmarshal(data []byte) (*Artifact, error) {
	var a Artifact
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Load reads and verifies an artifact from disk
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return Unmarshal(data)
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
