package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/midi"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScanMergesInPathOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mid", "a.mid", "nested/c.midi", "notes.txt"} {
		writeFile(t, filepath.Join(dir, name))
	}

	parse := func(path string) (*models.Document, error) {
		return &models.Document{Path: path, Parts: []models.PartSource{{
			Program:    1,
			HasProgram: true,
			Elements: []models.Element{{
				Kind:     models.ElementNote,
				Pitches:  []string{map[string]string{"a.mid": "A4", "b.mid": "B4", "c.midi": "C4"}[filepath.Base(path)]},
				Duration: q(1, 1),
				Offset:   q(0, 1),
			}},
		}}}, nil
	}

	for _, workers := range []int{1, 8} {
		res, err := NewScanner(nil, parse, workers).Scan(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"1 A4 1.0 0.0", "1 B4 1.0 0.0", "1 C4 1.0 0.0"}, res.Tokens)
		assert.Len(t, res.Files, 3)
		assert.Zero(t, res.Skipped)
		assert.Equal(t, uint64(3), res.Bytes)
	}
}

func TestScanSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.mid"))
	writeFile(t, filepath.Join(dir, "bad.mid"))

	parse := func(path string) (*models.Document, error) {
		if filepath.Base(path) == "bad.mid" {
			return nil, errors.New("truncated header")
		}
		return sampleDoc(), nil
	}

	res, err := NewScanner(nil, parse, 2).Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Tokens, 3)
	assert.Equal(t, []string{filepath.Join(dir, "good.mid")}, res.Parsed())
}

func TestScanEmptyDirectory(t *testing.T) {
	res, err := NewScanner(nil, nil, 0).Scan(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, res.Tokens)
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := NewScanner(nil, nil, 0).Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestScanCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mid"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScanner(nil, nil, 1).Scan(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanRealMIDIFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := score.NewReconstructor(false).DecodeTokens([]string{
		"0 C4 1.0 0.0",
		"0 E4 G4 1.0 1.0",
		"40 A4 0.5 0.0",
	})
	require.NoError(t, err)
	require.NoError(t, midi.WriteFile(filepath.Join(dir, "one.mid"), s))

	res, err := NewScanner(nil, nil, 2).Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0 C4 1.0 0.0", "0 E4 G4 1.0 1.0", "40 A4 0.5 0.0"}, res.Tokens)
}
