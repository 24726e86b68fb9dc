package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/midi"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/tokenizer"
)

const defaultWorkers = 4

// ParseFunc reads one music file
type ParseFunc func(path string) (*models.Document, error)

// FileResult is the outcome for a single corpus file
type FileResult struct {
	Path   string `json:"path"`
	Events int    `json:"events"`
	Err    error  `json:"-"`
}

// Result is the merged output of a scan
type Result struct {
	Dir     string       `json:"dir"`
	Files   []FileResult `json:"files"`
	Tokens  []string     `json:"-"`
	Skipped int          `json:"skipped"`
	Bytes   uint64       `json:"bytes"`
}

// Parsed lists the files that contributed to the token stream
func (r *Result) Parsed() []string {
	var out []string
	for _, f := range r.Files {
		if f.Err == nil {
			out = append(out, f.Path)
		}
	}
	return out
}

// Scanner walks a corpus directory and tokenizes every music file in it
type Scanner struct {
	extractor *Extractor
	parse     ParseFunc
	workers   int
}

// NewScanner creates a scanner. parse may be nil to read Standard MIDI Files.
func NewScanner(extractor *Extractor, parse ParseFunc, workers int) *Scanner {
	if extractor == nil {
		extractor = NewExtractor()
	}
	if parse == nil {
		parse = midi.ReadFile
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Scanner{extractor: extractor, parse: parse, workers: workers}
}

// Scan parses files in parallel and concatenates their tokens in sorted path
// order, so the stream does not depend on which worker finishes first. Files
// that fail to parse are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()

	paths, size, err := listMusicFiles(dir)
	if err != nil {
		return nil, err
	}

	files := make([]FileResult, len(paths))
	tokens := make([][]string, len(paths))

	swg := sizedwaitgroup.New(s.workers)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			swg.Wait()
			return nil, err
		}

		swg.Add()
		go func(i int, path string) {
			defer swg.Done()

			files[i].Path = path
			doc, err := s.parse(path)
			if err != nil {
				files[i].Err = err
				return
			}
			events := s.extractor.Extract(doc)
			files[i].Events = len(events)
			tokens[i] = tokenizer.EncodeAll(events)
		}(i, path)
	}
	swg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Dir: dir, Files: files, Bytes: size}
	for i, f := range files {
		if f.Err != nil {
			result.Skipped++
			logger.Warn("Skipping unreadable corpus file", logger.Fields{
				"path":  f.Path,
				"error": f.Err.Error(),
			})
			continue
		}
		if f.Events == 0 {
			logger.Debug("Corpus file contributed no events", logger.Fields{"path": f.Path})
		}
		result.Tokens = append(result.Tokens, tokens[i]...)
	}

	logger.LogCorpusScan(dir, len(paths), result.Skipped, len(result.Tokens), size, time.Since(start))
	return result, nil
}

// IsMusicFile reports whether path has a Standard MIDI File extension
func IsMusicFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".smf":
		return true
	}
	return false
}

func listMusicFiles(dir string) ([]string, uint64, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("corpus path %s is not a directory", dir)
	}

	var paths []string
	var size uint64
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsMusicFile(path) {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			size += uint64(fi.Size())
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Strings(paths)
	return paths, size, nil
}
