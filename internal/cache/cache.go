// Package cache persists the collector's negative and result memories across
// runs: processes known to 404, branch CNPJs that do not exist, oversized
// searches, per-process outcomes, and monetary-rate memos. Each memory is a
// JSON file reloaded on open and rewritten on flush.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	notFoundFile        = "not_found_processes.json"
	missingBranchesFile = "missing_branches.json"
	oversizedFile       = "oversized_cases.json"
	processedFile       = "processed_processes.json"
	rateMemoFile        = "rate_memo.json"
)

// Store is the shared cross-run memory. Safe for concurrent use.
type Store struct {
	dir string

	mu              sync.RWMutex
	notFound        map[string]struct{}
	missingBranches map[string]struct{}
	oversized       map[string]int
	processed       map[string]string
	rateMemo        map[string]float64
}

// Open loads every cache file present under dir. Missing files start the
// corresponding memory empty; a corrupt file is an error so a run never
// silently forgets what earlier runs learned.
func Open(dir string) (*Store, error) {
	s := &Store{
		dir:             dir,
		notFound:        make(map[string]struct{}),
		missingBranches: make(map[string]struct{}),
		oversized:       make(map[string]int),
		processed:       make(map[string]string),
		rateMemo:        make(map[string]float64),
	}

	var notFound, missing []string
	if err := loadJSON(filepath.Join(dir, notFoundFile), &notFound); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, missingBranchesFile), &missing); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, oversizedFile), &s.oversized); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, processedFile), &s.processed); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, rateMemoFile), &s.rateMemo); err != nil {
		return nil, err
	}
	for _, n := range notFound {
		s.notFound[n] = struct{}{}
	}
	for _, m := range missing {
		s.missingBranches[m] = struct{}{}
	}

	zap.L().Debug("caches loaded",
		zap.String("dir", dir),
		zap.Int("not_found", len(s.notFound)),
		zap.Int("missing_branches", len(s.missingBranches)),
		zap.Int("oversized", len(s.oversized)),
		zap.Int("processed", len(s.processed)),
	)
	return s, nil
}

// IsNotFound reports whether the process number is a known permanent 404.
func (s *Store) IsNotFound(number string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.notFound[number]
	return ok
}

// MarkNotFound records a permanent 404 for the process number.
func (s *Store) MarkNotFound(number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notFound[number] = struct{}{}
}

// IsMissingBranch reports whether the branch CNPJ is known not to exist.
func (s *Store) IsMissingBranch(cnpj string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.missingBranches[cnpj]
	return ok
}

// MarkMissingBranch records a branch CNPJ whose search returned nothing.
func (s *Store) MarkMissingBranch(cnpj string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missingBranches[cnpj] = struct{}{}
}

// Oversized returns the recorded total for an oversized document search,
// or 0 when the document is not flagged.
func (s *Store) Oversized(doc string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oversized[doc]
}

// MarkOversized records that a document's search total exceeded the threshold.
func (s *Store) MarkOversized(doc string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oversized[doc] = total
}

// ProcessStatus returns the recorded outcome for a process number ("ok",
// an error tag, or "" when never attempted).
func (s *Store) ProcessStatus(number string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed[number]
}

// MarkProcessed records the outcome of a detail download.
func (s *Store) MarkProcessed(number, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[number] = status
}

// Rate returns a memoized monetary rate and whether it was present.
func (s *Store) Rate(key string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.rateMemo[key]
	return v, ok
}

// SetRate memoizes a monetary rate under key.
func (s *Store) SetRate(key string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateMemo[key] = v
}

// Split partitions process numbers into those already known to 404 and the
// rest, preserving order.
func (s *Store) Split(numbers []string) (known, pending []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range numbers {
		if _, ok := s.notFound[n]; ok {
			known = append(known, n)
		} else {
			pending = append(pending, n)
		}
	}
	return known, pending
}

// Sizes reports the entry count of each memory, keyed by file name.
func (s *Store) Sizes() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		notFoundFile:        len(s.notFound),
		missingBranchesFile: len(s.missingBranches),
		oversizedFile:       len(s.oversized),
		processedFile:       len(s.processed),
		rateMemoFile:        len(s.rateMemo),
	}
}

// Flush writes every memory back to disk. The snapshot is taken under the
// lock and written outside it, so workers are never blocked on file IO.
func (s *Store) Flush() error {
	s.mu.RLock()
	notFound := setToSlice(s.notFound)
	missing := setToSlice(s.missingBranches)
	oversized := make(map[string]int, len(s.oversized))
	for k, v := range s.oversized {
		oversized[k] = v
	}
	processed := make(map[string]string, len(s.processed))
	for k, v := range s.processed {
		processed[k] = v
	}
	rates := make(map[string]float64, len(s.rateMemo))
	for k, v := range s.rateMemo {
		rates[k] = v
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return eris.Wrap(err, "cache: create dir")
	}
	for _, f := range []struct {
		name string
		data any
	}{
		{notFoundFile, notFound},
		{missingBranchesFile, missing},
		{oversizedFile, oversized},
		{processedFile, processed},
		{rateMemoFile, rates},
	} {
		if err := writeJSON(filepath.Join(s.dir, f.name), f.data); err != nil {
			return err
		}
	}
	return nil
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func loadJSON(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "cache: read %s", path)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return eris.Wrapf(err, "cache: parse %s", path)
	}
	return nil
}

func writeJSON(path string, data any) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", path)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "cache: write %s", path)
	}
	return nil
}
