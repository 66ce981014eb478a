package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// MergeOptions controls deduplication during a merge.
type MergeOptions struct {
	// NoDedupe keeps every record, disabling key tracking entirely. It must
	// be selected explicitly; the default merge collapses duplicates.
	NoDedupe bool
}

// Merge combines record sets from many documents into one collection. Input
// order is the caller's stable, deterministic document order; within it the
// first occurrence of each dedup key wins. Invalid records are dropped
// silently.
func Merge(sets [][]Record, opts MergeOptions) []Record {
	var out []Record
	seen := make(map[string]bool)

	for _, set := range sets {
		for _, r := range set {
			if !r.Valid() {
				continue
			}
			if !opts.NoDedupe {
				key := r.Key()
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			out = append(out, r)
		}
	}
	return out
}

// MergeCSVDir reads every *.csv in dir (sorted by filename for stable merge
// order), merges the rows, and writes the combined table to outPath. Files
// with a wrong schema are skipped with a warning. Returns the merged
// records. An input directory without a single usable CSV is an error; an
// empty merge result is not.
func MergeCSVDir(dir, outPath string, opts MergeOptions, log *zap.Logger) ([]Record, error) {
	if log == nil {
		log = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read csv dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		if abs, errAbs := filepath.Abs(outPath); errAbs == nil {
			if candidate, errC := filepath.Abs(filepath.Join(dir, e.Name())); errC == nil && candidate == abs {
				continue // never merge a previous output into itself
			}
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no csv files found in %s", dir)
	}

	var sets [][]Record
	for _, p := range paths {
		records, err := ReadCSV(p)
		if err != nil {
			log.Warn("skipping csv with invalid schema", zap.String("path", p), zap.Error(err))
			continue
		}
		log.Info("merging quotes", zap.String("path", filepath.Base(p)), zap.Int("rows", len(records)))
		sets = append(sets, records)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("no readable csv files in %s", dir)
	}

	merged := Merge(sets, opts)
	if err := WriteCSV(outPath, merged, false); err != nil {
		return nil, err
	}
	log.Info("merged csvs", zap.Int("files", len(sets)), zap.Int("rows", len(merged)), zap.String("out", outPath))
	return merged, nil
}
