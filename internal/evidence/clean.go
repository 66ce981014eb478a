package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"veritas/internal/document"
	"veritas/internal/textutil"
)

// backupSuffix marks the pre-clean copy of a CSV; backups are never cleaned.
const backupSuffix = "_raw"

// CleanCSVInPlace re-verifies an existing evidence CSV against the source
// documents and rewrites it keeping only rows whose quote still appears on
// the recorded page. Matching uses the same exact-then-relaxed rule as
// extraction, but no page relocation: a quote that moved pages is dropped.
// A one-time backup at <base>_raw<ext> preserves the original rows. Returns
// kept and total row counts.
func CleanCSVInPlace(path string, docs []*document.Document, log *zap.Logger) (kept, total int, err error) {
	if log == nil {
		log = zap.NewNop()
	}

	records, err := ReadCSV(path)
	if err != nil {
		return 0, 0, err
	}
	if err := backupCSV(path); err != nil {
		return 0, 0, err
	}

	byName := make(map[string]*document.Document, len(docs))
	for _, d := range docs {
		byName[strings.ToLower(d.Name)] = d
	}

	var verified []Record
	for _, r := range records {
		doc, ok := byName[strings.ToLower(r.Filename)]
		if !ok {
			continue
		}
		if quoteOnPage(r.Quote, doc.PageText(r.PageNumber)) {
			verified = append(verified, r)
		}
	}

	if err := WriteCSV(path, verified, false); err != nil {
		return 0, 0, err
	}
	log.Info("evidence csv cleaned",
		zap.String("file", filepath.Base(path)),
		zap.Int("kept", len(verified)),
		zap.Int("total", len(records)))
	return len(verified), len(records), nil
}

// CleanCSVDir cleans every evidence CSV in dir, skipping backups. At least
// one CSV must be present.
func CleanCSVDir(dir string, docs []*document.Document, log *zap.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read csv dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		if strings.HasSuffix(strings.TrimSuffix(name, ".csv"), backupSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return fmt.Errorf("no csv files found in %s", dir)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if _, _, err := CleanCSVInPlace(p, docs, log); err != nil {
			return err
		}
	}
	return nil
}

// quoteOnPage reports whether the quote appears on the given page text,
// exact normalized substring first, then the relaxed prefix rule.
func quoteOnPage(quote, pageText string) bool {
	q := textutil.Normalize(quote)
	if q == "" || strings.TrimSpace(pageText) == "" {
		return false
	}
	if containsNormalized(pageText, q) {
		return true
	}
	if len(q) >= relaxedMinLen {
		needle := q
		if len(needle) > relaxedPrefixLen {
			needle = needle[:relaxedPrefixLen]
		}
		return containsNormalized(pageText, needle)
	}
	return false
}

// backupCSV copies path to <base>_raw<ext> once; an existing backup is left
// untouched so repeated cleans never overwrite the original rows.
func backupCSV(path string) error {
	ext := filepath.Ext(path)
	backup := strings.TrimSuffix(path, ext) + backupSuffix + ext
	if _, err := os.Stat(backup); err == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read csv for backup: %w", err)
	}
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		return fmt.Errorf("write csv backup: %w", err)
	}
	return nil
}
