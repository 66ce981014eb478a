package evidence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/document"
)

func TestCleanCSVInPlace_DropsUnverifiableRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.csv")
	writeFile(t, path, "quote,page_number,filename\n"+
		"Still on its page.,2,a.pdf\n"+ // verifiable
		"Moved to another page.,1,a.pdf\n"+ // present, wrong page: dropped
		"Never appeared anywhere.,2,a.pdf\n"+ // fabricated: dropped
		"Orphaned quote.,1,missing.pdf\n") // unknown document: dropped

	docs := []*document.Document{docWithPages("a.pdf",
		"Intro text.",
		"Still on   its page. Moved to another page.")}

	kept, total, err := CleanCSVInPlace(path, docs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
	assert.Equal(t, 4, total)

	records, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Still on its page.", records[0].Quote)
	assert.Equal(t, 2, records[0].PageNumber)
}

func TestCleanCSVInPlace_RelaxedPrefixKeepsLongQuote(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.csv")

	// Long enough that the 120-char prefix falls entirely inside the page
	// text while the quote's tail does not appear there at all.
	long := strings.Repeat("Verified prose segment on the page. ", 5)
	writeFile(t, path, "quote,page_number,filename\n"+long+"trailing OCR junk,1,a.pdf\n")

	docs := []*document.Document{docWithPages("a.pdf", long)}

	kept, total, err := CleanCSVInPlace(path, docs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, total)
}

func TestCleanCSVInPlace_FilenameMatchIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.csv")
	writeFile(t, path, "quote,page_number,filename\nA verified claim.,1,A.PDF\n")

	docs := []*document.Document{docWithPages("a.pdf", "A verified claim. More.")}

	kept, _, err := CleanCSVInPlace(path, docs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
}

func TestCleanCSVInPlace_BackupWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.csv")
	original := "quote,page_number,filename\nA verified claim.,1,a.pdf\nBogus row.,1,a.pdf\n"
	writeFile(t, path, original)

	docs := []*document.Document{docWithPages("a.pdf", "A verified claim.")}

	_, _, err := CleanCSVInPlace(path, docs, nil)
	require.NoError(t, err)

	backup := filepath.Join(dir, "quotes_raw.csv")
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, original, string(data), "backup holds the pre-clean rows")

	// A second clean must not overwrite the backup with cleaned data.
	_, _, err = CleanCSVInPlace(path, docs, nil)
	require.NoError(t, err)
	data, err = os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestCleanCSVDir_SkipsBackupsAndRequiresCSVs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"),
		"quote,page_number,filename\nA verified claim.,1,a.pdf\n")
	writeFile(t, filepath.Join(dir, "b_raw.csv"),
		"quote,page_number,filename\nUntouched backup row.,9,a.pdf\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a csv")

	docs := []*document.Document{docWithPages("a.pdf", "A verified claim.")}
	require.NoError(t, CleanCSVDir(dir, docs, nil))

	// The backup file keeps its unverifiable row.
	data, err := os.ReadFile(filepath.Join(dir, "b_raw.csv"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "Untouched backup row."))

	assert.Error(t, CleanCSVDir(t.TempDir(), docs, nil))
}
