package evidence

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_DropsMalformedRows(t *testing.T) {
	csv := strings.Join([]string{
		"quote,page_number,filename,idea",
		"valid quote,3,a.pdf,an idea",
		"missing page,,a.pdf,",          // unparseable page
		"bad page,zero,a.pdf,",          // non-numeric page
		",5,a.pdf,",                     // empty quote
		"no filename,5,,",               // empty filename
		"negative page,-2,a.pdf,",       // Valid() rejects page < 1
		"second valid,8,b.pdf,",
	}, "\n")

	records, err := readCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "valid quote", records[0].Quote)
	assert.Equal(t, "an idea", records[0].Idea)
	assert.Equal(t, "second valid", records[1].Quote)
}

func TestReadCSV_HeaderOrderDoesNotMatter(t *testing.T) {
	csv := "filename,quote,page_number\na.pdf,some quote,7\n"
	records, err := readCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Record{Quote: "some quote", PageNumber: 7, Filename: "a.pdf"}, records[0])
}

func TestReadCSV_MissingRequiredColumn(t *testing.T) {
	_, err := readCSV(strings.NewReader("quote,filename\nq,a.pdf\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_number")
}

func TestWriteCSV_QuotesWithCommasAndNewlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	records := []Record{
		{Quote: `costs rose, then fell, "sharply"`, PageNumber: 2, Filename: "a.pdf", Idea: "volatility\nacross periods"},
	}
	require.NoError(t, WriteCSV(path, records, true))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestWriteCSV_WithoutIdeasOmitsColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	records := []Record{
		{Quote: "q", PageNumber: 1, Filename: "a.pdf", Idea: "hidden"},
	}
	require.NoError(t, WriteCSV(path, records, false))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Idea)
}
