package evidence

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// The evidence table's wire format: a flat CSV with exactly these column
// names, consumed by downstream tooling.
const (
	colQuote    = "quote"
	colPage     = "page_number"
	colFilename = "filename"
	colIdea     = "idea"
)

// ReadCSV loads records from a CSV file. Rows missing quote, page, or
// filename, including rows whose page does not parse as a positive
// integer, are dropped without error; the pipeline tolerates partially
// malformed upstream data.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, required := range []string{colQuote, colPage, colFilename} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A single mangled row must not abort the read.
			continue
		}

		page, err := strconv.Atoi(field(row, colPage))
		if err != nil {
			continue
		}
		rec := Record{
			Quote:      field(row, colQuote),
			PageNumber: page,
			Filename:   field(row, colFilename),
			Idea:       field(row, colIdea),
		}
		if !rec.Valid() {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteCSV writes records to path. withIdeas selects the four-column layout
// (quote, page_number, filename, idea) over the three-column one.
func WriteCSV(path string, records []Record, withIdeas bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{colQuote, colPage, colFilename}
	if withIdeas {
		header = append(header, colIdea)
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		row := []string{r.Quote, strconv.Itoa(r.PageNumber), r.Filename}
		if withIdeas {
			row = append(row, r.Idea)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
