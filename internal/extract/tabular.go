package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"
)

// table is a header row plus data rows, all padded to the header width.
type table struct {
	header []string
	rows   [][]string
}

func loadCSV(r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, newError(KindFileParse, http.StatusUnprocessableEntity, err, "could not read CSV file")
	}
	return newTable(records)
}

// loadExcel reads the first sheet of a workbook.
func loadExcel(r io.Reader) (*table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, newError(KindFileParse, http.StatusUnprocessableEntity, err, "could not open Excel file")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, newError(KindFileParse, http.StatusUnprocessableEntity, nil, "Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, newError(KindFileParse, http.StatusUnprocessableEntity, err, "could not read sheet %q", sheets[0])
	}
	return newTable(rows)
}

func newTable(records [][]string) (*table, error) {
	records = dropBlankRows(records)
	if len(records) == 0 {
		return nil, newError(KindFileParse, http.StatusUnprocessableEntity, errors.New("no header row"), "file is empty")
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}
	for i, rec := range records {
		if len(rec) < width {
			padded := make([]string, width)
			copy(padded, rec)
			records[i] = padded
		}
	}
	return &table{header: records[0], rows: records[1:]}, nil
}

func dropBlankRows(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// chunks splits the data rows into pieces of at most size rows, each
// rendered as CSV text with the header repeated.
func (t *table) chunks(size int) ([]string, error) {
	if size < 1 {
		size = 1
	}
	var out []string
	for start := 0; start < len(t.rows); start += size {
		end := min(start+size, len(t.rows))

		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(t.header); err != nil {
			return nil, err
		}
		if err := w.WriteAll(t.rows[start:end]); err != nil {
			return nil, err
		}
		out = append(out, buf.String())
	}
	return out, nil
}
