package tabular

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// ParseCSV decodes CSV bytes into a table. The delimiter is sniffed
// from the header line across ';', ',' and tab; quoted cells are
// handled by the reader. Rows whose cells are all empty are dropped.
func ParseCSV(data []byte) (Table, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Table{}, ErrEmptyFile
	}

	reader := csv.NewReader(bytes.NewReader(trimmed))
	reader.Comma = sniffDelimiter(trimmed)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, err
	}
	if len(records) < 2 {
		return Table{}, ErrEmptyFile
	}

	columns := make([]string, 0, len(records[0]))
	for _, header := range records[0] {
		columns = append(columns, strings.TrimSpace(header))
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(columns))
		empty := true
		for i, column := range columns {
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			if value != "" {
				empty = false
			}
			row[column] = value
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return Table{}, ErrEmptyFile
	}

	return Table{Columns: columns, Rows: rows}, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}

	best := ','
	bestCount := bytes.Count(line, []byte{','})
	if count := bytes.Count(line, []byte{';'}); count > bestCount {
		best, bestCount = ';', count
	}
	if count := bytes.Count(line, []byte{'\t'}); count > bestCount {
		best = '\t'
	}
	return best
}
