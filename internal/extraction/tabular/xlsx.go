package tabular

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX decodes an Excel workbook into a table using the first
// sheet. The first row supplies column names.
func ParseXLSX(data []byte) (Table, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, err
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyFile
	}

	records, err := file.GetRows(sheets[0])
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
