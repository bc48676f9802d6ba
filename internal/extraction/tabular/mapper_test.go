package tabular

import (
	"errors"
	"testing"
	"time"
)

func TestSuggestColumnsFirstMatchWins(t *testing.T) {
	dateCol, valueCol := SuggestColumns([]string{"Kommentar", "Ablesedatum", "Datum", "Zählerstand (kWh)", "Wert"})
	if dateCol != "Ablesedatum" {
		t.Fatalf("expected first date-like column, got %q", dateCol)
	}
	if valueCol != "Zählerstand (kWh)" {
		t.Fatalf("expected first value-like column, got %q", valueCol)
	}
}

func TestSuggestColumnsNoCandidates(t *testing.T) {
	dateCol, valueCol := SuggestColumns([]string{"Foo", "Bar"})
	if dateCol != "" || valueCol != "" {
		t.Fatalf("expected empty suggestions, got %q/%q", dateCol, valueCol)
	}
}

func TestParseDateCellFormatOrder(t *testing.T) {
	// DD.MM.YYYY parses as 1 February, not 2 January.
	parsed, ok := ParseDateCell("01.02.2024")
	if !ok {
		t.Fatalf("expected parse success")
	}
	if parsed.Day() != 1 || parsed.Month() != time.February {
		t.Fatalf("expected 1 February 2024, got %s", parsed)
	}

	// ISO wins regardless of locale.
	parsed, ok = ParseDateCell("2024-02-01T10:00:00Z")
	if !ok || parsed.Day() != 1 || parsed.Month() != time.February {
		t.Fatalf("expected ISO 2024-02-01, got %s ok=%v", parsed, ok)
	}

	if _, ok := ParseDateCell("Februar 2024"); ok {
		t.Fatalf("expected unmatched cell to fail")
	}
	if _, ok := ParseDateCell("31.02.2024"); ok {
		t.Fatalf("expected impossible calendar date to fail")
	}
}

func TestParseValueCellLocales(t *testing.T) {
	cases := []struct {
		cell   string
		locale NumberLocale
		want   float64
	}{
		{"12.345,67", LocaleEuropean, 12345.67},
		{"12345.67", LocaleEuropean, 12345.67},
		{"12,345.67", LocalePlain, 12345.67},
		{"4.100 kWh", LocalePlain, 4.1},
		{"238,5 m³", LocaleEuropean, 238.5},
	}
	for _, tc := range cases {
		got, ok := ParseValueCell(tc.cell, tc.locale)
		if !ok || got != tc.want {
			t.Fatalf("%q (%s): expected %v, got %v ok=%v", tc.cell, tc.locale, tc.want, got, ok)
		}
	}

	if _, ok := ParseValueCell("n/a", LocaleEuropean); ok {
		t.Fatalf("expected non-numeric cell to fail")
	}
}

func TestMapRowsSortsAndDrops(t *testing.T) {
	table := Table{
		Columns: []string{"Datum", "Stand"},
		Rows: []map[string]string{
			{"Datum": "15.03.2024", "Stand": "1.250,5"},
			{"Datum": "15.01.2024", "Stand": "1.100,0"},
			{"Datum": "irgendwann", "Stand": "1.300,0"},
			{"Datum": "15.02.2024", "Stand": "kaputt"},
		},
	}

	rows, err := MapRows(table, "Datum", "Stand", LocaleEuropean)
	if err != nil {
		t.Fatalf("map rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", len(rows))
	}
	if !rows[0].Date.Before(rows[1].Date) {
		t.Fatalf("expected ascending date order")
	}
	if rows[0].Value != 1100 || rows[1].Value != 1250.5 {
		t.Fatalf("unexpected values: %+v", rows)
	}
}

func TestMapRowsMissingMapping(t *testing.T) {
	if _, err := MapRows(Table{}, "", "Stand", LocaleEuropean); !errors.Is(err, ErrMissingMapping) {
		t.Fatalf("expected ErrMissingMapping, got %v", err)
	}
}

func TestParseCSVDelimiterSniffing(t *testing.T) {
	data := []byte("Datum;Zählerstand;Notiz\n01.01.2024;100;\n01.02.2024;120;ok\n;;\n")
	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(table.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows (empty row dropped), got %d", len(table.Rows))
	}
	if table.Rows[1]["Notiz"] != "ok" {
		t.Fatalf("unexpected cell: %+v", table.Rows[1])
	}
}

func TestParseCSVTabDelimited(t *testing.T) {
	data := []byte("date\tvalue\n2024-01-01\t100\n")
	table, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if table.Rows[0]["value"] != "100" {
		t.Fatalf("unexpected row: %+v", table.Rows[0])
	}
}

func TestParseCSVEmpty(t *testing.T) {
	if _, err := ParseCSV([]byte("header1,header2\n")); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}
