package tabular

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NumberLocale hints how separators in a value cell are interpreted.
// The cell content alone cannot disambiguate "12.345" (twelve thousand
// or twelve point three) so the mapping step carries an explicit hint.
type NumberLocale string

const (
	// LocaleEuropean treats comma as the decimal separator and dot as
	// a thousands separator (1.234,56).
	LocaleEuropean NumberLocale = "european"
	// LocalePlain treats dot as the decimal separator and comma as a
	// thousands separator (1,234.56).
	LocalePlain NumberLocale = "plain"
)

var (
	dateColumnPattern  = regexp.MustCompile(`(?i)datum|date|zeit|time`)
	valueColumnPattern = regexp.MustCompile(`(?i)stand|wert|value|reading|verbrauch|kwh|m³|cbm`)

	datePatterns = []struct {
		re     *regexp.Regexp
		yearIx int
		monIx  int
		dayIx  int
	}{
		{regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`), 1, 2, 3}, // ISO
		{regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})`), 3, 2, 1}, // DD.MM.YYYY
		{regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})`), 3, 2, 1},   // DD/MM/YYYY
		{regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})`), 3, 2, 1},   // DD-MM-YYYY
	}
)

// SuggestColumns proposes the date and value columns by keyword match
// against the headers. The first matching header wins; an empty string
// means no candidate was found.
func SuggestColumns(columns []string) (dateColumn, valueColumn string) {
	for _, column := range columns {
		if dateColumn == "" && dateColumnPattern.MatchString(column) {
			dateColumn = column
		}
		if valueColumn == "" && valueColumnPattern.MatchString(column) {
			valueColumn = column
		}
	}
	return dateColumn, valueColumn
}

// ParseDateCell parses a date cell, trying ISO, DD.MM.YYYY, DD/MM/YYYY
// and DD-MM-YYYY in that order. The first pattern matching the cell's
// prefix wins.
func ParseDateCell(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	for _, pattern := range datePatterns {
		match := pattern.re.FindStringSubmatch(cell)
		if match == nil {
			continue
		}
		year, _ := strconv.Atoi(match[pattern.yearIx])
		month, _ := strconv.Atoi(match[pattern.monIx])
		day, _ := strconv.Atoi(match[pattern.dayIx])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		parsed := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if parsed.Day() != day || parsed.Month() != time.Month(month) {
			// time.Date normalizes overflow such as Feb 31.
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// ParseValueCell parses a numeric cell. All characters except digits,
// comma and dot are stripped first; the locale hint then resolves which
// separator is decimal.
func ParseValueCell(cell string, locale NumberLocale) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, cell)
	if cleaned == "" {
		return 0, false
	}

	switch locale {
	case LocalePlain:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	default:
		// European: drop thousands dots only when a decimal comma is
		// present; a lone dot stays decimal so "12345.67" survives.
		if strings.Contains(cleaned, ",") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// MappedRow is one parsed (date, value) pair from a confirmed mapping.
type MappedRow struct {
	Date  time.Time
	Value float64
}

// MapRows parses the table's rows through the confirmed column mapping.
// Rows whose date or value cell fails to parse are dropped, not
// reported as errors; their absence is visible in the row count. The
// result is sorted ascending by date.
func MapRows(table Table, dateColumn, valueColumn string, locale NumberLocale) ([]MappedRow, error) {
	if dateColumn == "" || valueColumn == "" {
		return nil, ErrMissingMapping
	}

	rows := make([]MappedRow, 0, len(table.Rows))
	for _, raw := range table.Rows {
		date, ok := ParseDateCell(raw[dateColumn])
		if !ok {
			continue
		}
		value, ok := ParseValueCell(raw[valueColumn], locale)
		if !ok {
			continue
		}
		rows = append(rows, MappedRow{Date: date, Value: value})
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}
