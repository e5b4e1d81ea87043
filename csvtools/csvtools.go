// Package csvtools slices the sectioned CSV exports brokerages produce into
// their constituent tables, and parses the number formats found in them.
package csvtools

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/shopspring/decimal"
)

// Criterion describes one section of a brokerage export: the header row that
// opens it and the row that closes it.
type Criterion struct {
	// Start is the leading cells of the row that opens the section.
	// The matching row itself is not part of the section.
	Start []string
	// End is the leading cells of the row that closes the section.
	// Nil means the section runs until a blank row or the end of the file.
	End []string
	// Columns keeps this many leading columns of each row; rows with fewer
	// columns are dropped. Zero keeps every row unchanged.
	Columns int
}

// Section is the rows captured for one criterion.
type Section struct {
	Criterion Criterion
	Rows      [][]string
}

// ParseSections scans the export once, matching the criteria in order. A
// criterion whose section never appears is simply absent from the result.
//
// Rows are parsed line by line: brokerage exports never quote newlines, and
// the blank lines separating sections are significant.
func ParseSections(r io.Reader, criteria ...Criterion) ([]Section, error) {
	if len(criteria) == 0 {
		return nil, fmt.Errorf("no section criteria given")
	}

	var sections []Section
	current := 0
	var rows [][]string
	open := false

	flush := func() {
		sections = append(sections, Section{Criterion: criteria[current], Rows: rows})
		rows, open = nil, false
		current++
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() && current < len(criteria) {
		line := strings.TrimRight(scanner.Text(), "\r")
		row, err := splitRow(line)
		if err != nil {
			return nil, fmt.Errorf("malformed csv row %q: %w", line, err)
		}
		criterion := criteria[current]

		if hasPrefix(row, criterion.Start) {
			rows, open = nil, true
			continue
		}
		if open && endsSection(row, criterion.End) {
			flush()
			continue
		}
		if open {
			if criterion.Columns > 0 {
				if len(row) < criterion.Columns {
					continue
				}
				row = row[:criterion.Columns]
			}
			rows = append(rows, row)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if open {
		flush()
	}
	return sections, nil
}

// splitRow parses one physical line as a CSV record. A blank line is an
// empty record.
func splitRow(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	return reader.Read()
}

// hasPrefix reports whether the row begins with the given cells.
func hasPrefix(row, cells []string) bool {
	if len(cells) == 0 || len(row) < len(cells) {
		return false
	}
	for i, c := range cells {
		if row[i] != c {
			return false
		}
	}
	return true
}

// endsSection reports whether the row closes a section with the given end
// match. No end match means a blank row closes the section.
func endsSection(row, end []string) bool {
	if len(end) == 0 {
		return isBlank(row)
	}
	if len(end) == 1 && end[0] == "" {
		// A lone empty cell matches any row opening with one, which is how
		// exports pad the gap between tables.
		return len(row) == 0 || row[0] == ""
	}
	return hasPrefix(row, end)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return len(row) == 0 || row[0] == ""
}

// ParseDecimal parses the numbers found in brokerage exports: currency
// symbols and thousands separators are stripped, and the placeholders used
// for missing values ("N/A", "—", "Free") parse as zero.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "N/A" || s == "—" || strings.EqualFold(s, "free") {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimPrefix(s, "+")
	return decimal.NewFromString(s)
}

// Lenient maps transform over the items. In lenient mode a failing item is
// logged and skipped; otherwise the first failure aborts the whole parse.
func Lenient[T, U any](items []T, transform func(T) (U, error), lenient bool) ([]U, error) {
	out := make([]U, 0, len(items))
	for _, item := range items {
		v, err := transform(item)
		if err != nil {
			if lenient {
				log.Printf("warning: failed to parse %v: %v", item, err)
				continue
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
