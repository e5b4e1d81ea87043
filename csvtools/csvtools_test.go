package csvtools

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const sectionedExport = `Account Summary

Stocks
Symbol,Description,Quantity
AAPL,APPLE INC,10
MSFT,MICROSOFT CORP,5
,,
Bonds
Symbol,Description,Quantity
912810SU3,US TREASURY,2
,,
`

func TestParseSections(t *testing.T) {
	sections, err := ParseSections(strings.NewReader(sectionedExport),
		Criterion{Start: []string{"Stocks"}, End: []string{""}, Columns: 3},
		Criterion{Start: []string{"Bonds"}, End: []string{""}, Columns: 3},
	)
	if err != nil {
		t.Fatalf("ParseSections(): %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	// The header row inside each section is captured; adapters skip it by
	// column content, not position.
	stocks := sections[0].Rows
	if len(stocks) != 3 || stocks[1][0] != "AAPL" || stocks[2][2] != "5" {
		t.Errorf("stocks section = %v", stocks)
	}
	bonds := sections[1].Rows
	if len(bonds) != 2 || bonds[1][0] != "912810SU3" {
		t.Errorf("bonds section = %v", bonds)
	}
}

func TestParseSectionsRunsToEOF(t *testing.T) {
	input := "Header,X\nTransactions\na,1\nb,2\n"
	sections, err := ParseSections(strings.NewReader(input),
		Criterion{Start: []string{"Transactions"}},
	)
	if err != nil {
		t.Fatalf("ParseSections(): %v", err)
	}
	if len(sections) != 1 || len(sections[0].Rows) != 2 {
		t.Fatalf("sections = %v, want one section of 2 rows", sections)
	}
}

func TestParseSectionsMissingSection(t *testing.T) {
	sections, err := ParseSections(strings.NewReader("a,b\nc,d\n"),
		Criterion{Start: []string{"Options"}},
	)
	if err != nil {
		t.Fatalf("ParseSections(): %v", err)
	}
	if len(sections) != 0 {
		t.Errorf("sections = %v, want none for an absent section", sections)
	}
}

func TestParseSectionsDropsNarrowRows(t *testing.T) {
	input := "Rows\na,b,c\nshort\nd,e,f\n"
	sections, err := ParseSections(strings.NewReader(input),
		Criterion{Start: []string{"Rows"}, Columns: 3},
	)
	if err != nil {
		t.Fatalf("ParseSections(): %v", err)
	}
	if len(sections) != 1 || len(sections[0].Rows) != 2 {
		t.Fatalf("sections = %v, want the narrow row dropped", sections)
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234.56", "1234.56"},
		{"$1,234.56", "1234.56"},
		{"-$42.00", "-42"},
		{"N/A", "0"},
		{"—", "0"},
		{"Free", "0"},
		{"+0.5", "0.5"},
	}
	for _, tc := range tests {
		got, err := ParseDecimal(tc.in)
		if err != nil {
			t.Errorf("ParseDecimal(%q): %v", tc.in, err)
			continue
		}
		want, _ := decimal.NewFromString(tc.want)
		if !got.Equal(want) {
			t.Errorf("ParseDecimal(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
	if _, err := ParseDecimal("garbage"); err == nil {
		t.Error("ParseDecimal accepted garbage")
	}
}

func TestLenient(t *testing.T) {
	parse := func(s string) (decimal.Decimal, error) { return ParseDecimal(s) }
	in := []string{"1", "garbage", "3"}

	if _, err := Lenient(in, parse, false); err == nil {
		t.Error("strict mode swallowed a parse failure")
	}
	out, err := Lenient(in, parse, true)
	if err != nil {
		t.Fatalf("Lenient(): %v", err)
	}
	if len(out) != 2 {
		t.Errorf("lenient mode kept %d values, want 2", len(out))
	}
}
