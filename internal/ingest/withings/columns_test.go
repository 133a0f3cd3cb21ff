package withings

import (
	"strings"
	"testing"
)

func TestRowTextCandidateOrder(t *testing.T) {
	tbl, err := decodeTable(strings.NewReader("\ufeffDate,STEPS,value,Empty\n2024-01-01,42,7,\n"))
	if err != nil {
		t.Fatalf("decodeTable: %v", err)
	}
	if len(tbl.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(tbl.rows))
	}
	r := row{t: tbl, values: tbl.rows[0]}

	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"bom stripped from first header", []string{"Date"}, "2024-01-01"},
		{"case-insensitive fallback", []string{"steps"}, "42"},
		{"first candidate wins", []string{"value", "steps"}, "7"},
		{"empty value falls through", []string{"empty", "value"}, "7"},
		{"unknown column", []string{"distance"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.text(tt.candidates...); got != tt.want {
				t.Errorf("text(%v) = %q, want %q", tt.candidates, got, tt.want)
			}
		})
	}
}

func TestRowNumberFallback(t *testing.T) {
	tbl, err := decodeTable(strings.NewReader("a,b,c,d\n12.5,abc,,\"1,5\"\n"))
	if err != nil {
		t.Fatalf("decodeTable: %v", err)
	}
	r := row{t: tbl, values: tbl.rows[0]}

	if got := r.number("a"); got != 12.5 {
		t.Errorf("number(a) = %v, want 12.5", got)
	}
	if got := r.number("b"); got != 0 {
		t.Errorf("number(b) = %v, want 0", got)
	}
	if got := r.number("missing"); got != 0 {
		t.Errorf("number(missing) = %v, want 0", got)
	}
	if got := r.number("d"); got != 1.5 {
		t.Errorf("number(d) = %v, want 1.5", got)
	}
	if got := r.optional("c"); got != nil {
		t.Errorf("optional(c) = %v, want nil", *got)
	}
}

func TestParseNumberSeparators(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1234.5", 1234.5, true},
		{" 80,5 ", 80.5, true},
		{"12,25", 12.25, true},
		{"0,125", 0.125, true},
		{"1,234", 1234, true},
		{"12,345,678", 12345678, true},
		{"1,234.5", 1234.5, true},
		{"-1,234", -1234, true},
		{"1,2345", 0, false},
		{"12,34,56", 0, false},
		{"1.234,5", 0, false},
		{"NaN", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parseNumber(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestShortRowsDoNotPanic(t *testing.T) {
	tbl, err := decodeTable(strings.NewReader("date,value,extra\n2024-01-01\n"))
	if err != nil {
		t.Fatalf("decodeTable: %v", err)
	}
	r := row{t: tbl, values: tbl.rows[0]}
	if got := r.text("extra"); got != "" {
		t.Errorf("text(extra) = %q, want empty", got)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-01", "2024-01-01"},
		{"2024-01-01 08:12:00", "2024-01-01"},
		{"2024-01-01T23:59:00+01:00", "2024-01-01"},
		{"2024/03/05", "2024-03-05"},
		{"05.03.2024", "2024-03-05"},
		{"1704067200", "2024-01-01"},
		{"", ""},
		{"yesterday", ""},
	}
	for _, tt := range tests {
		if got := normalizeDate(tt.in); got != tt.want {
			t.Errorf("normalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
