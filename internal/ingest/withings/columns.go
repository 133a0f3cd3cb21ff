package withings

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/claude/healthmerge/internal/models"
)

// table is one decoded CSV entry. Header lookups go through row.text so every
// parser shares the same column fallback policy.
type table struct {
	exact  map[string]int
	folded map[string]int
	rows   [][]string
}

type row struct {
	t      *table
	values []string
}

// readTable decodes a CSV entry with a header row. Rows may have fewer or more
// fields than the header.
func readTable(f *zip.File) (*table, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	return decodeTable(rc)
}

func decodeTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return &table{exact: map[string]int{}, folded: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	t := &table{
		exact:  make(map[string]int, len(header)),
		folded: make(map[string]int, len(header)),
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if _, ok := t.exact[h]; !ok {
			t.exact[h] = i
		}
		k := strings.ToLower(h)
		if _, ok := t.folded[k]; !ok {
			t.folded[k] = i
		}
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// each calls fn for every data row.
func (t *table) each(fn func(r row)) {
	if t == nil {
		return
	}
	for _, rec := range t.rows {
		fn(row{t: t, values: rec})
	}
}

// has reports whether any candidate column exists in the header.
func (t *table) has(candidates ...string) bool {
	if t == nil {
		return false
	}
	for _, c := range candidates {
		if _, ok := t.exact[c]; ok {
			return true
		}
		if _, ok := t.folded[strings.ToLower(c)]; ok {
			return true
		}
	}
	return false
}

// text returns the first non-empty value among the candidate columns. Each
// candidate is tried verbatim first, then case-insensitively.
func (r row) text(candidates ...string) string {
	for _, c := range candidates {
		if i, ok := r.t.exact[c]; ok && i < len(r.values) {
			if v := strings.TrimSpace(r.values[i]); v != "" {
				return v
			}
		}
		if i, ok := r.t.folded[strings.ToLower(c)]; ok && i < len(r.values) {
			if v := strings.TrimSpace(r.values[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

// number returns the candidate column as a float, or 0 when absent or invalid.
func (r row) number(candidates ...string) float64 {
	v, _ := parseNumber(r.text(candidates...))
	return v
}

// optional returns the candidate column as a float, or nil when absent or invalid.
func (r row) optional(candidates ...string) *float64 {
	v, ok := parseNumber(r.text(candidates...))
	if !ok {
		return nil
	}
	return &v
}

var (
	groupedNumber = regexp.MustCompile(`^[-+]?[1-9]\d{0,2}(,\d{3})+(\.\d+)?$`)
	decimalComma  = regexp.MustCompile(`^[-+]?\d+,\d{1,2}$|^[-+]?0,\d+$`)
)

// parseNumber accepts "1234.5", "1,234.5", "1,234", decimal commas with one
// or two fraction digits ("1234,5") and surrounding whitespace. Any other
// comma makes the value invalid, as do non-finite values.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		switch {
		case groupedNumber.MatchString(s):
			s = strings.ReplaceAll(s, ",", "")
		case decimalComma.MatchString(s):
			s = strings.Replace(s, ",", ".", 1)
		default:
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseTimestamp parses the timestamp spellings found in exports, including
// unix seconds.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 1e9 {
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

// normalizeDate reduces a date or timestamp to a YYYY-MM-DD key, or "" when
// it cannot be read.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if d, err := time.Parse(models.DateLayout, s[:10]); err == nil {
			return d.Format(models.DateLayout)
		}
	}
	if t, ok := parseTimestamp(s); ok {
		return t.Format(models.DateLayout)
	}
	for _, layout := range []string{"2006/01/02", "02.01.2006"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(models.DateLayout)
		}
	}
	return ""
}
