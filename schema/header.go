package schema

import (
	"strings"
	"unicode"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/finploy/matchbatch"
)

// FoldText lowercases s and strips diacritics, "Bengalūru" becomes "bengaluru".
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// NormalizeHeader folds a header and drops spaces, underscores, hyphens and dots.
func NormalizeHeader(h string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.', '\t', '\u00a0':
			return -1
		}
		return r
	}, FoldText(strings.TrimPrefix(h, "\ufeff")))
}

// Header is a resolved table header: the position of each canonical field.
type Header struct {
	Columns []string
	index   map[Field]int
}

// Resolve finds the column of every field in fields using Aliases. Each
// required field that has no column is reported; all missing fields are
// aggregated into one error.
func Resolve(columns []string, fields []Field, required ...Field) (*Header, error) {
	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = NormalizeHeader(c)
	}
	h := &Header{Columns: columns, index: make(map[Field]int, len(fields)+len(required))}
	for _, f := range append(append([]Field(nil), fields...), required...) {
		if i, ok := findColumn(normalized, f); ok {
			h.index[f] = i
		}
	}
	var merr *multierror.Error
	for _, f := range required {
		if _, ok := h.index[f]; !ok {
			merr = multierror.Append(merr, errors.Errorf("column %q not found (accepted: %s)", f, strings.Join(aliasesOf(f), ", ")))
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeMissingColumn, "missing required columns", err)
	}
	return h, nil
}

// aliasesOf lists the accepted headers of f; the canonical name always matches last.
func aliasesOf(f Field) []string {
	return append(append([]string(nil), Aliases[f]...), string(f))
}

func findColumn(normalized []string, f Field) (int, bool) {
	for _, alias := range aliasesOf(f) {
		want := NormalizeHeader(alias)
		for i, c := range normalized {
			if c == want {
				return i, true
			}
		}
	}
	return -1, false
}

func (h *Header) Has(f Field) bool {
	_, ok := h.index[f]
	return ok
}

func (h *Header) Index(f Field) (int, bool) {
	i, ok := h.index[f]
	return i, ok
}

// Column returns the source header of f, or "".
func (h *Header) Column(f Field) string {
	if i, ok := h.index[f]; ok {
		return h.Columns[i]
	}
	return ""
}

// Get returns the trimmed cell of f in row. Missing cells and NaN-like
// placeholders read as "".
func (h *Header) Get(row []string, f Field) string {
	i, ok := h.index[f]
	if !ok || i >= len(row) {
		return ""
	}
	return cell(row[i])
}

func cell(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "nan", "none", "null", "<na>":
		return ""
	}
	return v
}

// Attributes collects the non-empty values of fields present in the header.
func (h *Header) Attributes(row []string, fields []Field) map[string]string {
	out := make(map[string]string)
	for _, f := range fields {
		if v := h.Get(row, f); v != "" {
			out[string(f)] = v
		}
	}
	return out
}

func blank(row []string) bool {
	for _, v := range row {
		if cell(v) != "" {
			return false
		}
	}
	return true
}
