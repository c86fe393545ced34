package services

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// LineItemKey builds the merge identity of a line: the product id plus the
// parameter selection with names NFC-normalised and sorted. Entries with a
// non-positive quantity are ignored, so nil, empty and all-zero selections share
// a key.
func LineItemKey(productID int64, params map[string]int) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(productID, 10))

	normalized := NormalizeParameters(params)
	if len(normalized) == 0 {
		return b.String()
	}

	names := make([]string, 0, len(normalized))
	for name := range normalized {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteByte('|')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Quote(name))
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(normalized[name]))
	}
	return b.String()
}

// NormalizeParameters drops non-positive quantities, trims and NFC-normalises
// names, and folds duplicates that normalise to the same name. It returns nil
// when nothing remains.
func NormalizeParameters(params map[string]int) map[string]int {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]int, len(params))
	for name, qty := range params {
		if qty <= 0 {
			continue
		}
		key := NormalizeParameterName(name)
		if key == "" {
			continue
		}
		out[key] += qty
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeParameterName trims and NFC-normalises a parameter name.
func NormalizeParameterName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func parameterQuantity(params map[string]int) int {
	total := 0
	for _, qty := range params {
		if qty > 0 {
			total += qty
		}
	}
	return total
}
