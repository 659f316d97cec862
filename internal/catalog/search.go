package catalog

import "unicode/utf8"

// PrefixUpperBound returns the smallest string greater than every string
// starting with term, by bumping the last code point. The surrogate gap is
// skipped. An empty result means no upper bound exists.
func PrefixUpperBound(term string) string {
	runes := []rune(term)
	for len(runes) > 0 {
		last := runes[len(runes)-1]
		if last >= utf8.MaxRune {
			runes = runes[:len(runes)-1]
			continue
		}
		next := last + 1
		if next >= 0xD800 && next <= 0xDFFF {
			next = 0xE000
		}
		runes[len(runes)-1] = next
		return string(runes)
	}
	return ""
}

// InPrefixRange reports term <= v < PrefixUpperBound(term) using byte order.
func InPrefixRange(v, term string) bool {
	if v < term {
		return false
	}
	upper := PrefixUpperBound(term)
	return upper == "" || v < upper
}

// MergeMatches appends barcode matches to name matches, skipping duplicates.
func MergeMatches(byName, byBarcode []Product) []Product {
	seen := make(map[string]struct{}, len(byName)+len(byBarcode))
	out := make([]Product, 0, len(byName)+len(byBarcode))
	for _, group := range [][]Product{byName, byBarcode} {
		for _, p := range group {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
