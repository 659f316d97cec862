package catalog

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPrefixUpperBound(t *testing.T) {
	cases := map[string]string{
		"Para":                           "Parb",
		"a":                              "b",
		"12":                             "13",
		"z":                              "{",
		"":                               "",
		"\U0010FFFF":                     "",
		"a\U0010FFFF":                    "b",
		string(rune(0xD7FF)):             string(rune(0xE000)),
		"باراسيتامول":                    "باراسيتاموم",
	}
	for in, want := range cases {
		assert.Equal(t, want, PrefixUpperBound(in), "term %q", in)
	}
	assert.True(t, utf8.ValidString(PrefixUpperBound(string(rune(0xD7FF)))))
}

func TestInPrefixRangeIsCaseSensitive(t *testing.T) {
	assert.True(t, InPrefixRange("Paracetamol", "Para"))
	assert.True(t, InPrefixRange("Para", "Para"))
	assert.False(t, InPrefixRange("paracetamol", "Para"))
	assert.False(t, InPrefixRange("Parb", "Para"))
	assert.False(t, InPrefixRange("Pa", "Para"))
	assert.True(t, InPrefixRange("anything", ""))
}

func TestMergeMatchesNameFirstWithoutDuplicates(t *testing.T) {
	byName := []Product{{ID: "1", Name: "123 Syrup"}, {ID: "2", Name: "123 Tabs"}}
	byBarcode := []Product{{ID: "3", Barcode: "1234"}, {ID: "1", Barcode: "1239"}}

	merged := MergeMatches(byName, byBarcode)

	ids := make([]string, 0, len(merged))
	for _, p := range merged {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}
