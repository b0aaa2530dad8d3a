package archive

import (
	"sort"
	"strconv"
	"strings"
)

// PaddingThreshold is the minimum number of single-digit suffixes for which
// the numeric order is restored. Below it the archive order is kept.
const PaddingThreshold = 5

// splitName splits "EinheitenWind_12.xml" into ("EinheitenWind", "12", ".xml").
// suffix is empty when the name has no "_" separator.
func splitName(name string) (base, suffix, ext string) {
	stem := name
	if i := strings.IndexByte(name, '.'); i >= 0 {
		stem, ext = name[:i], name[i:]
	}
	i := strings.LastIndexByte(stem, '_')
	if i < 0 {
		return stem, "", ext
	}
	return stem[:i], stem[i+1:], ext
}

func singleDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

// OrderEntries restores numeric order of partition names such as
// EinheitenWind_1.xml, EinheitenWind_2.xml, EinheitenWind_10.xml, which a
// lexical listing puts as 1, 10, 2.
//
// Single-digit suffixes are padded with one zero, the list is sorted and the
// padding is removed again. The result is used only when at least
// PaddingThreshold names were padded; otherwise names is returned as-is.
func OrderEntries(names []string) []string {
	type entry struct {
		key    string
		name   string
		padded bool
	}

	entries := make([]entry, len(names))
	padded := 0
	for i, n := range names {
		base, suffix, ext := splitName(n)
		e := entry{key: n, name: n}
		if suffix != "" && singleDigit(suffix) {
			e.key = base + "_0" + suffix + ext
			e.padded = true
			padded++
		}
		entries[i] = e
	}

	if padded < PaddingThreshold {
		return names
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].key < entries[j].key
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

// EntityKey returns the lowercased entity-type key of a member name:
// the part before the first "_" or ".".
func EntityKey(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexAny(name, "_."); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// Sequence returns the numeric suffix of a member name, or 0 when it has none.
func Sequence(name string) int {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	_, suffix, _ := splitName(name)
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
