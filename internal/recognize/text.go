package recognize

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanLine normalizes a recognized line: NFC normalization, zero-width
// and control character removal, whitespace collapse, trim, and the
// language correction replacements when a language is configured.
func CleanLine(s, language string) string {
	if s == "" {
		return s
	}
	s = norm.NFC.String(s)
	s = removeZeroWidth(s)
	s = removeControlChars(s)
	if language != "" {
		s = applyReplaceMap(s, replaceMapForLanguage(language))
	}
	s = collapseWhitespace(s)
	return strings.TrimSpace(s)
}

// replaceMapForLanguage returns correction replacements for recognizer
// confusions common in the given language's tag text.
func replaceMapForLanguage(language string) map[string]string {
	switch strings.ToLower(language) {
	case "en":
		return map[string]string{
			" ": " ", // non-breaking space
			"‘": "'",
			"’": "'",
			"“": `"`,
			"”": `"`,
			"–": "-",
			"—": "-",
		}
	default:
		return nil
	}
}

func applyReplaceMap(s string, replaceMap map[string]string) string {
	if len(replaceMap) == 0 {
		return s
	}
	pairs := make([]string, 0, len(replaceMap)*2)
	for _, from := range sortedKeys(replaceMap) {
		pairs = append(pairs, from, replaceMap[from])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func removeZeroWidth(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '​', '‌', '‍', '\ufeff':
			return -1
		}
		return r
	}, s)
}

func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
