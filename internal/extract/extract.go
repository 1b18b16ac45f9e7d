// Package extract converts raw recognized tag lines into a structured
// garment record via an ordered table of field rules. Pattern
// non-matches are never errors; a line that matches nothing simply
// contributes nothing.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports structurally malformed input to the extractor,
// such as a nil line sequence. In-line pattern mismatches are not
// errors.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Product-code patterns in evaluation order, most specific first, so a
// looser pattern never swallows a line that a stricter one should own.
// Each entry may capture a group; group 1 (or the whole match when there
// is no group) becomes the product code.
var productCodeRules = []*regexp.Regexp{
	regexp.MustCompile(`\d{13}`),                     // EAN-13-shaped numeric run
	regexp.MustCompile(`[A-Z]{2}\d{5}[A-Z]{2}-[A-Z]{2}`), // style code, e.g. HT00189FT-US
	regexp.MustCompile(`[A-Z]\d{3}-\d{4}`),           // style code, e.g. S202-4575
	regexp.MustCompile(`\d{6}`),                      // bare article number
	regexp.MustCompile(`\d{3}-(\d{6})`),              // vendor-article pair; article group wins
}

// garmentKeywords flags lines that belong in the garment name.
var garmentKeywords = []string{
	"KNIT", "SWEATER", "SHIRT", "PANTS", "DRESS", "SKIRT",
	"JACKET", "HOODIE", "TEE", "POLO", "JEANS", "CARDIGAN",
	"COAT", "VEST", "SHORTS",
}

// sizeTokens is the closed set of bare size lines, matched whole-line
// and case-sensitive as printed.
var sizeTokens = map[string]struct{}{
	"XS": {}, "S": {}, "M": {}, "L": {}, "XL": {},
}

// colorPattern matches a color code followed by a color name, e.g. "75 Blue".
var colorPattern = regexp.MustCompile(`^\d{2}\s+\pL+$`)

// measurementLabels maps printed dimension labels to record keys. The
// slice is ordered so a line carrying two labels resolves the same way
// every run.
var measurementLabels = []struct {
	label string
	key   string
}{
	{"Chest", "chest"},
	{"Waist", "waist"},
	{"Length", "length"},
}

// Extract runs every line through the field rules and assembles the
// structured record. For single-valued fields the first matching line in
// order wins; later matches are ignored. The same line may contribute to
// several different fields, since the category checks are independent.
// The output is deterministic for a given line sequence.
func Extract(lines []string) (GarmentInfo, error) {
	if lines == nil {
		return GarmentInfo{}, &ParseError{Err: errors.New("nil line sequence")}
	}

	info := GarmentInfo{RawText: strings.Join(lines, "\n")}
	var nameParts []string

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if info.ProductCode == "" {
			info.ProductCode = matchProductCode(line)
		}
		if part, ok := matchNamePart(line); ok {
			nameParts = append(nameParts, part)
		}
		if info.Size == "" {
			if _, ok := sizeTokens[line]; ok {
				info.Size = line
			}
		}
		if info.Color == "" && colorPattern.MatchString(line) {
			info.Color = line
		}
		if info.Price == nil {
			if price, ok := matchPrice(line); ok {
				info.Price = &price
			}
		}
		if name, pct, ok := matchMaterial(line); ok {
			if info.Materials == nil {
				info.Materials = make(map[string]int)
			}
			if _, exists := info.Materials[name]; !exists {
				info.Materials[name] = pct
			}
		}
		if key, value, ok := matchMeasurement(line); ok {
			if info.Measurements == nil {
				info.Measurements = make(map[string]string)
			}
			if _, exists := info.Measurements[key]; !exists {
				info.Measurements[key] = value
			}
		}
	}

	info.Name = strings.Join(nameParts, " ")
	return info, nil
}

// matchProductCode tests the ordered code rules; the first rule that
// matches wins for this line.
func matchProductCode(line string) string {
	for _, re := range productCodeRules {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
		return m[0]
	}
	return ""
}

func matchNamePart(line string) (string, bool) {
	for _, kw := range garmentKeywords {
		if strings.Contains(line, kw) {
			return line, true
		}
	}
	return "", false
}

func matchPrice(line string) (float64, bool) {
	if !strings.Contains(line, "$") {
		return 0, false
	}
	s := strings.ReplaceAll(line, "$", "")
	s = strings.TrimSpace(s)
	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Plenty of tags print a stray $ with no clean number after it.
		return 0, false
	}
	return price, true
}

func matchMaterial(line string) (string, int, bool) {
	if !strings.Contains(line, "%") {
		return "", 0, false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", 0, false
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(fields[0], "%"))
	if err != nil || pct < 0 || pct > 100 {
		return "", 0, false
	}
	return fields[len(fields)-1], pct, true
}

func matchMeasurement(line string) (string, string, bool) {
	if !strings.Contains(line, "inch") && !strings.Contains(line, `"`) {
		return "", "", false
	}
	for _, m := range measurementLabels {
		if !strings.Contains(line, m.label) {
			continue
		}
		value := line
		value = strings.ReplaceAll(value, m.label, "")
		value = strings.ReplaceAll(value, "inches", "")
		value = strings.ReplaceAll(value, "inch", "")
		value = strings.ReplaceAll(value, `"`, "")
		value = strings.TrimSpace(value)
		return m.key, value, true
	}
	return "", "", false
}
