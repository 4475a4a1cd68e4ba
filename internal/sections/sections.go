// Package sections splits generated text into the named parts that are
// written back. Every function here is total: any input yields a result.
package sections

import (
	"regexp"
	"strings"
)

// Keys of the map returned by Outputs.
const (
	Output1 = "output_1"
	Output2 = "output_2"
)

// Tag names used by the summary prompt.
var SummaryTags = []string{"summary", "scope", "cost", "quality", "timeline"}

// A marker is a line that starts, after optional heading decoration, with
// OUTPUT 1 or OUTPUT 2 in any case and with any mix of spaces, '_', '-' or
// '#' between the word and the digit.
var (
	marker1 = regexp.MustCompile(`(?im)^[ \t#=*>_-]*output[ \t_#-]*1\b`)
	marker2 = regexp.MustCompile(`(?im)^[ \t#=*>_-]*output[ \t_#-]*2\b`)
)

// ParseOutputs splits raw into the OUTPUT 1 and OUTPUT 2 regions, markers
// included, both trimmed.
//
//   - both markers, 2 after 1: [m1, m2) and [m2, end)
//   - only marker 1: [m1, end) and ""
//   - only marker 2: [0, m2) and [m2, end)
//   - marker 2 only before marker 1: "" and the whole text
//   - neither: "" and the whole text
func ParseOutputs(raw string) (string, string) {
	m1 := marker1.FindStringIndex(raw)
	if m1 != nil {
		if m2 := marker2.FindStringIndex(raw[m1[1]:]); m2 != nil {
			cut := m1[1] + m2[0]
			return strings.TrimSpace(raw[m1[0]:cut]), strings.TrimSpace(raw[cut:])
		}
		if marker2.MatchString(raw[:m1[0]]) {
			return "", strings.TrimSpace(raw)
		}
		return strings.TrimSpace(raw[m1[0]:]), ""
	}
	if m2 := marker2.FindStringIndex(raw); m2 != nil {
		return strings.TrimSpace(raw[:m2[0]]), strings.TrimSpace(raw[m2[0]:])
	}
	return "", strings.TrimSpace(raw)
}

// Outputs is ParseOutputs keyed by Output1 and Output2.
func Outputs(raw string) map[string]string {
	o1, o2 := ParseOutputs(raw)
	return map[string]string{Output1: o1, Output2: o2}
}

// ParseTags returns the trimmed body of the first <name>...</name> region for
// each name. Matching is case-insensitive and spans lines; a missing tag maps
// to "".
func ParseTags(raw string, names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = Tag(raw, name)
	}
	return out
}

// Tag extracts one tagged region.
func Tag(raw, name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	q := regexp.QuoteMeta(name)
	re := regexp.MustCompile(`(?is)<` + q + `\s*>(.*?)</` + q + `\s*>`)
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
