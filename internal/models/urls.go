package models

import "strings"

// CleanURL normalizes an attachment URL pasted from a table cell or free text.
func CleanURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	for s != "" && strings.ContainsRune(")]},", rune(s[len(s)-1])) {
		s = strings.TrimRight(s[:len(s)-1], " \t")
	}
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, " ", "%20")
}

// CleanURLs cleans every URL, drops empties and removes exact duplicates
// while keeping first-seen order.
func CleanURLs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		c := CleanURL(u)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
