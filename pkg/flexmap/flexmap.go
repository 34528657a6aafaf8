// Package flexmap reads loosely shaped response maps where servers disagree
// on key casing ("access_token", "accessToken", "AccessToken").
package flexmap

import (
	"strings"
	"unicode"
)

// Get looks up key in m. The literal key wins; otherwise the snake_case and
// camelCase spellings are tried, then a case-insensitive match.
func Get(m map[string]any, key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[key]; ok {
		return v, true
	}
	for _, alt := range []string{Snake(key), Camel(key)} {
		if alt == key {
			continue
		}
		if v, ok := m[alt]; ok {
			return v, true
		}
	}

	want := strings.ToLower(Snake(key))
	for k, v := range m {
		if strings.ToLower(Snake(k)) == want {
			return v, true
		}
	}
	return nil, false
}

// Take is Get followed by deleting whichever key matched.
func Take(m map[string]any, key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[key]; ok {
		delete(m, key)
		return v, true
	}

	want := strings.ToLower(Snake(key))
	for k, v := range m {
		if strings.ToLower(Snake(k)) == want {
			delete(m, k)
			return v, true
		}
	}
	return nil, false
}

// Snake converts camelCase or PascalCase to snake_case. Runs of capitals
// stay together, so "TokenID" becomes "token_id".
func Snake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Camel converts snake_case to lowerCamelCase.
func Camel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))

	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
