package provider

import (
	"encoding/json"
	"regexp"
	"strings"
)

// longURLPattern narrows a destination-URL value up to the title field that
// reliably follows it in provider payloads. (?s) because the corruption this
// repairs is raw newlines inside the value.
var longURLPattern = regexp.MustCompile(`(?s)"long_url"\s*:\s*"(.*?)"\s*,\s*"title"`)

// Sanitize repairs a raw provider payload that should be JSON but is
// frequently corrupted by unescaped control characters or stray text inside
// string fields. Valid input is returned byte-for-byte unchanged. The caller
// is responsible for treating output that still fails to parse as fatal for
// the page.
func Sanitize(raw string) string {
	if json.Valid([]byte(raw)) {
		return raw
	}

	repaired := repairLongURLs(raw)
	return escapeControlChars(repaired)
}

// repairLongURLs rewrites each destination-URL value: backslashes and quotes
// are escaped, and anything between the value and the title sentinel is
// dropped. Control characters are left for the global pass so they keep
// their canonical escapes.
func repairLongURLs(raw string) string {
	return longURLPattern.ReplaceAllStringFunc(raw, func(match string) string {
		sub := longURLPattern.FindStringSubmatch(match)
		if sub == nil {
			return match
		}

		value := sub[1]
		value = strings.ReplaceAll(value, `\`, `\\`)
		value = strings.ReplaceAll(value, `"`, `\"`)

		return `"long_url": "` + value + `", "title"`
	})
}

// escapeControlChars replaces raw control characters with their canonical
// JSON escapes, deleting the ones that have none.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if r >= 0x20 {
			b.WriteRune(r)
			continue
		}
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		}
	}

	return b.String()
}
