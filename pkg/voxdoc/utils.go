package voxdoc

import "unicode/utf8"

// getString extracts a string from a loosely typed tool-call argument map.
// ok is false when the key is absent or holds a non-string value.
func getString(data map[string]interface{}, key string) (string, bool) {
	val, ok := data[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

func hasKey(data map[string]interface{}, key string) bool {
	_, ok := data[key]
	return ok
}

// TruncateForContext bounds a document snapshot to the control-message byte
// budget the remote endpoint enforces. The cut backs off to the previous rune
// boundary so the truncated snapshot stays valid UTF-8.
func TruncateForContext(html string, limit int) string {
	if limit <= 0 || len(html) <= limit {
		return html
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(html[cut]) {
		cut--
	}
	return html[:cut]
}
