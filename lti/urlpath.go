package lti

import "strings"

// JoinPath joins and normalizes URL path parts (not full URLs, unlike
// url.JoinPath). The result always starts with exactly one slash, internal
// doubled slashes are preserved, and a trailing slash on the last part is kept.
func JoinPath(parts ...string) string {
	if len(parts) == 0 {
		return "/"
	}

	stripped := make([]string, len(parts))
	for i, part := range parts {
		stripped[i] = strings.Trim(part, "/")
	}
	joined := strings.Join(stripped, "/")

	if strings.HasSuffix(parts[len(parts)-1], "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}
