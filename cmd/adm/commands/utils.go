package commands

import (
	"strings"
)

// maskMongoURI hides the credentials of a connection string for display
func maskMongoURI(uri string) string {
	if uri == "" {
		return "(not set)"
	}

	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}
	return scheme + "://***:***@" + rest[at+1:]
}

// truncate shortens s to at most n runes for table output
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
