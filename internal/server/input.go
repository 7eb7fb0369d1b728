package server

import (
	"regexp"
	"strings"
)

var userURLPattern = regexp.MustCompile(`(?i)^https://www\.youtube\.com/user/([^/]+)/?.*$`)

// NormalizeChannelInput reduces operator input to either a legacy author
// handle or a raw channel id. A channel-page URL of the
// https://www.youtube.com/user/<name> form collapses to its author name.
func NormalizeChannelInput(input string) string {
	input = strings.TrimSpace(input)
	if m := userURLPattern.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return input
}

// LooksLikeChannelID reports whether the input is a raw channel id rather
// than an author handle. Channel ids are 24 characters starting with "UC".
func LooksLikeChannelID(input string) bool {
	return len(input) == 24 && strings.HasPrefix(input, "UC")
}
