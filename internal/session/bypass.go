package session

import "strings"

// BypassList names the request paths exempt from the inactivity check.
// Status and search endpoints are polled by clients in the background;
// counting those polls as activity (or expiring a session because of them)
// would log users out spuriously.
type BypassList struct {
	Prefixes   []string
	Substrings []string
}

func DefaultBypassList() BypassList {
	return BypassList{
		Prefixes:   []string{"/health"},
		Substrings: []string{"/stats/", "/search"},
	}
}

func (b BypassList) Matches(path string) bool {
	for _, prefix := range b.Prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, sub := range b.Substrings {
		if strings.Contains(path, sub) {
			return true
		}
	}
	return false
}
