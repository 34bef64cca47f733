package report

import "strings"

// DomainOf returns the text between "://" and the next "/" (or the end of
// url). It is a textual heuristic: ports and "www." are kept. Without a
// "://" the first two characters are dropped and the same rule applies to
// the rest, matching how existing reports were grouped.
func DomainOf(url string) string {
	var rest string
	if i := strings.Index(url, "://"); i >= 0 {
		rest = url[i+3:]
	} else {
		runes := []rune(url)
		if len(runes) <= 2 {
			return ""
		}
		rest = string(runes[2:])
	}

	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return rest[:j]
	}
	return rest
}
