package sync

import "regexp"

// videoPattern pairs a platform tag with the regular expression that
// recognizes its meeting links.
type videoPattern struct {
	platform string
	pattern  *regexp.Regexp
}

var videoPatterns = []videoPattern{
	{"zoom", regexp.MustCompile(`https?://[a-zA-Z0-9.-]*zoom\.us/(?:j|my|s)/[a-zA-Z0-9?&=_.-]+`)},
	{"google_meet", regexp.MustCompile(`https?://meet\.google\.com/[a-zA-Z0-9-]+`)},
	{"microsoft_teams", regexp.MustCompile(`https?://teams\.(?:microsoft|live)\.com/l/meetup-join/[^\s"'<>]+`)},
	{"webex", regexp.MustCompile(`https?://[a-zA-Z0-9.-]*webex\.com/(?:meet|join)/[a-zA-Z0-9?&=_.-]+`)},
}

// extractVideoLink applies the ordered pattern table against the
// concatenation of description and location. The first match wins; if
// none match, both return values are empty.
func extractVideoLink(description, location string) (link, platform string) {
	haystack := description + "\n" + location
	for _, p := range videoPatterns {
		if match := p.pattern.FindString(haystack); match != "" {
			return match, p.platform
		}
	}
	return "", ""
}
