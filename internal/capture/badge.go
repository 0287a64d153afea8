package capture

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// roleToken matches lines that are only a salutation or job title.
var roleToken = regexp.MustCompile(`(?i)^(mr|ms|mrs|dr|prof|director|manager|vp|ceo|cto|cfo|coo|evp|svp|sr|jr|eng)\.?$`)

var numericLine = regexp.MustCompile(`^\d+$`)

// CandidateLines returns the OCR lines worth offering to a reviewer:
// trimmed, longer than one character and not purely numeric.
func CandidateLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if len([]rune(l)) <= 1 || numericLine.MatchString(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// ParseBadge guesses name and company from OCR text. Badges usually print
// the name on the first prominent line and the company on the next.
func ParseBadge(text string) (name, company string) {
	for _, line := range CandidateLines(text) {
		if name == "" {
			if roleToken.MatchString(line) {
				continue
			}
			name = normalizeName(line)
			continue
		}
		company = line
		break
	}
	return name, company
}

// normalizeName title-cases names printed in all capitals.
func normalizeName(s string) string {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return s
			}
		}
	}
	if !hasLetter {
		return s
	}
	// Casers are stateful, so one per call.
	return cases.Title(language.Und).String(s)
}
