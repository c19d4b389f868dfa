package classifier

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var usernamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:i am|i'm|my name is|call me|this is) (\w+)`),
	regexp.MustCompile(`(?i)^(amit|anil|arjun|deepak|farhan|karan|mohammad|priya|raj|rahul|rohit|sanjay|sumit|vikram|vivek)\b`),
	regexp.MustCompile(`(?i)^(aarav|aditi|ananya|aryan|divya|ishaan|kavya|meera|neha|nikhil|riya|rohan|sahil|tanvi|yash)\b`),
	regexp.MustCompile(`(?i)^(akhil|anjali|bhavya|dhruv|gauri|jatin|kamal|lakshmi|manish|nandini|pallavi|rajiv|sunil)\b`),
	// a lone 3-15 letter word is probably a name given in reply to a greeting
	regexp.MustCompile(`(?i)^([a-z][a-z]{2,14})$`),
}

// ExtractUsername guesses a display name from free text. False positives are
// expected; callers must treat the result as a hint.
func ExtractUsername(message string) (string, bool) {
	trimmed := strings.TrimSpace(message)

	if len(strings.Fields(trimmed)) == 1 && utf8.RuneCountInString(trimmed) > 1 && isTitle(trimmed) {
		return trimmed, true
	}

	for i, pattern := range usernamePatterns {
		subject := message
		if i == len(usernamePatterns)-1 {
			subject = trimmed
		}
		if match := pattern.FindStringSubmatch(subject); match != nil {
			return capitalize(strings.TrimSpace(match[1])), true
		}
	}

	return "", false
}

// isTitle reports whether every cased run starts with an upper-case letter
// followed only by lower-case letters, and at least one cased letter exists.
func isTitle(s string) bool {
	cased := false
	prevCased := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased = true
			cased = true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased = true
			cased = true
		default:
			prevCased = false
		}
	}
	return cased
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
