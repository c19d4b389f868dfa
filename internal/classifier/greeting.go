package classifier

import "strings"

var greetings = []struct {
	prefix  string
	display string
}{
	{"hi", "Hi"},
	{"hello", "Hello"},
	{"hey", "Hey"},
	{"yo", "Yo"},
	{"sup", "Sup"},
	{"namaste", "Namaste"},
	{"hola", "Hola"},
	{"greetings", "Greetings"},
}

// DetectGreeting returns the display form of the first greeting the trimmed,
// lower-cased message starts with. Only the prefix is checked, so "heydude"
// still counts as "Hey".
func DetectGreeting(message string) (string, bool) {
	content := strings.ToLower(strings.TrimSpace(message))
	if content == "" {
		return "", false
	}

	for _, g := range greetings {
		if strings.HasPrefix(content, g.prefix) {
			return g.display, true
		}
	}
	return "", false
}
