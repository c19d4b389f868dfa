package classifier

import "strings"

type Language string

const (
	English  Language = "english"
	Hinglish Language = "hinglish"
)

var hinglishMarkers = []string{
	"kya", "hai", "nahi", "acha", "theek", "haan", "kaise",
	"kyun", "main", "tum", "aap", "yaar", "bhai", "dil",
}

// DetectLanguage reports Hinglish when more than two marker words appear.
func DetectLanguage(message string) Language {
	content := strings.ToLower(message)

	count := 0
	for _, marker := range hinglishMarkers {
		if strings.Contains(content, marker) {
			count++
		}
	}

	if count > 2 {
		return Hinglish
	}
	return English
}
