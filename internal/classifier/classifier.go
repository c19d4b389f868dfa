// Package classifier holds the keyword heuristics run on every inbound chat
// message: emotional tone, greeting style, username and language.
package classifier

import (
	"strings"
)

type Tone string

const (
	Neutral Tone = "neutral"
	Happy   Tone = "happy"
	Sad     Tone = "sad"
	Angry   Tone = "angry"
	Curious Tone = "curious"
)

type toneKeywords struct {
	tone     Tone
	keywords []string
}

// Declaration order breaks ties.
var toneCategories = []toneKeywords{
	{Happy, []string{"happy", "joy", "glad", "good", "great", "wonderful", "amazing", "love", "😊", "😀", "😍"}},
	{Sad, []string{"sad", "unhappy", "depressed", "bad", "terrible", "awful", "miss", "lost", "😢", "😭", "😔"}},
	{Angry, []string{"angry", "mad", "frustrated", "annoyed", "upset", "hate", "fuck", "damn", "😡", "😠"}},
	{Curious, []string{"curious", "wonder", "interested", "how", "what", "when", "where", "why", "?"}},
}

// ToneScore is the number of keywords of one category present in a message.
type ToneScore struct {
	Tone  Tone
	Count int
}

// ToneScores counts keyword presence per category, in declaration order.
// Matching is case-insensitive substring matching.
func ToneScores(message string) []ToneScore {
	content := strings.ToLower(message)

	scores := make([]ToneScore, 0, len(toneCategories))
	for _, category := range toneCategories {
		count := 0
		for _, keyword := range category.keywords {
			if strings.Contains(content, keyword) {
				count++
			}
		}
		scores = append(scores, ToneScore{Tone: category.tone, Count: count})
	}
	return scores
}

// Triggered returns the categories with at least one keyword hit.
func Triggered(message string) []Tone {
	var tones []Tone
	for _, score := range ToneScores(message) {
		if score.Count > 0 {
			tones = append(tones, score.Tone)
		}
	}
	return tones
}

// ClassifyTone returns the category with the most keyword hits, or Neutral
// when nothing matched.
func ClassifyTone(message string) Tone {
	best := ToneScore{Tone: Neutral}
	for _, score := range ToneScores(message) {
		if score.Count > best.Count {
			best = score
		}
	}
	return best.Tone
}
