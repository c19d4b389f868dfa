package guidelines

import "github.com/xaenox/rex/internal/models"

// Guideline keys read by the prompt builder.
const (
	KeyHinglishMode      = "hinglish_mode"
	KeyHinglishPhrases   = "hinglish_phrases"
	KeyHinglishRatio     = "hinglish_ratio"
	KeySupportEnglish    = "support_english"
	KeySupportHindi      = "support_hindi"
	KeySupportHinglish   = "support_hinglish"
	KeyLanguageDetection = "language_detection"
)

// Setting keys.
const (
	KeyGreetingText          = "greeting_text"
	KeyPersonalityGuidelines = "personality_guidelines"
	KeyResponseStyle         = "response_style"
)

// DefaultGuidelines is used for missing keys and when the store is
// unreachable.
var DefaultGuidelines = map[string]string{
	KeyHinglishMode:      "auto",
	KeyHinglishPhrases:   "Kya baat hai!, Theek hai, Acha, Bohot badhiya",
	KeyHinglishRatio:     "50",
	KeySupportEnglish:    "true",
	KeySupportHindi:      "true",
	KeySupportHinglish:   "true",
	KeyLanguageDetection: "match-user",
}

var DefaultSettings = map[string]string{
	KeyGreetingText:          "Welcome to Rex - Mohsin Raja's digital emotional self",
	KeyPersonalityGuidelines: "Warm, introspective, emotionally resonant, switches naturally between English and Hinglish",
	KeyResponseStyle:         "human",
}

// seedGuidelines are written on first start when their keys are missing.
var seedGuidelines = []*models.Guideline{
	{Key: KeyHinglishMode, Value: "auto", Description: "Controls when Hinglish should be used in responses"},
	{Key: KeyHinglishPhrases, Value: "Kya baat hai!, Theek hai, Acha, Bohot badhiya, Samajh gaya", Description: "Common Hinglish phrases to incorporate in responses"},
	{Key: KeyHinglishRatio, Value: "50", Description: "Percentage of Hinglish to use when mixing with English"},
	{Key: KeySupportEnglish, Value: "true", Description: "Whether to support English in responses"},
	{Key: KeySupportHindi, Value: "true", Description: "Whether to support Hindi in responses"},
	{Key: KeySupportHinglish, Value: "true", Description: "Whether to support Hinglish in responses"},
	{Key: KeyLanguageDetection, Value: "match-user", Description: "Strategy for detecting which language to respond in"},
	{
		Key:         models.CustomGuidelinePrefix + "be_engaging",
		Value:       "Use emotional, vibrant language that resonates with the user. Occasionally use metaphors or vivid imagery to create a lasting emotional impact.",
		Description: "Makes responses more emotionally engaging",
	},
	{
		Key:         models.CustomGuidelinePrefix + "be_concise",
		Value:       "Be concise and impactful with responses. Prioritize brevity but never at the expense of emotional depth.",
		Description: "Keeps responses short and to the point",
	},
}
