package classifier

import "math/rand"

var generalQuestions = []string{
	"What brings you here today?",
	"How are you feeling right now?",
	"What's been on your mind lately?",
	"Is there something specific you'd like to talk about?",
	"What are you passionate about?",
	"What's your story?",
}

var followUpQuestions = map[Tone][]string{
	Happy: {
		"What's bringing you joy today?",
		"What are you celebrating?",
		"What's making you smile right now?",
	},
	Sad: {
		"What's weighing on your heart?",
		"Would talking about it help?",
		"Is there something I can do to support you?",
	},
	Angry: {
		"What's frustrating you?",
		"What would help you feel better?",
		"What do you need right now?",
	},
	Curious: {
		"What are you wondering about?",
		"What sparks your curiosity?",
		"What would you like to explore together?",
	},
	Neutral: generalQuestions,
}

// FollowUpPool returns the question pool used for tone.
func FollowUpPool(tone Tone) []string {
	if pool, ok := followUpQuestions[tone]; ok {
		return pool
	}
	return generalQuestions
}

// PickFollowUp returns a random question suited to tone.
func PickFollowUp(tone Tone) string {
	pool := FollowUpPool(tone)
	return pool[rand.Intn(len(pool))]
}
