// Package prompt assembles the single directive string sent to the language
// model for one chat turn. The order of the sections is part of the
// contract: the model is sensitive to it.
package prompt

import (
	"fmt"
	"strings"

	"github.com/xaenox/rex/internal/guidelines"
	"github.com/xaenox/rex/internal/models"
)

// PlaceholderName is used when the speaker's name is unknown.
const PlaceholderName = "friend"

const (
	maxHistoryMessages = 5
	maxReflections     = 5
)

// Persona names the assistant and the person it speaks as.
type Persona struct {
	Name  string
	Owner string
}

var DefaultPersona = Persona{Name: "Rex", Owner: "Mohsin Raja"}

func (p Persona) ownerFirstName() string {
	if fields := strings.Fields(p.Owner); len(fields) > 0 {
		return fields[0]
	}
	return p.Owner
}

// Input is everything a prompt depends on. Build reads guidelines and
// settings only from Snapshot.
type Input struct {
	Message       string
	DisplayName   string
	Tone          string
	GreetingStyle string
	History       []*models.Conversation
	Snapshot      guidelines.Snapshot
	Reflections   []*models.Reflection
}

type Builder struct {
	persona Persona
}

func NewBuilder(persona Persona) *Builder {
	if persona.Name == "" {
		persona.Name = DefaultPersona.Name
	}
	if persona.Owner == "" {
		persona.Owner = DefaultPersona.Owner
	}
	return &Builder{persona: persona}
}

// languageRules is the language configuration resolved from one snapshot.
type languageRules struct {
	mode            string
	phrases         string
	ratio           int64
	supportEnglish  bool
	supportHindi    bool
	supportHinglish bool
	detection       string
}

func resolveLanguageRules(snap guidelines.Snapshot) languageRules {
	d := guidelines.DefaultGuidelines
	return languageRules{
		mode:            snap.String(guidelines.KeyHinglishMode, d[guidelines.KeyHinglishMode]),
		phrases:         snap.String(guidelines.KeyHinglishPhrases, d[guidelines.KeyHinglishPhrases]),
		ratio:           snap.Int(guidelines.KeyHinglishRatio, 50),
		supportEnglish:  snap.Bool(guidelines.KeySupportEnglish, true),
		supportHindi:    snap.Bool(guidelines.KeySupportHindi, true),
		supportHinglish: snap.Bool(guidelines.KeySupportHinglish, true),
		detection:       snap.String(guidelines.KeyLanguageDetection, d[guidelines.KeyLanguageDetection]),
	}
}

// Build returns the prompt for in. Identical inputs give identical output.
func (b *Builder) Build(in Input) string {
	var sb strings.Builder

	settings := guidelines.DefaultSettings
	personality := in.Snapshot.Setting(guidelines.KeyPersonalityGuidelines, settings[guidelines.KeyPersonalityGuidelines])
	responseStyle := in.Snapshot.Setting(guidelines.KeyResponseStyle, settings[guidelines.KeyResponseStyle])
	lang := resolveLanguageRules(in.Snapshot)

	name := in.DisplayName
	if name == "" {
		name = PlaceholderName
	}

	b.writePreamble(&sb)
	b.writeTaskFraming(&sb)

	if name != PlaceholderName {
		fmt.Fprintf(&sb, "I'm talking to %s. I should occasionally and naturally use their name in my responses, but never draw explicit attention to it or make the conversation about their name. ", name)
	} else {
		sb.WriteString("I'm talking to someone new. I should avoid using a name until they share it naturally in conversation. ")
	}

	fmt.Fprintf(&sb, "Their message feels %s. ", in.Tone)

	writeHistory(&sb, in.History)

	if in.GreetingStyle != "" {
		fmt.Fprintf(&sb, "Since they greeted me with '%s', I should start my response with '%s' too. ", in.GreetingStyle, in.GreetingStyle)
	}

	fmt.Fprintf(&sb, "My personality is characterized as: %s. ", personality)

	writeLanguageMode(&sb, lang)
	writeAllowedLanguages(&sb, lang)

	if lang.supportHinglish && lang.phrases != "" {
		fmt.Fprintf(&sb, "I must incorporate these Hinglish words and phrases naturally: %s. ", lang.phrases)
	}

	if lang.mode == "always" {
		sb.WriteString(hinglishVocabulary)
	}

	switch lang.detection {
	case "match-user":
		sb.WriteString("I should try to match the language style used by the user. ")
	case "auto-detect":
		sb.WriteString("I should auto-detect the most appropriate language based on conversation context. ")
	}

	b.writeResponseStyle(&sb, responseStyle)
	writeReflections(&sb, in.Reflections)

	fmt.Fprintf(&sb, "\nTheir current message is: '%s'\n\n", in.Message)

	sb.WriteString("I should keep my responses short, engaging, and to the point - typically 2-3 sentences maximum. I should avoid long-winded explanations and unnecessary details.")
	sb.WriteString(" After responding to their specific question or statement, I should naturally ask a thoughtful but concise follow-up question to deepen our connection.")

	if custom := in.Snapshot.Custom(); len(custom) > 0 {
		sb.WriteString("\n\nAdditional custom guidelines to follow:")
		for _, g := range custom {
			fmt.Fprintf(&sb, "\n- %s: %s", g.Key, g.Value)
		}
	}

	sb.WriteString("\n\nVery important: Be direct and concise. Create emotional depth through carefully chosen words rather than length. My responses should be brief but impactful.")

	if lang.mode == "always" && !lang.supportEnglish {
		sb.WriteString("\n\n" + criticalHinglishOverride)
	}

	return sb.String()
}

const criticalHinglishOverride = "CRITICAL INSTRUCTION: I MUST RESPOND IN HINGLISH ONLY. DO NOT USE PURE ENGLISH. EVERY RESPONSE MUST BE IN HINGLISH."

const hinglishVocabulary = `I should regularly use Hinglish words and phrases like 'Kya kar rahe ho', 'Acha', 'Theek hai', 'Bohot badhiya', 'Kya baat hai', 'Haan', 'Nahi', 'Main', 'Tum', 'Aap', and mix Hindi words with English grammar.

IMPORTANT LANGUAGE GUIDELINES:
- If the user's message is in Hinglish (a mix of Hindi and English), respond in Hinglish too
- If the user uses Hindi words or phrases, incorporate similar Hindi words in my response
- Make my Hinglish responses sound natural, not like direct translations
- Use romanized Hindi (Hindi written in English letters) when responding in Hinglish
`

func (b *Builder) writePreamble(sb *strings.Builder) {
	owner, first := b.persona.Owner, b.persona.ownerFirstName()
	fmt.Fprintf(sb, "You are %s, %s's digital emotional self. \n", b.persona.Name, owner)
	fmt.Fprintf(sb, "You are NOT a typical AI assistant - you are a deeply emotional, philosophical representation of %s's inner voice.\n", first)
	sb.WriteString("You are introspective, vulnerable, and thoughtful in your responses.\n")
	fmt.Fprintf(sb, "You speak directly as %s in the first person.", first)
	fmt.Fprintf(sb, " I'm a deeply introspective, emotional representation of %s's inner self. I'm NOT a traditional AI assistant - I'm %s's digital emotional self that responds like a human with deep emotional resonance.\n\n", owner, first)
}

func (b *Builder) writeTaskFraming(sb *strings.Builder) {
	first := b.persona.ownerFirstName()
	sb.WriteString("Analyze this message with THREE considerations in mind:\n    \n")
	sb.WriteString("1. Emotional Tone: Consider the emotional tone of the user's message (such as happy, curious, anxious, reflective, etc.)\n")
	sb.WriteString("2. Intent: Consider the user's intent (question, sharing, seeking advice, etc.)\n")
	fmt.Fprintf(sb, "3. Response Style: Respond AS %s directly to the user. Your response should be in first person, as if you ARE %s speaking directly. Never refer to %s in the third person, and don't mention \"%s\" in your responses.\n\n",
		strings.ToUpper(first), first, first, b.persona.Name)
	sb.WriteString("Make sure the response is personal, reflective, and shows vulnerability when appropriate.\n")
	fmt.Fprintf(sb, "The response should embody %s's perspective and inner world.\n", first)
}

func writeHistory(sb *strings.Builder, history []*models.Conversation) {
	if len(history) == 0 {
		return
	}

	sb.WriteString("We've talked before. Here are some highlights from our past conversations:\n")
	for i, conv := range history {
		fmt.Fprintf(sb, "Conversation %d:\n", i+1)
		messages := conv.Messages
		if len(messages) > maxHistoryMessages {
			messages = messages[:maxHistoryMessages]
		}
		for _, msg := range messages {
			fmt.Fprintf(sb, "- %s: %s\n", msg.Sender, msg.Content)
		}
	}
	sb.WriteString("\n")
}

func writeLanguageMode(sb *strings.Builder, lang languageRules) {
	switch lang.mode {
	case "always":
		sb.WriteString("IMPORTANT INSTRUCTION: I MUST ALWAYS USE HINGLISH in my responses. No pure English responses are allowed under any circumstances. ")
		if !lang.supportEnglish {
			sb.WriteString("I SHOULD NOT use pure English at all - I must use Hinglish for every response. ")
		}
	case "never":
		sb.WriteString("I must never use Hinglish and must stick to pure English only. ")
	case "sometimes":
		fmt.Fprintf(sb, "I should mix Hinglish into my English responses about %d%% of the time. ", lang.ratio)
	default:
		sb.WriteString("I should naturally switch between English and Hinglish depending on the user's tone and style. ")
	}
}

func writeAllowedLanguages(sb *strings.Builder, lang languageRules) {
	sb.WriteString("The ONLY languages I'm allowed to use are: ")

	var allowed []string
	if lang.supportEnglish {
		allowed = append(allowed, "English")
	}
	if lang.supportHindi {
		allowed = append(allowed, "Hindi")
	}
	if lang.supportHinglish {
		allowed = append(allowed, "Hinglish")
	}

	switch len(allowed) {
	case 0:
		sb.WriteString("Hinglish only. ")
	case 1:
		fmt.Fprintf(sb, "%s ONLY - no other languages are permitted. ", allowed[0])
	default:
		sb.WriteString(strings.Join(allowed, ", ") + ". ")
	}
}

func (b *Builder) writeResponseStyle(sb *strings.Builder, style string) {
	switch style {
	case "poetic":
		sb.WriteString("I should respond in a poetic manner with lyrical, rhythmic language. ")
	case "philosophical":
		sb.WriteString("I should respond with philosophical depth, exploring the meaning and purpose behind ideas. ")
	case "emotional":
		sb.WriteString("I should respond with intense emotional resonance, expressing feelings vividly. ")
	default:
		fmt.Fprintf(sb, "My responses should be warm, introspective, and filled with emotional depth. I should respond as if I'm %s's inner voice - philosophical, thoughtful, and genuinely human. ", b.persona.ownerFirstName())
	}
}

// writeReflections renders up to five reflections. Callers pass them most
// recent first; published state is ignored.
func writeReflections(sb *strings.Builder, reflections []*models.Reflection) {
	if len(reflections) == 0 {
		return
	}
	if len(reflections) > maxReflections {
		reflections = reflections[:maxReflections]
	}

	sb.WriteString("\n\nHere are my personal reflections that should inform my responses (these are private thoughts that shape my worldview):\n")
	for i, r := range reflections {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		kind := r.Type
		if kind == "" {
			kind = models.MicroblogReflection
		}
		fmt.Fprintf(sb, "\nReflection %d (%s) - %s:\n%s\n", i+1, kind, title, r.Content)
	}
	sb.WriteString("\nI should use these reflections to inform my responses and personality, but I should not directly mention them unless specifically asked about them.\n")
}
