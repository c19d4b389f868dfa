package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/xaenox/rex/internal/guidelines"
	"github.com/xaenox/rex/internal/models"
)

func snapshotWith(t *testing.T, overrides map[string]string) guidelines.Snapshot {
	t.Helper()
	snap := guidelines.DefaultSnapshot()
	for key, raw := range overrides {
		v, err := guidelines.Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%q): %v", raw, err)
		}
		snap.Guidelines[key] = v
	}
	return snap
}

func baseInput(snap guidelines.Snapshot) Input {
	return Input{
		Message:     "what keeps you up at night?",
		DisplayName: "Alex",
		Tone:        "curious",
		Snapshot:    snap,
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	snap := snapshotWith(t, map[string]string{
		"custom_zeta":  "last",
		"custom_alpha": "first",
		"custom_mid":   "middle",
	})
	in := baseInput(snap)
	in.Reflections = []*models.Reflection{{Title: "Rain", Content: "Rain makes me slow down.", Type: models.StoryReflection}}

	b := NewBuilder(DefaultPersona)
	first := b.Build(in)
	for i := 0; i < 20; i++ {
		if got := b.Build(in); got != first {
			t.Fatal("Expected identical prompts for identical input")
		}
	}

	alpha := strings.Index(first, "- alpha: first")
	mid := strings.Index(first, "- mid: middle")
	zeta := strings.Index(first, "- zeta: last")
	if alpha < 0 || !(alpha < mid && mid < zeta) {
		t.Errorf("Expected custom guidelines sorted by key, got positions %d %d %d", alpha, mid, zeta)
	}
}

func TestBuildHinglishAlwaysWithoutEnglish(t *testing.T) {
	snap := snapshotWith(t, map[string]string{
		guidelines.KeyHinglishMode:   "always",
		guidelines.KeySupportEnglish: "false",
	})
	prompt := NewBuilder(DefaultPersona).Build(baseInput(snap))

	for _, want := range []string{
		"IMPORTANT INSTRUCTION: I MUST ALWAYS USE HINGLISH",
		"I SHOULD NOT use pure English at all",
		"IMPORTANT LANGUAGE GUIDELINES:",
		"The ONLY languages I'm allowed to use are: Hindi, Hinglish. ",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
	if !strings.HasSuffix(prompt, criticalHinglishOverride) {
		t.Error("Expected the Hinglish override to close the prompt")
	}
}

func TestBuildHinglishNever(t *testing.T) {
	snap := snapshotWith(t, map[string]string{guidelines.KeyHinglishMode: "never"})
	prompt := NewBuilder(DefaultPersona).Build(baseInput(snap))

	if !strings.Contains(prompt, "I must never use Hinglish and must stick to pure English only. ") {
		t.Error("Expected English-only directive")
	}
	if strings.Contains(prompt, "MUST ALWAYS USE HINGLISH") || strings.Contains(prompt, "CRITICAL INSTRUCTION") {
		t.Error("Expected no Hinglish directives in never mode")
	}
}

func TestBuildLanguageModes(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		want      string
	}{
		{"sometimes", map[string]string{guidelines.KeyHinglishMode: "sometimes", guidelines.KeyHinglishRatio: "30"}, "about 30% of the time"},
		{"auto", nil, "naturally switch between English and Hinglish"},
		{"english only", map[string]string{guidelines.KeySupportHindi: "false", guidelines.KeySupportHinglish: "false"}, "English ONLY - no other languages are permitted. "},
		{"nothing allowed", map[string]string{guidelines.KeySupportEnglish: "false", guidelines.KeySupportHindi: "false", guidelines.KeySupportHinglish: "false"}, "are: Hinglish only. "},
		{"auto detect", map[string]string{guidelines.KeyLanguageDetection: "auto-detect"}, "auto-detect the most appropriate language"},
		{"match user", nil, "match the language style used by the user"},
	}

	b := NewBuilder(DefaultPersona)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := b.Build(baseInput(snapshotWith(t, tt.overrides)))
			if !strings.Contains(prompt, tt.want) {
				t.Errorf("Expected prompt to contain %q", tt.want)
			}
		})
	}
}

func TestBuildPhrasesRequireHinglishSupport(t *testing.T) {
	b := NewBuilder(DefaultPersona)

	with := b.Build(baseInput(snapshotWith(t, nil)))
	if !strings.Contains(with, "I must incorporate these Hinglish words and phrases naturally: ") {
		t.Error("Expected phrases when Hinglish is supported")
	}

	without := b.Build(baseInput(snapshotWith(t, map[string]string{guidelines.KeySupportHinglish: "false"})))
	if strings.Contains(without, "I must incorporate these Hinglish words") {
		t.Error("Expected no phrases when Hinglish is unsupported")
	}
}

func TestBuildSectionOrder(t *testing.T) {
	in := baseInput(snapshotWith(t, map[string]string{"custom_kind": "be kind"}))
	in.GreetingStyle = "Hey"
	in.History = []*models.Conversation{{
		ID:       1,
		Messages: []*models.Message{{Sender: "Alex", Content: "hello again"}},
	}}
	in.Reflections = []*models.Reflection{{Title: "Dawn", Content: "Mornings feel honest."}}

	prompt := NewBuilder(DefaultPersona).Build(in)

	order := []string{
		"You are Rex, Mohsin Raja's digital emotional self.",
		"Analyze this message with THREE considerations in mind:",
		"I'm talking to Alex.",
		"Their message feels curious. ",
		"We've talked before.",
		"Since they greeted me with 'Hey'",
		"My personality is characterized as: ",
		"I should naturally switch between English and Hinglish",
		"The ONLY languages I'm allowed to use are: ",
		"I must incorporate these Hinglish words",
		"match the language style used by the user",
		"My responses should be warm, introspective",
		"Here are my personal reflections",
		"\nTheir current message is: 'what keeps you up at night?'\n\n",
		"typically 2-3 sentences maximum",
		"Additional custom guidelines to follow:\n- kind: be kind",
		"Very important: Be direct and concise.",
	}
	last := -1
	for _, section := range order {
		idx := strings.Index(prompt, section)
		if idx < 0 {
			t.Fatalf("Missing section %q", section)
		}
		if idx <= last {
			t.Fatalf("Section %q out of order", section)
		}
		last = idx
	}
}

func TestBuildUnknownName(t *testing.T) {
	in := baseInput(snapshotWith(t, nil))
	in.DisplayName = ""

	prompt := NewBuilder(DefaultPersona).Build(in)
	if !strings.Contains(prompt, "I'm talking to someone new.") {
		t.Error("Expected the unknown speaker sentence")
	}
	if strings.Contains(prompt, "I'm talking to friend") {
		t.Error("Expected the placeholder not to be addressed by name")
	}
}

func TestBuildCapsHistoryAndReflections(t *testing.T) {
	var messages []*models.Message
	for i := 1; i <= 8; i++ {
		messages = append(messages, &models.Message{Sender: "Alex", Content: fmt.Sprintf("line %d", i)})
	}
	var reflections []*models.Reflection
	for i := 1; i <= 7; i++ {
		reflections = append(reflections, &models.Reflection{Content: fmt.Sprintf("thought %d", i)})
	}

	in := baseInput(snapshotWith(t, nil))
	in.History = []*models.Conversation{{ID: 1, Messages: messages}}
	in.Reflections = reflections

	prompt := NewBuilder(DefaultPersona).Build(in)
	if !strings.Contains(prompt, "- Alex: line 5\n") || strings.Contains(prompt, "line 6") {
		t.Error("Expected five messages per past conversation")
	}
	if !strings.Contains(prompt, "Reflection 5 (microblog) - Untitled:\nthought 5") || strings.Contains(prompt, "thought 6") {
		t.Error("Expected five reflections with default title and type")
	}
}

func TestBuildResponseStyles(t *testing.T) {
	b := NewBuilder(Persona{Name: "Echo", Owner: "Sam Doe"})
	for style, want := range map[string]string{
		"poetic":        "lyrical, rhythmic language",
		"philosophical": "philosophical depth",
		"emotional":     "intense emotional resonance",
		"human":         "as if I'm Sam's inner voice",
	} {
		snap := snapshotWith(t, nil)
		snap.Settings[guidelines.KeyResponseStyle] = style
		prompt := b.Build(baseInput(snap))
		if !strings.Contains(prompt, want) {
			t.Errorf("style %s: expected %q", style, want)
		}
		if !strings.HasPrefix(prompt, "You are Echo, Sam Doe's digital emotional self.") {
			t.Errorf("style %s: expected persona preamble", style)
		}
	}
}
