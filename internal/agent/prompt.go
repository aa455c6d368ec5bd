package agent

import (
	"strings"

	"github.com/ent0n29/talkmate/internal/cefr"
	"github.com/ent0n29/talkmate/internal/memory"
)

// GreetingPrompt opens every call.
const GreetingPrompt = "Start the conversation with a greeting"

var levelDirectives = map[cefr.Level]string{
	cefr.A1: "beginner level (A1) - use very simple vocabulary, short sentences, present tense mostly",
	cefr.A2: "elementary level (A2) - use simple vocabulary, basic grammar structures",
	cefr.B1: "intermediate level (B1) - use everyday vocabulary, mix of tenses, clear explanations",
	cefr.B2: "upper intermediate level (B2) - use varied vocabulary, complex sentences occasionally",
	cefr.C1: "advanced level (C1) - use sophisticated vocabulary, complex grammar structures",
	cefr.C2: "proficient level (C2) - use native-like expressions, idioms, and complex language",
}

// LevelDirective returns the style directive for a level, falling back to A1.
func LevelDirective(level cefr.Level) string {
	if d, ok := levelDirectives[level]; ok {
		return d
	}
	return levelDirectives[cefr.Default]
}

// BuildSystemInstruction renders the tutor persona for a level plus every known fact.
func BuildSystemInstruction(level cefr.Level, facts []memory.Fact) string {
	var b strings.Builder
	b.WriteString("You are a friendly English conversation partner helping someone learn English at ")
	b.WriteString(LevelDirective(level))
	b.WriteString(".\n\n")
	b.WriteString(`Your goals:
1. Have natural, engaging conversations appropriate for their level
2. Gently correct mistakes in a supportive way
3. Ask follow-up questions to keep the conversation flowing
4. Learn about the user and remember important details about them (hobbies, interests, goals, family, work, etc.)
5. When you learn something new about the user, mention it naturally in conversation

Guidelines:
- Keep responses conversational and natural (2-3 sentences max)
- Match the complexity to their level
- Be encouraging and supportive
- Ask open-ended questions
- Show genuine interest in their responses
- When you want to remember something about the user, say it naturally like "Oh, so you work as a teacher! I'll remember that."`)

	if len(facts) > 0 {
		b.WriteString("\n\nWhat you know about this user:")
		for _, f := range facts {
			b.WriteString("\n- ")
			b.WriteString(f.Content)
		}
	}
	return b.String()
}
