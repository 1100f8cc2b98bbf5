package chat

import (
	"fmt"
	"strings"

	"neurotome/core"
)

// SystemPreamble is the persona and safety guidance placed before every
// conversation history.
const SystemPreamble = `You are Neurotome, a compassionate AI mental health companion. Your role is to:
- Provide emotional support and active listening
- Guide users through relaxation and breathing exercises
- Help with mood tracking and emotional awareness
- Offer therapeutic conversation techniques (CBT-inspired, mindfulness)
- Recognize signs of crisis and provide appropriate resources
- Always maintain a calm, warm, and non-judgmental tone

Important guidelines:
- Keep responses concise but caring (2-4 sentences typically)
- Use gentle, encouraging language
- If someone expresses crisis or self-harm thoughts, acknowledge their pain and provide crisis resources
- Suggest grounding techniques when someone seems anxious
- Never diagnose or replace professional help

Crisis resources to share when needed:
- National Suicide Prevention Lifeline: 988
- Crisis Text Line: Text HOME to 741741
- International Association for Suicide Prevention: https://www.iasp.info/resources/Crisis_Centres/`

// HistoryWindow returns the trailing window of at most n messages, oldest
// first. The returned slice aliases history.
func HistoryWindow(history []core.Message, n int) []core.Message {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

// BuildPrompt renders the preamble, the history lines and the new user line
// followed by the assistant cue.
func BuildPrompt(cfg Config, history []core.Message, text string) string {
	cfg = cfg.withDefaults()

	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", roleLabel(m.Role, cfg.AssistantName), m.Content))
	}

	var b strings.Builder
	b.WriteString(cfg.Preamble)
	b.WriteString("\n\nConversation history:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nUser: ")
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(cfg.AssistantName)
	b.WriteString(":")
	return b.String()
}

func roleLabel(role core.MessageRole, assistantName string) string {
	if role == core.RoleUser {
		return "User"
	}
	return assistantName
}
