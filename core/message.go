package core

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Mood is the self-reported mood picked on the check-in screen.
type Mood string

const (
	MoodGreat      Mood = "great"
	MoodGood       Mood = "good"
	MoodOkay       Mood = "okay"
	MoodLow        Mood = "low"
	MoodStruggling Mood = "struggling"
)

// Moods lists every mood in display order.
var Moods = []Mood{MoodGreat, MoodGood, MoodOkay, MoodLow, MoodStruggling}

var moodGreetings = map[Mood]string{
	MoodGreat:      "That's wonderful to hear! I'm so glad you're feeling good. What's been making your day special?",
	MoodGood:       "It's nice to hear you're doing well. I'm here if you'd like to chat about anything.",
	MoodOkay:       "I hear you. Some days are just okay, and that's perfectly fine. Would you like to talk about what's on your mind?",
	MoodLow:        "Thank you for sharing that with me. It takes courage to acknowledge when we're feeling low. I'm here to listen.",
	MoodStruggling: "I'm really glad you reached out. It sounds like you're going through a difficult time. I'm here for you, and you're not alone.",
}

// Greeting is the line spoken right after the mood is selected.
func (m Mood) Greeting() string {
	return moodGreetings[m]
}

// CheckInText is the user utterance recorded for a mood check-in.
func (m Mood) CheckInText() string {
	return fmt.Sprintf("I'm feeling %s", m)
}

// ParseMood accepts a mood name case-insensitively.
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := moodGreetings[m]; !ok {
		return "", fmt.Errorf("core: unknown mood %q", s)
	}
	return m, nil
}

// Message is one entry of the conversation log. Values are handed out by
// copy; the log itself is append-only.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Mood      *Mood       `json:"mood,omitempty"`
}

var messageSeq atomic.Uint64

// NewMessageID returns "<role>-<seq>-<rand>". seq is process-wide and
// strictly increasing, so ids never collide within one instant.
func NewMessageID(role MessageRole) string {
	seq := messageSeq.Add(1)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", role, seq, suffix)
}

// NewMessage stamps a message with a fresh id and the given instant.
func NewMessage(role MessageRole, content string, at time.Time) Message {
	return Message{
		ID:        NewMessageID(role),
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
}
