package main

import (
	"strings"
	"testing"
)

func generate(t *testing.T) string {
	t.Helper()
	g := newGenerator()
	if err := g.load("../.."); err != nil {
		t.Fatalf("load: %v", err)
	}
	return string(g.render())
}

func TestRender_Enums(t *testing.T) {
	out := generate(t)
	for _, want := range []string{
		"export type Mood = 'great' | 'good' | 'okay' | 'low' | 'struggling'",
		"export type MessageRole = 'user' | 'assistant'",
		"export type AvatarExpression = 'neutral' | 'listening' | 'speaking' | 'empathetic'",
		"export type MessageType = 'register' | 'heartbeat'",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestRender_ProtocolInterfaces(t *testing.T) {
	out := generate(t)
	for _, want := range []string{
		"export interface VoiceStatePayload {\n  is_listening: boolean\n  is_speaking: boolean\n  is_supported: boolean\n}",
		"  messages: MessagePayload[]\n",
		"  error?: string\n",
		"  type: MessageType\n",
		"  timestamp: string\n",
		"  entry: LogEntry\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestRender_SettingsInterfaces(t *testing.T) {
	out := generate(t)
	for _, want := range []string{
		"export interface Settings {",
		"  session_config?: SessionConfig\n",
		"  voice?: VoiceConfig\n",
		"  openai?: OpenAiCompleterConfig\n",
		"  recognition?: RecognitionConfig\n",
		"  voices?: SpeechVoice[]\n",
		"  request_timeout?: number\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(out, "api_key") {
		t.Error("secrets must not be generated")
	}
}
