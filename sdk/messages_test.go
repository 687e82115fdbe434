package sdk

import "testing"

func TestParseVoiceMessage(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		kind    MessageKind
		speaker string
		text    string
	}{
		{
			name:    "user transcript event shape",
			frame:   `{"type":"user_transcript","user_transcription_event":{"user_transcript":"how do I start?"}}`,
			kind:    KindUserTranscript,
			speaker: "user",
			text:    "how do I start?",
		},
		{
			name:    "user transcript legacy flat shape",
			frame:   `{"type":"user_transcript","text":"hello there"}`,
			kind:    KindUserTranscript,
			speaker: "user",
			text:    "hello there",
		},
		{
			name:    "user transcript legacy message field",
			frame:   `{"type":"user_transcript","message":"did that work?"}`,
			kind:    KindUserTranscript,
			speaker: "user",
			text:    "did that work?",
		},
		{
			name:    "agent response event shape",
			frame:   `{"type":"agent_response","agent_response_event":{"agent_response":"Think about edge cases."}}`,
			kind:    KindAgentResponse,
			speaker: "agent",
			text:    "Think about edge cases.",
		},
		{
			name:    "agent response legacy message field",
			frame:   `{"type":"agent_response","message":"Try a hash map."}`,
			kind:    KindAgentResponse,
			speaker: "agent",
			text:    "Try a hash map.",
		},
		{
			name:  "unknown type passes through as status",
			frame: `{"type":"ping","event_id":17}`,
			kind:  KindStatus,
		},
		{
			name:  "relay status with message",
			frame: `{"type":"status","message":"context loaded"}`,
			kind:  KindStatus,
			text:  "context loaded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseVoiceMessage([]byte(tt.frame))
			if err != nil {
				t.Fatalf("ParseVoiceMessage: %v", err)
			}
			if msg.Kind != tt.kind {
				t.Fatalf("Kind = %q, want %q", msg.Kind, tt.kind)
			}
			if msg.Speaker != tt.speaker {
				t.Fatalf("Speaker = %q, want %q", msg.Speaker, tt.speaker)
			}
			if msg.Text != tt.text {
				t.Fatalf("Text = %q, want %q", msg.Text, tt.text)
			}
			if len(msg.Raw) == 0 {
				t.Fatal("Raw not preserved")
			}
		})
	}
}

func TestParseVoiceMessageMalformed(t *testing.T) {
	if _, err := ParseVoiceMessage([]byte(`{"type":`)); err == nil {
		t.Fatal("malformed JSON accepted")
	}
}
