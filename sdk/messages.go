package sdk

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageKind classifies normalized voice session events.
type MessageKind string

const (
	// KindUserTranscript is the speech-to-text of what the user said.
	KindUserTranscript MessageKind = "user_transcript"
	// KindAgentResponse is the mentor's spoken reply text.
	KindAgentResponse MessageKind = "agent_response"
	// KindStatus covers everything else: pings, vendor status frames,
	// relay-injected notices.
	KindStatus MessageKind = "status"
)

// VoiceMessage is a text event from the voice stream, normalized from the
// vendor wire shapes. Raw keeps the original frame for callers that need
// fields the normalization drops.
type VoiceMessage struct {
	Kind    MessageKind
	Speaker string
	Text    string
	Raw     json.RawMessage
}

// voiceFrame covers both wire shapes for transcript and response events:
// the event-nested form the vendor currently sends and the legacy flat
// form with a top-level text field.
type voiceFrame struct {
	Type string `json:"type"`

	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`

	Text    string `json:"text"`
	Message string `json:"message"`
}

// ParseVoiceMessage normalizes one text frame from the voice stream.
// Unknown frame types come back as KindStatus rather than an error so new
// vendor events never break the read loop; only malformed JSON fails.
func ParseVoiceMessage(data []byte) (VoiceMessage, error) {
	var f voiceFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return VoiceMessage{}, fmt.Errorf("sdk: malformed voice frame: %w", err)
	}

	raw := json.RawMessage(append([]byte(nil), data...))
	switch f.Type {
	case "user_transcript":
		text := flatText(f)
		if f.UserTranscriptionEvent != nil {
			text = f.UserTranscriptionEvent.UserTranscript
		}
		return VoiceMessage{Kind: KindUserTranscript, Speaker: "user", Text: strings.TrimSpace(text), Raw: raw}, nil
	case "agent_response":
		text := flatText(f)
		if f.AgentResponseEvent != nil {
			text = f.AgentResponseEvent.AgentResponse
		}
		return VoiceMessage{Kind: KindAgentResponse, Speaker: "agent", Text: strings.TrimSpace(text), Raw: raw}, nil
	default:
		return VoiceMessage{Kind: KindStatus, Text: strings.TrimSpace(flatText(f)), Raw: raw}, nil
	}
}

func flatText(f voiceFrame) string {
	if f.Text != "" {
		return f.Text
	}
	return f.Message
}
