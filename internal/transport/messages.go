package transport

import "encoding/json"

// Message types exchanged with the session server, plus the locally
// synthesized lifecycle events.
const (
	TypeAuth            = "auth"
	TypeText            = "text"
	TypeAudio           = "audio"
	TypeCharacterSwitch = "character_switch"
	TypeCallStart       = "call_start"
	TypeCallEnd         = "call_end"
	TypeStopPlayback    = "stop_playback"

	// Synthesized by the adapter, never received from the network.
	TypeConnected    = "connected"
	TypeDisconnected = "disconnected"
	TypeError        = "error"

	// TypeAny subscribes a handler to every inbound message.
	TypeAny = "*"
)

// Outbound is the discriminated JSON envelope sent to the server. Only
// the fields for the declared type are populated.
type Outbound struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`

	Message     string `json:"message,omitempty"`
	ChatID      string `json:"chatId,omitempty"`
	CharacterID string `json:"characterId,omitempty"`

	// audio: base64 PCM16LE
	Data       string `json:"data,omitempty"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`

	// character_switch
	SystemPrompt string `json:"systemPrompt,omitempty"`
	VoiceModel   string `json:"voiceModel,omitempty"`
	RVCModelPath string `json:"rvcModelPath,omitempty"`
	RVCIndexPath string `json:"rvcIndexPath,omitempty"`
}

// CharacterSwitch carries everything the server needs to swap the
// active character mid-session.
type CharacterSwitch struct {
	CharacterID  string
	SystemPrompt string
	VoiceModel   string
	RVCModelPath string
	RVCIndexPath string
}

// Message is an inbound envelope. Raw holds the full original payload
// so unrecognized messages can be forwarded to the UI layer unmodified.
type Message struct {
	Type       string          `json:"type"`
	Content    string          `json:"content,omitempty"`
	SampleRate int             `json:"sample_rate,omitempty"`
	Error      string          `json:"error,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

func parseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	m.Raw = append(json.RawMessage(nil), data...)
	return m, nil
}
