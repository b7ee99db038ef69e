package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies a device protocol message.
type MessageType string

// Device → gateway messages.
const (
	MessageTypeHello             MessageType = "hello"
	MessageTypeTouch             MessageType = "touch"
	MessageTypeCaptureResult     MessageType = "capture_result"
	MessageTypeSpeechEvent       MessageType = "speech_event"
	MessageTypeRecognitionResult MessageType = "recognition_result"
	MessageTypeRecognitionError  MessageType = "recognition_error"
	MessageTypeRecordingResult   MessageType = "recording_result"
)

// Gateway → device messages.
const (
	MessageTypeCapture          MessageType = "capture"
	MessageTypeSpeak            MessageType = "speak"
	MessageTypeStopSpeaking     MessageType = "stop_speaking"
	MessageTypeRecognitionStart MessageType = "recognition_start"
	MessageTypeRecognitionStop  MessageType = "recognition_stop"
	MessageTypeRecordingStart   MessageType = "recording_start"
	MessageTypeRecordingStop    MessageType = "recording_stop"
	MessageTypeDisplay          MessageType = "display"
	MessageTypeNotice           MessageType = "notice"
	MessageTypeError            MessageType = "error"
)

// Envelope is the wire frame for every protocol message. Payload carries
// the type-specific body.
type Envelope struct {
	Type      MessageType     `json:"type"`
	MessageID string          `json:"message_id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload is the device's capability handshake, sent first on every
// connection. Capabilities are cached for the lifetime of the session.
type HelloPayload struct {
	AppVersion   string `json:"app_version,omitempty"`
	Capabilities struct {
		LiveRecognition bool `json:"live_recognition"`
	} `json:"capabilities"`
}

// TouchPayload is one raw touch phase on a named surface.
type TouchPayload struct {
	Surface string `json:"surface"`
	Kind    string `json:"kind"`
}

// CapturePayload asks the device for one still frame.
type CapturePayload struct {
	RequestID string `json:"request_id"`
}

// CaptureResultPayload answers a capture request. Data is base64.
type CaptureResultPayload struct {
	RequestID string `json:"request_id"`
	Data      string `json:"data,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SpeakPayload commands the device text-to-speech engine.
type SpeakPayload struct {
	UtteranceID string  `json:"utterance_id"`
	Text        string  `json:"text"`
	Locale      string  `json:"locale"`
	Pitch       float64 `json:"pitch"`
	Rate        float64 `json:"rate"`
}

// SpeechEventPayload reports a text-to-speech lifecycle change.
type SpeechEventPayload struct {
	UtteranceID string `json:"utterance_id"`
	Event       string `json:"event"` // started | finished | failed
}

// RecognitionStartPayload starts on-device live recognition.
type RecognitionStartPayload struct {
	SessionID string `json:"session_id"`
	Locale    string `json:"locale"`
}

// RecognitionResultPayload delivers recognized alternatives, best first.
type RecognitionResultPayload struct {
	SessionID string   `json:"session_id"`
	Texts     []string `json:"texts"`
}

// RecognitionErrorPayload reports a recognition failure.
type RecognitionErrorPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// RecordingStartPayload starts a microphone recording session.
type RecordingStartPayload struct {
	SessionID string `json:"session_id"`
}

// RecordingStopPayload finalizes the named recording session.
type RecordingStopPayload struct {
	SessionID string `json:"session_id"`
}

// RecordingResultPayload carries a finalized recording. Data is base64.
type RecordingResultPayload struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DisplayPayload replaces the output panel text.
type DisplayPayload struct {
	Text string `json:"text"`
}

// NoticePayload surfaces a transient user-visible notice.
type NoticePayload struct {
	Text string `json:"text"`
}

// ErrorPayload reports a protocol-level error to the device.
type ErrorPayload struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// NewEnvelope wraps a payload into a wire frame with a fresh message ID.
func NewEnvelope(msgType MessageType, payload interface{}) ([]byte, error) {
	env := Envelope{
		Type:      msgType,
		MessageID: uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// ParseEnvelope decodes one wire frame.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed message: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("message missing type field")
	}
	return env, nil
}

// DecodePayload unmarshals the envelope's payload into out.
func (e Envelope) DecodePayload(out interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("malformed %s payload: %w", e.Type, err)
	}
	return nil
}
