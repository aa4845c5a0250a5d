// Package telephony speaks the carrier media-stream protocol: JSON text frames
// tagged with an event name, carrying base64 mu-law audio for one call leg.
package telephony

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
)

// EventType identifies a media-stream frame.
type EventType string

const (
	// Carrier → relay
	EventConnected EventType = "connected"
	EventStart     EventType = "start"
	EventMedia     EventType = "media"
	EventStop      EventType = "stop"
	EventMark      EventType = "mark"
	EventDTMF      EventType = "dtmf"
)

// Frame is the envelope for every media-stream message in either direction.
type Frame struct {
	Event          EventType `json:"event"`
	SequenceNumber string    `json:"sequenceNumber,omitempty"`
	StreamSid      string    `json:"streamSid,omitempty"`
	Start          *Start    `json:"start,omitempty"`
	Media          *Media    `json:"media,omitempty"`
	Stop           *Stop     `json:"stop,omitempty"`
	Mark           *Mark     `json:"mark,omitempty"`
}

// Start is sent once, before any media, and names the stream.
type Start struct {
	StreamSid        string            `json:"streamSid"`
	AccountSid       string            `json:"accountSid,omitempty"`
	CallSid          string            `json:"callSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      *MediaFormat      `json:"mediaFormat,omitempty"`
}

// MediaFormat describes the audio the carrier will send.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// Media carries one base64 audio chunk.
type Media struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// Stop ends the stream.
type Stop struct {
	AccountSid string `json:"accountSid,omitempty"`
	CallSid    string `json:"callSid,omitempty"`
}

// Mark echoes a named playback marker.
type Mark struct {
	Name string `json:"name"`
}

// ParseFrame decodes a text frame.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("telephony: parse frame: %w", err)
	}
	if f.Event == "" {
		return nil, ErrMissingEvent
	}
	return &f, nil
}

// DecodePayload returns the raw audio bytes of a media frame.
func (m *Media) DecodePayload() ([]byte, error) {
	audio, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return nil, &PayloadError{Cause: err}
	}
	return audio, nil
}

// NewMediaFrame builds the outbound frame that plays audio on a stream.
func NewMediaFrame(streamSid string, audio []byte) ([]byte, error) {
	return sonic.Marshal(Frame{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     &Media{Payload: base64.StdEncoding.EncodeToString(audio)},
	})
}
