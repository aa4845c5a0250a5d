package conversation

import (
	"strings"

	"github.com/teslashibe/go-interview-relay/pkg/audioio"
)

// Settings is the handshake message that configures the agent for a session.
type Settings struct {
	Type  string        `json:"type"`
	Audio AudioSettings `json:"audio"`
	Agent AgentSettings `json:"agent"`
}

// AudioSettings declares the audio formats on both directions of the socket.
type AudioSettings struct {
	Input  AudioInput  `json:"input"`
	Output AudioOutput `json:"output"`
}

// AudioInput is the format of audio the relay sends.
type AudioInput struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// AudioOutput is the format of audio the agent sends back.
type AudioOutput struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Container  string `json:"container,omitempty"`
}

// AgentSettings configures the listen/think/speak pipeline.
type AgentSettings struct {
	Language string         `json:"language,omitempty"`
	Listen   ListenSettings `json:"listen"`
	Think    ThinkSettings  `json:"think"`
	Speak    SpeakSettings  `json:"speak"`
	Greeting string         `json:"greeting,omitempty"`
}

// ListenSettings wraps the speech recognition provider.
type ListenSettings struct {
	Provider ListenConfig `json:"provider"`
}

// ThinkSettings configures the language model and its functions.
type ThinkSettings struct {
	Provider  ThinkProvider  `json:"provider"`
	Prompt    string         `json:"prompt,omitempty"`
	Functions []FunctionDecl `json:"functions,omitempty"`
}

// ThinkProvider selects the language model.
type ThinkProvider struct {
	Type        string   `json:"type"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// SpeakSettings configures text-to-speech.
type SpeakSettings struct {
	Provider SpeakProvider `json:"provider"`
}

// SpeakProvider selects the voice.
type SpeakProvider struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

// FunctionDecl declares a client-side function the agent may call.
type FunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ListenConfig is the speech recognition provider block. It is a closed set:
// StandardListenConfig or FluxListenConfig, chosen once by NewListenConfig.
type ListenConfig interface {
	listenModel() string
}

// StandardListenConfig is for the nova model families.
type StandardListenConfig struct {
	Type           string   `json:"type"`
	Model          string   `json:"model"`
	SmartFormat    bool     `json:"smart_format"`
	Keyterms       []string `json:"keyterms,omitempty"`
	Endpointing    int      `json:"endpointing,omitempty"`
	UtteranceEndMs int      `json:"utterance_end_ms,omitempty"`
}

func (c StandardListenConfig) listenModel() string { return c.Model }

// FluxListenConfig is for the flux model family, which rejects smart_format
// and requires an explicit protocol version.
type FluxListenConfig struct {
	Type         string   `json:"type"`
	Version      string   `json:"version"`
	Model        string   `json:"model"`
	Keyterms     []string `json:"keyterms,omitempty"`
	EotTimeoutMs int      `json:"eot_timeout_ms,omitempty"`
}

func (c FluxListenConfig) listenModel() string { return c.Model }

// ListenOptions are the per-session recognition tunables.
type ListenOptions struct {
	Endpointing    int
	UtteranceEndMs int
	SmartFormat    bool
	Keyterms       []string
}

const (
	listenProviderType = "deepgram"
	fluxVersion        = "v2"
)

// NewListenConfig picks the provider block shape for model.
func NewListenConfig(model string, opts ListenOptions) ListenConfig {
	if IsFluxModel(model) {
		return FluxListenConfig{
			Type:         listenProviderType,
			Version:      fluxVersion,
			Model:        model,
			Keyterms:     opts.Keyterms,
			EotTimeoutMs: opts.UtteranceEndMs,
		}
	}
	return StandardListenConfig{
		Type:           listenProviderType,
		Model:          model,
		SmartFormat:    opts.SmartFormat,
		Keyterms:       opts.Keyterms,
		Endpointing:    opts.Endpointing,
		UtteranceEndMs: opts.UtteranceEndMs,
	}
}

// IsFluxModel reports whether model belongs to the flux family.
func IsFluxModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "flux")
}

// SettingsOptions collects everything needed to build Settings.
type SettingsOptions struct {
	Input     audioio.Format
	Output    audioio.Format
	Language  string
	Greeting  string
	Prompt    string
	Listen    ListenConfig
	Think     ThinkProvider
	Voice     string
	Functions []FunctionDecl
}

// NewSettings builds the Settings message.
func NewSettings(opts SettingsOptions) Settings {
	out := AudioOutput{
		Encoding:   string(opts.Output.Encoding),
		SampleRate: opts.Output.SampleRate,
	}
	// Raw frames are streamed straight to the caller; no WAV header.
	out.Container = "none"

	return Settings{
		Type: "Settings",
		Audio: AudioSettings{
			Input: AudioInput{
				Encoding:   string(opts.Input.Encoding),
				SampleRate: opts.Input.SampleRate,
			},
			Output: out,
		},
		Agent: AgentSettings{
			Language: opts.Language,
			Listen:   ListenSettings{Provider: opts.Listen},
			Think: ThinkSettings{
				Provider:  opts.Think,
				Prompt:    opts.Prompt,
				Functions: opts.Functions,
			},
			Speak: SpeakSettings{
				Provider: SpeakProvider{Type: listenProviderType, Model: opts.Voice},
			},
			Greeting: opts.Greeting,
		},
	}
}
