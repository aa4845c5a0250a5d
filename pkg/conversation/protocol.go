package conversation

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Server → client message types.
const (
	MsgWelcome              = "Welcome"
	MsgSettingsApplied      = "SettingsApplied"
	MsgConversationText     = "ConversationText"
	MsgUserStartedSpeaking  = "UserStartedSpeaking"
	MsgAgentThinking        = "AgentThinking"
	MsgAgentStartedSpeaking = "AgentStartedSpeaking"
	MsgAgentAudioDone       = "AgentAudioDone"
	MsgFunctionCallRequest  = "FunctionCallRequest"
	MsgError                = "Error"
	MsgWarning              = "Warning"
)

// Client → server message types.
const (
	msgFunctionCallResponse = "FunctionCallResponse"
	msgKeepAlive            = "KeepAlive"
)

// ServerMessage is any JSON message from the agent. Only the fields of the
// given Type are populated.
type ServerMessage struct {
	Type        string         `json:"type"`
	RequestID   string         `json:"request_id,omitempty"`
	Role        string         `json:"role,omitempty"`
	Content     string         `json:"content,omitempty"`
	Functions   []FunctionCall `json:"functions,omitempty"`
	Code        string         `json:"code,omitempty"`
	Description string         `json:"description,omitempty"`
}

// ParseServerMessage decodes a text frame from the agent.
func ParseServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	return &msg, nil
}

type functionCallResponseMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type keepAliveMessage struct {
	Type string `json:"type"`
}

func encodeFunctionCallResponse(resp FunctionCallResponse) ([]byte, error) {
	return sonic.Marshal(functionCallResponseMessage{
		Type:    msgFunctionCallResponse,
		ID:      resp.ID,
		Name:    resp.Name,
		Content: resp.Content,
	})
}

func encodeKeepAlive() ([]byte, error) {
	return sonic.Marshal(keepAliveMessage{Type: msgKeepAlive})
}
