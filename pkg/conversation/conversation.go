// Package conversation connects to a conversational voice agent over a
// WebSocket and translates its event vocabulary into callbacks.
//
// The agent speaks the Deepgram Voice Agent protocol: a Settings handshake,
// binary audio frames in both directions, and JSON control messages for
// transcripts, turn-taking and function calls.
//
// Example usage:
//
//	agent, err := conversation.NewDeepgram(
//	    conversation.WithAPIKey(os.Getenv("DEEPGRAM_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer agent.Close()
//
//	agent.Configure(settings)
//	agent.OnAudio(func(audio []byte) {
//	    // Play audio to the caller
//	})
//	agent.OnFunctionCallRequest(func(calls []conversation.FunctionCall) {
//	    for _, call := range calls {
//	        agent.RespondFunctionCall(conversation.FunctionCallResponse{ID: call.ID, Name: call.Name, Content: "ok"})
//	    }
//	})
//
//	if err := agent.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
package conversation

import "context"

// Agent is one connection to a conversational voice agent.
// Register callbacks and call Configure before Connect.
type Agent interface {
	// Configure stores the Settings sent as soon as the socket opens.
	Configure(settings Settings)

	// Connect dials the agent and sends the stored Settings.
	Connect(ctx context.Context) error

	// Close releases the connection. Safe to call more than once.
	Close() error

	// State returns the connection state.
	State() State

	// SendAudio streams one frame of caller audio in the configured input format.
	SendAudio(audio []byte) error

	// RespondFunctionCall answers a function call request.
	RespondFunctionCall(resp FunctionCallResponse) error

	// OnAudio is called with agent speech in the configured output format.
	OnAudio(fn func(audio []byte))

	// OnConfigured is called once the agent accepted the Settings.
	OnConfigured(fn func())

	// OnConversationText is called for every final transcript line.
	OnConversationText(fn func(text ConversationText))

	// OnFunctionCallRequest is called when the agent asks for function results.
	OnFunctionCallRequest(fn func(calls []FunctionCall))

	// OnStatus is called for turn-taking signals.
	OnStatus(fn func(status Status))

	// OnError is called for protocol and transport errors.
	OnError(fn func(err error))

	// OnClose is called once when the connection reaches a terminal state.
	OnClose(fn func())
}
