// Package tools implements the functions the interview agent may call.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/teslashibe/go-interview-relay/pkg/backend"
	"github.com/teslashibe/go-interview-relay/pkg/conversation"
)

// Function names declared to the agent.
const (
	GetContext              = "get_context"
	GetCurrentTime          = "get_current_time"
	UpdateInterviewProgress = "update_interview_progress"
	EndInterview            = "end_interview"
)

// Fixed responses.
const (
	NoContextFound   = "No relevant information found."
	ContextApology   = "I'm sorry, I couldn't look that up right now. Let's continue with the interview."
	ProgressAck      = "Progress noted."
	EndAck           = "Ending the interview. Thank you."
	TimeLayout       = "Monday, January 2, 2006 at 3:04 PM MST"
	notImplementedFn = "Function %s is not implemented."
)

// Tool is a function the agent can call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, args map[string]any) (string, error)

	// Fallback is returned when Handler fails. Empty means the error text is not exposed
	// and a generic message is used.
	Fallback string
}

// Backend is the subset of the backend client the tools use.
type Backend interface {
	AgentContext(ctx context.Context, query string) (string, error)
	UpdateProgress(ctx context.Context, sessionID string, progress backend.Progress) error
	EndSession(ctx context.Context, sessionID, reason string) error
}

// Notifier runs best-effort backend calls.
type Notifier interface {
	Go(op string, fn backend.Task) error
	Enqueue(key, op string, fn backend.Task) error
}

// Recorder observes dispatched calls.
type Recorder interface {
	RecordFunctionCall(name, outcome string)
}

// Config holds the per-session dependencies of the interview tools.
type Config struct {
	SessionID string
	Backend   Backend
	Notifier  Notifier

	// QueueKey orders progress updates on the notifier. Defaults to
	// SessionID.
	QueueKey string

	// OnEnd is called after end_interview has been acknowledged.
	OnEnd func(reason, summary string)

	// Now defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// InterviewTools returns the four interview functions bound to cfg.
func InterviewTools(cfg Config) []Tool {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueKey := cfg.QueueKey
	if queueKey == "" {
		queueKey = cfg.SessionID
	}

	return []Tool{
		{
			Name:        GetContext,
			Description: "Look up information about the role, the company or the candidate's documents.",
			Parameters: objectSchema(map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look up",
				},
			}, "query"),
			Fallback: ContextApology,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if cfg.Backend == nil {
					return "", fmt.Errorf("tools: no backend configured")
				}
				query, _ := args["query"].(string)
				text, err := cfg.Backend.AgentContext(ctx, query)
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(text) == "" {
					return NoContextFound, nil
				}
				return text, nil
			},
		},
		{
			Name:        GetCurrentTime,
			Description: "Get the current local date and time.",
			Parameters:  objectSchema(map[string]any{}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return now().Format(TimeLayout), nil
			},
		},
		{
			Name:        UpdateInterviewProgress,
			Description: "Record progress after asking a main interview question.",
			Parameters: objectSchema(map[string]any{
				"question_text": map[string]any{
					"type":        "string",
					"description": "The question that was asked",
				},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"asked", "answered", "skipped"},
					"description": "Where the question stands",
				},
			}, "question_text", "status"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				question, _ := args["question_text"].(string)
				status, _ := args["status"].(string)

				if cfg.Backend != nil && cfg.Notifier != nil {
					progress := backend.Progress{
						Action: "question",
						Payload: map[string]any{
							"question_text": question,
							"status":        status,
						},
					}
					err := cfg.Notifier.Enqueue(queueKey, "update_progress", func(ctx context.Context) error {
						return cfg.Backend.UpdateProgress(ctx, cfg.SessionID, progress)
					})
					if err != nil {
						logger.Warn("progress update not queued", "session_id", cfg.SessionID, "error", err)
					}
				}
				return ProgressAck, nil
			},
		},
		{
			Name:        EndInterview,
			Description: "End the interview after saying goodbye to the candidate.",
			Parameters: objectSchema(map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Why the interview is ending",
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "A short summary of the interview",
				},
			}, "reason"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				reason, _ := args["reason"].(string)
				summary, _ := args["summary"].(string)
				if reason == "" {
					reason = "completed"
				}

				if cfg.Backend != nil && cfg.Notifier != nil {
					err := cfg.Notifier.Go("end_session", func(ctx context.Context) error {
						return cfg.Backend.EndSession(ctx, cfg.SessionID, reason)
					})
					if err != nil {
						logger.Warn("end notification not sent", "session_id", cfg.SessionID, "error", err)
					}
				}
				if cfg.OnEnd != nil {
					cfg.OnEnd(reason, summary)
				}
				return EndAck, nil
			},
		},
	}
}

// Declarations converts tools into the function list sent to the agent.
func Declarations(tools []Tool) []conversation.FunctionDecl {
	decls := make([]conversation.FunctionDecl, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, conversation.FunctionDecl{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return decls
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// parseArgs decodes a call's JSON arguments. Anything malformed is treated as {}.
func parseArgs(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := sonic.UnmarshalString(raw, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
