package interview

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-interview-relay/pkg/backend"
)

// DefaultTimeout bounds a context fetch.
const DefaultTimeout = 5 * time.Second

// Fetcher retrieves raw session configuration.
type Fetcher interface {
	SessionContext(ctx context.Context, sessionID string) (*backend.SessionContextResponse, error)
}

// Loader resolves session ids to Contexts.
type Loader struct {
	Fetcher Fetcher
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewLoader creates a Loader with the default timeout.
func NewLoader(f Fetcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		Fetcher: f,
		Timeout: DefaultTimeout,
		Logger:  logger.With("component", "interview.loader"),
	}
}

// Load fetches the context for sessionID. It never fails: any error yields
// Default(sessionID) within Timeout.
func (l *Loader) Load(ctx context.Context, sessionID string) Context {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if sessionID == "" || l.Fetcher == nil {
		logger.Warn("no session to load, using defaults", "session_id", sessionID)
		return Default(sessionID)
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp *backend.SessionContextResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := l.Fetcher.SessionContext(ctx, sessionID)
		ch <- result{resp, err}
	}()

	// A Fetcher that ignores ctx must not hold the call open.
	select {
	case r := <-ch:
		if r.err != nil || r.resp == nil {
			logger.Warn("context fetch failed, using defaults", "session_id", sessionID, "error", r.err)
			return Default(sessionID)
		}
		c := FromResponse(sessionID, r.resp)
		logger.Info("context loaded",
			"session_id", sessionID,
			"interview_type", c.InterviewType,
			"difficulty", c.DifficultyLevel,
			"duration_minutes", c.DurationMinutes,
		)
		return c
	case <-ctx.Done():
		logger.Warn("context fetch timed out, using defaults", "session_id", sessionID, "timeout", timeout)
		return Default(sessionID)
	}
}

// FromResponse maps a backend response onto a Context, normalizing enums.
func FromResponse(sessionID string, resp *backend.SessionContextResponse) Context {
	c := Default(sessionID)
	c.Fallback = false

	md := resp.Metadata
	c.CandidateName = md.CandidateName
	c.JobTitle = md.JobTitle
	c.CompanyName = md.CompanyName
	c.JobDescription = md.JobDescription
	if c.JobDescription == "" {
		c.JobDescription = resp.Context
	}
	c.STTModel = md.STTModel
	c.VoiceID = md.VoiceID

	if sc := md.STTConfig; sc != nil {
		c.STTConfig.Endpointing = sc.Endpointing
		c.STTConfig.UtteranceEndMs = sc.UtteranceEndMs
		if sc.SmartFormat != nil {
			c.STTConfig.SmartFormat = *sc.SmartFormat
		}
		c.STTConfig.Keywords = append([]string(nil), sc.Keywords...)
	}

	iv := resp.Interview
	c.InterviewType = ParseType(iv.InterviewType)
	c.DifficultyLevel = ParseDifficulty(iv.DifficultyLevel)
	if iv.DurationMinutes > 0 {
		c.DurationMinutes = iv.DurationMinutes
	}
	c.CustomInstructions = iv.CustomInstructions

	return c
}
