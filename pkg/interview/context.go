// Package interview resolves a session id to its interview configuration and
// derives the greeting and system prompt the agent is configured with.
package interview

import "strings"

// Type is the kind of interview being run.
type Type string

const (
	TypeScreening  Type = "screening"
	TypeTechnical  Type = "technical"
	TypeBehavioral Type = "behavioral"
	TypeFinal      Type = "final"
)

// Difficulty calibrates question depth.
type Difficulty string

const (
	DifficultyEntry     Difficulty = "entry"
	DifficultyMid       Difficulty = "mid"
	DifficultySenior    Difficulty = "senior"
	DifficultyExecutive Difficulty = "executive"
)

// Defaults used when the backend has nothing better.
const (
	DefaultType            = TypeScreening
	DefaultDifficulty      = DifficultyMid
	DefaultDurationMinutes = 15
)

// ParseType normalizes s, returning DefaultType for unknown values.
func ParseType(s string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeScreening, TypeTechnical, TypeBehavioral, TypeFinal:
		return t
	}
	return DefaultType
}

// ParseDifficulty normalizes s, returning DefaultDifficulty for unknown values.
func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEntry, DifficultyMid, DifficultySenior, DifficultyExecutive:
		return d
	}
	return DefaultDifficulty
}

// STTConfig holds the speech recognition tunables for a session.
type STTConfig struct {
	Endpointing    int
	UtteranceEndMs int
	SmartFormat    bool
	Keywords       []string
}

// Context is the immutable interview configuration of one session.
type Context struct {
	SessionID string

	CandidateName  string
	JobTitle       string
	CompanyName    string
	JobDescription string

	InterviewType      Type
	DifficultyLevel    Difficulty
	DurationMinutes    int
	CustomInstructions string

	// Empty means use the relay default.
	STTModel string
	VoiceID  string

	STTConfig STTConfig

	// Fallback is set when the backend could not be reached.
	Fallback bool
}

// Default returns the context used when no configuration could be loaded.
func Default(sessionID string) Context {
	return Context{
		SessionID:       sessionID,
		InterviewType:   DefaultType,
		DifficultyLevel: DefaultDifficulty,
		DurationMinutes: DefaultDurationMinutes,
		STTConfig:       STTConfig{SmartFormat: true},
		Fallback:        true,
	}
}
