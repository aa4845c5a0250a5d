package backend

// SessionContextResponse is the body of GET /sessions/{id}/context.
type SessionContextResponse struct {
	Success   bool            `json:"success"`
	Context   string          `json:"context,omitempty"`
	Metadata  SessionMetadata `json:"metadata"`
	Interview InterviewInfo   `json:"interview"`
}

// SessionMetadata carries job and speech settings for a session.
type SessionMetadata struct {
	CandidateName  string     `json:"candidate_name,omitempty"`
	JobTitle       string     `json:"job_title,omitempty"`
	CompanyName    string     `json:"company_name,omitempty"`
	JobDescription string     `json:"job_description,omitempty"`
	STTModel       string     `json:"stt_model,omitempty"`
	VoiceID        string     `json:"voice_id,omitempty"`
	STTConfig      *STTConfig `json:"stt_config,omitempty"`
}

// STTConfig is passed through into the agent listen settings.
type STTConfig struct {
	Endpointing    int      `json:"endpointing,omitempty"`
	UtteranceEndMs int      `json:"utterance_end_ms,omitempty"`
	SmartFormat    *bool    `json:"smart_format,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
}

// InterviewInfo is the interview configuration block.
type InterviewInfo struct {
	InterviewType      string `json:"interview_type,omitempty"`
	DifficultyLevel    string `json:"difficulty_level,omitempty"`
	DurationMinutes    int    `json:"duration_minutes,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
}

// LogEntry is one transcript line.
type LogEntry struct {
	Speaker  string         `json:"speaker"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Progress is an interview progress update.
type Progress struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}

type agentContextRequest struct {
	Query string `json:"query"`
}

type agentContextResponse struct {
	Context string `json:"context"`
}

type endRequest struct {
	Reason string `json:"reason"`
}
