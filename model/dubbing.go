package model

import "time"

// Status is the lifecycle state of a DubbingResult.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid reports whether s is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a result may move from s to next.
// pending -> processing -> completed|failed; pending -> failed covers jobs cancelled before they start.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Progress is the coarse completion fraction reported to clients.
func (s Status) Progress() float64 {
	switch s {
	case StatusProcessing:
		return 0.5
	case StatusCompleted:
		return 1.0
	default:
		return 0.0
	}
}

// DubbingRequest is one user intent to dub an asset. Immutable once saved.
type DubbingRequest struct {
	ID               string    `json:"id"`
	AssetID          string    `json:"video_id"`
	TargetLanguage   string    `json:"target_language"`
	VoiceStyle       string    `json:"voice_style"`
	PreserveEmotions bool      `json:"preserve_emotions"`
	Custom           bool      `json:"custom,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// DubbingResult tracks the processing lifecycle of a request.
type DubbingResult struct {
	ID             string         `json:"id"`
	RequestID      string         `json:"request_id"`
	Status         Status         `json:"status"`
	VideoAnalysis  *VideoAnalysis `json:"video_analysis,omitempty"`
	AudioFilePath  string         `json:"audio_file_path,omitempty"`
	ProcessingTime *float64       `json:"processing_time,omitempty"` // seconds
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}
