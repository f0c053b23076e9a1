package model

// UploadResponse is returned by the upload and custom endpoints.
type UploadResponse struct {
	RequestID string `json:"request_id"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
}

// StatusResponse is the client view of a DubbingResult.
type StatusResponse struct {
	RequestID      string         `json:"request_id"`
	Status         Status         `json:"status"`
	Progress       float64        `json:"progress"`
	VideoAnalysis  *VideoAnalysis `json:"video_analysis,omitempty"`
	AudioFileURL   string         `json:"audio_file_url,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	ProcessingTime *float64       `json:"processing_time,omitempty"`
}

// SpeakerConfiguration overrides the analysed name and voice of one speaker, by position.
type SpeakerConfiguration struct {
	SpeakerName string `json:"speaker_name"`
	VoiceName   string `json:"voice_name"`
	VoiceStyle  string `json:"voice_style,omitempty"`
}

// CustomDubbingRequest is the JSON body of POST /custom.
type CustomDubbingRequest struct {
	VideoID               string                 `json:"video_id"`
	SpeakerConfigurations []SpeakerConfiguration `json:"speaker_configurations"`
	TargetLanguage        string                 `json:"target_language"`
	GlobalVoiceStyle      string                 `json:"global_voice_style"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
