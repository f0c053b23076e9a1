package model

// Speaker is one voice detected in a video.
type Speaker struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	VoiceName            VoiceName    `json:"voice_name"`
	VoiceCharacteristics string       `json:"voice_characteristics,omitempty"`
	EmotionalTone        string       `json:"emotional_tone,omitempty"`
	DialogueSegments     []string     `json:"dialogue_segments"`
	Timestamps           [][2]float64 `json:"timestamps"` // (start, end) in seconds
}

// VideoAnalysis is the structured analysis returned for an uploaded video.
type VideoAnalysis struct {
	VideoID          string    `json:"video_id"`
	Duration         float64   `json:"duration"`
	SpeakerCount     int       `json:"speaker_count"`
	Speakers         []Speaker `json:"speakers"`
	Transcript       string    `json:"transcript"`
	DialogueFormat   string    `json:"dialogue_format,omitempty"`
	LanguageDetected string    `json:"language_detected,omitempty"`
}
