package gemini

import "DubFlow/model"

// File states reported by the Files API.
const (
	StateProcessing = "PROCESSING"
	StateActive     = "ACTIVE"
	StateFailed     = "FAILED"
)

// SpeechRequest is the input to Synthesize.
type SpeechRequest struct {
	Text     string
	Speakers []model.Speaker
	Language string
	Style    string
}

// fileInfo mirrors the Files API resource.
type fileInfo struct {
	Name     string     `json:"name"`
	URI      string     `json:"uri"`
	MimeType string     `json:"mimeType"`
	State    string     `json:"state"`
	Error    *apiStatus `json:"error,omitempty"`
}

func (f *fileInfo) handle() *model.RemoteHandle {
	return &model.RemoteHandle{Name: f.Name, URI: f.URI, MimeType: f.MimeType}
}

type uploadResponse struct {
	File fileInfo `json:"file"`
}

type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type apiError struct {
	Error apiStatus `json:"error"`
}

// generateContent request/response wire types.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	FileData   *fileData   `json:"fileData,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"` // base64 on the wire
}

type generationConfig struct {
	Temperature        *float64      `json:"temperature,omitempty"`
	ResponseMimeType   string        `json:"responseMimeType,omitempty"`
	ResponseSchema     *schema       `json:"responseSchema,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig             *voiceConfig             `json:"voiceConfig,omitempty"`
	MultiSpeakerVoiceConfig *multiSpeakerVoiceConfig `json:"multiSpeakerVoiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type multiSpeakerVoiceConfig struct {
	SpeakerVoiceConfigs []speakerVoiceConfig `json:"speakerVoiceConfigs"`
}

type speakerVoiceConfig struct {
	Speaker     string      `json:"speaker"`
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

// analysisPayload is the JSON document the model returns for a video.
type analysisPayload struct {
	Duration         float64 `json:"duration"`
	SpeakerCount     *int    `json:"speaker_count"`
	Transcript       string  `json:"transcript"`
	DialogueFormat   string  `json:"dialogue_format"`
	LanguageDetected string  `json:"language_detected"`
	Speakers         []struct {
		Name                 string      `json:"name"`
		VoiceCharacteristics string      `json:"voice_characteristics"`
		EmotionalTone        string      `json:"emotional_tone"`
		DialogueSegments     []string    `json:"dialogue_segments"`
		Timestamps           [][]float64 `json:"timestamps"`
	} `json:"speakers"`
}
