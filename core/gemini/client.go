package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"DubFlow/core/voice"
	"DubFlow/logger"
	"DubFlow/metrics"
	"DubFlow/model"
)

// ErrFileNotReady is returned by GetFile when a remote file exists but cannot be used.
var ErrFileNotReady = errors.New("remote file is not active")

// Config contains configuration for the Gemini client.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string // video analysis
	TTSModel     string // speech synthesis
	Timeout      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Client talks to the Gemini REST API: the Files API for uploads and
// generateContent for analysis and speech.
type Client struct {
	config   *Config
	http     *resty.Client
	selector voice.Selector
}

// NewClient creates a resty-backed client. A nil selector uses the keyword heuristic.
func NewClient(cfg *Config, selector voice.Selector) *Client {
	if selector == nil {
		selector = voice.NewKeywordSelector()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		config: cfg,
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetHeader("x-goog-api-key", cfg.APIKey).
			SetTimeout(cfg.Timeout),
		selector: selector,
	}
}

func track(op string, start time.Time, errp *error) {
	metrics.RecordGatewayCall(op, *errp, time.Since(start).Seconds())
}

// apiErrorFrom turns a non-2xx response into an error carrying the provider's message.
func apiErrorFrom(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	var ae apiError
	if err := json.Unmarshal(resp.Body(), &ae); err == nil && ae.Error.Message != "" {
		return fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode(), ae.Error.Message)
	}
	return fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
}

func decode(resp *resty.Response, v interface{}) error {
	if err := apiErrorFrom(resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("failed to decode gemini response: %w", err)
	}
	return nil
}

// Upload pushes a local file through the resumable upload protocol and waits for
// the provider to finish processing it. A readiness timeout is logged and the
// handle returned anyway.
func (c *Client) Upload(ctx context.Context, path, mimeType string) (_ *model.RemoteHandle, err error) {
	defer track("upload", time.Now(), &err)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	startResp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Goog-Upload-Protocol", "resumable").
		SetHeader("X-Goog-Upload-Command", "start").
		SetHeader("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data))).
		SetHeader("X-Goog-Upload-Header-Content-Type", mimeType).
		SetBody(map[string]interface{}{
			"file": map[string]string{"display_name": filepath.Base(path)},
		}).
		Post("/upload/v1beta/files")
	if err != nil {
		return nil, fmt.Errorf("failed to start upload: %w", err)
	}
	if err := apiErrorFrom(startResp); err != nil {
		return nil, err
	}
	uploadURL := startResp.Header().Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return nil, errors.New("gemini upload did not return an upload URL")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", mimeType).
		SetHeader("X-Goog-Upload-Offset", "0").
		SetHeader("X-Goog-Upload-Command", "upload, finalize").
		SetBody(data).
		Post(uploadURL)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file bytes: %w", err)
	}
	var uploaded uploadResponse
	if err := decode(resp, &uploaded); err != nil {
		return nil, err
	}
	if uploaded.File.Name == "" {
		return nil, errors.New("gemini upload response did not include a file name")
	}
	logger.Info("Video uploaded to Gemini",
		logger.String("file", uploaded.File.Name),
		logger.String("mimeType", mimeType),
		logger.Int("bytes", len(data)))

	return c.waitUntilActive(ctx, &uploaded.File)
}

// waitUntilActive polls the file state. ACTIVE returns, FAILED is an error, a
// failing first status check or a timeout returns the handle unconfirmed.
func (c *Client) waitUntilActive(ctx context.Context, f *fileInfo) (*model.RemoteHandle, error) {
	handle := f.handle()
	start := time.Now()
	for attempt := 0; ; attempt++ {
		info, err := c.getFile(ctx, f.Name)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && attempt == 0:
			logger.Warn("Could not check file status, proceeding anyway",
				logger.String("file", f.Name), logger.ErrorField(err))
			return handle, nil
		case err != nil:
			logger.Warn("File status check failed, retrying",
				logger.String("file", f.Name), logger.ErrorField(err))
		case info.State == StateActive:
			logger.Info("File is ready for processing", logger.String("file", f.Name))
			return handle, nil
		case info.State == StateFailed:
			if info.Error != nil && info.Error.Message != "" {
				return nil, fmt.Errorf("file processing failed: %s: %s", f.Name, info.Error.Message)
			}
			return nil, fmt.Errorf("file processing failed: %s", f.Name)
		default:
			logger.Debug("File still processing, waiting",
				logger.String("file", f.Name), logger.String("state", info.State))
		}

		if time.Since(start)+c.config.PollInterval > c.config.PollTimeout {
			logger.Warn("File processing timeout, proceeding anyway",
				logger.String("file", f.Name), logger.Duration("waited", time.Since(start)))
			return handle, nil
		}
		timer := time.NewTimer(c.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) getFile(ctx context.Context, name string) (*fileInfo, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/v1beta/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", name, err)
	}
	var info fileInfo
	if err := decode(resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetFile re-resolves a previously uploaded file and fails unless it is ACTIVE.
func (c *Client) GetFile(ctx context.Context, name string) (_ *model.RemoteHandle, err error) {
	defer track("get_file", time.Now(), &err)

	info, err := c.getFile(ctx, name)
	if err != nil {
		return nil, err
	}
	if info.State != StateActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrFileNotReady, name, info.State)
	}
	return info.handle(), nil
}

// Analyze asks the analysis model for a schema-constrained description of the
// video and assigns a catalog voice to every detected speaker.
func (c *Client) Analyze(ctx context.Context, handle *model.RemoteHandle) (_ *model.VideoAnalysis, err error) {
	defer track("analyze", time.Now(), &err)

	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{FileData: &fileData{MimeType: handle.MimeType, FileURI: handle.URI}},
				{Text: analysisPrompt},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   analysisSchema,
		},
	}
	out, err := c.generate(ctx, c.config.Model, &req)
	if err != nil {
		return nil, err
	}

	text := firstText(out)
	if text == "" {
		return nil, errors.New("no analysis content in gemini response")
	}
	var payload analysisPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse video analysis: %w", err)
	}

	analysis := c.toAnalysis(handle.Name, &payload)
	logger.Info("Video analysis complete",
		logger.String("file", handle.Name),
		logger.Int("speakers", len(analysis.Speakers)),
		logger.Int("transcriptLength", len(analysis.Transcript)),
		logger.Float64("duration", analysis.Duration))
	return analysis, nil
}

func (c *Client) toAnalysis(videoID string, p *analysisPayload) *model.VideoAnalysis {
	speakerCount := 1
	if p.SpeakerCount != nil {
		speakerCount = *p.SpeakerCount
	}
	language := p.LanguageDetected
	if language == "" {
		language = "en-US"
	}

	speakers := make([]model.Speaker, 0, len(p.Speakers))
	for i, s := range p.Speakers {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Speaker_%d", i+1)
		}
		timestamps := make([][2]float64, 0, len(s.Timestamps))
		for _, ts := range s.Timestamps {
			if len(ts) >= 2 {
				timestamps = append(timestamps, [2]float64{ts[0], ts[1]})
			}
		}
		segments := s.DialogueSegments
		if segments == nil {
			segments = []string{}
		}
		speakers = append(speakers, model.Speaker{
			ID:                   uuid.New().String(),
			Name:                 name,
			VoiceName:            c.selector.Select(s.VoiceCharacteristics, s.EmotionalTone),
			VoiceCharacteristics: s.VoiceCharacteristics,
			EmotionalTone:        s.EmotionalTone,
			DialogueSegments:     segments,
			Timestamps:           timestamps,
		})
	}

	return &model.VideoAnalysis{
		VideoID:          videoID,
		Duration:         p.Duration,
		SpeakerCount:     speakerCount,
		Speakers:         speakers,
		Transcript:       p.Transcript,
		DialogueFormat:   p.DialogueFormat,
		LanguageDetected: language,
	}
}

// Synthesize renders text to WAV audio. One speaker uses a prebuilt voice; more
// than one uses the multi-speaker config for the first two and falls back to the
// first speaker's voice if that fails.
func (c *Client) Synthesize(ctx context.Context, req SpeechRequest) (_ []byte, err error) {
	defer track("synthesize", time.Now(), &err)

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	speakers := req.Speakers
	if len(speakers) == 0 {
		speakers = []model.Speaker{{Name: "Speaker_1", VoiceName: model.DefaultVoice}}
	}
	logger.Info("Generating speech",
		logger.Int("textLength", len(text)),
		logger.Int("speakers", len(speakers)),
		logger.String("language", req.Language),
		logger.String("style", req.Style))

	if len(speakers) == 1 {
		return c.singleSpeaker(ctx, text, speakers[0])
	}

	audio, err := c.multiSpeaker(ctx, text, speakers)
	if err == nil {
		return audio, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	logger.Warn("Multi-speaker TTS failed, falling back to single-speaker TTS with first speaker",
		logger.String("speaker", speakers[0].Name), logger.ErrorField(err))
	return c.singleSpeaker(ctx, text, speakers[0])
}

func voiceOf(s model.Speaker) string {
	if s.VoiceName == "" {
		return string(model.DefaultVoice)
	}
	return string(s.VoiceName)
}

func (c *Client) singleSpeaker(ctx context.Context, text string, s model.Speaker) ([]byte, error) {
	audio, err := c.speech(ctx, text, &speechConfig{
		VoiceConfig: &voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voiceOf(s)}},
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Generated single-speaker audio", logger.Int("bytes", len(audio)), logger.String("voice", voiceOf(s)))
	return audio, nil
}

// multiSpeaker is limited to two speakers by the provider.
func (c *Client) multiSpeaker(ctx context.Context, text string, speakers []model.Speaker) ([]byte, error) {
	if len(speakers) > 2 {
		speakers = speakers[:2]
	}
	configs := make([]speakerVoiceConfig, 0, len(speakers))
	for _, s := range speakers {
		configs = append(configs, speakerVoiceConfig{
			Speaker:     s.Name,
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voiceOf(s)}},
		})
	}
	audio, err := c.speech(ctx, text, &speechConfig{
		MultiSpeakerVoiceConfig: &multiSpeakerVoiceConfig{SpeakerVoiceConfigs: configs},
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Generated multi-speaker audio", logger.Int("bytes", len(audio)))
	return audio, nil
}

func (c *Client) speech(ctx context.Context, text string, sc *speechConfig) ([]byte, error) {
	temperature := 1.0
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			Temperature:        &temperature,
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       sc,
		},
	}
	out, err := c.generate(ctx, c.config.TTSModel, &req)
	if err != nil {
		return nil, err
	}
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return normalizeAudio(p.InlineData.Data, p.InlineData.MimeType), nil
			}
		}
	}
	return nil, errors.New("no audio data in gemini speech response")
}

func (c *Client) generate(ctx context.Context, modelName string, req *generateRequest) (*generateResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", modelName).
		SetBody(req).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	var out generateResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 {
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("gemini blocked the request: %s", out.PromptFeedback.BlockReason)
		}
		return nil, errors.New("gemini returned no candidates")
	}
	return &out, nil
}

func firstText(out *generateResponse) string {
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return p.Text
			}
		}
	}
	return ""
}

// Release deletes an uploaded file. Failures are logged only.
func (c *Client) Release(ctx context.Context, handle *model.RemoteHandle) {
	if handle == nil || handle.Name == "" {
		return
	}
	var err error
	defer track("release", time.Now(), &err)

	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/v1beta/" + handle.Name)
	if err == nil {
		err = apiErrorFrom(resp)
	}
	if err != nil {
		logger.Warn("Failed to delete Gemini file", logger.String("file", handle.Name), logger.ErrorField(err))
		return
	}
	logger.Info("Deleted Gemini file", logger.String("file", handle.Name))
}
