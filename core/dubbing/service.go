package dubbing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"DubFlow/core/gemini"
	"DubFlow/core/jobs"
	"DubFlow/logger"
	"DubFlow/metrics"
	"DubFlow/model"
	"DubFlow/repository"
	"DubFlow/storage"
)

// AllowedContentTypes are the declared upload types accepted by Submit.
var AllowedContentTypes = []string{
	"video/mp4", "video/avi", "video/mov", "video/webm",
	"video/mpeg", "video/x-flv", "video/mpg", "video/wmv", "video/3gpp",
}

// Gateway is the external AI provider.
type Gateway interface {
	Upload(ctx context.Context, path, mimeType string) (*model.RemoteHandle, error)
	GetFile(ctx context.Context, name string) (*model.RemoteHandle, error)
	Analyze(ctx context.Context, handle *model.RemoteHandle) (*model.VideoAnalysis, error)
	Synthesize(ctx context.Context, req gemini.SpeechRequest) ([]byte, error)
	Release(ctx context.Context, handle *model.RemoteHandle)
}

// MediaStore keeps source videos and generated audio on disk.
type MediaStore interface {
	SaveUpload(assetID, filename string, r io.Reader, maxBytes int64) (*storage.SavedFile, error)
	SaveAudio(name string, data []byte) (string, error)
	Remove(path string) error
}

// StatusCache is an optional read-through cache of result snapshots. Set is
// called on every transition; Fill backfills a miss and must not replace an
// existing entry.
type StatusCache interface {
	Get(ctx context.Context, requestID string) (*model.DubbingResult, error)
	Set(ctx context.Context, res *model.DubbingResult) error
	Fill(ctx context.Context, res *model.DubbingResult) error
	Delete(ctx context.Context, requestID string) error
}

// AudioArchiver is an optional secondary copy of generated audio.
type AudioArchiver interface {
	Archive(ctx context.Context, requestID, filePath string) error
	Remove(ctx context.Context, requestID string) error
}

// Dependencies are constructed once at startup and handed to NewService.
type Dependencies struct {
	Assets   repository.AssetRepository
	Requests repository.RequestRepository
	Results  repository.ResultRepository
	Gateway  Gateway
	Files    MediaStore
	Runner   *jobs.Runner
	Cache    StatusCache   // may be nil
	Archive  AudioArchiver // may be nil
}

// Options are the request defaults and limits.
type Options struct {
	MaxFileSize       int64
	DefaultLanguage   string
	DefaultVoiceStyle string
}

// UploadInput is one video upload.
type UploadInput struct {
	Filename         string
	ContentType      string // as declared by the client
	Size             int64  // declared size, <= 0 if unknown
	Body             io.Reader
	TargetLanguage   string
	VoiceStyle       string
	PreserveEmotions bool
}

// Service owns the dubbing request lifecycle.
type Service struct {
	assets   repository.AssetRepository
	requests repository.RequestRepository
	results  repository.ResultRepository
	gateway  Gateway
	files    MediaStore
	runner   *jobs.Runner
	cache    StatusCache
	archive  AudioArchiver
	opts     Options
	now      func() time.Time
}

// NewService creates the orchestrator.
func NewService(deps Dependencies, opts Options) *Service {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en-US"
	}
	if opts.DefaultVoiceStyle == "" {
		opts.DefaultVoiceStyle = "natural"
	}
	if deps.Runner == nil {
		deps.Runner = jobs.NewRunner(0)
	}
	return &Service{
		assets:   deps.Assets,
		requests: deps.Requests,
		results:  deps.Results,
		gateway:  deps.Gateway,
		files:    deps.Files,
		runner:   deps.Runner,
		cache:    deps.Cache,
		archive:  deps.Archive,
		opts:     opts,
		now:      time.Now,
	}
}

func normalizeContentType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func isAllowedContentType(ct string) bool {
	for _, allowed := range AllowedContentTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

func (s *Service) maxSizeMessage() string {
	return fmt.Sprintf("File too large (max %dMB)", s.opts.MaxFileSize/(1024*1024))
}

// Submit validates and stores an upload, creates its request and pending result,
// and starts processing in the background.
func (s *Service) Submit(ctx context.Context, in UploadInput) (*model.DubbingResult, error) {
	ct := normalizeContentType(in.ContentType)
	if in.Body == nil || in.Filename == "" {
		metrics.RecordUpload(ct, "rejected", 0)
		return nil, invalid(ErrMissingFile, "No file provided")
	}
	if s.opts.MaxFileSize > 0 && in.Size > s.opts.MaxFileSize {
		metrics.RecordUpload(ct, "rejected", 0)
		return nil, invalid(ErrFileTooLarge, "%s", s.maxSizeMessage())
	}
	if !isAllowedContentType(ct) {
		metrics.RecordUpload(ct, "rejected", 0)
		return nil, invalid(ErrUnsupportedMediaType, "Unsupported file type. Allowed: %s", strings.Join(AllowedContentTypes, ", "))
	}

	assetID := uuid.New().String()
	saved, err := s.files.SaveUpload(assetID, in.Filename, in.Body, s.opts.MaxFileSize)
	if err != nil {
		metrics.RecordUpload(ct, "rejected", 0)
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, invalid(ErrFileTooLarge, "%s", s.maxSizeMessage())
		}
		return nil, err
	}

	mimeType := ct
	if strings.HasPrefix(saved.DetectedType, "video/") {
		mimeType = saved.DetectedType
	}
	asset := &model.MediaAsset{
		ID:         assetID,
		Filename:   in.Filename,
		FilePath:   saved.Path,
		FileSize:   saved.Size,
		MimeType:   mimeType,
		UploadedAt: s.now(),
	}
	if _, err := s.assets.SaveAsset(asset); err != nil {
		s.files.Remove(saved.Path)
		return nil, err
	}
	metrics.RecordUpload(ct, "success", saved.Size)

	req := &model.DubbingRequest{
		ID:               uuid.New().String(),
		AssetID:          asset.ID,
		TargetLanguage:   orDefault(in.TargetLanguage, s.opts.DefaultLanguage),
		VoiceStyle:       orDefault(in.VoiceStyle, s.opts.DefaultVoiceStyle),
		PreserveEmotions: in.PreserveEmotions,
		CreatedAt:        s.now(),
	}
	logger.Info("Video uploaded",
		logger.RequestID(req.ID),
		logger.String("assetId", asset.ID),
		logger.String("filename", asset.Filename),
		logger.Int64("bytes", asset.FileSize))
	return s.enqueue(ctx, req, nil)
}

// SubmitCustom starts a new request against an existing asset with per-speaker
// name and voice overrides applied by position.
func (s *Service) SubmitCustom(ctx context.Context, in model.CustomDubbingRequest) (*model.DubbingResult, error) {
	if in.VideoID == "" {
		return nil, invalid(ErrAssetNotFound, "video_id is required")
	}
	overrides := make([]model.SpeakerConfiguration, len(in.SpeakerConfigurations))
	for i, sc := range in.SpeakerConfigurations {
		v, err := model.ParseVoiceName(sc.VoiceName)
		if err != nil {
			return nil, invalid(ErrUnknownVoice, "Unknown voice: %s", sc.VoiceName)
		}
		sc.VoiceName = string(v)
		overrides[i] = sc
	}

	asset, err := s.assets.GetAssetByID(in.VideoID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, invalid(ErrAssetNotFound, "Video not found: %s", in.VideoID)
	}

	req := &model.DubbingRequest{
		ID:               uuid.New().String(),
		AssetID:          asset.ID,
		TargetLanguage:   orDefault(in.TargetLanguage, s.opts.DefaultLanguage),
		VoiceStyle:       orDefault(in.GlobalVoiceStyle, s.opts.DefaultVoiceStyle),
		PreserveEmotions: true,
		Custom:           true,
		CreatedAt:        s.now(),
	}
	logger.Info("Custom dubbing requested",
		logger.RequestID(req.ID),
		logger.String("assetId", asset.ID),
		logger.Int("overrides", len(overrides)))
	return s.enqueue(ctx, req, overrides)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// enqueue persists the request and its pending result, then hands the job to the runner.
func (s *Service) enqueue(ctx context.Context, req *model.DubbingRequest, overrides []model.SpeakerConfiguration) (*model.DubbingResult, error) {
	if _, err := s.requests.SaveRequest(req); err != nil {
		return nil, err
	}
	result := &model.DubbingResult{
		ID:        uuid.New().String(),
		RequestID: req.ID,
		Status:    model.StatusPending,
		CreatedAt: s.now(),
	}
	if _, err := s.results.SaveResult(result); err != nil {
		return nil, err
	}
	s.cacheResult(ctx, result)

	resultID := result.ID
	if _, err := s.runner.Start(req.ID, func(jobCtx context.Context) error {
		return s.process(jobCtx, req, resultID, overrides)
	}); err != nil {
		s.transition(context.WithoutCancel(ctx), req.ID, resultID, model.StatusFailed, repository.ResultFields{ErrorMessage: err.Error()})
		return nil, fmt.Errorf("failed to start dubbing job: %w", err)
	}

	snapshot := *result
	return &snapshot, nil
}

// process runs one request to completion. Every failure is terminal and recorded
// on the result with the failing step's message.
func (s *Service) process(ctx context.Context, req *model.DubbingRequest, resultID string, overrides []model.SpeakerConfiguration) error {
	start := s.now()
	// Bookkeeping must survive cancellation of the job itself.
	bg := context.WithoutCancel(ctx)

	var handle *model.RemoteHandle
	fail := func(err error) error {
		msg := err.Error()
		if cause := context.Cause(ctx); cause != nil {
			msg = cause.Error()
			err = cause
		}
		logger.Error("Dubbing processing failed", logger.RequestID(req.ID), logger.String("error", msg))
		s.transition(bg, req.ID, resultID, model.StatusFailed, repository.ResultFields{ErrorMessage: msg})
		metrics.RecordJob(string(model.StatusFailed), s.now().Sub(start).Seconds())
		if handle != nil && !req.Custom {
			s.gateway.Release(bg, handle)
		}
		return err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if !s.transition(bg, req.ID, resultID, model.StatusProcessing, repository.ResultFields{}) {
		return fmt.Errorf("result %s is no longer pending", resultID)
	}

	asset, err := s.assets.GetAssetByID(req.AssetID)
	if err != nil {
		return fail(err)
	}
	if asset == nil {
		return fail(fmt.Errorf("%w: %s", ErrAssetNotFound, req.AssetID))
	}

	handle, err = s.remoteHandle(ctx, asset, req.Custom)
	if err != nil {
		return fail(err)
	}

	analysis, err := s.gateway.Analyze(ctx, handle)
	if err != nil {
		return fail(err)
	}
	analysis.VideoID = asset.ID
	applyOverrides(analysis, overrides)

	text := CleanTranscript(analysis.Transcript)
	logger.Info("Cleaned transcript for TTS",
		logger.RequestID(req.ID),
		logger.Int("rawLength", len(analysis.Transcript)),
		logger.Int("cleanLength", len(text)))

	audio, err := s.gateway.Synthesize(ctx, gemini.SpeechRequest{
		Text:     text,
		Speakers: analysis.Speakers,
		Language: req.TargetLanguage,
		Style:    req.VoiceStyle,
	})
	if err != nil {
		return fail(err)
	}

	name := "dubbed_" + req.ID + ".wav"
	if req.Custom {
		name = "custom_dubbed_" + req.ID + ".wav"
	}
	audioPath, err := s.files.SaveAudio(name, audio)
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		s.files.Remove(audioPath)
		return fail(err)
	}

	if !s.transition(bg, req.ID, resultID, model.StatusCompleted, repository.ResultFields{
		VideoAnalysis: analysis,
		AudioFilePath: audioPath,
	}) {
		s.files.Remove(audioPath)
		return fmt.Errorf("failed to record completion of %s", req.ID)
	}
	elapsed := s.now().Sub(start)
	metrics.RecordJob(string(model.StatusCompleted), elapsed.Seconds())
	logger.Info("Dubbing completed",
		logger.RequestID(req.ID),
		logger.String("audioPath", audioPath),
		logger.Duration("elapsed", elapsed))

	if s.archive != nil {
		if err := s.archive.Archive(bg, req.ID, audioPath); err != nil {
			logger.Warn("Failed to archive dubbed audio", logger.RequestID(req.ID), logger.ErrorField(err))
		}
	}
	if !req.Custom {
		s.gateway.Release(bg, handle)
	}
	return nil
}

// remoteHandle uploads the asset, or for custom requests reuses the stored
// handle while the provider still reports it usable.
func (s *Service) remoteHandle(ctx context.Context, asset *model.MediaAsset, reuse bool) (*model.RemoteHandle, error) {
	if reuse && asset.RemoteHandle != nil && asset.RemoteHandle.Name != "" {
		handle, err := s.gateway.GetFile(ctx, asset.RemoteHandle.Name)
		if err == nil {
			logger.Info("Reusing uploaded video", logger.String("assetId", asset.ID), logger.String("file", handle.Name))
			return handle, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Warn("Stored remote file unusable, uploading again",
			logger.String("assetId", asset.ID), logger.ErrorField(err))
	}

	handle, err := s.gateway.Upload(ctx, asset.FilePath, asset.MimeType)
	if err != nil {
		return nil, err
	}
	if err := s.assets.SetRemoteHandle(asset.ID, handle); err != nil {
		logger.Warn("Failed to record remote handle", logger.String("assetId", asset.ID), logger.ErrorField(err))
	}
	return handle, nil
}

// applyOverrides replaces analysed speaker names and voices by position. Speakers
// beyond the override list keep their suggested voice.
func applyOverrides(analysis *model.VideoAnalysis, overrides []model.SpeakerConfiguration) {
	for i, o := range overrides {
		if i >= len(analysis.Speakers) {
			break
		}
		if o.SpeakerName != "" {
			analysis.Speakers[i].Name = o.SpeakerName
		}
		analysis.Speakers[i].VoiceName = model.VoiceName(o.VoiceName)
	}
}

// transition updates the stored result and refreshes the cache. It reports
// whether the update was applied.
func (s *Service) transition(ctx context.Context, requestID, resultID string, status model.Status, fields repository.ResultFields) bool {
	ok, err := s.results.UpdateStatus(resultID, status, fields)
	if err != nil {
		logger.Error("Failed to update result status",
			logger.RequestID(requestID),
			logger.String("status", string(status)),
			logger.ErrorField(err))
		return false
	}
	if !ok {
		logger.Warn("Result vanished before status update", logger.RequestID(requestID), logger.String("resultId", resultID))
		return false
	}
	logger.Info("Dubbing status changed", logger.RequestID(requestID), logger.String("status", string(status)))

	if s.cache != nil {
		res, err := s.results.GetResultByID(resultID)
		if err == nil && res != nil {
			s.cacheResult(ctx, res)
		}
	}
	return true
}

// cacheResult writes res through to the cache. When the write fails the entry
// is evicted so readers fall back to the store instead of an older snapshot.
func (s *Service) cacheResult(ctx context.Context, res *model.DubbingResult) {
	if s.cache == nil {
		return
	}
	err := s.cache.Set(ctx, res)
	if err == nil {
		return
	}
	logger.Warn("Failed to cache result", logger.RequestID(res.RequestID), logger.ErrorField(err))
	if err := s.cache.Delete(ctx, res.RequestID); err != nil {
		logger.Error("Failed to evict stale cached result", logger.RequestID(res.RequestID), logger.ErrorField(err))
	}
}

// GetStatus returns the result for requestID, or (nil, nil) if unknown.
func (s *Service) GetStatus(ctx context.Context, requestID string) (*model.DubbingResult, error) {
	if s.cache != nil {
		res, err := s.cache.Get(ctx, requestID)
		if err != nil {
			logger.Warn("Status cache read failed", logger.RequestID(requestID), logger.ErrorField(err))
		} else if res != nil {
			return res, nil
		}
	}
	res, err := s.results.GetResultByRequestID(requestID)
	if err != nil || res == nil {
		return res, err
	}
	// A job may have cached a newer status since the store read; Fill keeps it.
	if s.cache != nil {
		if err := s.cache.Fill(ctx, res); err != nil {
			logger.Warn("Failed to backfill cached result", logger.RequestID(requestID), logger.ErrorField(err))
		}
	}
	return res, nil
}

// Wait blocks until the job for requestID finishes and returns the final result.
// A request with no running job returns its stored result immediately.
func (s *Service) Wait(ctx context.Context, requestID string) (*model.DubbingResult, error) {
	if job, ok := s.runner.Get(requestID); ok {
		select {
		case <-job.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	res, err := s.results.GetResultByRequestID(requestID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrRequestNotFound
	}
	return res, nil
}

// Cancel interrupts a queued or running job. The result becomes failed with
// "dubbing job cancelled".
func (s *Service) Cancel(ctx context.Context, requestID string) error {
	res, err := s.results.GetResultByRequestID(requestID)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrRequestNotFound
	}
	// The job can still be registered for a moment after its result is final.
	if res.Status.IsTerminal() {
		return ErrJobNotRunning
	}
	if !s.runner.Cancel(requestID, ErrJobCancelled) {
		return ErrJobNotRunning
	}
	logger.Info("Dubbing job cancelled", logger.RequestID(requestID))
	return nil
}

// ListResults returns up to limit results, newest first. limit <= 0 returns all.
func (s *Service) ListResults(ctx context.Context, limit int) ([]*model.DubbingResult, error) {
	all, err := s.results.GetAllResults()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// DeleteRequest removes a finished request, its result and its audio.
func (s *Service) DeleteRequest(ctx context.Context, requestID string) error {
	if _, running := s.runner.Get(requestID); running {
		return ErrJobInFlight
	}
	req, err := s.requests.GetRequestByID(requestID)
	if err != nil {
		return err
	}
	res, err := s.results.GetResultByRequestID(requestID)
	if err != nil {
		return err
	}
	if req == nil && res == nil {
		return ErrRequestNotFound
	}
	if res != nil {
		if !res.Status.IsTerminal() {
			return ErrJobInFlight
		}
		if err := s.files.Remove(res.AudioFilePath); err != nil {
			logger.Warn("Failed to remove dubbed audio", logger.RequestID(requestID), logger.ErrorField(err))
		}
		if _, err := s.results.DeleteResult(res.ID); err != nil {
			return err
		}
	}
	if req != nil {
		if _, err := s.requests.DeleteRequest(requestID); err != nil {
			return err
		}
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, requestID); err != nil {
			logger.Warn("Failed to evict cached result", logger.RequestID(requestID), logger.ErrorField(err))
		}
	}
	if s.archive != nil && res != nil && res.Status == model.StatusCompleted {
		if err := s.archive.Remove(ctx, requestID); err != nil {
			logger.Warn("Failed to remove archived audio", logger.RequestID(requestID), logger.ErrorField(err))
		}
	}
	logger.Info("Dubbing request deleted", logger.RequestID(requestID))
	return nil
}

// AudioPath returns the output file of a completed request.
func (s *Service) AudioPath(ctx context.Context, requestID string) (string, model.Status, error) {
	res, err := s.results.GetResultByRequestID(requestID)
	if err != nil {
		return "", "", err
	}
	if res == nil {
		return "", "", ErrRequestNotFound
	}
	return res.AudioFilePath, res.Status, nil
}

// ResultsPath is the document the status stream watches for changes.
func (s *Service) ResultsPath() string {
	return s.results.Path()
}

// DownloadURL is the route that serves the dubbed audio of requestID.
func DownloadURL(requestID string) string {
	return "/api/v1/dubbing/download/" + requestID
}

// StatusView converts a stored result into the client status shape.
func StatusView(res *model.DubbingResult) *model.StatusResponse {
	view := &model.StatusResponse{
		RequestID:      res.RequestID,
		Status:         res.Status,
		Progress:       res.Status.Progress(),
		VideoAnalysis:  res.VideoAnalysis,
		ErrorMessage:   res.ErrorMessage,
		ProcessingTime: res.ProcessingTime,
	}
	if res.Status == model.StatusCompleted && res.AudioFilePath != "" {
		view.AudioFileURL = DownloadURL(res.RequestID)
	}
	return view
}
