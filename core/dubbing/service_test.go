package dubbing

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DubFlow/core/gemini"
	"DubFlow/core/jobs"
	"DubFlow/model"
	"DubFlow/repository"
	"DubFlow/storage"
)

type fakeGateway struct {
	UploadFunc     func(ctx context.Context, path, mimeType string) (*model.RemoteHandle, error)
	GetFileFunc    func(ctx context.Context, name string) (*model.RemoteHandle, error)
	AnalyzeFunc    func(ctx context.Context, handle *model.RemoteHandle) (*model.VideoAnalysis, error)
	SynthesizeFunc func(ctx context.Context, req gemini.SpeechRequest) ([]byte, error)

	mu       sync.Mutex
	uploads  int
	released []string
	speech   []gemini.SpeechRequest
}

func (g *fakeGateway) Upload(ctx context.Context, path, mimeType string) (*model.RemoteHandle, error) {
	g.mu.Lock()
	g.uploads++
	g.mu.Unlock()
	if g.UploadFunc != nil {
		return g.UploadFunc(ctx, path, mimeType)
	}
	return &model.RemoteHandle{Name: "files/" + filepath.Base(path), URI: "https://example/" + filepath.Base(path), MimeType: mimeType}, nil
}

func (g *fakeGateway) GetFile(ctx context.Context, name string) (*model.RemoteHandle, error) {
	if g.GetFileFunc != nil {
		return g.GetFileFunc(ctx, name)
	}
	return &model.RemoteHandle{Name: name, URI: "https://example/" + name, MimeType: "video/mp4"}, nil
}

func (g *fakeGateway) Analyze(ctx context.Context, handle *model.RemoteHandle) (*model.VideoAnalysis, error) {
	if g.AnalyzeFunc != nil {
		return g.AnalyzeFunc(ctx, handle)
	}
	return &model.VideoAnalysis{
		VideoID:      handle.Name,
		Duration:     3.5,
		SpeakerCount: 1,
		Speakers: []model.Speaker{
			{ID: "speaker_1", Name: "Speaker_1", VoiceName: model.VoiceKore},
		},
		Transcript:       "[00:01] Hello world.",
		LanguageDetected: "en-US",
	}, nil
}

func (g *fakeGateway) Synthesize(ctx context.Context, req gemini.SpeechRequest) ([]byte, error) {
	g.mu.Lock()
	g.speech = append(g.speech, req)
	g.mu.Unlock()
	if g.SynthesizeFunc != nil {
		return g.SynthesizeFunc(ctx, req)
	}
	return []byte("RIFF....WAVE"), nil
}

func (g *fakeGateway) Release(ctx context.Context, handle *model.RemoteHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = append(g.released, handle.Name)
}

func (g *fakeGateway) speechRequests() []gemini.SpeechRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gemini.SpeechRequest(nil), g.speech...)
}

type fixture struct {
	svc      *Service
	gateway  *fakeGateway
	assets   repository.AssetRepository
	requests repository.RequestRepository
	results  repository.ResultRepository
	runner   *jobs.Runner
}

func newFixture(t *testing.T, maxConcurrent int) *fixture {
	t.Helper()
	dir := t.TempDir()
	assets, err := repository.NewJSONAssetRepository(filepath.Join(dir, "videos", "metadata.json"))
	require.NoError(t, err)
	requests, err := repository.NewJSONRequestRepository(filepath.Join(dir, "requests", "requests.json"))
	require.NoError(t, err)
	results, err := repository.NewJSONResultRepository(filepath.Join(dir, "results", "results.json"))
	require.NoError(t, err)
	files, err := storage.NewFileStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "outputs"))
	require.NoError(t, err)

	f := &fixture{
		gateway:  &fakeGateway{},
		assets:   assets,
		requests: requests,
		results:  results,
		runner:   jobs.NewRunner(maxConcurrent),
	}
	f.svc = NewService(Dependencies{
		Assets:   assets,
		Requests: requests,
		Results:  results,
		Gateway:  f.gateway,
		Files:    files,
		Runner:   f.runner,
	}, Options{MaxFileSize: 100 * 1024 * 1024})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		f.runner.Shutdown(ctx)
	})
	return f
}

func mp4Upload(size int) UploadInput {
	return UploadInput{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Size:        int64(size),
		Body:        bytes.NewReader(bytes.Repeat([]byte{0x42}, size)),
	}
}

func waitResult(t *testing.T, svc *Service, requestID string) *model.DubbingResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := svc.Wait(ctx, requestID)
	require.NoError(t, err)
	return res
}

func TestSubmitCompletes(t *testing.T) {
	f := newFixture(t, 0)

	pending, err := f.svc.Submit(context.Background(), mp4Upload(2*1024*1024))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, pending.Status)

	res := waitResult(t, f.svc, pending.RequestID)
	require.Equal(t, model.StatusCompleted, res.Status, res.ErrorMessage)
	require.NotNil(t, res.VideoAnalysis)
	assert.Equal(t, 1, res.VideoAnalysis.SpeakerCount)
	assert.FileExists(t, res.AudioFilePath)
	assert.Equal(t, "dubbed_"+pending.RequestID+".wav", filepath.Base(res.AudioFilePath))
	assert.Empty(t, res.ErrorMessage)
	require.NotNil(t, res.ProcessingTime)
	assert.NotNil(t, res.CompletedAt)

	speech := f.gateway.speechRequests()
	require.Len(t, speech, 1)
	assert.Equal(t, "Hello world.", speech[0].Text)
	assert.Equal(t, "en-US", speech[0].Language)

	req, err := f.requests.GetRequestByID(pending.RequestID)
	require.NoError(t, err)
	require.NotNil(t, req)
	asset, err := f.assets.GetAssetByID(req.AssetID)
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, int64(2*1024*1024), asset.FileSize)
	assert.Equal(t, asset.ID, res.VideoAnalysis.VideoID)
	require.NotNil(t, asset.RemoteHandle)
	assert.Equal(t, []string{asset.RemoteHandle.Name}, f.gateway.released)

	view := StatusView(res)
	assert.Equal(t, 1.0, view.Progress)
	assert.Equal(t, DownloadURL(pending.RequestID), view.AudioFileURL)
}

func TestSubmitAnalysisFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.gateway.AnalyzeFunc = func(ctx context.Context, handle *model.RemoteHandle) (*model.VideoAnalysis, error) {
		return nil, errors.New("Video analysis failed: quota exceeded")
	}

	pending, err := f.svc.Submit(context.Background(), mp4Upload(1024))
	require.NoError(t, err)

	res := waitResult(t, f.svc, pending.RequestID)
	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, "Video analysis failed: quota exceeded", res.ErrorMessage)
	assert.Empty(t, res.AudioFilePath)
	assert.Empty(t, f.gateway.speechRequests())
	assert.Len(t, f.gateway.released, 1, "uploaded file is released on failure")

	view := StatusView(res)
	assert.Empty(t, view.AudioFileURL)
}

func TestSubmitRejectsInvalidUploads(t *testing.T) {
	f := newFixture(t, 0)

	cases := []struct {
		name string
		in   UploadInput
		want error
		msg  string
	}{
		{"missing file", UploadInput{ContentType: "video/mp4"}, ErrMissingFile, "No file provided"},
		{"zip", UploadInput{Filename: "a.zip", ContentType: "application/zip", Size: 10, Body: bytes.NewReader(make([]byte, 10))}, ErrUnsupportedMediaType, ""},
		{"declared too large", UploadInput{Filename: "a.mp4", ContentType: "video/mp4", Size: 101 * 1024 * 1024, Body: bytes.NewReader(nil)}, ErrFileTooLarge, "File too large (max 100MB)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), tc.in)
			require.ErrorIs(t, err, tc.want)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, verr.Message)
			}
		})
	}

	all, err := f.results.GetAllResults()
	require.NoError(t, err)
	assert.Empty(t, all)
	assets, err := f.assets.GetAllAssets()
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestSubmitStreamedTooLarge(t *testing.T) {
	f := newFixture(t, 0)
	f.svc.opts.MaxFileSize = 1024

	in := mp4Upload(2048)
	in.Size = 0
	_, err := f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assets, err := f.assets.GetAllAssets()
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestSubmitContentTypeParameters(t *testing.T) {
	f := newFixture(t, 0)
	in := mp4Upload(512)
	in.ContentType = "Video/MP4; codecs=avc1"

	pending, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	res := waitResult(t, f.svc, pending.RequestID)
	assert.Equal(t, model.StatusCompleted, res.Status)
}

func TestSubmitCustomUnknownAsset(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.svc.SubmitCustom(context.Background(), model.CustomDubbingRequest{VideoID: "missing"})
	assert.ErrorIs(t, err, ErrAssetNotFound)

	all, err := f.requests.GetAllRequests()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmitCustomUnknownVoice(t *testing.T) {
	f := newFixture(t, 0)
	pending, err := f.svc.Submit(context.Background(), mp4Upload(512))
	require.NoError(t, err)
	waitResult(t, f.svc, pending.RequestID)
	req, err := f.requests.GetRequestByID(pending.RequestID)
	require.NoError(t, err)

	_, err = f.svc.SubmitCustom(context.Background(), model.CustomDubbingRequest{
		VideoID:               req.AssetID,
		SpeakerConfigurations: []model.SpeakerConfiguration{{SpeakerName: "Ann", VoiceName: "Nobody"}},
	})
	assert.ErrorIs(t, err, ErrUnknownVoice)

	all, err := f.requests.GetAllRequests()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSubmitCustomAppliesOverrides(t *testing.T) {
	f := newFixture(t, 0)
	f.gateway.AnalyzeFunc = func(ctx context.Context, handle *model.RemoteHandle) (*model.VideoAnalysis, error) {
		return &model.VideoAnalysis{
			SpeakerCount: 2,
			Speakers: []model.Speaker{
				{ID: "speaker_1", Name: "Speaker_1", VoiceName: model.VoiceKore},
				{ID: "speaker_2", Name: "Speaker_2", VoiceName: model.VoicePuck},
			},
			Transcript: "A: hi. B: hello.",
		}, nil
	}

	first, err := f.svc.Submit(context.Background(), mp4Upload(512))
	require.NoError(t, err)
	waitResult(t, f.svc, first.RequestID)
	req, err := f.requests.GetRequestByID(first.RequestID)
	require.NoError(t, err)

	custom, err := f.svc.SubmitCustom(context.Background(), model.CustomDubbingRequest{
		VideoID: req.AssetID,
		SpeakerConfigurations: []model.SpeakerConfiguration{
			{SpeakerName: "Narrator", VoiceName: "charon"},
		},
		TargetLanguage: "fr-FR",
	})
	require.NoError(t, err)

	res := waitResult(t, f.svc, custom.RequestID)
	require.Equal(t, model.StatusCompleted, res.Status, res.ErrorMessage)
	assert.Equal(t, "custom_dubbed_"+custom.RequestID+".wav", filepath.Base(res.AudioFilePath))
	assert.Equal(t, "Narrator", res.VideoAnalysis.Speakers[0].Name)
	assert.Equal(t, model.VoiceCharon, res.VideoAnalysis.Speakers[0].VoiceName)
	assert.Equal(t, model.VoicePuck, res.VideoAnalysis.Speakers[1].VoiceName)

	speech := f.gateway.speechRequests()
	require.Len(t, speech, 2)
	assert.Equal(t, "fr-FR", speech[1].Language)
	assert.Equal(t, 1, f.gateway.uploads, "custom request reuses the stored upload")
	assert.Len(t, f.gateway.released, 1, "custom request keeps the remote file")
}

func TestCancelRunningJob(t *testing.T) {
	f := newFixture(t, 0)
	started := make(chan struct{})
	f.gateway.AnalyzeFunc = func(ctx context.Context, handle *model.RemoteHandle) (*model.VideoAnalysis, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	pending, err := f.svc.Submit(context.Background(), mp4Upload(512))
	require.NoError(t, err)
	<-started

	require.NoError(t, f.svc.Cancel(context.Background(), pending.RequestID))
	res := waitResult(t, f.svc, pending.RequestID)
	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, ErrJobCancelled.Error(), res.ErrorMessage)

	assert.ErrorIs(t, f.svc.Cancel(context.Background(), pending.RequestID), ErrJobNotRunning)
	assert.ErrorIs(t, f.svc.Cancel(context.Background(), "missing"), ErrRequestNotFound)
}

func TestConcurrencyBound(t *testing.T) {
	f := newFixture(t, 2)
	var running, peak int32
	release := make(chan struct{})
	f.gateway.AnalyzeFunc = func(ctx context.Context, handle *model.RemoteHandle) (*model.VideoAnalysis, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		return &model.VideoAnalysis{SpeakerCount: 1, Transcript: "ok"}, nil
	}

	var ids []string
	for i := 0; i < 5; i++ {
		pending, err := f.svc.Submit(context.Background(), mp4Upload(256))
		require.NoError(t, err)
		ids = append(ids, pending.RequestID)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 2 }, 2*time.Second, 10*time.Millisecond)
	close(release)
	for _, id := range ids {
		assert.Equal(t, model.StatusCompleted, waitResult(t, f.svc, id).Status)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestDeleteRequest(t *testing.T) {
	f := newFixture(t, 0)
	pending, err := f.svc.Submit(context.Background(), mp4Upload(512))
	require.NoError(t, err)
	res := waitResult(t, f.svc, pending.RequestID)
	require.Equal(t, model.StatusCompleted, res.Status)

	require.NoError(t, f.svc.DeleteRequest(context.Background(), pending.RequestID))
	assert.NoFileExists(t, res.AudioFilePath)

	got, err := f.svc.GetStatus(context.Background(), pending.RequestID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, f.svc.DeleteRequest(context.Background(), pending.RequestID), ErrRequestNotFound)
}

func TestListResultsLimit(t *testing.T) {
	f := newFixture(t, 0)
	for i := 0; i < 3; i++ {
		pending, err := f.svc.Submit(context.Background(), mp4Upload(128))
		require.NoError(t, err)
		waitResult(t, f.svc, pending.RequestID)
	}

	all, err := f.svc.ListResults(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	two, err := f.svc.ListResults(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

type fakeCache struct {
	SetFunc func(res *model.DubbingResult) error

	mu      sync.Mutex
	entries map[string]model.DubbingResult
	sets    int
	fills   int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]model.DubbingResult)}
}

func (c *fakeCache) Get(ctx context.Context, requestID string) (*model.DubbingResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[requestID]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (c *fakeCache) Set(ctx context.Context, res *model.DubbingResult) error {
	if c.SetFunc != nil {
		if err := c.SetFunc(res); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[res.RequestID] = *res
	return nil
}

func (c *fakeCache) Fill(ctx context.Context, res *model.DubbingResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fills++
	if _, ok := c.entries[res.RequestID]; !ok {
		c.entries[res.RequestID] = *res
	}
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, requestID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, requestID)
	return nil
}

func (c *fakeCache) counts() (sets, fills, deletes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets, c.fills, c.deletes
}

func TestStatusCacheFailedWriteFallsBackToStore(t *testing.T) {
	f := newFixture(t, 0)
	c := newFakeCache()
	c.SetFunc = func(res *model.DubbingResult) error {
		if res.Status.IsTerminal() {
			return errors.New("redis: connection refused")
		}
		return nil
	}
	f.svc.cache = c

	pending, err := f.svc.Submit(context.Background(), mp4Upload(512))
	require.NoError(t, err)
	stored := waitResult(t, f.svc, pending.RequestID)
	require.Equal(t, model.StatusCompleted, stored.Status)

	_, _, deletes := c.counts()
	assert.Equal(t, 1, deletes, "failed write evicts the older snapshot")

	got, err := f.svc.GetStatus(context.Background(), pending.RequestID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusCompleted, got.Status)

	cached, err := c.Get(context.Background(), pending.RequestID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, model.StatusCompleted, cached.Status, "miss is backfilled from the store")
}

func TestStatusCacheHit(t *testing.T) {
	f := newFixture(t, 0)
	c := newFakeCache()
	f.svc.cache = c
	c.entries["cached-only"] = model.DubbingResult{ID: "r", RequestID: "cached-only", Status: model.StatusProcessing}

	got, err := f.svc.GetStatus(context.Background(), "cached-only")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusProcessing, got.Status)
}

func TestStatusCacheMissBackfillsWithoutOverwrite(t *testing.T) {
	f := newFixture(t, 0)
	c := newFakeCache()
	f.svc.cache = c

	pending, err := f.svc.Submit(context.Background(), mp4Upload(512))
	require.NoError(t, err)
	waitResult(t, f.svc, pending.RequestID)

	setsBefore, _, _ := c.counts()
	require.NoError(t, c.Delete(context.Background(), pending.RequestID))

	got, err := f.svc.GetStatus(context.Background(), pending.RequestID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusCompleted, got.Status)

	sets, fills, _ := c.counts()
	assert.Equal(t, setsBefore, sets, "a read never uses the overwriting write")
	assert.Equal(t, 1, fills)

	missing, err := f.svc.GetStatus(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetStatusIdempotent(t *testing.T) {
	for _, withCache := range []bool{false, true} {
		f := newFixture(t, 0)
		if withCache {
			f.svc.cache = newFakeCache()
		}
		pending, err := f.svc.Submit(context.Background(), mp4Upload(512))
		require.NoError(t, err)
		waitResult(t, f.svc, pending.RequestID)

		first, err := f.svc.GetStatus(context.Background(), pending.RequestID)
		require.NoError(t, err)
		second, err := f.svc.GetStatus(context.Background(), pending.RequestID)
		require.NoError(t, err)
		assert.Equal(t, StatusView(first), StatusView(second), "cache=%v", withCache)
	}
}

func TestCancelFinishedJobStillRegistered(t *testing.T) {
	f := newFixture(t, 0)
	pending, err := f.svc.Submit(context.Background(), mp4Upload(512))
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, waitResult(t, f.svc, pending.RequestID).Status)

	// Stand-in for a job whose result is final but which has not yet left the runner.
	job, err := f.runner.Start(pending.RequestID, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Cancel(context.Background(), pending.RequestID), ErrJobNotRunning)
	select {
	case <-job.Done():
		t.Fatal("finished request must not cancel the registered job")
	case <-time.After(50 * time.Millisecond):
	}

	job.Cancel(nil)
	<-job.Done()
}
