package repository

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DubFlow/model"
)

func newResultRepo(t *testing.T) (ResultRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results", "results.json")
	repo, err := NewJSONResultRepository(path)
	require.NoError(t, err)
	return repo, path
}

func TestAssetRepositoryCRUD(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewJSONAssetRepository(filepath.Join(dir, "videos", "metadata.json"))
	require.NoError(t, err)

	videoPath := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("data"), 0644))

	asset := &model.MediaAsset{ID: "a1", Filename: "clip.mp4", FilePath: videoPath, FileSize: 4, MimeType: "video/mp4", UploadedAt: time.Now()}
	_, err = repo.SaveAsset(asset)
	require.NoError(t, err)

	got, err := repo.GetAssetByID("a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "clip.mp4", got.Filename)
	assert.Nil(t, got.RemoteHandle)

	require.NoError(t, repo.SetRemoteHandle("a1", &model.RemoteHandle{Name: "files/x", URI: "https://u/x", MimeType: "video/mp4"}))
	got, err = repo.GetAssetByID("a1")
	require.NoError(t, err)
	require.NotNil(t, got.RemoteHandle)
	assert.Equal(t, "files/x", got.RemoteHandle.Name)

	assert.Error(t, repo.SetRemoteHandle("missing", &model.RemoteHandle{}))

	missing, err := repo.GetAssetByID("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := repo.DeleteAsset("a1")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, statErr := os.Stat(videoPath)
	assert.True(t, os.IsNotExist(statErr))

	all, err := repo.GetAllAssets()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRequestRepositoryOrdering(t *testing.T) {
	repo, err := NewJSONRequestRepository(filepath.Join(t.TempDir(), "requests.json"))
	require.NoError(t, err)

	base := time.Now()
	for i, id := range []string{"old", "new", "mid"} {
		offset := map[string]time.Duration{"old": 0, "mid": time.Minute, "new": 2 * time.Minute}[id]
		_, err := repo.SaveRequest(&model.DubbingRequest{ID: id, AssetID: "a", CreatedAt: base.Add(offset), TargetLanguage: "en-US"})
		require.NoError(t, err, i)
	}

	all, err := repo.GetAllRequests()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	ok, err := repo.DeleteRequest("mid")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.DeleteRequest("mid")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptFileReadsAsEmpty(t *testing.T) {
	repo, path := newResultRepo(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	all, err := repo.GetAllResults()
	require.NoError(t, err)
	assert.Empty(t, all)

	// The next write replaces the corrupt document.
	_, err = repo.SaveResult(&model.DubbingResult{ID: "r1", RequestID: "q1", Status: model.StatusPending, CreatedAt: time.Now()})
	require.NoError(t, err)
	got, err := repo.GetResultByRequestID("q1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ID)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	repo, _ := newResultRepo(t)
	created := time.Now().Add(-3 * time.Second)
	_, err := repo.SaveResult(&model.DubbingResult{ID: "r1", RequestID: "q1", Status: model.StatusPending, CreatedAt: created})
	require.NoError(t, err)

	ok, err := repo.UpdateStatus("unknown", model.StatusProcessing, ResultFields{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.UpdateStatus("r1", model.StatusCompleted, ResultFields{AudioFilePath: "out.wav"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	ok, err = repo.UpdateStatus("r1", model.StatusProcessing, ResultFields{})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.UpdateStatus("r1", model.StatusCompleted, ResultFields{})
	assert.ErrorIs(t, err, ErrInvalidTransition, "completed without audio path")

	analysis := &model.VideoAnalysis{VideoID: "a1", SpeakerCount: 1, Transcript: "Hello world."}
	ok, err = repo.UpdateStatus("r1", model.StatusCompleted, ResultFields{AudioFilePath: "out.wav", VideoAnalysis: analysis, ErrorMessage: "ignored"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetResultByID("r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "out.wav", got.AudioFilePath)
	assert.Empty(t, got.ErrorMessage)
	require.NotNil(t, got.VideoAnalysis)
	assert.Equal(t, 1, got.VideoAnalysis.SpeakerCount)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ProcessingTime)
	assert.GreaterOrEqual(t, *got.ProcessingTime, 3.0)

	for _, next := range []model.Status{model.StatusPending, model.StatusProcessing, model.StatusFailed} {
		_, err = repo.UpdateStatus("r1", next, ResultFields{ErrorMessage: "x"})
		assert.ErrorIs(t, err, ErrInvalidTransition, "completed -> %s", next)
	}
}

func TestUpdateStatusFailedClearsAudio(t *testing.T) {
	repo, _ := newResultRepo(t)
	_, err := repo.SaveResult(&model.DubbingResult{ID: "r1", RequestID: "q1", Status: model.StatusPending, CreatedAt: time.Now()})
	require.NoError(t, err)

	_, err = repo.UpdateStatus("r1", model.StatusFailed, ResultFields{})
	assert.ErrorIs(t, err, ErrInvalidTransition, "failed without message")

	ok, err := repo.UpdateStatus("r1", model.StatusFailed, ResultFields{ErrorMessage: "boom", AudioFilePath: "nope.wav"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetResultByID("r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
	assert.Empty(t, got.AudioFilePath)
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	repo, path := newResultRepo(t)
	const n = 20
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		_, err := repo.SaveResult(&model.DubbingResult{ID: id, RequestID: "q" + id, Status: model.StatusPending, CreatedAt: time.Now()})
		require.NoError(t, err)
	}

	// A second repository over the same file exercises the file lock.
	other, err := NewJSONResultRepository(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := repo
			if i%2 == 1 {
				r = other
			}
			id := string(rune('a' + i))
			ok, err := r.UpdateStatus(id, model.StatusProcessing, ResultFields{})
			assert.NoError(t, err)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()

	all, err := repo.GetAllResults()
	require.NoError(t, err)
	require.Len(t, all, n)
	for _, res := range all {
		assert.Equal(t, model.StatusProcessing, res.Status, res.ID)
	}
}
