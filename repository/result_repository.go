package repository

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"DubFlow/logger"
	"DubFlow/model"
)

// ErrInvalidTransition is returned when an update would move a result backwards
// or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// ResultFields carries the optional fields attached alongside a status change.
type ResultFields struct {
	VideoAnalysis *model.VideoAnalysis
	AudioFilePath string
	ErrorMessage  string
}

// ResultRepository defines the interface for dubbing result records.
type ResultRepository interface {
	SaveResult(res *model.DubbingResult) (*model.DubbingResult, error)
	GetResultByID(id string) (*model.DubbingResult, error)
	GetResultByRequestID(requestID string) (*model.DubbingResult, error)
	GetAllResults() ([]*model.DubbingResult, error)
	UpdateStatus(id string, status model.Status, fields ResultFields) (bool, error)
	DeleteResult(id string) (bool, error)
	// Path is the backing document, watched by the status stream.
	Path() string
}

type jsonResultRepository struct {
	store *jsonStore[model.DubbingResult]
	now   func() time.Time
}

// NewJSONResultRepository creates a ResultRepository backed by the JSON document at path.
func NewJSONResultRepository(path string) (ResultRepository, error) {
	store, err := newJSONStore[model.DubbingResult](path)
	if err != nil {
		return nil, err
	}
	return &jsonResultRepository{store: store, now: time.Now}, nil
}

func (r *jsonResultRepository) Path() string {
	return r.store.Path()
}

func (r *jsonResultRepository) SaveResult(res *model.DubbingResult) (*model.DubbingResult, error) {
	if res == nil || res.ID == "" {
		return nil, fmt.Errorf("result id is required")
	}
	if err := r.store.put(res.ID, *res); err != nil {
		return nil, fmt.Errorf("failed to save result %s: %w", res.ID, err)
	}
	return res, nil
}

// GetResultByID returns (nil, nil) when the result does not exist.
func (r *jsonResultRepository) GetResultByID(id string) (*model.DubbingResult, error) {
	res, ok, err := r.store.get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get result %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	return &res, nil
}

// GetResultByRequestID scans for the result attached to a request. Returns (nil, nil) if none.
func (r *jsonResultRepository) GetResultByRequestID(requestID string) (*model.DubbingResult, error) {
	var (
		found model.DubbingResult
		ok    bool
	)
	err := r.store.view(func(m map[string]model.DubbingResult) {
		for _, res := range m {
			if res.RequestID == requestID {
				found, ok = res, true
				return
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get result for request %s: %w", requestID, err)
	}
	if !ok {
		return nil, nil
	}
	return &found, nil
}

// GetAllResults returns every result, newest first.
func (r *jsonResultRepository) GetAllResults() ([]*model.DubbingResult, error) {
	all, err := r.store.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	out := make([]*model.DubbingResult, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

// UpdateStatus moves a result to status and attaches fields. It returns false when
// the id is unknown and ErrInvalidTransition when the move is not allowed.
// completed keeps the audio path and clears the error; failed keeps the error and
// clears the audio path. Both stamp completed_at and processing_time.
func (r *jsonResultRepository) UpdateStatus(id string, status model.Status, fields ResultFields) (bool, error) {
	var found bool
	err := r.store.update(func(m map[string]model.DubbingResult) (bool, error) {
		res, ok := m[id]
		if !ok {
			return false, nil
		}
		found = true

		if !res.Status.CanTransition(status) {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, res.Status, status)
		}

		switch status {
		case model.StatusCompleted:
			if fields.AudioFilePath == "" {
				return false, fmt.Errorf("%w: completed requires an audio file path", ErrInvalidTransition)
			}
			res.AudioFilePath = fields.AudioFilePath
			res.ErrorMessage = ""
		case model.StatusFailed:
			if fields.ErrorMessage == "" {
				return false, fmt.Errorf("%w: failed requires an error message", ErrInvalidTransition)
			}
			res.ErrorMessage = fields.ErrorMessage
			res.AudioFilePath = ""
		}
		if fields.VideoAnalysis != nil {
			res.VideoAnalysis = fields.VideoAnalysis
		}
		res.Status = status

		if status.IsTerminal() {
			now := r.now()
			elapsed := now.Sub(res.CreatedAt).Seconds()
			res.CompletedAt = &now
			res.ProcessingTime = &elapsed
		}
		m[id] = res
		return true, nil
	})
	if err != nil {
		return found, err
	}
	if found {
		logger.Debug("Result status updated", logger.String("resultId", id), logger.String("status", string(status)))
	}
	return found, nil
}

func (r *jsonResultRepository) DeleteResult(id string) (bool, error) {
	found, err := r.store.remove(id)
	if err != nil {
		return false, fmt.Errorf("failed to delete result %s: %w", id, err)
	}
	return found, nil
}
