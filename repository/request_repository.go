package repository

import (
	"fmt"
	"sort"

	"DubFlow/model"
)

// RequestRepository defines the interface for dubbing request records.
type RequestRepository interface {
	SaveRequest(req *model.DubbingRequest) (*model.DubbingRequest, error)
	GetRequestByID(id string) (*model.DubbingRequest, error)
	GetAllRequests() ([]*model.DubbingRequest, error)
	DeleteRequest(id string) (bool, error)
}

type jsonRequestRepository struct {
	store *jsonStore[model.DubbingRequest]
}

// NewJSONRequestRepository creates a RequestRepository backed by the JSON document at path.
func NewJSONRequestRepository(path string) (RequestRepository, error) {
	store, err := newJSONStore[model.DubbingRequest](path)
	if err != nil {
		return nil, err
	}
	return &jsonRequestRepository{store: store}, nil
}

func (r *jsonRequestRepository) SaveRequest(req *model.DubbingRequest) (*model.DubbingRequest, error) {
	if req == nil || req.ID == "" {
		return nil, fmt.Errorf("request id is required")
	}
	if err := r.store.put(req.ID, *req); err != nil {
		return nil, fmt.Errorf("failed to save request %s: %w", req.ID, err)
	}
	return req, nil
}

// GetRequestByID returns (nil, nil) when the request does not exist.
func (r *jsonRequestRepository) GetRequestByID(id string) (*model.DubbingRequest, error) {
	req, ok, err := r.store.get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// GetAllRequests returns every request, newest first.
func (r *jsonRequestRepository) GetAllRequests() ([]*model.DubbingRequest, error) {
	all, err := r.store.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	out := make([]*model.DubbingRequest, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (r *jsonRequestRepository) DeleteRequest(id string) (bool, error) {
	found, err := r.store.remove(id)
	if err != nil {
		return false, fmt.Errorf("failed to delete request %s: %w", id, err)
	}
	return found, nil
}
