package repository

import (
	"fmt"
	"os"
	"sort"

	"DubFlow/logger"
	"DubFlow/model"
)

// AssetRepository defines the interface for uploaded video metadata.
type AssetRepository interface {
	SaveAsset(asset *model.MediaAsset) (*model.MediaAsset, error)
	GetAssetByID(id string) (*model.MediaAsset, error)
	GetAllAssets() ([]*model.MediaAsset, error)
	SetRemoteHandle(id string, handle *model.RemoteHandle) error
	DeleteAsset(id string) (bool, error)
}

type jsonAssetRepository struct {
	store *jsonStore[model.MediaAsset]
}

// NewJSONAssetRepository creates an AssetRepository backed by the JSON document at path.
func NewJSONAssetRepository(path string) (AssetRepository, error) {
	store, err := newJSONStore[model.MediaAsset](path)
	if err != nil {
		return nil, err
	}
	return &jsonAssetRepository{store: store}, nil
}

// SaveAsset upserts an asset by id.
func (r *jsonAssetRepository) SaveAsset(asset *model.MediaAsset) (*model.MediaAsset, error) {
	if asset == nil || asset.ID == "" {
		return nil, fmt.Errorf("asset id is required")
	}
	if err := r.store.put(asset.ID, *asset); err != nil {
		return nil, fmt.Errorf("failed to save asset %s: %w", asset.ID, err)
	}
	logger.Debug("Asset saved", logger.String("assetId", asset.ID), logger.String("filename", asset.Filename))
	return asset, nil
}

// GetAssetByID returns (nil, nil) when the asset does not exist.
func (r *jsonAssetRepository) GetAssetByID(id string) (*model.MediaAsset, error) {
	asset, ok, err := r.store.get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	return &asset, nil
}

// GetAllAssets returns every asset, newest upload first.
func (r *jsonAssetRepository) GetAllAssets() ([]*model.MediaAsset, error) {
	all, err := r.store.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UploadedAt.After(all[j].UploadedAt) })
	out := make([]*model.MediaAsset, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

// SetRemoteHandle records the provider handle the asset was uploaded under.
func (r *jsonAssetRepository) SetRemoteHandle(id string, handle *model.RemoteHandle) error {
	err := r.store.update(func(m map[string]model.MediaAsset) (bool, error) {
		asset, ok := m[id]
		if !ok {
			return false, fmt.Errorf("asset %s not found", id)
		}
		asset.RemoteHandle = handle
		m[id] = asset
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to set remote handle for asset %s: %w", id, err)
	}
	return nil
}

// DeleteAsset removes the record and the stored source video.
func (r *jsonAssetRepository) DeleteAsset(id string) (bool, error) {
	asset, err := r.GetAssetByID(id)
	if err != nil || asset == nil {
		return false, err
	}
	found, err := r.store.remove(id)
	if err != nil {
		return false, fmt.Errorf("failed to delete asset %s: %w", id, err)
	}
	if asset.FilePath != "" {
		if err := os.Remove(asset.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove asset file", logger.String("path", asset.FilePath), logger.ErrorField(err))
		}
	}
	return found, nil
}
