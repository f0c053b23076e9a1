package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"DubFlow/config"
	"DubFlow/logger"
)

const archivePrefix = "outputs/"

// ObjectInfo 归档对象信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int
	TotalSize    int64
	LastModified time.Time
}

// MinioArchive copies generated audio to a MinIO bucket.
type MinioArchive struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinioArchive connects to MinIO and makes sure the bucket exists.
func NewMinioArchive(ctx context.Context, cfg *config.Config) (*MinioArchive, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	a := &MinioArchive{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Info("MinIO archive ready", logger.String("endpoint", cfg.MinioEndpoint), logger.String("bucket", a.bucket))
	return a, nil
}

func (a *MinioArchive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	// 存储桶不存在时创建
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}
	logger.Info("Created MinIO bucket", logger.String("bucket", a.bucket))
	return nil
}

// ObjectKey is where the audio for a request is archived.
func ObjectKey(requestID string) string {
	return path.Join(archivePrefix, requestID+".wav")
}

// Archive uploads the audio file for requestID.
func (a *MinioArchive) Archive(ctx context.Context, requestID, filePath string) error {
	info, err := a.client.FPutObject(ctx, a.bucket, ObjectKey(requestID), filePath, minio.PutObjectOptions{
		ContentType: "audio/wav",
		UserMetadata: map[string]string{
			"request-id": requestID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", filePath, err)
	}
	logger.Info("Archived dubbed audio",
		logger.String("requestId", requestID),
		logger.String("key", info.Key),
		logger.Int64("bytes", info.Size))
	return nil
}

// Remove deletes the archived audio for requestID.
func (a *MinioArchive) Remove(ctx context.Context, requestID string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, ObjectKey(requestID), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove archived audio for %s: %w", requestID, err)
	}
	return nil
}

// List returns archived objects under prefix with aggregate stats.
func (a *MinioArchive) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	if prefix == "" {
		prefix = archivePrefix
	}
	stats := &BucketStats{}
	var objects []ObjectInfo
	for object := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
		})
	}
	return objects, stats, nil
}

// Bucket is the archive bucket name.
func (a *MinioArchive) Bucket() string {
	return a.bucket
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
