package model

import "time"

// MediaAsset is an uploaded source video and its metadata.
type MediaAsset struct {
	ID           string        `json:"id"`
	Filename     string        `json:"filename"`
	FilePath     string        `json:"file_path"`
	FileSize     int64         `json:"file_size"`
	MimeType     string        `json:"mime_type"`
	UploadedAt   time.Time     `json:"uploaded_at"`
	RemoteHandle *RemoteHandle `json:"remote_handle,omitempty"` // Set once the bytes are pushed to the provider
}

// RemoteHandle identifies a blob uploaded to the AI provider.
type RemoteHandle struct {
	Name     string `json:"name"` // e.g. "files/abc123"
	URI      string `json:"uri"`
	MimeType string `json:"mime_type"`
}
