package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"DubFlow/core/dubbing"
	"DubFlow/logger"
	"DubFlow/model"
)

const (
	uploadMessage  = "Video uploaded successfully. Processing started."
	customMessage  = "Custom dubbing started with specified configurations."
	cancelMessage  = "Dubbing job cancelled."
	defaultListLen = 10
	// multipart overhead allowed on top of the file size limit
	formOverhead = 1 << 20
)

// StatusFeed delivers result snapshots published by any server instance.
type StatusFeed interface {
	Subscribe(ctx context.Context) <-chan *model.DubbingResult
}

// DubbingHandler 处理配音相关的API请求
type DubbingHandler struct {
	svc         *dubbing.Service
	maxFileSize int64
	feed        StatusFeed // nil without a status cache
}

// NewDubbingHandler creates the handler for the /api/v1/dubbing routes.
func NewDubbingHandler(svc *dubbing.Service, maxFileSize int64) *DubbingHandler {
	return &DubbingHandler{svc: svc, maxFileSize: maxFileSize}
}

// SetStatusFeed makes status streams also wake on published snapshots.
func (h *DubbingHandler) SetStatusFeed(feed StatusFeed) {
	h.feed = feed
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write JSON response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorResponse{Error: message})
}

// validationStatus maps a ValidationError to its HTTP status.
func validationStatus(err error) int {
	switch {
	case errors.Is(err, dubbing.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, dubbing.ErrJobInFlight):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// UploadHandler accepts a video and starts dubbing it.
// Multipart form fields:
// - file: the video (required)
// - target_language: default en-US
// - voice_style: default natural
// - preserve_emotions: default true
func (h *DubbingHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+formOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB max memory
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large (max %dMB)", h.maxFileSize/(1024*1024)))
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
			return
		}
	}

	in := dubbing.UploadInput{
		TargetLanguage:   r.FormValue("target_language"),
		VoiceStyle:       r.FormValue("voice_style"),
		PreserveEmotions: true,
	}
	if v := r.FormValue("preserve_emotions"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid preserve_emotions value")
			return
		}
		in.PreserveEmotions = b
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		in.Filename = header.Filename
		in.ContentType = header.Header.Get("Content-Type")
		in.Size = header.Size
		in.Body = file
	}

	res, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		var verr *dubbing.ValidationError
		if errors.As(err, &verr) {
			writeError(w, validationStatus(err), verr.Message)
			return
		}
		logger.Error("Upload failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	writeJSON(w, http.StatusAccepted, model.UploadResponse{
		RequestID: res.RequestID,
		Status:    res.Status,
		Message:   uploadMessage,
	})
}

// StatusHandler returns the current state of a request.
func (h *DubbingHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["request_id"]
	res, err := h.svc.GetStatus(r.Context(), requestID)
	if err != nil {
		logger.Error("Status check failed", logger.RequestID(requestID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Status check failed")
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}
	writeJSON(w, http.StatusOK, dubbing.StatusView(res))
}

// DownloadHandler streams the dubbed audio of a completed request.
func (h *DubbingHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["request_id"]
	path, status, err := h.svc.AudioPath(r.Context(), requestID)
	if errors.Is(err, dubbing.ErrRequestNotFound) {
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}
	if err != nil {
		logger.Error("Download failed", logger.RequestID(requestID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Download failed")
		return
	}
	if status != model.StatusCompleted {
		writeError(w, http.StatusBadRequest, "Dubbing not completed yet")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "Audio file not found")
			return
		}
		logger.Error("Download failed", logger.RequestID(requestID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Download failed")
		return
	}
	defer f.Close()

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="dubbed_audio_%s.wav"`, requestID))
	http.ServeContent(w, r, "", modTime, f)
}

// CustomHandler starts a request against an uploaded video with speaker overrides.
func (h *DubbingHandler) CustomHandler(w http.ResponseWriter, r *http.Request) {
	var req model.CustomDubbingRequest
	body := io.LimitReader(r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.svc.SubmitCustom(r.Context(), req)
	if err != nil {
		var verr *dubbing.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Message)
			return
		}
		logger.Error("Custom dubbing failed", logger.String("videoId", req.VideoID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Custom dubbing failed")
		return
	}

	writeJSON(w, http.StatusAccepted, model.UploadResponse{
		RequestID: res.RequestID,
		Status:    res.Status,
		Message:   customMessage,
	})
}

// ListRequestsHandler returns the most recent requests, newest first.
func (h *DubbingHandler) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLen
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	results, err := h.svc.ListResults(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to list requests", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list requests")
		return
	}
	views := make([]*model.StatusResponse, 0, len(results))
	for _, res := range results {
		views = append(views, dubbing.StatusView(res))
	}
	writeJSON(w, http.StatusOK, views)
}

// DeleteRequestHandler removes a finished request and its audio.
func (h *DubbingHandler) DeleteRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["request_id"]
	err := h.svc.DeleteRequest(r.Context(), requestID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Request deleted", "request_id": requestID})
	case errors.Is(err, dubbing.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "Request not found")
	case errors.Is(err, dubbing.ErrJobInFlight):
		writeError(w, http.StatusConflict, "Dubbing still in progress")
	default:
		logger.Error("Failed to delete request", logger.RequestID(requestID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete request")
	}
}

// CancelHandler interrupts a queued or running job.
func (h *DubbingHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["request_id"]
	err := h.svc.Cancel(r.Context(), requestID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"message": cancelMessage, "request_id": requestID})
	case errors.Is(err, dubbing.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "Request not found")
	case errors.Is(err, dubbing.ErrJobNotRunning):
		writeError(w, http.StatusConflict, "Dubbing job is not running")
	default:
		logger.Error("Failed to cancel request", logger.RequestID(requestID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to cancel request")
	}
}

// VoicesHandler returns the voice catalog.
func VoicesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.VoiceCatalog())
}

func healthHandler(service, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.HealthResponse{Status: "healthy", Service: service, Version: version})
	}
}
