package server

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"DubFlow/core/dubbing"
	"DubFlow/logger"
	"DubFlow/model"
)

const (
	statusPollInterval = 2 * time.Second
	wsWriteTimeout     = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusStreamHandler pushes status snapshots of one request over a websocket
// until the request reaches a terminal state or the client goes away. It wakes
// on changes to the results document, on snapshots published through the status
// feed, and falls back to a slow poll.
func (h *DubbingHandler) StatusStreamHandler(w http.ResponseWriter, r *http.Request) {
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

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// 读协程：客户端断开时结束推送
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	changes := h.watchResults(ctx)
	published := h.watchFeed(ctx, requestID)

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var last model.Status
	for {
		if res != nil && (res.Status != last || res.Status.IsTerminal()) {
			if err := writeStatus(conn, res); err != nil {
				logger.Warn("websocket write", logger.RequestID(requestID), logger.ErrorField(err))
				return
			}
			last = res.Status
			if res.Status.IsTerminal() {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(res.Status)),
					time.Now().Add(wsWriteTimeout))
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-changes:
		case <-published:
		case <-ticker.C:
		}

		res, err = h.svc.GetStatus(ctx, requestID)
		if err != nil {
			logger.Warn("Status check failed", logger.RequestID(requestID), logger.ErrorField(err))
			continue
		}
		if res == nil {
			// deleted while watching
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "request deleted"),
				time.Now().Add(wsWriteTimeout))
			return
		}
	}
}

func writeStatus(conn *websocket.Conn, res *model.DubbingResult) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(dubbing.StatusView(res))
}

// watchResults signals on every write to the results document. The channel is
// never closed; it simply goes quiet if the watcher cannot be set up.
func (h *DubbingHandler) watchResults(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	path := h.svc.ResultsPath()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("watcher failed", logger.ErrorField(err))
		return out
	}
	// The store replaces the file by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("watcher add failed", logger.ErrorField(err))
		watcher.Close()
		return out
	}

	name := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error", logger.ErrorField(err))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// watchFeed signals when a snapshot for requestID is published. It returns a
// nil channel when no feed is configured.
func (h *DubbingHandler) watchFeed(ctx context.Context, requestID string) <-chan struct{} {
	if h.feed == nil {
		return nil
	}
	out := make(chan struct{}, 1)
	updates := h.feed.Subscribe(ctx)
	go func() {
		for res := range updates {
			if res.RequestID != requestID {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out
}
