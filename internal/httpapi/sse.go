package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/yt-summary/internal/presenter"
)

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, unsubscribe := s.orch.Events().Subscribe(32)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(view presenter.View) bool {
		payload, err := json.Marshal(view)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", view.Seq, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	current := s.orch.Snapshot()
	lastSeq, resumed := lastEventID(r)
	switch {
	case !resumed || lastSeq > current.Seq:
		// Fresh connection, or an id this process never issued.
		if !send(presenter.Render(current)) {
			return
		}
		lastSeq = current.Seq
	default:
		for _, snap := range s.orch.Events().Since(lastSeq) {
			if !send(presenter.Render(snap)) {
				return
			}
			lastSeq = snap.Seq
		}
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-events:
			if !ok {
				return
			}
			if snap.Seq <= lastSeq {
				continue
			}
			lastSeq = snap.Seq
			if !send(presenter.Render(snap)) {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// lastEventID reads the reconnect position an EventSource sends back.
func lastEventID(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("lastEventId"))
	}
	if raw == "" {
		return 0, false
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
