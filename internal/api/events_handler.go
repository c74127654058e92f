package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/buildmaster/internal/events"
)

const sseKeepAlive = 15 * time.Second

// handleEvents handles GET /events as a server-sent event stream. Buffered
// events after Last-Event-ID are replayed first; ?builder= limits the stream
// to one builder.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := s.events.Subscribe(128)
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	only := r.URL.Query().Get("builder")
	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	send := func(ev events.Event) bool {
		// Replayed events may arrive again on the subscription.
		if ev.ID <= lastID {
			return true
		}
		lastID = ev.ID
		if only != "" && ev.Builder != only {
			return true
		}
		_, err := w.Write(frameSSE(ev))
		return err == nil
	}

	for _, ev := range s.events.SnapshotSince(lastID) {
		if !send(ev) {
			return
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok || !send(ev) {
				return
			}
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func parseLastEventID(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// frameSSE encodes one event as an SSE frame whose data line is the event
// itself as single-line JSON.
func frameSSE(ev events.Event) []byte {
	var b bytes.Buffer
	b.WriteString("id: ")
	b.WriteString(strconv.FormatInt(ev.ID, 10))
	b.WriteByte('\n')
	if ev.Type != "" {
		b.WriteString("event: ")
		b.WriteString(ev.Type)
		b.WriteByte('\n')
	}
	data, err := json.Marshal(ev)
	if err != nil {
		data = []byte("{}")
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
	return b.Bytes()
}
