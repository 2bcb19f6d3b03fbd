package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
)

const (
	writeWait    = 10 * time.Second
	requestWait  = 30 * time.Second
	streamBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSink hands events to the connection's writer goroutine.
type wsSink struct {
	out chan orchestrator.Event
}

func (s *wsSink) Publish(ctx context.Context, e orchestrator.Event) {
	select {
	case s.out <- e:
	case <-ctx.Done():
	}
}

// askStream handles GET /v1/ask/stream. The client sends one request as
// its first message and receives every progress event, ending with final
// or error, after which the server closes the connection.
func (s *Server) askStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req orchestrator.Request
	conn.SetReadDeadline(time.Now().Add(requestWait))
	if err := conn.ReadJSON(&req); err != nil {
		s.logger.Warn("failed to read stream request", "error", err)
		writeEvent(conn, orchestrator.Event{Type: orchestrator.EventError, Data: map[string]string{"message": "invalid request"}, Timestamp: time.Now()})
		return
	}
	conn.SetReadDeadline(time.Time{})
	applyClaims(r.Context(), &req)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A client that goes away cancels the run.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	sink := &wsSink{out: make(chan orchestrator.Event, streamBuffer)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		broken := false
		for e := range sink.out {
			if broken {
				continue
			}
			if err := writeEvent(conn, e); err != nil {
				s.logger.Warn("stream write failed", "run_id", e.RunID, "error", err)
				broken = true
				cancel()
			}
		}
	}()

	var out orchestrator.Sink = sink
	if s.progress != nil {
		out = orchestrator.MultiSink{sink, s.progress}
	}
	_, err = s.runner.Run(ctx, req, out)
	if err != nil && req.Validate() != nil {
		// Rejected before any stage ran, so no error event was published.
		sink.Publish(ctx, orchestrator.Event{Type: orchestrator.EventError, RunID: req.RunID, Data: map[string]string{"message": err.Error()}, Timestamp: time.Now()})
	}
	close(sink.out)
	<-done

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func writeEvent(conn *websocket.Conn, e orchestrator.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}
