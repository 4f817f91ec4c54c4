// Package orderevents streams change feed events as Server-Sent Events.
package orderevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/frameshop/order/internal/events"
	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/event"
	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

const (
	bufferSize        = 64
	heartbeatInterval = 15 * time.Second
)

// broker is the change feed the stream subscribes to.
type broker interface {
	Subscribe(filter events.Filter, handler events.Handler) (unsubscribe func())
}

// Stream holds the connection open and writes every matching event. Slow
// clients lose events rather than stall the broker; they reconcile by re-reading.
func Stream(w http.ResponseWriter, r *http.Request, broker broker) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, r, errs.New(errs.KindInternal, "streaming unsupported"))
		return
	}

	filter := events.Filter{
		Table: event.Table(r.URL.Query().Get("table")),
		Type:  event.Type(r.URL.Query().Get("type")),
	}

	ch := make(chan event.Event, bufferSize)
	unsubscribe := broker.Subscribe(filter, func(e event.Event) {
		select {
		case ch <- e:
		default:
			slog.Warn("Dropping event for slow stream client", "event_id", e.ID)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				slog.Error("Error encoding event", "event_id", e.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s.%s\ndata: %s\n\n", e.ID, e.Table, e.Type, data)
			flusher.Flush()
		}
	}
}
