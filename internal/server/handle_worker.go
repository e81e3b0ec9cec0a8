package server

import (
	"context"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/cyclescene/cyclescene/internal/app"
	"github.com/cyclescene/cyclescene/internal/broker"
	"github.com/cyclescene/cyclescene/internal/worker"
)

// handleWorkerBridge carries the worker message protocol over a websocket:
// client frames are posted to the worker, worker notifications are written
// back as text frames.
func handleWorkerBridge(logger *slog.Logger, wk app.Worker, b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wk == nil {
			writeError(w, http.StatusServiceUnavailable, "background worker unavailable")
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		sub := b.Subscribe(worker.TopicClients)
		defer b.Unsubscribe(worker.TopicClients, sub)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go func() {
			defer cancel()
			for {
				_, data, err := conn.Read(ctx)
				if err != nil {
					logger.Debug("websocket read ended", "error", err)
					return
				}
				msg, err := worker.DecodeMessage(data)
				if err != nil {
					logger.Warn("dropping client message", "error", err)
					continue
				}
				if err := wk.Post(msg); err != nil {
					logger.Warn("posting to worker failed", "type", msg.Type, "error", err)
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case data := <-sub:
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
