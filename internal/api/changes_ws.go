/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/friendsincode/grimnir_scanner/internal/events"
	ws "nhooyr.io/websocket"
)

// changeMessage is one frame on the /changes feed.
type changeMessage struct {
	Event     events.EventType `json:"event"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
}

// handleChanges streams catalog change events over a websocket until the
// client disconnects.
func (a *API) handleChanges(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	ctx := r.Context()
	a.logger.Debug().Str("remote", r.RemoteAddr).Msg("change feed connected")

	subs := make([]events.Subscriber, 0, len(events.AllMedia))
	for _, t := range events.AllMedia {
		subs = append(subs, a.bus.Subscribe(t))
	}
	defer func() {
		for i, sub := range subs {
			a.bus.Unsubscribe(events.AllMedia[i], sub)
		}
	}()

	// Fan the per-type subscriptions into one ordered stream for this client.
	merged := make(chan changeMessage, 32)
	for i, sub := range subs {
		go func(t events.EventType, sub events.Subscriber) {
			for payload := range sub {
				select {
				case merged <- changeMessage{Event: t, Payload: payload, Timestamp: time.Now()}:
				case <-ctx.Done():
					return
				}
			}
		}(events.AllMedia[i], sub)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-merged:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, ws.MessageText, data); err != nil {
				a.logger.Debug().Err(err).Msg("change feed write failed, closing")
				return
			}
		}
	}
}
