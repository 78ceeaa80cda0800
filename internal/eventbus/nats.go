/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus mirrors in-process catalog events onto NATS so the
// playout engine can react to media changes without polling the HTTP
// surface.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_scanner/internal/events"
)

// SubjectPrefix is the NATS subject root; the event type is appended, e.g.
// "grimnir.scanner.media.added".
const SubjectPrefix = "grimnir.scanner."

// Publisher forwards bus events to NATS.
type Publisher struct {
	conn   *nats.Conn
	bus    *events.Bus
	logger zerolog.Logger
	nodeID string
	subs   []events.Subscriber
	types  []events.EventType
	done   chan struct{}
}

// message is the wire format published to NATS.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// NewPublisher connects to NATS and starts forwarding the catalog change
// events from the bus.
func NewPublisher(natsURL string, bus *events.Bus, logger zerolog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", natsURL, err)
	}

	p := &Publisher{
		conn:   conn,
		bus:    bus,
		logger: logger.With().Str("component", "eventbus").Logger(),
		nodeID: uuid.NewString(),
		done:   make(chan struct{}),
	}

	p.types = append(append([]events.EventType(nil), events.AllMedia...), events.EventSweepDone)
	for _, t := range p.types {
		sub := bus.Subscribe(t)
		p.subs = append(p.subs, sub)
		go p.forward(t, sub)
	}

	p.logger.Info().Str("url", natsURL).Msg("nats publisher connected")
	return p, nil
}

func (p *Publisher) forward(eventType events.EventType, sub events.Subscriber) {
	for {
		select {
		case <-p.done:
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			p.publish(eventType, payload)
		}
	}
}

func (p *Publisher) publish(eventType events.EventType, payload events.Payload) {
	msg := message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    p.nodeID,
		MessageID: uuid.NewString(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn().Err(err).Str("event", string(eventType)).Msg("marshal nats message failed")
		return
	}
	if err := p.conn.Publish(SubjectPrefix+string(eventType), data); err != nil {
		p.logger.Warn().Err(err).Str("event", string(eventType)).Msg("nats publish failed")
	}
}

// Close stops forwarding and drains the connection.
func (p *Publisher) Close() error {
	close(p.done)
	for i, sub := range p.subs {
		p.bus.Unsubscribe(p.types[i], sub)
	}
	return p.conn.Drain()
}
