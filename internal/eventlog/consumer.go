// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package eventlog

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
)

// Consumer drains the automation-event topic, persists each event, and
// writes one structured log line per event. Runs as a supervised service.
type Consumer struct {
	subscriber message.Subscriber
	store      *EventStore
}

// NewConsumer wires a consumer to the bus and the event store.
func NewConsumer(subscriber message.Subscriber, store *EventStore) *Consumer {
	return &Consumer{subscriber: subscriber, store: store}
}

// Serve consumes until the context is cancelled. Undecodable messages are
// acked and dropped; persistence failures are logged and acked too, since
// an in-process bus has no useful redelivery for a dead database.
func (c *Consumer) Serve(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, TopicAutomationEvents)
	if err != nil {
		return err
	}
	logging.Info().Str("topic", TopicAutomationEvents).Msg("Event consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("event subscription closed")
			}
			c.handle(ctx, msg)
			msg.Ack()
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	var event models.AutomationEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logging.Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable automation event")
		return
	}

	if err := c.store.Insert(ctx, event); err != nil {
		logging.Err(err).Str("event_id", event.EventID).Msg("Failed to persist automation event")
		return
	}
	metrics.EventsPersisted.WithLabelValues(string(event.Type)).Inc()

	line := logging.Info().
		Str("event_id", event.EventID).
		Str("event", string(event.Type)).
		Time("at", event.Timestamp)
	if event.SeedTitle != "" {
		line = line.Str("seed_title", event.SeedTitle)
	}
	if event.UserID != 0 {
		line = line.Int("user_id", event.UserID)
	}
	if event.MediaKind != "" {
		line = line.Str("media_kind", string(event.MediaKind))
	}
	if event.Granularity != "" {
		line = line.Str("granularity", string(event.Granularity)).Int("items", event.ItemCount)
	}
	if len(event.Runs) > 0 {
		line = line.Int("runs", len(event.Runs))
	}
	if len(event.Skipped) > 0 {
		line = line.Int("skipped", len(event.Skipped))
	}
	if len(event.Errors) > 0 {
		line = line.Strs("errors", event.Errors)
	}
	line.Msg("Automation event")
}
