// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package eventlog

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/curatarr/internal/models"
)

// Recorder receives derived automation events from the engine.
type Recorder interface {
	Record(ctx context.Context, event models.AutomationEvent) error
}

// BusRecorder publishes events onto the in-process bus. The event ID doubles
// as the message UUID so the consumer can deduplicate redelivery.
type BusRecorder struct {
	publisher message.Publisher
}

// NewBusRecorder creates a recorder backed by the given publisher.
func NewBusRecorder(publisher message.Publisher) *BusRecorder {
	return &BusRecorder{publisher: publisher}
}

// Record implements Recorder.
func (r *BusRecorder) Record(ctx context.Context, event models.AutomationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal automation event: %w", err)
	}
	msg := message.NewMessage(event.EventID, payload)
	msg.SetContext(ctx)
	if err := r.publisher.Publish(TopicAutomationEvents, msg); err != nil {
		return fmt.Errorf("publish automation event: %w", err)
	}
	return nil
}
