// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package eventlog moves derived automation events from the engine to
// durable storage: the engine publishes on an in-process Watermill bus, a
// consumer persists each event to DuckDB and writes one structured log
// line. The bus decouples event recording from the poll tick so a slow
// insert never stretches a tick.
package eventlog

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/curatarr/internal/logging"
)

// TopicAutomationEvents carries every derived engine event.
const TopicAutomationEvents = "automation.events"

// NewBus creates the in-process pub/sub bus. Buffering keeps Publish
// non-blocking under normal consumer lag.
func NewBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: false,
	}, newWatermillLogger())
}

// watermillLogger adapts the global zerolog logger to Watermill's interface.
type watermillLogger struct {
	fields watermill.LogFields
}

func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	logging.Err(err).Fields(map[string]interface{}(l.merged(fields))).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	logging.Info().Fields(map[string]interface{}(l.merged(fields))).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(l.merged(fields))).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]interface{}(l.merged(fields))).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{fields: l.merged(fields)}
}

func (l *watermillLogger) merged(fields watermill.LogFields) watermill.LogFields {
	if len(l.fields) == 0 {
		return fields
	}
	out := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
