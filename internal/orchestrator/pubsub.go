// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package orchestrator

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// ProgressTopic carries one message per background sync phase transition.
const ProgressTopic = "sync.progress"

// ProgressBus fans sync progress events out to every subscriber. Built on
// an in-process pub/sub; subscribers attached after an event simply miss
// it, which is fine since the status store remains the source of truth.
type ProgressBus struct {
	pubsub *gochannel.GoChannel
}

// NewProgressBus creates the bus.
func NewProgressBus() *ProgressBus {
	return &ProgressBus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, watermillLogger{}),
	}
}

// Publish sends one progress event to all current subscribers.
func (b *ProgressBus) Publish(progress models.SyncProgress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(ProgressTopic, msg); err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of decoded progress events. The channel
// closes when ctx is cancelled or the bus is closed.
func (b *ProgressBus) Subscribe(ctx context.Context) (<-chan models.SyncProgress, error) {
	msgs, err := b.pubsub.Subscribe(ctx, ProgressTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to progress topic: %w", err)
	}

	out := make(chan models.SyncProgress)
	go func() {
		defer close(out)
		for msg := range msgs {
			var progress models.SyncProgress
			if err := json.Unmarshal(msg.Payload, &progress); err != nil {
				logging.Warn().Err(err).Msg("Dropping undecodable progress event")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- progress:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down, closing all subscriber channels.
func (b *ProgressBus) Close() error {
	return b.pubsub.Close()
}

// watermillLogger routes the pub/sub library's logging into zerolog.
type watermillLogger struct {
	fields watermill.LogFields
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(logging.Error().Err(err), fields).Msg(msg)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg(msg)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg(msg)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg(msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{fields: l.fields.Add(fields)}
}

func (l watermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range l.fields.Add(fields) {
		e = e.Interface(k, v)
	}
	return e
}
