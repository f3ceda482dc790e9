package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/TrackPoint/internal/app/model"
	natsclient "github.com/sifan077/TrackPoint/internal/infra/nats"
	"go.uber.org/zap"
)

// ClickHandler receives one decoded notification. Returning an error redelivers it.
type ClickHandler func(ctx context.Context, event model.ClickRecorded) error

// ClickConsumer follows click notifications through a durable JetStream pull consumer.
type ClickConsumer struct {
	js      nats.JetStreamContext
	logger  *zap.Logger
	durable string
	handle  ClickHandler
}

// NewClickConsumer creates a consumer bound to the given durable name.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, durable string, handle ClickHandler) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{js: js, logger: logger, durable: durable, handle: handle}
}

// Run ensures the stream and consumer exist, then fetches until ctx is done.
func (c *ClickConsumer) Run(ctx context.Context) error {
	if err := natsclient.EnsureClickStream(c.js); err != nil {
		return err
	}

	if _, err := c.js.ConsumerInfo(natsclient.ClickStream, c.durable); err != nil {
		_, err = c.js.AddConsumer(natsclient.ClickStream, &nats.ConsumerConfig{
			Durable:       c.durable,
			AckPolicy:     nats.AckExplicitPolicy,
			FilterSubject: natsclient.ClickRecordedSubject,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(natsclient.ClickRecordedSubject, c.durable, nats.Bind(natsclient.ClickStream, c.durable))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			c.deliver(ctx, msg)
		}
	}
}

func (c *ClickConsumer) deliver(ctx context.Context, msg *nats.Msg) {
	event, err := decodeClickRecorded(msg.Data)
	if err != nil {
		// Malformed payloads never become valid; drop them.
		c.logger.Error("failed to unmarshal click notification", zap.Error(err))
		_ = msg.Term()
		return
	}

	if err := c.handle(ctx, event); err != nil {
		c.logger.Warn("click notification handler failed", zap.Int64("id", event.ID), zap.Error(err))
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func decodeClickRecorded(data []byte) (model.ClickRecorded, error) {
	var event model.ClickRecorded
	if err := json.Unmarshal(data, &event); err != nil {
		return event, err
	}
	if event.ID == 0 {
		return event, errors.New("click notification without id")
	}
	return event, nil
}
