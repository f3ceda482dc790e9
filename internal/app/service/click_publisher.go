package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/TrackPoint/internal/app/model"
	natsclient "github.com/sifan077/TrackPoint/internal/infra/nats"
)

// ClickNotifier announces stored clicks to downstream consumers.
type ClickNotifier interface {
	PublishClick(ctx context.Context, event model.ClickRecorded) error
}

type asyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// ClickPublisher publishes click notifications to NATS JetStream without waiting for the ack.
type ClickPublisher struct {
	js asyncPublisher
}

// NewClickPublisher creates a new click notification publisher
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

func (p *ClickPublisher) PublishClick(ctx context.Context, event model.ClickRecorded) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode click notification: %w", err)
	}

	if _, err := p.js.PublishAsync(natsclient.ClickRecordedSubject, data, nats.MsgId(event.EventID)); err != nil {
		return fmt.Errorf("publish click notification: %w", err)
	}
	return nil
}
