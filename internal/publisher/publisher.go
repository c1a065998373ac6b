// Package publisher emits run lifecycle events to NATS JetStream so
// downstream consumers (dashboards, alerting) can react to finished runs
// without polling the snapshot store.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/internal/metrics"
	"github.com/Checker-Finance/screener/pkg/model"
)

const (
	SubjectRunCompleted = "evt.screener.run.completed.v1"
	SubjectRunFailed    = "evt.screener.run.failed.v1"
)

// jetStream is the slice of nats.JetStreamContext the publisher uses.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher wraps a NATS connection and publishes screener run events.
type Publisher struct {
	nc      *nats.Conn
	js      jetStream
	service string
	logger  *zap.Logger
}

// New creates a Publisher with JetStream enabled.
func New(nc *nats.Conn, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, js: js, service: service, logger: logger}, nil
}

// PublishRunCompleted emits a run.completed event.
func (p *Publisher) PublishRunCompleted(ctx context.Context, event model.RunCompletedEvent) error {
	return p.publish(SubjectRunCompleted, event.RunID, event)
}

// RunFailedFrom builds a run.failed event for a run that aborted before
// producing a report.
func RunFailedFrom(universe string, err error) model.RunFailedEvent {
	return model.RunFailedEvent{
		RunID:     uuid.NewString(),
		Universe:  universe,
		Stage:     "pipeline",
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// PublishRunFailed emits a run.failed event.
func (p *Publisher) PublishRunFailed(ctx context.Context, event model.RunFailedEvent) error {
	return p.publish(SubjectRunFailed, event.RunID, event)
}

func (p *Publisher) publish(subject, runID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("publisher.marshal_failed",
			zap.String("subject", subject),
			zap.Error(err))
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"run_id":       []string{runID},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("run_id", runID),
			zap.Error(err))
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		return err
	}

	p.logger.Info("publisher.publish_success",
		zap.String("subject", subject),
		zap.String("run_id", runID),
		zap.Duration("elapsed", time.Since(start)))
	metrics.EventsPublished.WithLabelValues(subject, "ok").Inc()
	return nil
}

// Close shuts the underlying NATS connection down.
func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
