package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lecture-quiz/internal/models"

	kgo "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

type Producer struct {
	writer  messageWriter
	timeout time.Duration
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	w := &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
	}

	return &Producer{
		writer:  w,
		timeout: 3 * time.Second,
	}, nil
}

func (p *Producer) Close() error { return p.writer.Close() }

// PublishUpload keys messages by job id so redeliveries of one upload share
// a partition.
func (p *Producer) PublishUpload(ctx context.Context, ev models.UploadEvent, attempt int) error {
	msg := UploadMessage{Event: ev, Attempt: attempt}
	return p.publishJSON(ctx, ev.JobID(), msg)
}

func (p *Producer) PublishRetry(ctx context.Context, ev models.UploadEvent, attempt int, nextRetryAt int64) error {
	msg := RetryMessage{Event: ev, Attempt: attempt, NextRetryAt: nextRetryAt}
	return p.publishJSON(ctx, ev.JobID(), msg)
}

func (p *Producer) publishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.writer.WriteMessages(cctx, kgo.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	})
}
