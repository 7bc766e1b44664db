package queue

import (
	"context"
	"log"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kgo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

type Consumer struct {
	reader messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commits
	})

	return &Consumer{reader: r}
}

func (c *Consumer) Close() error { return c.reader.Close() }

// ReadUpload blocks for the next UploadMessage. The returned commit must be
// called only after the message has been handled.
func (c *Consumer) ReadUpload(ctx context.Context) (UploadMessage, func(context.Context) error, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return UploadMessage{}, nil, err
	}

	um, err := decodeUpload(m.Value)
	if err != nil {
		c.skip(ctx, m, err)
		return UploadMessage{}, nil, err
	}
	return um, c.committer(m), nil
}

// ReadRetry consumes RetryMessage.
func (c *Consumer) ReadRetry(ctx context.Context) (RetryMessage, func(context.Context) error, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return RetryMessage{}, nil, err
	}

	rm, err := decodeRetry(m.Value)
	if err != nil {
		c.skip(ctx, m, err)
		return RetryMessage{}, nil, err
	}
	return rm, c.committer(m), nil
}

// skip commits a message that can never be decoded so the partition moves on.
func (c *Consumer) skip(ctx context.Context, m kgo.Message, cause error) {
	log.Println("queue: dropping bad message", "topic=", m.Topic, "offset=", m.Offset, "err=", cause)
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Println("queue: commit of bad message failed", "err=", err)
	}
}

func (c *Consumer) committer(m kgo.Message) func(context.Context) error {
	return func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return c.reader.CommitMessages(cctx, m)
	}
}
