// Package kafka publishes evaluation progress as JSON events on a topic
// through segmentio/kafka-go and lets another process follow them.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Received is one event read back from the topic.
type Received struct {
	Key       string
	Value     json.RawMessage
	Partition int
	Offset    int64
	Time      time.Time
}

// Watcher follows the events topic from its newest offset as a member of the
// configured consumer group.
type Watcher struct {
	reader *kafka.Reader
	log    *slog.Logger
}

func NewWatcher(cfg config.KafkaConfig, topic string) *Watcher {
	return &Watcher{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1,
			MaxBytes:    1 << 20,
			StartOffset: kafka.LastOffset,
		}),
		log: slog.Default().With("component", "kafka-watcher", "topic", topic),
	}
}

// Run hands every event to fn until ctx is cancelled, which is not an error.
// Values that are not JSON are logged and committed so they are not read
// again; an error from fn stops the watch without committing that message.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context, Received) error) error {
	defer w.reader.Close()
	w.log.Info("watching")
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			w.log.Warn("fetch failed", "error", err)
			continue
		}
		if json.Valid(msg.Value) {
			err = fn(ctx, Received{
				Key:       string(msg.Key),
				Value:     json.RawMessage(msg.Value),
				Partition: msg.Partition,
				Offset:    msg.Offset,
				Time:      msg.Time,
			})
			if err != nil {
				return err
			}
		} else {
			w.log.Warn("skipping non-JSON event", "partition", msg.Partition, "offset", msg.Offset)
		}
		if err := w.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			w.log.Warn("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}
