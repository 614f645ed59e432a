package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/election-map-etl/internal/domain"
)

// messageWriter is the subset of kafka-go's Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes merged county rows to a Kafka topic.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic on brokers.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes rows without geometry and writes them in one
// WriteMessages call, keyed by FIPS.
func (w *Writer) Publish(ctx context.Context, run domain.Run, rows []domain.MergedRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(run, rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d rows: %w", len(msgs), err)
	}
	w.logger.Info("published rows", "source", run.Source, "year", run.Year, "run_id", run.ID, "rows", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a row's attributes into a Kafka message.
func serializeToMessage(run domain.Run, row domain.MergedRow) (kafkago.Message, error) {
	data, err := json.Marshal(row.Attributes())
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize county %s: %w", row.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(row.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(run.Source)},
			{Key: "year", Value: []byte(strconv.Itoa(run.Year))},
			{Key: "run_id", Value: []byte(run.ID)},
		},
	}, nil
}
