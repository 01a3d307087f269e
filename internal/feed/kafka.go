package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/kiosksync/internal/tracing"
)

// KafkaOptions configures the Kafka feed source and sink.
type KafkaOptions struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

func (o KafkaOptions) validate() error {
	if len(o.Brokers) == 0 || o.Topic == "" {
		return fmt.Errorf("kafka feed: brokers and topic are required")
	}
	return nil
}

func (o KafkaOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// KafkaSink produces events to a topic, keyed by collection.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

var _ Sink = (*KafkaSink)(nil)

// NewKafkaSink creates a producer client.
func NewKafkaSink(opts KafkaOptions) (*KafkaSink, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(opts.Brokers...),
		kgo.ClientID("kiosksync-feed-sink"),
		kgo.DefaultProduceTopic(opts.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka feed: new client: %w", err)
	}
	return &KafkaSink{client: client, topic: opts.Topic, logger: opts.logger()}, nil
}

// Emit produces ev asynchronously.
func (s *KafkaSink) Emit(ctx context.Context, ev Event) {
	ctx, span := tracing.Start(ctx, tracing.LayerFeed, "Emit",
		attribute.String("feed.collection", ev.Collection),
		attribute.String("feed.op", string(ev.Op)))
	defer span.End()

	rec, err := encodeEvent(ctx, s.topic, ev)
	if err != nil {
		tracing.Fail(span, err)
		s.logger.Warn("feed encode failed", "error", err)
		return
	}
	s.client.Produce(context.Background(), rec, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn("feed produce failed", "topic", s.topic, "error", err)
		}
	})
}

// Close flushes pending produces and closes the client.
func (s *KafkaSink) Close(ctx context.Context) error {
	defer s.client.Close()
	return s.client.Flush(ctx)
}

// KafkaSource consumes events from a topic. Each Subscribe call owns its own
// client reading from the end of the log without a consumer group, so every
// process sees every change.
type KafkaSource struct {
	opts KafkaOptions
}

var _ Source = (*KafkaSource)(nil)

// NewKafkaSource validates options; connections are made per subscription.
func NewKafkaSource(opts KafkaOptions) (*KafkaSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &KafkaSource{opts: opts}, nil
}

// Subscribe implements Source.
func (s *KafkaSource) Subscribe(ctx context.Context, collections []string, fn Handler) error {
	logger := s.opts.logger()
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.opts.Brokers...),
		kgo.ClientID("kiosksync-feed-source"),
		kgo.ConsumeTopics(s.opts.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return fmt.Errorf("kafka feed: new client: %w", err)
	}
	defer client.Close()

	logger.Debug("feed subscribed", "topic", s.opts.Topic, "collections", collections)
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			logger.Warn("feed fetch error", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			handleRecord(rec, collections, fn, logger)
		})
	}
}

func handleRecord(rec *kgo.Record, collections []string, fn Handler, logger *slog.Logger) {
	ev, headers, err := decodeEvent(rec)
	if err != nil {
		logger.Warn("feed decode failed", "offset", rec.Offset, "error", err)
		return
	}
	if !wants(collections, ev.Collection) {
		return
	}
	_, span := tracing.StartLinked(context.Background(), tracing.LayerFeed, "Receive",
		tracing.Links(context.Background(), headers),
		attribute.String("feed.collection", ev.Collection))
	defer span.End()
	fn(ev)
}

func encodeEvent(ctx context.Context, topic string, ev Event) (*kgo.Record, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode feed event: %w", err)
	}
	var headers []kgo.RecordHeader
	for k, v := range tracing.Inject(ctx) {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return &kgo.Record{
		Topic:   topic,
		Key:     []byte(ev.Collection),
		Value:   data,
		Headers: headers,
	}, nil
}

func decodeEvent(rec *kgo.Record) (Event, map[string]string, error) {
	headers := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	var ev Event
	if err := json.Unmarshal(rec.Value, &ev); err != nil {
		return Event{}, headers, fmt.Errorf("decode feed event: %w", err)
	}
	if ev.Collection == "" {
		ev.Collection = string(rec.Key)
	}
	return ev, headers, nil
}
