package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/tracing"
)

const (
	headerOrigin = "origin"
	headerKind   = "kind"

	// All snapshots share one key so they land on one partition in order.
	recordKey = "overlay"
)

// KafkaOptions configures a KafkaChannel.
type KafkaOptions struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// KafkaChannel broadcasts snapshots between contexts on different processes
// or machines through a Kafka topic. Each context reads the topic without a
// consumer group, starting at the end, so every context sees every message
// published after it joined.
type KafkaChannel struct {
	client  *kgo.Client
	topic   string
	origin  string
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	handlers []Handler

	cancel context.CancelFunc
	done   chan struct{}
}

var _ Channel = (*KafkaChannel)(nil)

// NewKafkaChannel connects to the brokers and starts consuming.
func NewKafkaChannel(opts KafkaOptions) (*KafkaChannel, error) {
	if len(opts.Brokers) == 0 || opts.Topic == "" {
		return nil, fmt.Errorf("kafka broadcast: brokers and topic are required")
	}
	origin := uuid.Must(uuid.NewV7()).String()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(opts.Brokers...),
		kgo.ClientID("kiosksync-broadcast"),
		kgo.DefaultProduceTopic(opts.Topic),
		kgo.ConsumeTopics(opts.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka broadcast: new client: %w", err)
	}

	c := newKafkaChannel(client, opts.Topic, origin, opts.Logger, opts.Metrics)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.poll(ctx)
	return c, nil
}

func newKafkaChannel(client *kgo.Client, topic, origin string, logger *slog.Logger, m *metrics.Metrics) *KafkaChannel {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &KafkaChannel{
		client:  client,
		topic:   topic,
		origin:  origin,
		logger:  logger,
		metrics: m,
	}
}

// Origin returns this context's id.
func (c *KafkaChannel) Origin() string {
	return c.origin
}

// Publish produces the snapshot asynchronously. Errors are logged; the next
// publish carries the full map anyway.
func (c *KafkaChannel) Publish(set order.PatchSet) {
	ctx, span := tracing.Start(context.Background(), tracing.LayerBroadcast, "Publish",
		attribute.Int("overlay.entries", len(set)))
	defer span.End()

	rec, err := encodeRecord(ctx, c.topic, Message{Kind: KindOverlayUpdate, Origin: c.origin, Map: set})
	if err != nil {
		tracing.Fail(span, err)
		c.logger.Warn("broadcast encode failed", "error", err)
		return
	}

	c.metrics.Broadcast("sent")
	c.client.Produce(context.Background(), rec, func(_ *kgo.Record, err error) {
		if err != nil {
			c.logger.Warn("broadcast produce failed", "topic", c.topic, "error", err)
		}
	})
}

// Subscribe registers h.
func (c *KafkaChannel) Subscribe(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Close stops consuming and flushes nothing further.
func (c *KafkaChannel) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.client.Close()
	if c.done != nil {
		<-c.done
	}
	return nil
}

func (c *KafkaChannel) poll(ctx context.Context) {
	defer close(c.done)
	c.logger.Debug("broadcast listening", "topic", c.topic, "origin", c.origin)
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Warn("broadcast fetch error", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(c.handleRecord)
	}
}

func (c *KafkaChannel) handleRecord(rec *kgo.Record) {
	msg, headers, err := decodeRecord(rec)
	if err != nil {
		c.logger.Warn("broadcast decode failed", "offset", rec.Offset, "error", err)
		return
	}
	if msg.Origin == c.origin || msg.Kind != KindOverlayUpdate {
		return
	}

	_, span := tracing.StartLinked(context.Background(), tracing.LayerBroadcast, "Receive",
		tracing.Links(context.Background(), headers),
		attribute.String("broadcast.origin", msg.Origin))
	defer span.End()

	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.RUnlock()

	c.metrics.Broadcast("received")
	for _, h := range handlers {
		h(msg.Map.Clone())
	}
}

func encodeRecord(ctx context.Context, topic string, msg Message) (*kgo.Record, error) {
	if msg.Map == nil {
		msg.Map = order.PatchSet{}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode broadcast: %w", err)
	}
	headers := []kgo.RecordHeader{
		{Key: headerOrigin, Value: []byte(msg.Origin)},
		{Key: headerKind, Value: []byte(msg.Kind)},
	}
	for k, v := range tracing.Inject(ctx) {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return &kgo.Record{
		Topic:   topic,
		Key:     []byte(recordKey),
		Value:   data,
		Headers: headers,
	}, nil
}

func decodeRecord(rec *kgo.Record) (Message, map[string]string, error) {
	headers := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	var msg Message
	if err := json.Unmarshal(rec.Value, &msg); err != nil {
		return Message{}, headers, fmt.Errorf("decode broadcast: %w", err)
	}
	if msg.Origin == "" {
		msg.Origin = headers[headerOrigin]
	}
	return msg, headers, nil
}
