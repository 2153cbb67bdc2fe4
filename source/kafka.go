package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rustyeddy/candlestream/internal/id"
	"github.com/rustyeddy/candlestream/market"
)

// FormatHeader names the payload field map, e.g. "binance" or
// "canonical". Without it the exchange prefix of the message key is used.
const FormatHeader = "format"

// KafkaConfig configures the trade consumer and publisher.
type KafkaConfig struct {
	Brokers  []string      `json:"brokers" yaml:"brokers"`
	Topic    string        `json:"topic" yaml:"topic"`
	GroupID  string        `json:"group_id" yaml:"group_id"`
	MaxBatch int           `json:"max_batch" yaml:"max_batch"`
	MaxWait  time.Duration `json:"max_wait" yaml:"max_wait"`
}

// Kafka reads raw exchange payloads from a consumer group. Offsets are
// committed only through Commit, after the engine has processed a batch.
type Kafka struct {
	reader   *kafka.Reader
	norm     *market.Normalizer
	maxBatch int
	maxWait  time.Duration
	log      *zap.Logger
}

func NewKafka(cfg KafkaConfig, norm *market.Normalizer, log *zap.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if norm == nil {
		norm = market.NewNormalizer(nil)
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 500
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &Kafka{reader: reader, norm: norm, maxBatch: cfg.MaxBatch, maxWait: cfg.MaxWait, log: log}, nil
}

// Next blocks for the first message, then gathers more until MaxBatch
// messages or MaxWait has passed.
func (k *Kafka) Next(ctx context.Context) (Batch, error) {
	first, err := k.reader.FetchMessage(ctx)
	if err != nil {
		return Batch{}, fmt.Errorf("fetch message: %w", err)
	}
	msgs := []kafka.Message{first}

	waitCtx, cancel := context.WithTimeout(ctx, k.maxWait)
	defer cancel()
	for len(msgs) < k.maxBatch {
		m, err := k.reader.FetchMessage(waitCtx)
		if err != nil {
			if ctx.Err() != nil {
				return Batch{}, ctx.Err()
			}
			break
		}
		msgs = append(msgs, m)
	}

	now := time.Now().UTC()
	b := Batch{ID: id.At(now), ReceivedAt: now, token: msgs}
	b.Trades = make([]market.RawTrade, 0, len(msgs))
	for _, m := range msgs {
		b.Trades = append(b.Trades, k.decode(m))
	}
	k.log.Debug("batch fetched",
		zap.String("batch", b.ID),
		zap.Int("messages", len(msgs)),
		zap.Int("partition", first.Partition),
		zap.Int64("offset", first.Offset))
	return b, nil
}

func (k *Kafka) decode(m kafka.Message) market.RawTrade {
	return k.norm.NormalizeJSON(messageFormat(m), m.Value)
}

// messageFormat takes the field map name from the header, else the
// exchange part of an "exchange:symbol" message key.
func messageFormat(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == FormatHeader {
			return string(h.Value)
		}
	}
	if ex, _, ok := strings.Cut(string(m.Key), ":"); ok {
		return ex
	}
	return market.CanonicalExchange
}

func (k *Kafka) Commit(ctx context.Context, b Batch) error {
	msgs, ok := b.token.([]kafka.Message)
	if !ok || len(msgs) == 0 {
		return nil
	}
	if err := k.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("commit batch %s: %w", b.ID, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.reader.Close()
}

// Publisher writes trades to the topic keyed by partition key, so every
// trade of one (exchange, symbol) lands on the same partition.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(cfg KafkaConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka brokers and topic are required")
	}
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}, nil
}

// Message encodes one trade in the canonical payload layout.
func Message(t market.RawTrade) (kafka.Message, error) {
	payload, err := market.CanonicalPayload(t)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:     []byte(t.Partition().String()),
		Value:   payload,
		Headers: []kafka.Header{{Key: FormatHeader, Value: []byte(market.CanonicalExchange)}},
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, trades []market.RawTrade) error {
	msgs := make([]kafka.Message, 0, len(trades))
	for _, t := range trades {
		m, err := Message(t)
		if err != nil {
			return err
		}
		msgs = append(msgs, m)
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
