package mq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerID         = "x-message-id"
	headerRetryCount = "x-message-retry"
	headerMaxRetries = "x-message-max-retries"
)

// KafkaConfig configures the Kafka-backed transport. BROKER_HOST/PORT map
// onto Brokers; BROKER_USER/PASS are reserved for a SASL mechanism if the
// cluster requires one — this worker's default deployment uses PLAINTEXT,
// matching the no-auth "guest/guest" default in the external interface.
type KafkaConfig struct {
	Brokers  []string
	ClientID string

	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks kafka.RequiredAcks

	MinBytes int
	MaxBytes int
	MaxWait  time.Duration

	DialTimeout time.Duration
}

func (c *KafkaConfig) setDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 1
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = kafka.RequireOne
	}
	if c.MinBytes == 0 {
		c.MinBytes = 1 << 10
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = 10 << 20
	}
	if c.MaxWait == 0 {
		c.MaxWait = time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// KafkaQueue implements MessageQueue over Kafka topics.
type KafkaQueue struct {
	config KafkaConfig
	writer *kafka.Writer
	dialer *kafka.Dialer

	mu     sync.Mutex
	subs   []*subscription
	closed bool
}

type subscription struct {
	topic   string
	handler HandlerFunc
	opts    SubscribeOptions
	limiter FetchLimiter

	reader *kafka.Reader
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	paused atomic.Bool
}

// NewKafkaQueue dials nothing eagerly; it only prepares the writer/dialer.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker address is required")
	}
	cfg.setDefaults()

	dialer := &kafka.Dialer{ClientID: cfg.ClientID, Timeout: cfg.DialTimeout, DualStack: true}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: cfg.RequiredAcks,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, address)
			},
			ClientID: cfg.ClientID,
		},
	}

	return &KafkaQueue{config: cfg, writer: writer, dialer: dialer}, nil
}

// Publish writes one message to topic, used for the result_queue.
func (k *KafkaQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return errors.New("message is nil")
	}
	if topic == "" {
		return errors.New("topic is required")
	}
	return k.writer.WriteMessages(ctx, toKafkaMessage(topic, message))
}

// SubscribeWithOptions registers a handler for topic. Must be called
// before Start.
func (k *KafkaQueue) SubscribeWithOptions(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error {
	if topic == "" {
		return errors.New("topic is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	var options SubscribeOptions
	if opts != nil {
		options = *opts
	}
	options.SetDefaults()
	if options.ConsumerGroup == "" {
		options.ConsumerGroup = "judge-worker"
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errors.New("message queue is closed")
	}
	k.subs = append(k.subs, &subscription{
		topic:   topic,
		handler: handler,
		opts:    options,
		limiter: NewTokenLimiter(options.PrefetchCount),
	})
	return nil
}

// Start begins consuming for all registered subscriptions.
func (k *KafkaQueue) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errors.New("message queue is closed")
	}
	for _, sub := range k.subs {
		if sub.reader != nil {
			continue
		}
		sub.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     k.config.Brokers,
			Topic:       sub.topic,
			GroupID:     sub.opts.ConsumerGroup,
			MinBytes:    k.config.MinBytes,
			MaxBytes:    k.config.MaxBytes,
			MaxWait:     k.config.MaxWait,
			StartOffset: kafka.FirstOffset,
		})
		sub.ctx, sub.cancel = context.WithCancel(context.Background())
		sub.wg.Add(1)
		go k.consumeLoop(sub)
	}
	return nil
}

func (k *KafkaQueue) consumeLoop(sub *subscription) {
	defer sub.wg.Done()
	for {
		if err := sub.limiter.Acquire(sub.ctx); err != nil {
			return
		}
		msg, err := sub.reader.FetchMessage(sub.ctx)
		if err != nil {
			sub.limiter.Release()
			if errors.Is(err, context.Canceled) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		k.dispatch(sub, msg)
	}
}

// dispatch runs the handler and resolves the message according to its
// HandlerResult: Ack and RejectNoRequeue both commit the offset (a
// redelivery for a poison message would only repeat the same parse
// failure); RejectRequeue leaves it uncommitted so the broker redelivers.
func (k *KafkaQueue) dispatch(sub *subscription, raw kafka.Message) {
	defer sub.limiter.Release()
	m := fromKafkaMessage(raw)

	result, err := sub.handler(sub.ctx, m)
	if err != nil && result == Ack {
		result = RejectRequeue
	}

	switch result {
	case Ack, RejectNoRequeue:
		_ = sub.reader.CommitMessages(sub.ctx, raw)
	case RejectRequeue:
		// leave uncommitted; FetchMessage will redeliver it on restart
		// or to another member of the consumer group.
	}
}

// Stop cancels all subscriptions and waits for in-flight handlers to
// finish.
func (k *KafkaQueue) Stop() error {
	k.mu.Lock()
	subs := append([]*subscription(nil), k.subs...)
	k.mu.Unlock()

	for _, sub := range subs {
		if sub.cancel != nil {
			sub.cancel()
		}
	}
	for _, sub := range subs {
		sub.wg.Wait()
		if sub.reader != nil {
			_ = sub.reader.Close()
		}
	}
	return nil
}

// Ping verifies connectivity to the first configured broker.
func (k *KafkaQueue) Ping(ctx context.Context) error {
	conn, err := k.dialer.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	return conn.Close()
}

// Close stops consumption and closes the producer.
func (k *KafkaQueue) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	_ = k.Stop()
	return k.writer.Close()
}

func toKafkaMessage(topic string, m *Message) kafka.Message {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	headers := make([]kafka.Header, 0, len(m.Headers)+3)
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if m.ID != "" {
		headers = append(headers, kafka.Header{Key: headerID, Value: []byte(m.ID)})
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(m.ID),
		Value:   m.Body,
		Headers: headers,
		Time:    m.Timestamp,
	}
}

func fromKafkaMessage(raw kafka.Message) *Message {
	m := &Message{Body: raw.Value, Headers: make(map[string]string), Timestamp: raw.Time}
	for _, h := range raw.Headers {
		switch h.Key {
		case headerID:
			m.ID = string(h.Value)
		case headerRetryCount, headerMaxRetries:
			// retry bookkeeping lives at the driver level via
			// HandlerResult, not reconstructed from headers here.
		default:
			m.Headers[h.Key] = string(h.Value)
		}
	}
	if m.ID == "" {
		m.ID = string(raw.Key)
	}
	return m
}
