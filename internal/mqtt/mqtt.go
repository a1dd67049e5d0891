package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"weatherportal-web/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	queueSize      = 256
	publishQoS     = byte(1)
	publishTimeout = 5 * time.Second
)

var ErrStopped = errors.New("publisher stopped")

type message struct {
	topic   string
	payload []byte
}

// Publisher sends messages to the broker from a single background loop.
// Enqueue never blocks; messages are dropped when the queue is full or the
// broker is away.
type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	queue   chan message
	dropped atomic.Uint64

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	p := newPublisher(nil, cfg, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

func newPublisher(client mqtt.Client, cfg config.Config, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan message, queueSize),
		stopCh: make(chan struct{}),
	}
}

// Connect waits for the broker connection until ctx is done. Giving up on the
// wait leaves the client retrying in the background; a later connection flips
// IsConnected through the connect handler. Only Disconnect cancels the retry.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return ErrStopped
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			p.logger.Info("mqtt broker not reachable yet, retrying in background",
				"broker", p.cfg.MQTTBroker, "port", p.cfg.MQTTPort)
			return ctx.Err()
		case <-p.stopCh:
			p.client.Disconnect(0)
			return ErrStopped
		default:
		}
	}
}

// Enqueue hands a message to the publish loop. It reports false when the
// message was dropped.
func (p *Publisher) Enqueue(topic string, payload []byte) bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}

	select {
	case p.queue <- message{topic: topic, payload: payload}:
		return true
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.logger.Warn("mqtt queue full, dropping messages", "topic", topic, "dropped_total", n)
		}
		return false
	}
}

// Dropped reports how many messages never reached the queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run publishes queued messages until ctx is done or the publisher stops.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case msg := <-p.queue:
			if err := p.publish(msg); err != nil {
				p.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

func (p *Publisher) publish(msg message) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	token := p.client.Publish(msg.topic, publishQoS, false, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}

	p.logger.Debug("published mqtt message", "topic", msg.topic, "size", len(msg.payload))
	return nil
}

// IsConnected returns whether the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the publisher and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
