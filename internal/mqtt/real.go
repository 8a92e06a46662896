package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/accessory"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	defaultBufferSize = 100
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Prefix     string
	BufferSize int
	Logger     *zap.Logger

	// OnCommand receives fan commands. Nil disables the subscription.
	OnCommand func(Command)
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are kept in a bounded buffer and replayed
// on reconnect.
type RealPublisher struct {
	client    paho.Client
	topics    Topics
	logger    *zap.Logger
	onCommand func(Command)

	mu       sync.Mutex
	outbox   *ringBuffer
	connects int
}

// NewRealPublisher creates a publisher connected to the given broker. A
// broker that is unreachable at startup is not fatal: the client keeps
// retrying in the background.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}

	p := &RealPublisher{
		topics:    Topics{Prefix: opts.Prefix},
		logger:    logger,
		onCommand: opts.OnCommand,
		outbox:    newRingBuffer(size),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetWill(p.topics.System(), string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warn("mqtt connect timeout, retrying in background", zap.String("broker", opts.Broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connects++
	reconnect := p.connects > 1
	pending := p.outbox.drainAll()
	p.mu.Unlock()

	if p.onCommand != nil {
		token := c.Subscribe(p.topics.Commands(), 1, p.handleMessage)
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			p.logger.Error("mqtt subscribe failed", zap.String("topic", p.topics.Commands()), zap.Error(token.Error()))
		}
	}

	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	p.logger.Info("mqtt connected", zap.Bool("reconnect", reconnect), zap.Int("replayed", len(pending)))

	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err == nil {
			c.Publish(p.topics.System(), 1, false, payload)
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.logger.Warn("mqtt connection lost", zap.Error(err))
}

func (p *RealPublisher) handleMessage(_ paho.Client, msg paho.Message) {
	// Retained commands are stale by definition.
	if msg.Retained() {
		return
	}
	id, key, ok := p.topics.ParseCommand(msg.Topic())
	if !ok {
		p.logger.Debug("mqtt ignoring topic", zap.String("topic", msg.Topic()))
		return
	}
	p.onCommand(Command{DeviceID: id, Key: key, Value: string(msg.Payload())})
}

// publish sends or buffers one message. State publishes run on the driver
// cycle goroutine and must not wait for the broker.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte, wait bool) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		firstDrop := p.outbox.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		if firstDrop {
			p.logger.Warn("mqtt buffer full, dropping oldest", zap.Int("capacity", p.outbox.capacity))
		}
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !wait {
		return nil
	}
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishState sends an accessory event to its device state topic.
func (p *RealPublisher) PublishState(event accessory.Event) error {
	payload, err := FormatState(event)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	qos, retained := stateDelivery(event)
	return p.publish(p.topics.State(event.DeviceID), qos, retained, payload, false)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	if err := p.publish(p.topics.System(), 1, event.Retained, payload, true); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

// NewNotifier adapts a Publisher to accessory.Notifier. Publish errors are
// logged and otherwise ignored.
func NewNotifier(pub Publisher, logger *zap.Logger) accessory.Notifier {
	return accessory.NotifierFunc(func(e accessory.Event) {
		if err := pub.PublishState(e); err != nil {
			logger.Warn("mqtt publish state failed",
				zap.String("device", e.DeviceID),
				zap.String("event", string(e.Kind)),
				zap.Error(err))
		}
	})
}
