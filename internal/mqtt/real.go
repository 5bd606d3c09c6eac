package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/hydro-controller/internal/logic"
)

// Options configures a RealPublisher.
type Options struct {
	Broker         string
	ClientID       string
	Prefix         string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	BufferSize     int

	// OnCommand receives remote pump overrides. Nil disables the subscription.
	OnCommand func(on bool)

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.ClientID == "" {
		o.ClientID = "hydro-controller"
	}
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 20 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// RealPublisher publishes to an actual MQTT broker.
//
// It never reconnects on its own. Connect starts a single non-blocking attempt
// and Status reports its progress, so the link monitor decides when to retry.
// Messages published while the connection is down are held in a ring buffer
// and replayed on the next successful connect.
type RealPublisher struct {
	client paho.Client
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	pending paho.Token
	buffer  *ringBuffer
}

var _ Publisher = (*RealPublisher)(nil)

// NewRealPublisher creates a publisher for the given broker. It does not
// connect; call Connect.
func NewRealPublisher(opts Options) *RealPublisher {
	p := newPublisher(opts)

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "LWT"})
	co := paho.NewClientOptions().
		AddBroker(p.opts.Broker).
		SetClientID(p.opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(p.opts.ConnectTimeout).
		SetWill(SystemTopic(p.opts.Prefix), string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(co)
	return p
}

func newPublisher(opts Options) *RealPublisher {
	opts.applyDefaults()
	return &RealPublisher{
		opts:   opts,
		logger: opts.Logger.With("component", "mqtt"),
		buffer: newRingBuffer(opts.BufferSize, opts.Logger.With("component", "mqtt")),
	}
}

// Status reports the state of the broker connection.
func (p *RealPublisher) Status() logic.LinkStatus {
	if p.client.IsConnectionOpen() {
		return logic.LinkConnected
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		select {
		case <-p.pending.Done():
		default:
			return logic.LinkConnecting
		}
	}
	return logic.LinkDisconnected
}

// Connect starts one connection attempt and returns without waiting for it.
// It is a no-op while an attempt is in flight or the connection is open.
func (p *RealPublisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending != nil {
		select {
		case <-p.pending.Done():
		default:
			return nil
		}
	}
	if p.client.IsConnectionOpen() {
		return nil
	}

	p.logger.Info("connecting", "broker", p.opts.Broker)
	tok := p.client.Connect()
	p.pending = tok
	go func() {
		<-tok.Done()
		if err := tok.Error(); err != nil {
			p.logger.Warn("connect failed", "broker", p.opts.Broker, "err", err)
		}
	}()
	return nil
}

// IsConnected reports whether the broker connection is open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Publish sends value on the topic for key. While disconnected the message
// is buffered and nil is returned.
func (p *RealPublisher) Publish(key, value string) error {
	return p.publish(bufferedMsg{
		key:     key,
		topic:   Topic(p.opts.Prefix, key),
		payload: []byte(value),
		qos:     1,
	})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{
		key:      keySystem,
		topic:    SystemTopic(p.opts.Prefix),
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	// The check and the push share mu with replay, so a message is either
	// sent live or still queued when the reconnect drains the buffer.
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buffer.push(msg)
		p.mu.Unlock()
		p.logger.Debug("buffered while disconnected", "topic", msg.topic)
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.opts.PublishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client.IsConnectionOpen() {
		p.client.Disconnect(1000) // 1 second timeout
	}
	return nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.logger.Info("connected", "broker", p.opts.Broker)

	if p.opts.OnCommand != nil {
		topic := CommandTopic(p.opts.Prefix)
		tok := c.Subscribe(topic, 1, p.handleCommand)
		if !tok.WaitTimeout(p.opts.PublishTimeout) {
			p.logger.Warn("subscribe timeout", "topic", topic)
		} else if err := tok.Error(); err != nil {
			p.logger.Warn("subscribe failed", "topic", topic, "err", err)
		}
	}

	p.replay(c)
}

// replay publishes buffered messages oldest first. On failure the unsent
// remainder goes back into the buffer.
func (p *RealPublisher) replay(c paho.Client) {
	p.mu.Lock()
	msgs := p.buffer.drain()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	p.logger.Info("replaying buffered messages", "count", len(msgs))
	for i, msg := range msgs {
		tok := c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if tok.WaitTimeout(p.opts.PublishTimeout) && tok.Error() == nil {
			continue
		}
		p.logger.Warn("replay interrupted", "sent", i, "remaining", len(msgs)-i)
		p.mu.Lock()
		for _, m := range msgs[i:] {
			p.buffer.push(m)
		}
		p.mu.Unlock()
		return
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.logger.Warn("connection lost", "err", err)
}

func (p *RealPublisher) handleCommand(_ paho.Client, m paho.Message) {
	if m.Retained() {
		p.logger.Warn("ignoring retained pump command", "topic", m.Topic())
		return
	}
	on, err := ParseCommand(m.Payload())
	if err != nil {
		p.logger.Warn("bad pump command", "err", err)
		return
	}
	p.logger.Info("remote pump command", "on", on)
	p.opts.OnCommand(on)
}
