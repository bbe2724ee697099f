package mqtt

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/alarm-module/internal/logic"
)

// DefaultBufferSize is how many messages are held while the broker is unreachable.
const DefaultBufferSize = 256

// publishTimeout bounds the wait on one publish token.
const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	BufferSize int
}

// conn is the part of paho.Client the sender drives.
type conn interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Publish only queues; a
// sender goroutine delivers the queue in order whenever the connection is up,
// so callers never wait on the network.
type RealPublisher struct {
	client  paho.Client
	conn    conn
	topics  Topics
	timeout time.Duration

	mu        sync.Mutex
	buf       *outbox
	onCommand func(string)

	kick chan struct{}
	quit chan struct{}
	done chan struct{}

	connectedOnce atomic.Bool
}

// NewRealPublisher starts connecting in the background and returns at once.
// The broker receives a retained OFFLINE message if the connection drops.
func NewRealPublisher(opts Options) *RealPublisher {
	if opts.ClientID == "" {
		opts.ClientID = "alarm-module"
	}
	p := newPublisher(opts.Topics, opts.BufferSize)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(opts.Topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(co)
	p.conn = p.client
	go p.sendLoop()
	p.client.Connect()
	return p
}

func newPublisher(topics Topics, size int) *RealPublisher {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &RealPublisher{
		topics:  topics,
		timeout: publishTimeout,
		buf:     newOutbox(size),
		kick:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Publish queues a state machine event. QoS 0, not retained.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.enqueue(bufferedMsg{topic: p.topics.Events, payload: payload})
	return nil
}

// PublishSystem queues a system lifecycle event. QoS 1 so shutdown reaches the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.enqueue(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// SubscribeCommands delivers each message on the command topic to handler,
// with trailing line endings removed. The subscription is renewed on every
// reconnect. handler runs on a paho goroutine.
func (p *RealPublisher) SubscribeCommands(handler func(line string)) error {
	p.mu.Lock()
	p.onCommand = handler
	p.mu.Unlock()
	if !p.client.IsConnectionOpen() {
		return nil
	}
	return p.subscribe(handler)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.conn.IsConnectionOpen()
}

// Close gives the sender up to one publish timeout to deliver what is
// queued (the SHUTDOWN event in particular), then disconnects.
func (p *RealPublisher) Close() error {
	close(p.quit)
	select {
	case <-p.done:
	case <-time.After(p.timeout):
		log.Printf("mqtt: %d messages undelivered at close", p.pending())
	}
	p.conn.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) enqueue(m bufferedMsg) {
	p.mu.Lock()
	p.buf.push(m)
	p.mu.Unlock()
	p.wake()
}

func (p *RealPublisher) wake() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *RealPublisher) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// sendLoop is the only goroutine that waits on publish tokens.
func (p *RealPublisher) sendLoop() {
	defer close(p.done)
	for {
		select {
		case <-p.kick:
			p.flush()
		case <-p.quit:
			p.flush()
			return
		}
	}
}

// flush publishes queued messages oldest first until the queue is empty or
// the connection is down. A message that times out is not queued again:
// paho still owns it and may deliver it late.
func (p *RealPublisher) flush() {
	for p.conn.IsConnectionOpen() {
		p.mu.Lock()
		m, ok := p.buf.pop()
		p.mu.Unlock()
		if !ok {
			return
		}

		token := p.conn.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(p.timeout) {
			log.Printf("mqtt: publish %s: timeout", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: publish %s: %v", m.topic, err)
			if !p.conn.IsConnectionOpen() {
				p.mu.Lock()
				p.buf.requeue(m)
				p.mu.Unlock()
				return
			}
		}
	}
}

func (p *RealPublisher) subscribe(handler func(string)) error {
	token := p.client.Subscribe(p.topics.Command, 1, commandCallback(handler))
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", p.topics.Command)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.topics.Command, err)
	}
	return nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	reconnect := p.connectedOnce.Swap(true)
	log.Printf("mqtt: connected (reconnect=%v)", reconnect)

	p.mu.Lock()
	queued := p.buf.len()
	dropped := p.buf.takeDropped()
	handler := p.onCommand
	p.mu.Unlock()
	if queued > 0 {
		log.Printf("mqtt: replaying %d buffered messages (%d dropped)", queued, dropped)
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		p.enqueue(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1})
	} else {
		p.wake()
	}

	if handler != nil {
		c.Subscribe(p.topics.Command, 1, commandCallback(handler))
	}
}

func commandCallback(handler func(string)) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		handler(strings.TrimRight(string(msg.Payload()), "\r\n"))
	}
}
