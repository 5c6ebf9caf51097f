package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"logitrack/internal/store"
	"logitrack/pkg/log"
)

const (
	mqttTopicPrefix = "logitrack/changes/"
	mqttQoS         = 1
	mqttWait        = 10 * time.Second
)

// mqttClient is the part of mqtt.Client the feed uses.
type mqttClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type mqttHandler struct {
	scope store.Scope
	fn    func(store.Change)
}

// MQTTFeed carries changes over an MQTT broker, one topic per table. A topic
// is subscribed at the broker once and fanned out locally.
type MQTTFeed struct {
	client mqttClient
	logger zerolog.Logger

	// ops orders broker subscribe and unsubscribe calls; mu guards topics
	ops    sync.Mutex
	mu     sync.RWMutex
	topics map[string]map[string]mqttHandler
}

func NewMQTTFeed(client mqttClient) *MQTTFeed {
	return &MQTTFeed{
		client: client,
		logger: log.WithComponent("mqtt-feed"),
		topics: make(map[string]map[string]mqttHandler),
	}
}

// DialMQTT connects to brokerURL. Topics are re-subscribed after every
// reconnect since the session is clean.
func DialMQTT(brokerURL, clientID string) (*MQTTFeed, error) {
	feed := NewMQTTFeed(nil)

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttWait).
		SetOrderMatters(false)
	opts.SetOnConnectHandler(func(mqtt.Client) { feed.resubscribe() })
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		feed.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	feed.client = client
	tok := client.Connect()
	if !tok.WaitTimeout(mqttWait) {
		return nil, fmt.Errorf("connect %s: timed out", brokerURL)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", brokerURL, err)
	}
	feed.logger.Info().Str("broker", brokerURL).Msg("MQTT connected")
	return feed, nil
}

func mqttTopic(table string) string {
	return mqttTopicPrefix + table
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttWait):
		return fmt.Errorf("mqtt: operation timed out after %s", mqttWait)
	}
}

func (f *MQTTFeed) Publish(ctx context.Context, c store.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := wait(ctx, f.client.Publish(mqttTopic(c.Table), mqttQoS, false, payload)); err != nil {
		return fmt.Errorf("publish change on %s: %w", c.Table, err)
	}
	return nil
}

func (f *MQTTFeed) Subscribe(ctx context.Context, scope store.Scope, fn func(store.Change)) (func(), error) {
	topic := mqttTopic(scope.Table)
	id := uuid.NewString()

	f.ops.Lock()
	defer f.ops.Unlock()

	// the handler goes in first so nothing published right after the broker
	// acknowledges is missed
	f.mu.Lock()
	handlers, ok := f.topics[topic]
	if !ok {
		handlers = make(map[string]mqttHandler)
		f.topics[topic] = handlers
	}
	handlers[id] = mqttHandler{scope: scope, fn: fn}
	f.mu.Unlock()

	if !ok {
		if err := wait(ctx, f.client.Subscribe(topic, mqttQoS, f.dispatch)); err != nil {
			f.mu.Lock()
			delete(f.topics, topic)
			f.mu.Unlock()
			return nil, fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	var once sync.Once
	return func() { once.Do(func() { f.remove(topic, id) }) }, nil
}

// remove never holds mu across the broker round trip: the client's router
// goroutine needs dispatch to return before it can complete the token.
func (f *MQTTFeed) remove(topic, id string) {
	f.ops.Lock()
	defer f.ops.Unlock()

	f.mu.Lock()
	handlers := f.topics[topic]
	delete(handlers, id)
	last := len(handlers) == 0
	if last {
		delete(f.topics, topic)
	}
	f.mu.Unlock()

	if !last {
		return
	}
	if err := wait(context.Background(), f.client.Unsubscribe(topic)); err != nil {
		f.logger.Warn().Err(err).Str("topic", topic).Msg("Unsubscribe failed")
	}
}

func (f *MQTTFeed) dispatch(_ mqtt.Client, msg mqtt.Message) {
	var c store.Change
	if err := json.Unmarshal(msg.Payload(), &c); err != nil {
		f.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropping undecodable change")
		return
	}

	f.mu.RLock()
	targets := make([]func(store.Change), 0, len(f.topics[msg.Topic()]))
	for _, h := range f.topics[msg.Topic()] {
		if h.scope.Matches(c) {
			targets = append(targets, h.fn)
		}
	}
	f.mu.RUnlock()

	for _, fn := range targets {
		fn(c)
	}
}

func (f *MQTTFeed) resubscribe() {
	f.mu.RLock()
	topics := make([]string, 0, len(f.topics))
	for topic := range f.topics {
		topics = append(topics, topic)
	}
	f.mu.RUnlock()

	for _, topic := range topics {
		if err := wait(context.Background(), f.client.Subscribe(topic, mqttQoS, f.dispatch)); err != nil {
			f.logger.Warn().Err(err).Str("topic", topic).Msg("Resubscribe failed")
		}
	}
}

func (f *MQTTFeed) Close() {
	f.client.Disconnect(250)
}
