// Package notify publishes alarm events to MQTT topics and Redis streams.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"

	"github.com/securityvision/analyzer/internal/alarm"
)

// QoS used for alarm messages.
const QoS byte = 1

const publishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes each event as JSON to one topic.
type MQTT struct {
	client publisher
	topic  string
	close  func()
}

// NewMQTT connects to broker and returns a notifier publishing to topic.
func NewMQTT(broker, clientID, topic string) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(publishTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, token.Error())
	}
	m := newMQTT(client, topic)
	m.close = func() { client.Disconnect(250) }
	return m, nil
}

func newMQTT(client publisher, topic string) *MQTT {
	return &MQTT{client: client, topic: topic}
}

// Notify implements alarm.Notifier.
func (m *MQTT) Notify(ctx context.Context, ev alarm.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode alarm: %w", err)
	}
	token := m.client.Publish(m.topic, QoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("timed out publishing to topic %s", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.close != nil {
		m.close()
	}
	return nil
}

// RedisStream appends each event to a Redis stream with XADD. Entries carry
// the JSON event in "data" and the publish time in "timestamp".
type RedisStream struct {
	client *redis.Client
	stream string
	owned  bool
}

// NewRedisStream connects to addr and verifies the connection.
func NewRedisStream(ctx context.Context, addr, stream string) (*RedisStream, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", addr, err)
	}
	return &RedisStream{client: client, stream: stream, owned: true}, nil
}

// NewRedisStreamWithClient publishes through an existing client.
func NewRedisStreamWithClient(client *redis.Client, stream string) *RedisStream {
	return &RedisStream{client: client, stream: stream}
}

// Notify implements alarm.Notifier.
func (r *RedisStream) Notify(ctx context.Context, ev alarm.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode alarm: %w", err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add alarm to stream %s: %w", r.stream, err)
	}
	return nil
}

// Close closes the client if this notifier created it.
func (r *RedisStream) Close() error {
	if r.owned {
		return r.client.Close()
	}
	return nil
}

var (
	_ alarm.Notifier = (*MQTT)(nil)
	_ alarm.Notifier = (*RedisStream)(nil)
)
