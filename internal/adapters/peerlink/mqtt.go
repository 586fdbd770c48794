package peerlink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/strokelab/courtsync/internal/domain/clocksync"
)

// Topics for the broker-based exchange.
const (
	requestTopic = "courtsync/sync/request"
	replyTopic   = "courtsync/sync/reply"

	mqttDisconnectQuiesceMS = 250
)

// MQTTLink implements clocksync.Exchanger over an MQTT broker. Replies are
// routed back to the waiting exchange by their exchange id.
type MQTTLink struct {
	client  mqtt.Client
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan syncReply
}

// MQTTOption applies a configuration option to the MQTTLink.
type MQTTOption func(*MQTTLink)

// WithMQTTExchangeTimeout bounds how long one exchange waits for its reply.
func WithMQTTExchangeTimeout(d time.Duration) MQTTOption {
	return func(l *MQTTLink) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// DialMQTT connects to broker and subscribes to the reply topic.
func DialMQTT(broker, clientID string, opts ...MQTTOption) (*MQTTLink, error) {
	l := &MQTTLink{
		timeout: defaultExchangeTimeout,
		pending: make(map[string]chan syncReply),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)
	l.client = mqtt.NewClient(clientOpts)
	if token := l.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect broker %s: %w", broker, token.Error())
	}

	token := l.client.Subscribe(replyTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var reply syncReply
		if err := json.Unmarshal(msg.Payload(), &reply); err != nil {
			return
		}
		l.mu.Lock()
		ch, ok := l.pending[reply.ExchangeID]
		if ok {
			delete(l.pending, reply.ExchangeID)
		}
		l.mu.Unlock()
		if ok {
			ch <- reply
		}
	})
	if token.Wait() && token.Error() != nil {
		l.client.Disconnect(mqttDisconnectQuiesceMS)
		return nil, fmt.Errorf("subscribe %s: %w", replyTopic, token.Error())
	}

	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Exchange publishes one sync request and waits for the matching reply.
func (l *MQTTLink) Exchange(ctx context.Context, req clocksync.Request) (*clocksync.Reply, error) {
	payload, err := json.Marshal(encodeRequest(req))
	if err != nil {
		return nil, err
	}

	ch := make(chan syncReply, 1)
	l.mu.Lock()
	l.pending[req.ExchangeID] = ch
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.pending, req.ExchangeID)
		l.mu.Unlock()
	}()

	if token := l.client.Publish(requestTopic, 0, false, payload); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("publish sync request: %w", token.Error())
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		return decodeReply(reply), nil
	case <-timer.C:
		return nil, ErrExchangeTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close disconnects from the broker.
func (l *MQTTLink) Close() error {
	l.client.Disconnect(mqttDisconnectQuiesceMS)
	return nil
}

// ServeMQTT subscribes to the request topic and answers exchanges with t2
// and t3 stamped from clock, until ctx is cancelled. This is the broker
// counterpart of Responder.
func ServeMQTT(ctx context.Context, broker, clientID string, clock clocksync.Clock) error {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)
	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect broker %s: %w", broker, token.Error())
	}
	defer client.Disconnect(mqttDisconnectQuiesceMS)

	token := client.Subscribe(requestTopic, 0, func(c mqtt.Client, msg mqtt.Message) {
		var in syncRequest
		if err := json.Unmarshal(msg.Payload(), &in); err != nil {
			return
		}
		t2 := clock.Now()

		out := syncReply{
			ExchangeID: in.ExchangeID,
			T1Micros:   in.T1Micros,
			T2Micros:   t2.Microseconds(),
		}
		out.T3Micros = clock.Now().Microseconds()
		payload, err := json.Marshal(out)
		if err != nil {
			return
		}
		c.Publish(replyTopic, 0, false, payload)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", requestTopic, token.Error())
	}

	<-ctx.Done()
	return nil
}
