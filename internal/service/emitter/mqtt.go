package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"langarhall/internal/dto"
	"langarhall/internal/logger"
)

// ErrReconnectPending is returned by Publish while waiting to retry a failed connection.
var ErrReconnectPending = errors.New("mqtt reconnect pending")

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// MQTTEmitter publishes committed occupancy snapshots to an MQTT broker.
type MQTTEmitter struct {
	broker   string
	topic    string
	clientID string
	logger   *logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	client    *paho.Client
	published uint64
	errors    uint64

	// after a failed connect, Publish fails fast until retryAt
	retryAt        time.Time
	reconnectDelay time.Duration
}

// Stats is a point-in-time view of the emitter counters.
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

func NewMQTTEmitter(broker, topic, clientID string, logger *logger.Logger) *MQTTEmitter {
	return &MQTTEmitter{
		broker:   broker,
		topic:    topic,
		clientID: clientID,
		logger:   logger,
		now:      time.Now,
	}
}

// Connect establishes the connection to the broker.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connectLocked(ctx)
}

func (e *MQTTEmitter) connectLocked(ctx context.Context) error {
	if err := e.dialLocked(ctx); err != nil {
		e.reconnectDelay *= 2
		if e.reconnectDelay < minReconnectDelay {
			e.reconnectDelay = minReconnectDelay
		}
		if e.reconnectDelay > maxReconnectDelay {
			e.reconnectDelay = maxReconnectDelay
		}
		e.retryAt = e.now().Add(e.reconnectDelay)
		return err
	}
	e.reconnectDelay = 0
	e.retryAt = time.Time{}
	return nil
}

func (e *MQTTEmitter) dialLocked(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", e.broker)
	if err != nil {
		return fmt.Errorf("failed to dial mqtt broker %s: %w", e.broker, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: e.clientID,
		Conn:     conn,
		OnClientError: func(err error) {
			e.logger.Warning("mqtt client error: %v", err)
		},
	})

	connack, err := client.Connect(dialCtx, &paho.Connect{
		ClientID:   e.clientID,
		KeepAlive:  30,
		CleanStart: true,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to mqtt broker %s: %w", e.broker, err)
	}
	if connack.ReasonCode != 0 {
		conn.Close()
		return fmt.Errorf("mqtt broker %s refused connection: reason %d", e.broker, connack.ReasonCode)
	}

	e.client = client
	e.logger.Info("mqtt connection established (broker=%s client_id=%s)", e.broker, e.clientID)
	return nil
}

// Publish sends a snapshot as JSON. A lost connection is re-established on the next call.
func (e *MQTTEmitter) Publish(ctx context.Context, data dto.OccupancyData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		if e.now().Before(e.retryAt) {
			e.errors++
			return ErrReconnectPending
		}
		if err := e.connectLocked(ctx); err != nil {
			e.errors++
			return err
		}
	}

	_, err = e.client.Publish(ctx, &paho.Publish{
		Topic:   e.topic,
		QoS:     1,
		Retain:  true,
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
		},
	})
	if err != nil {
		e.errors++
		e.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		e.client = nil
		return fmt.Errorf("failed to publish to %s: %w", e.topic, err)
	}

	e.published++
	return nil
}

// Stats returns the publish counters.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{Connected: e.client != nil, Published: e.published, Errors: e.errors}
}

// Disconnect closes the connection to the broker.
func (e *MQTTEmitter) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil
	}
	err := e.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	e.client = nil
	return err
}
