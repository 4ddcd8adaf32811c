package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	rediscommon "wisefido-records/internal/common/redis"

	"go.uber.org/zap"
)

// Publisher forwards a change to an external system.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Async decouples a Publisher from the mutating caller with a bounded queue
// drained by one worker goroutine.
type Async struct {
	pub     Publisher
	queue   chan Change
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the worker. Close stops it after draining queued changes.
func NewAsync(pub Publisher, logger *zap.Logger, buffer int, timeout time.Duration) *Async {
	if buffer < 1 {
		buffer = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	a := &Async{
		pub:     pub,
		queue:   make(chan Change, buffer),
		logger:  logger,
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify implements Notifier; it never blocks.
func (a *Async) Notify(path string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- Change{Path: path, At: time.Now()}:
	default:
		a.logger.Warn("Publish queue is full, dropping notification", zap.String("path", path))
	}
}

// Close drains the queue and waits for the worker.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for change := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.pub.Publish(ctx, change); err != nil {
			a.logger.Error("Failed to publish change", zap.String("path", change.Path), zap.Error(err))
		}
		cancel()
	}
}

// StreamPublisher appends changes to a Redis stream.
type StreamPublisher struct {
	client *rediscommon.Client
	stream string
	maxLen int64
}

// NewStreamPublisher publishes to stream, trimming it to roughly maxLen entries.
func NewStreamPublisher(client *rediscommon.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, change Change) error {
	if _, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, change); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}

// MQTTClient is the subset of the MQTT client used for publishing.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte, timeout time.Duration) error
}

// MQTTPublisher publishes each change on "<prefix><path>".
type MQTTPublisher struct {
	client MQTTClient
	prefix string
	qos    byte
}

func NewMQTTPublisher(client MQTTClient, prefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: strings.TrimSuffix(prefix, "/"), qos: qos}
}

// Topic returns the topic a change on path is published to.
func (p *MQTTPublisher) Topic(path string) string {
	return p.prefix + "/" + strings.TrimPrefix(path, "/")
}

func (p *MQTTPublisher) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return p.client.Publish(p.Topic(change.Path), p.qos, false, payload, timeout)
}
