package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentplane/core/pkg/models"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"
)

// Bus is the gateway's transport: durable/non-durable publish,
// idempotent inject, lane-ordered delivery, and breaker-wrapped
// outbound calls.
type Bus struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	idem    IdempotencyStore
	lanes   *LaneQueue
	breaker *gobreaker.CircuitBreaker[*nats.PubAck]

	mu        sync.Mutex
	listeners map[string]func(*models.Envelope)
}

// Config configures a Bus.
type Config struct {
	URL              string
	IdempotencyTTL   time.Duration
	LaneWatermark    int
	FailureThreshold uint32
	FailureWindow    time.Duration
	Cooldown         time.Duration

	// IdempotencyStore overrides the default in-process dedup set, e.g.
	// with a NATS JetStream KeyValue-backed store for multi-node
	// deployments. Nil uses NewMemoryIdempotencyStore(cfg.IdempotencyTTL).
	IdempotencyStore IdempotencyStore
}

// DefaultConfig returns the stated production defaults.
func DefaultConfig() Config {
	return Config{
		URL:              nats.DefaultURL,
		IdempotencyTTL:   DefaultIdempotencyTTL,
		LaneWatermark:    DefaultWatermark,
		FailureThreshold: 5,
		FailureWindow:    30 * time.Second,
		Cooldown:         10 * time.Second,
	}
}

// Connect dials NATS and prepares JetStream, the idempotency store, the
// lane queue, and the publish breaker.
func Connect(cfg Config) (*Bus, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect bus: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	idem := cfg.IdempotencyStore
	if idem == nil {
		idem = NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}

	return &Bus{
		conn:      conn,
		js:        js,
		idem:      idem,
		lanes:     NewLaneQueue(cfg.LaneWatermark),
		breaker:   NewBreaker[*nats.PubAck]("bus-publish", cfg.FailureThreshold, cfg.FailureWindow, cfg.Cooldown),
		listeners: make(map[string]func(*models.Envelope)),
	}, nil
}

// JetStream exposes the underlying JetStream context, e.g. to build a
// KeyValue-backed IdempotencyStore before wiring it into Config.
func (b *Bus) JetStream() nats.JetStreamContext { return b.js }

// SetIdempotencyStore swaps the dedup store after Connect, e.g. once a
// JetStream KeyValue bucket has been provisioned from b.JetStream().
func (b *Bus) SetIdempotencyStore(store IdempotencyStore) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idem = store
}

// Close drains the connection.
func (b *Bus) Close() {
	b.conn.Close()
}

// InjectMessage validates the target, dedupes by the envelope's
// idempotency key, and routes it onto the appropriate subject. A
// duplicate within the TTL window is silent success. The lane key is
// derived from the envelope's source/target pair.
func (b *Bus) InjectMessage(env *models.Envelope) error {
	target, err := models.ParseTarget(env.Target)
	if err != nil {
		return err
	}
	subject, err := DeriveSubject(target)
	if err != nil {
		return err
	}

	if b.idem.SeenOrMark(env.DedupKey()) {
		return nil
	}

	laneKey := env.Source + ":" + env.Target
	release, err := b.lanes.Enqueue(laneKey)
	if err != nil {
		return err
	}
	defer release()

	return b.Publish(subject, env)
}

// Publish sends env to subject through the durable JetStream workqueue,
// breaker-wrapped so a tripped breaker fails fast with ErrCircuitOpen.
func (b *Bus) Publish(subject string, env *models.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	_, err = Call(b.breaker, func() (*nats.PubAck, error) {
		return b.js.Publish(subject, payload)
	})
	return err
}

// PublishCore sends env directly through core NATS (non-durable),
// used for reply-to correlated inboxes where at-most-once is fine.
func (b *Bus) PublishCore(subject string, env *models.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return b.conn.Publish(subject, payload)
}

// Subscribe registers handler on subject within queueGroup for load
// balancing across node replicas, returning a cancel function.
func (b *Bus) Subscribe(subject, queueGroup string, handler func(*models.Envelope)) (func() error, error) {
	sub, err := b.conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		var env models.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return
		}
		handler(&env)
	})
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

// OnResponseForCorrelation registers a transient listener keyed by
// correlation ID; the gateway delivers matching responses to handler
// until RemoveResponseListener is called.
func (b *Bus) OnResponseForCorrelation(id string, handler func(*models.Envelope)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[id] = handler
}

// RemoveResponseListener cancels a correlation-keyed listener.
func (b *Bus) RemoveResponseListener(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

// Deliver routes an arriving envelope to its correlation listener, if
// any; envelopes with no registered listener are dropped silently.
func (b *Bus) Deliver(env *models.Envelope) {
	b.mu.Lock()
	handler, ok := b.listeners[env.EffectiveCorrelationID()]
	b.mu.Unlock()
	if ok {
		handler(env)
	}
}
