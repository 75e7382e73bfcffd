package bus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSKVIdempotencyStore backs IdempotencyStore with a JetStream KeyValue
// bucket, so dedup survives across gateway instances instead of being
// scoped to one process's memory.
type NATSKVIdempotencyStore struct {
	kv nats.KeyValue
}

// OpenNATSKV creates (or attaches to) a KeyValue bucket with the given
// TTL and returns a store backed by it. A failure here means the KV
// store is unavailable, distinct from the bus connection itself.
func OpenNATSKV(js nats.JetStreamContext, bucket string, ttl time.Duration) (*NATSKVIdempotencyStore, error) {
	kv, err := js.KeyValue(bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: bucket,
			TTL:    ttl,
		})
		if err != nil {
			return nil, fmt.Errorf("open idempotency KV bucket %q: %w", bucket, err)
		}
	}
	return &NATSKVIdempotencyStore{kv: kv}, nil
}

// SeenOrMark implements IdempotencyStore using a set-if-absent Create
// call: a duplicate key fails to create (already exists) and is
// reported as seen.
func (s *NATSKVIdempotencyStore) SeenOrMark(key string) bool {
	if _, err := s.kv.Create(key, []byte{1}); err != nil {
		return true
	}
	return false
}
