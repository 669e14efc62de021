package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultBucket is the JetStream key-value bucket sessions are kept in.
const DefaultBucket = "dynfilter_sessions"

// NATSBackend stores sessions in a JetStream key-value bucket, msgpack
// encoded. Expiry is the bucket's max age, fixed when the bucket is
// created; the ttl passed to Save is not applied per key.
type NATSBackend struct {
	conn *nats.Conn
	kv   nats.KeyValue
	ttl  time.Duration
}

var _ Backend = (*NATSBackend)(nil)

// NewNATSBackend connects to url and opens (or creates) bucket with the
// given max age.
func NewNATSBackend(url, bucket string, ttl time.Duration) (*NATSBackend, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "dynfilter filter sessions",
			TTL:         ttl,
			History:     1,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("opening session bucket %s: %w", bucket, err)
	}
	return &NATSBackend{conn: nc, kv: kv, ttl: ttl}, nil
}

func (n *NATSBackend) Load(_ context.Context, id string) (Data, error) {
	entry, err := n.kv.Get(id)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	data := Data{}
	if err := msgpack.Unmarshal(entry.Value(), &data); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return data, nil
}

func (n *NATSBackend) Save(_ context.Context, id string, data Data, _ time.Duration) error {
	raw, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if _, err := n.kv.Put(id, raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (n *NATSBackend) Delete(_ context.Context, id string) error {
	if err := n.kv.Delete(id); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns every session in the bucket ordered by id. ExpiresAt is
// derived from the entry's last write and the bucket max age.
func (n *NATSBackend) List(_ context.Context) ([]Record, error) {
	keys, err := n.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	slices.Sort(keys)

	out := make([]Record, 0, len(keys))
	for _, id := range keys {
		entry, err := n.kv.Get(id)
		if errors.Is(err, nats.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		r := Record{ID: id, Data: Data{}}
		if err := msgpack.Unmarshal(entry.Value(), &r.Data); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", id, err)
		}
		if n.ttl > 0 {
			r.ExpiresAt = entry.Created().Add(n.ttl)
		}
		out = append(out, r)
	}
	return out, nil
}

// PurgeExpired is a no-op: JetStream ages entries out of the bucket itself.
func (n *NATSBackend) PurgeExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// Close closes the NATS connection.
func (n *NATSBackend) Close() error {
	n.conn.Close()
	return nil
}
