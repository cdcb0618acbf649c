// Package dedupe guards payment recording against duplicate submissions.
// Webhook retries and double-clicked forms arrive with the same invoice id
// and reference; a short-lived redis key absorbs them.
package dedupe

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

type Config interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetPaymentDedupeTTL() time.Duration
}

func New(cfg Config) (*Store, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return NewWithClient(redis.NewClient(opt), cfg.GetPaymentDedupeTTL()), nil
}

// NewWithClient wires an existing client, used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Claim registers a payment submission. It returns true the first time a
// given invoice and reference pair is seen within the TTL window and false
// on every repeat.
func (s *Store) Claim(ctx context.Context, invoiceID uuid.UUID, reference string) (bool, error) {
	key := fmt.Sprintf("billing:payment:%s:%s", invoiceID, reference)
	ok, err := s.client.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim payment key: %w", err)
	}
	return ok, nil
}

// Release drops a claim so a submission can be retried after a failed write.
func (s *Store) Release(ctx context.Context, invoiceID uuid.UUID, reference string) error {
	key := fmt.Sprintf("billing:payment:%s:%s", invoiceID, reference)
	return s.client.Del(ctx, key).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
