package catalog

import (
	"context"
	"sync/atomic"

	pkgerrors "github.com/emberline/storefront-backend/pkg/errors"
	"github.com/emberline/storefront-backend/pkg/redis"
)

// Sequence hands out unique numeric identifiers for catalog entries that
// arrive without one.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
}

// RedisSequence coordinates identifiers across processes through a shared
// Redis counter seeded at a fixed origin.
type RedisSequence struct {
	client *redis.Client
	name   string
	origin int64
}

func NewRedisSequence(client *redis.Client, name string, origin int64) *RedisSequence {
	return &RedisSequence{client: client, name: name, origin: origin}
}

func (s *RedisSequence) Next(ctx context.Context) (int64, error) {
	id, err := s.client.NextSequence(ctx, s.name, s.origin)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next sequence value")
	}
	return id, nil
}

// LocalSequence is a process-local fallback used when Redis is not
// configured. Identifiers are unique within the process only.
type LocalSequence struct {
	counter atomic.Int64
}

func NewLocalSequence(origin int64) *LocalSequence {
	seq := &LocalSequence{}
	seq.counter.Store(origin)
	return seq
}

func (s *LocalSequence) Next(_ context.Context) (int64, error) {
	return s.counter.Add(1), nil
}
