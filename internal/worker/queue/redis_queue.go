package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue consumes payloads pushed onto a Redis list by the trigger side.
type RedisQueue struct {
	rdb       redis.UniversalClient
	queueName string
	block     time.Duration
}

// NewRedisQueue returns a queue that blocks at most block per Pop so a
// stopping worker notices cancellation.
func NewRedisQueue(rdb redis.UniversalClient, queueName string, block time.Duration) *RedisQueue {
	if block <= 0 {
		block = 5 * time.Second
	}
	return &RedisQueue{rdb: rdb, queueName: queueName, block: block}
}

// Pop blocks until an element exists (BRPOP). It returns "" with a nil
// error when the wait times out.
func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	res, err := q.rdb.BRPop(ctx, q.block, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

// ResultStore keeps run results at {queue}:result:{fileId} for ttl.
type ResultStore struct {
	rdb       redis.UniversalClient
	queueName string
	ttl       time.Duration
}

func NewResultStore(rdb redis.UniversalClient, queueName string, ttl time.Duration) *ResultStore {
	return &ResultStore{rdb: rdb, queueName: queueName, ttl: ttl}
}

func (s *ResultStore) Key(fileID string) string {
	return s.queueName + ":result:" + fileID
}

// Save stores v as JSON under the result key of fileID.
func (s *ResultStore) Save(ctx context.Context, fileID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.Key(fileID), data, s.ttl).Err()
}
