// Package joblock keeps two runs from transcoding the same source at once.
package joblock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "hlsfn/internal/pkg/errors"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New returns a Locker storing keys as {prefix}:lock:{fileId}. ttl bounds
// how long a crashed run can keep the lock.
func New(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (l *Locker) Key(fileID string) string {
	return l.prefix + ":lock:" + fileID
}

// Acquire takes the lock for fileID with SET NX PX. A held lock is CONFLICT.
// The returned func releases the lock if this call still owns it.
func (l *Locker) Acquire(ctx context.Context, fileID string) (func(context.Context) error, error) {
	const op = "joblock.Acquire"

	key := l.Key(fileID)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeUnavailable, op, "lock store unavailable")
	}
	if !ok {
		return nil, apperrors.Conflict("a transcode for this file is already running").
			WithField("fileId", fileID)
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			return apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "joblock.Release", "failed to release lock")
		}
		return nil
	}
	return release, nil
}
