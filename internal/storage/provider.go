package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"hlsfn/internal/ports"
)

// Store is the object storage contract shared by the function host, the
// lambda entrypoint and the worker.
type Store = ports.ObjectStore

// Ping checks that the store answers. A lookup of a random id must come back
// as not found; any other error means the store is unreachable or
// misconfigured.
func Ping(ctx context.Context, s Store) error {
	rc, _, _, err := s.GetObject(ctx, "healthcheck-"+uuid.NewString())
	if err == nil {
		rc.Close()
		return nil
	}
	if errors.Is(err, ports.ErrObjectNotFound) {
		return nil
	}
	return err
}
