package port

import "context"

type IdempotencyRepository interface {
	// Acquire claims a key, returns false if it is already held
	Acquire(ctx context.Context, key string) (bool, error)

	// Release frees a key so the request can be retried
	Release(ctx context.Context, key string) error
}
