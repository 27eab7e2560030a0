package model

import "context"

// ModelSlot holds the last model identifier known to work.
//
// Implementations must be safe for concurrent use. CompareAndClear empties the
// slot only while it still holds id, so a request that observed a failure
// never wipes a newer identifier written by another request.
type ModelSlot interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, id string) error
	CompareAndClear(ctx context.Context, id string) (bool, error)
}
