//go:build !unix

package auth

import (
	"context"
	"sync"
)

var (
	locksMu sync.Mutex
	locks   = make(map[string]chan struct{})
)

// Lock serializes session access within this process only; platforms
// without flock get no cross-process exclusion.
func Lock(ctx context.Context, dir, name string) (func(), error) {
	key := dir + "/" + name

	locksMu.Lock()
	ch, ok := locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		locks[key] = ch
	}
	locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
