package cache

import (
	"context"
	"sync"
)

// Views resolves view keys through scope generations. A fill that started
// before an invalidation writes under the old generation, which no reader
// asks for again.
//
// A scope whose bump failed is remembered as stale. Key refuses it until a
// later bump goes through, so the process never serves a view it failed to
// invalidate.
type Views struct {
	backend Cache

	mu    sync.Mutex
	stale map[string]struct{}
}

func NewViews(backend Cache) *Views {
	if backend == nil {
		backend = NoopCache{}
	}
	return &Views{backend: backend, stale: make(map[string]struct{})}
}

// Key returns the current key of view in scope. It must be resolved before
// the database read the view is built from. On error the caller skips the
// cache for this read.
func (v *Views) Key(ctx context.Context, scope, view string) (string, error) {
	if err := v.retry(ctx, scope); err != nil {
		return "", err
	}
	gen, err := v.backend.Generation(ctx, scope)
	if err != nil {
		return "", err
	}
	return ViewKey(scope, gen, view), nil
}

func (v *Views) retry(ctx context.Context, scope string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.stale[scope]; !ok {
		return nil
	}
	if err := v.backend.Bump(ctx, scope); err != nil {
		return err
	}
	delete(v.stale, scope)
	return nil
}

func (v *Views) Get(ctx context.Context, key string, dest any) (bool, error) {
	return v.backend.Get(ctx, key, dest)
}

func (v *Views) Set(ctx context.Context, key string, value any) error {
	return v.backend.Set(ctx, key, value)
}

// Invalidate moves every scope to a new generation
func (v *Views) Invalidate(ctx context.Context, scopes ...string) error {
	if len(scopes) == 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.backend.Bump(ctx, scopes...); err != nil {
		for _, scope := range scopes {
			v.stale[scope] = struct{}{}
		}
		return err
	}
	for _, scope := range scopes {
		delete(v.stale, scope)
	}
	return nil
}
