package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = pingFunc(func(context.Context) error { return nil })
	down = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func TestCheckBasic(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		cache  Pinger
		status string
	}{
		{"all up", up, up, "healthy"},
		{"no cache configured", up, nil, "healthy"},
		{"cache down", up, down, "degraded"},
		{"database down", down, up, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewHealthChecker(tt.db, tt.cache).CheckBasic(context.Background())
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.cache == nil, got.Cache == nil)
			assert.Positive(t, got.Goroutines)
		})
	}
}
