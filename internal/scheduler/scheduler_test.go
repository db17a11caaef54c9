package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/antrikuy/antrikuy-backend/internal/engine"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	eng := engine.New(nil, nil, nil, nil)
	s := New(eng, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	s := New(nil, 0, zerolog.Nop())
	assert.Equal(t, DefaultInterval, s.interval)
}
