package runtime

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
)

func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Group runs named background loops and waits for them on shutdown.
type Group struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewGroup(logger *slog.Logger) *Group {
	return &Group{logger: logger}
}

// Go starts fn in its own goroutine. fn must return once ctx is done.
func (g *Group) Go(ctx context.Context, name string, fn func(context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if g.logger != nil {
			g.logger.Info("background loop starting", "loop", name)
		}
		fn(ctx)
		if g.logger != nil {
			g.logger.Info("background loop stopped", "loop", name)
		}
	}()
}

func (g *Group) Wait() {
	g.wg.Wait()
}
