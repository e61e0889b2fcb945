package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/autonoma-fleet/autonoma/internal/logging"
	"github.com/autonoma-fleet/autonoma/pkg/config"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	once   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// Unlike signal.NotifyContext it remembers which signal arrived.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
		}
		sc.once.Do(func() { signal.Stop(sc.sigCh) })
	}()
	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger builds the application logger from the log section.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(level, cfg.Format), nil
}

// PrintSystemMessage prints a standardized system message.
func PrintSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// HandleExecutionError hides interruptions so Ctrl+C exits 0.
func HandleExecutionError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			logger.Debug("enter node", "node_id", e.NodeID, "run_id", e.RunID)
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			if e.Err != "" {
				logger.Debug("leave node (error)", "node_id", e.NodeID, "err", e.Err)
				return
			}
			logger.Debug("leave node", "node_id", e.NodeID, "duration", e.Duration)
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			logger.Debug("run finished", "run_id", e.RunID, "outcome", e.Outcome, "path", e.Path)
		},
	}
}
