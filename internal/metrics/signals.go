package metrics

import (
	"context"
	"log/slog"
	"os"
	"syscall"
)

// Action is what the collector does with a relayed signal.
type Action int

const (
	ActionIgnore Action = iota
	ActionReset
	ActionDie
)

func (a Action) String() string {
	switch a {
	case ActionReset:
		return "RESET"
	case ActionDie:
		return "DIE"
	default:
		return "IGNORE"
	}
}

// Signals lists the OS signals the collector reacts to.
var Signals = []os.Signal{syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP}

// ClassifySignal maps a signal number to a collector action.
func ClassifySignal(code int) Action {
	switch syscall.Signal(code) {
	case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT:
		return ActionDie
	case syscall.SIGHUP:
		return ActionReset
	default:
		return ActionIgnore
	}
}

// RelaySignals forwards signal numbers from sigs, typically fed by
// signal.Notify, to the collector. Nothing else happens on delivery; the
// collector acts on the code in its own goroutine.
func RelaySignals(ctx context.Context, sigs <-chan os.Signal, c *Collector, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case sig := <-sigs:
			s, ok := sig.(syscall.Signal)
			if !ok {
				logger.Warn("Dropping non-numeric signal", slog.String("signal", sig.String()))
				continue
			}

			if err := c.Signal(ctx, int(s)); err != nil {
				return
			}
		}
	}
}
