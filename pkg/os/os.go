package os

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ExpectTermination returns a channel closed on SIGINT or SIGTERM.
func ExpectTermination() <-chan struct{} {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		<-signals
		signal.Stop(signals)
		close(done)
	}()
	return done
}

// TerminationContext is cancelled on SIGINT or SIGTERM.
func TerminationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
