package websocket

import (
	"chat-relay/errors"
	"chat-relay/observability"
	"fmt"
	"log/slog"
	"net"
	"syscall"
)

// Listener reports accept failures caused by exhausted process or system resources
// as ErrResourceExhausted, which ends the serving loop instead of being retried.
type Listener struct {
	net.Listener
	log *slog.Logger
}

func NewListener(log *slog.Logger, inner net.Listener) *Listener {
	return &Listener{Listener: inner, log: log}
}

func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		return conn, nil
	}
	if isResourceExhausted(err) {
		observability.AcceptFailures.Inc()
		l.log.Error("Cannot accept more connections", "error", err)
		return nil, fmt.Errorf("%w: %v", errors.ErrResourceExhausted, err)
	}
	return nil, err
}

func isResourceExhausted(err error) bool {
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM)
}
