// Package client is the terminal chat client of the relay.
package client

import (
	"bufio"
	"chat-relay/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

var (
	// ErrServerUnreachable is returned when the relay drops an established session.
	ErrServerUnreachable = errors.New("server unreachable")
	// ErrSessionRefused is returned when the relay turns the session down before establishing it.
	// Dialing again would be refused the same way, so it ends Run.
	ErrSessionRefused = errors.New("session refused")
)

// stableSession is how long a session must last for its loss to start a fresh reconnect budget.
const stableSession = time.Minute

// Client keeps one websocket session to the relay, dialing again when it drops.
type Client struct {
	cfg    Config
	log    *slog.Logger
	out    io.Writer
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	id   string
}

func New(cfg Config, log *slog.Logger, out io.Writer) *Client {
	return &Client{
		cfg: cfg,
		log: log,
		out: out,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

// Run connects, then relays lines from in as messages and prints every frame received,
// until ctx ends or in is exhausted. A dropped session is dialed again with backoff.
func (c *Client) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	reconnects := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries),
		ctx,
	)
	for {
		conn, err := c.dialWithRetry(ctx)
		if err != nil {
			return err
		}
		connectedAt := time.Now()
		readErr := make(chan error, 1)
		go func() { readErr <- c.readLoop(conn) }()

		err = c.writeLoop(ctx, conn, lines, readErr)
		_ = conn.Close()
		switch {
		case err == nil, ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrSessionRefused):
			return err
		}

		if time.Since(connectedAt) > stableSession {
			reconnects.Reset()
		}
		wait := reconnects.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("giving up after %d reconnections: %w", c.cfg.MaxRetries, err)
		}
		c.log.Warn("Session lost, reconnecting", "error", err, "next_attempt_in", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil
		}
	}
}

// Send writes one message on the current session.
func (c *Client) Send(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrServerUnreachable
	}
	raw, err := json.Marshal(domain.InboundMessage{Content: content})
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// ID is the identity the relay assigned to the current session.
func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn, lines <-chan string, readErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := c.Send(line); err != nil {
				return err
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	established := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame domain.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Debug("Ignoring unreadable frame", "error", err)
			continue
		}
		if frame.Type == domain.FrameStatus && frame.Status != nil {
			c.mu.Lock()
			c.id = frame.SessionID
			c.mu.Unlock()
		}
		fmt.Fprintln(c.out, Render(frame, c.cfg.Colours))
		if frame.Type != domain.FrameStatus || frame.Status == nil {
			continue
		}
		switch {
		case frame.Status.Code == domain.StatusEstablished:
			established = true
		case !established:
			return fmt.Errorf("%w: %s", ErrSessionRefused, frame.Status.Message)
		default:
			return fmt.Errorf("%w: %s", ErrServerUnreachable, frame.Status.Message)
		}
	}
}

func (c *Client) dialWithRetry(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.target()
	if err != nil {
		return nil, err
	}

	var conn *websocket.Conn
	operation := func() error {
		var dialErr error
		conn, _, dialErr = c.dialer.DialContext(ctx, target, nil)
		return dialErr
	}
	strategy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries),
		ctx,
	)
	err = backoff.RetryNotify(operation, strategy, func(err error, d time.Duration) {
		c.log.Info("Retrying connection", "url", target, "error", err, "next_attempt_in", d)
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", target, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *Client) target() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid relay url %q: %w", c.cfg.URL, err)
	}
	if c.cfg.UserID != "" {
		q := u.Query()
		q.Set("user_id", c.cfg.UserID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Render formats a frame for the terminal.
func Render(frame domain.Frame, colours bool) string {
	var line string
	var style color.Style
	switch frame.Type {
	case domain.FrameMessage:
		if frame.Message == nil {
			return ""
		}
		line = fmt.Sprintf("[%s] %s: %s",
			frame.Message.Timestamp.Local().Format(time.TimeOnly),
			frame.Message.UserID,
			frame.Message.Content)
		style = color.New(color.FgWhite)
	case domain.FrameStatus:
		if frame.Status == nil {
			return ""
		}
		line = fmt.Sprintf("*** %d %s (%s)", frame.Status.Code, frame.Status.Message, frame.SessionID)
		style = color.New(color.FgRed, color.OpBold)
		if frame.Status.Code == domain.StatusEstablished {
			style = color.New(color.FgGreen, color.OpBold)
		}
	case domain.FrameAck:
		if frame.Ack == nil {
			return ""
		}
		line = fmt.Sprintf("    delivered to %d", frame.Ack.Delivered)
		style = color.New(color.FgGray)
	case domain.FrameError:
		line = "!!! " + frame.Error
		style = color.New(color.FgYellow)
	default:
		return ""
	}
	if !colours {
		return line
	}
	return style.Render(line)
}
