package wschannel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
)

var ErrChannelClosed = errors.New("libwall: channel closed")

// Client implements swap.Channel over a hub connection. One Client per wall
// process; methods follow the swap.Channel contract and are not safe for
// concurrent use.
type Client struct {
	logger *slog.Logger
	rank   int
	conn   *websocket.Conn

	round uint64

	// readPump output. candidates is buffered for the worst case of one
	// pending reply; values is a single-slot mailbox, the latest frame wins.
	candidates chan candidatesPayload
	values     chan valuePayload

	closeOnce sync.Once
	done      chan struct{}
	readErr   error
}

type ClientOption func(*Client)

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// Dial connects to the hub at url (ws:// or wss://) with the given fixed
// rank, retrying with exponential backoff while the hub is unreachable.
func Dial(url string, rank int, opts ...ClientOption) (*Client, error) {
	c := &Client{
		logger:     slog.New(slog.DiscardHandler),
		rank:       rank,
		candidates: make(chan candidatesPayload, 1),
		values:     make(chan valuePayload, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	err := backoff.Retry(func() error {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			c.logger.Warn("libwall: hub dial failed, retrying", "url", url, "error", err)
			return err
		}
		c.conn = conn
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8))
	if err != nil {
		return nil, fmt.Errorf("libwall: hub dial: %w", err)
	}

	if err := c.write(msgHello, helloPayload{Rank: rank}); err != nil {
		c.conn.Close()
		return nil, err
	}
	if err := c.awaitHelloAck(); err != nil {
		c.conn.Close()
		return nil, err
	}

	go c.readPump()
	return c, nil
}

// awaitHelloAck blocks until the hub confirms registration. Without it a
// caller could start a round before the hub counts this process, letting
// the rest of the cluster complete the round without it.
func (c *Client) awaitHelloAck() error {
	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("libwall: hub handshake: %w", err)
	}
	msgType, _, err := decodeFrame(frame)
	if err != nil {
		return fmt.Errorf("libwall: hub handshake: %w", err)
	}
	if msgType != msgHello {
		return fmt.Errorf("libwall: hub handshake: unexpected message %v", msgType)
	}
	return nil
}

func (c *Client) Rank() int { return c.rank }

// ReportCandidacy starts the next round and blocks until every connected
// process has reported.
func (c *Client) ReportCandidacy(candidate bool) ([]int, error) {
	c.round++
	err := c.write(msgCandidacy, candidacyPayload{Round: c.round, Candidate: candidate})
	if err != nil {
		return nil, err
	}

	for {
		select {
		case reply := <-c.candidates:
			if reply.Round != c.round {
				continue
			}
			return reply.Ranks, nil
		case <-c.done:
			return nil, c.readErr
		}
	}
}

// Broadcast publishes this round's canonical value.
func (c *Client) Broadcast(value []byte) error {
	return c.write(msgValue, valuePayload{Round: c.round, Data: value})
}

// Receive blocks until this round's canonical value arrives from the
// leader.
func (c *Client) Receive() ([]byte, error) {
	for {
		select {
		case value := <-c.values:
			if value.Round != c.round {
				continue
			}
			return value.Data, nil
		case <-c.done:
			return nil, c.readErr
		}
	}
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.conn.Close()
	})
	return err
}

func (c *Client) write(msgType messageType, payload any) error {
	frame, err := encodeFrame(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return c.readErr
	default:
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *Client) readPump() {
	defer close(c.done)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = fmt.Errorf("%w: %w", ErrChannelClosed, err)
			return
		}

		msgType, payload, err := decodeFrame(frame)
		if err != nil {
			c.logger.Warn("libwall: dropping hub frame", "error", err)
			continue
		}

		switch msgType {
		case msgCandidates:
			var reply candidatesPayload
			if err := decodePayload(payload, &reply); err != nil {
				c.logger.Warn("libwall: dropping candidates frame", "error", err)
				continue
			}
			c.deliverCandidates(reply)
		case msgValue:
			var value valuePayload
			if err := decodePayload(payload, &value); err != nil {
				c.logger.Warn("libwall: dropping value frame", "error", err)
				continue
			}
			c.deliverValue(value)
		default:
			c.logger.Warn("libwall: unexpected hub message", "type", msgType)
		}
	}
}

func (c *Client) deliverCandidates(reply candidatesPayload) {
	select {
	case c.candidates <- reply:
	default:
		<-c.candidates
		c.candidates <- reply
	}
}

// deliverValue keeps only the newest value frame. A process that was not a
// candidate never reads c.values, so stale frames must not pile up.
func (c *Client) deliverValue(value valuePayload) {
	select {
	case c.values <- value:
	default:
		select {
		case <-c.values:
		default:
		}
		c.values <- value
	}
}
