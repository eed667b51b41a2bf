package wschannel

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub relays barrier rounds between wall processes. It collects candidacy
// reports per round, answers every reporter with the full candidate set
// once all connected processes have reported, and forwards the leader's
// value to the round's candidate followers.
//
// The hub holds no content state; it only sequences rounds.
type Hub struct {
	logger *slog.Logger

	register   chan *hubClient
	unregister chan *hubClient
	inbound    chan inboundFrame
}

type hubClient struct {
	id   uuid.UUID
	rank int
	conn *websocket.Conn
	send chan []byte
}

type inboundFrame struct {
	from  *hubClient
	frame []byte
}

// roundState tracks one in-flight barrier round.
type roundState struct {
	reported   map[int]bool
	candidates []int
}

type HubOption func(*Hub)

func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger:     slog.New(slog.DiscardHandler),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		inbound:    make(chan inboundFrame),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns all hub state. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[int]*hubClient)
	rounds := make(map[uint64]*roundState)

	for {
		select {
		case <-ctx.Done():
			for _, client := range clients {
				close(client.send)
			}
			return

		case client := <-h.register:
			if old, exists := clients[client.rank]; exists {
				h.logger.Warn("libwall: hub replacing client", "rank", client.rank, "old", old.id)
				close(old.send)
			}
			clients[client.rank] = client
			h.logger.Info("libwall: hub client joined", "rank", client.rank, "id", client.id, "clients", len(clients))

			// Ack so the dialer knows it participates in rounds from here on.
			if frame, err := encodeFrame(msgHello, helloPayload{Rank: client.rank}); err == nil {
				h.sendFrame(clients, client, frame)
			}

		case client := <-h.unregister:
			if clients[client.rank] == client {
				delete(clients, client.rank)
				close(client.send)
				h.logger.Info("libwall: hub client left", "rank", client.rank, "clients", len(clients))
			}

		case in := <-h.inbound:
			h.handleFrame(clients, rounds, in)
		}
	}
}

func (h *Hub) handleFrame(clients map[int]*hubClient, rounds map[uint64]*roundState, in inboundFrame) {
	msgType, payload, err := decodeFrame(in.frame)
	if err != nil {
		h.logger.Warn("libwall: hub dropping frame", "rank", in.from.rank, "error", err)
		return
	}

	switch msgType {
	case msgCandidacy:
		var report candidacyPayload
		if err := decodePayload(payload, &report); err != nil {
			h.logger.Warn("libwall: hub dropping candidacy", "rank", in.from.rank, "error", err)
			return
		}

		state, exists := rounds[report.Round]
		if !exists {
			state = &roundState{reported: make(map[int]bool)}
			rounds[report.Round] = state
		}
		state.reported[in.from.rank] = true
		if report.Candidate {
			state.candidates = append(state.candidates, in.from.rank)
		}

		if len(state.reported) < len(clients) {
			return
		}

		frame, err := encodeFrame(msgCandidates, candidatesPayload{
			Round: report.Round,
			Ranks: state.candidates,
		})
		if err != nil {
			h.logger.Error("libwall: hub candidates encode", "error", err)
			return
		}
		for rank := range state.reported {
			if client, connected := clients[rank]; connected {
				h.sendFrame(clients, client, frame)
			}
		}
		if len(state.candidates) == 0 {
			// No leader this round, no value will follow.
			delete(rounds, report.Round)
		}

	case msgValue:
		var value valuePayload
		if err := decodePayload(payload, &value); err != nil {
			h.logger.Warn("libwall: hub dropping value", "rank", in.from.rank, "error", err)
			return
		}

		state, exists := rounds[value.Round]
		if !exists {
			h.logger.Warn("libwall: hub value for unknown round", "rank", in.from.rank, "round", value.Round)
			return
		}
		for _, rank := range state.candidates {
			if rank == in.from.rank {
				continue
			}
			if client, connected := clients[rank]; connected {
				h.sendFrame(clients, client, in.frame)
			}
		}
		delete(rounds, value.Round)

	default:
		h.logger.Warn("libwall: hub unexpected message", "rank", in.from.rank, "type", msgType)
	}
}

// sendFrame never blocks the hub loop: a client whose write queue is full
// is dropped instead.
func (h *Hub) sendFrame(clients map[int]*hubClient, client *hubClient, frame []byte) {
	select {
	case client.send <- frame:
	default:
		h.logger.Warn("libwall: hub dropping slow client", "rank", client.rank, "id", client.id)
		close(client.send)
		delete(clients, client.rank)
	}
}

// Handler returns the websocket endpoint. The first frame on every new
// connection must be a hello carrying the process rank.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("libwall: hub upgrade failed", "error", err)
			return
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}
		msgType, payload, err := decodeFrame(frame)
		if err != nil || msgType != msgHello {
			h.logger.Warn("libwall: hub rejecting connection, no hello")
			conn.Close()
			return
		}
		var hello helloPayload
		if err := decodePayload(payload, &hello); err != nil {
			conn.Close()
			return
		}

		client := &hubClient{
			id:   uuid.New(),
			rank: hello.Rank,
			conn: conn,
			send: make(chan []byte, 16),
		}
		h.register <- client
		go client.writePump()
		go client.readPump(h)
	})
}

func (c *hubClient) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.inbound <- inboundFrame{from: c, frame: frame}
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
